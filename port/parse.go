package port

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParsePortSpec parses a port specification string and returns a sorted, deduplicated slice of ports.
// Supported forms:
//   - single: "22"
//   - list: "22,80,443"
//   - range: "1-1024"
//   - mixed: "22,80,8000-8100"
func ParsePortSpec(spec string) ([]uint16, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("empty port spec")
	}
	seen := make(map[int]struct{})
	for _, p := range strings.Split(spec, ",") {
		if err := addToken(seen, strings.TrimSpace(p)); err != nil {
			return nil, err
		}
	}
	return sortedPorts(seen), nil
}

// ParsePortArgs parses positional port arguments ("7000 8000 9000-9002").
// Each argument may itself be a spec accepted by ParsePortSpec.
func ParsePortArgs(args []string) ([]uint16, error) {
	if len(args) == 0 {
		return nil, errors.New("no ports given")
	}
	seen := make(map[int]struct{})
	for _, a := range args {
		for _, p := range strings.Split(a, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if err := addToken(seen, p); err != nil {
				return nil, err
			}
		}
	}
	if len(seen) == 0 {
		return nil, errors.New("no ports given")
	}
	return sortedPorts(seen), nil
}

// Merge returns the sorted union of the given port sets.
func Merge(sets ...[]uint16) []uint16 {
	seen := make(map[int]struct{})
	for _, s := range sets {
		for _, p := range s {
			seen[int(p)] = struct{}{}
		}
	}
	return sortedPorts(seen)
}

func addToken(seen map[int]struct{}, p string) error {
	if p == "" {
		return errors.New("invalid empty token in port spec")
	}
	if strings.Contains(p, "-") {
		bounds := strings.SplitN(p, "-", 2)
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return fmt.Errorf("invalid range token %q: %w", p, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return fmt.Errorf("invalid range token %q: %w", p, err)
		}
		if start < 1 || end < 1 || start > 65535 || end > 65535 {
			return errors.New("port numbers must be in 1..65535")
		}
		if start > end {
			return errors.New("range start greater than end: " + p)
		}
		for i := start; i <= end; i++ {
			seen[i] = struct{}{}
		}
		return nil
	}
	v, err := strconv.Atoi(p)
	if err != nil {
		return err
	}
	if v < 1 || v > 65535 {
		return errors.New("port numbers must be in 1..65535")
	}
	seen[v] = struct{}{}
	return nil
}

func sortedPorts(seen map[int]struct{}) []uint16 {
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	out := make([]uint16, 0, len(ports))
	for _, p := range ports {
		out = append(out, uint16(p))
	}
	return out
}
