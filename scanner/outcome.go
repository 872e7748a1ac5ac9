package scanner

import (
	"slices"
	"sync"

	"knockraven/port"
)

// Outcome collects matches from concurrent runners. It is append-only.
type Outcome struct {
	mu      sync.Mutex
	matches []port.Match
}

func (o *Outcome) add(m port.Match) {
	o.mu.Lock()
	o.matches = append(o.matches, m)
	o.mu.Unlock()
}

// Len returns the number of matches collected so far.
func (o *Outcome) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.matches)
}

// Matches returns a copy of the collected matches sorted by sequence, then
// by assignment. Completion order is not preserved.
func (o *Outcome) Matches() []port.Match {
	o.mu.Lock()
	out := slices.Clone(o.matches)
	o.mu.Unlock()
	slices.SortFunc(out, compareMatch)
	return out
}

// Sequences returns just the port sequences of the sorted matches.
func (o *Outcome) Sequences() []port.Sequence {
	ms := o.Matches()
	out := make([]port.Sequence, len(ms))
	for i, m := range ms {
		out[i] = m.Sequence
	}
	return out
}

func compareMatch(a, b port.Match) int {
	if c := slices.Compare(a.Sequence, b.Sequence); c != 0 {
		return c
	}
	return slices.Compare(a.Assignment, b.Assignment)
}
