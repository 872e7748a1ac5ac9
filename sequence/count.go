package sequence

import (
	"errors"
	"math/bits"
)

// ErrOverflow is returned when a count does not fit in a uint64.
var ErrOverflow = errors.New("sequence count overflows uint64")

// ErrNegative is returned for negative port counts or lengths.
var ErrNegative = errors.New("port count and sequence length must not be negative")

// Count returns numPorts^length, the number of single-protocol sequences.
// A zero length counts as zero sequences since the generator yields none.
func Count(numPorts, length int) (uint64, error) {
	if numPorts < 0 || length < 0 {
		return 0, ErrNegative
	}
	if length == 0 || numPorts == 0 {
		return 0, nil
	}
	if numPorts == 1 {
		return 1, nil
	}
	total := uint64(1)
	for i := 0; i < length; i++ {
		hi, lo := bits.Mul64(total, uint64(numPorts))
		if hi != 0 {
			return 0, ErrOverflow
		}
		total = lo
	}
	return total, nil
}

// MixedCount returns numPorts^length * 2^length, the number of
// (sequence, assignment) pairs a mixed scan dispatches.
func MixedCount(numPorts, length int) (uint64, error) {
	total, err := Count(numPorts, length)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	if length > MaxMixedLength {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(total, uint64(1)<<uint(length))
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}
