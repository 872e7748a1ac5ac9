// Package sequence enumerates candidate knock sequences.
//
// Enumeration is an odometer over L digits, each digit indexing into the
// candidate port set, so memory use stays O(L) no matter how many
// combinations the port set and length produce.
package sequence

import (
	"iter"

	"knockraven/port"
)

// MaxMixedLength is the longest sequence whose protocol assignments fit in
// a uint64 bitmask.
const MaxMixedLength = 63

// Generator yields every ordered L-tuple over a port set (Cartesian power,
// repetition allowed). The last position varies fastest.
// A Generator is not safe for concurrent use; create one per consumer.
type Generator struct {
	ports  []uint16
	length int
	digits []int
	done   bool
}

// New returns a Generator over ports. A length below 1 or an empty port
// set yields nothing.
func New(ports []uint16, length int) *Generator {
	g := &Generator{ports: append([]uint16(nil), ports...), length: length}
	g.Reset()
	return g
}

// Reset restarts the enumeration from the first tuple.
func (g *Generator) Reset() {
	g.done = g.length < 1 || len(g.ports) == 0
	if g.done {
		g.digits = nil
		return
	}
	g.digits = make([]int, g.length)
}

// Next returns the next sequence. The returned slice is owned by the caller.
func (g *Generator) Next() (port.Sequence, bool) {
	if g.done {
		return nil, false
	}
	seq := make(port.Sequence, g.length)
	for i, d := range g.digits {
		seq[i] = g.ports[d]
	}
	g.advance()
	return seq, true
}

func (g *Generator) advance() {
	for i := g.length - 1; i >= 0; i-- {
		g.digits[i]++
		if g.digits[i] < len(g.ports) {
			return
		}
		g.digits[i] = 0
	}
	g.done = true
}

// MixedGenerator yields every (sequence, assignment) pair: for each port
// tuple, all 2^L protocol assignments in mask order.
type MixedGenerator struct {
	seqs    *Generator
	current port.Sequence
	mask    uint64
	limit   uint64
	length  int
}

// NewMixed returns a MixedGenerator. Lengths above MaxMixedLength yield nothing.
func NewMixed(ports []uint16, length int) *MixedGenerator {
	m := &MixedGenerator{seqs: New(ports, length), length: length}
	if length > MaxMixedLength {
		m.seqs.done = true
	}
	if length >= 1 && length <= MaxMixedLength {
		m.limit = 1 << uint(length)
	}
	return m
}

// Reset restarts the enumeration.
func (m *MixedGenerator) Reset() {
	m.seqs.Reset()
	if m.length > MaxMixedLength {
		m.seqs.done = true
	}
	m.current = nil
	m.mask = 0
}

// Next returns the next pair. The returned slices are owned by the caller.
func (m *MixedGenerator) Next() (port.Sequence, port.Assignment, bool) {
	if m.current == nil || m.mask >= m.limit {
		seq, ok := m.seqs.Next()
		if !ok {
			return nil, nil, false
		}
		m.current = seq
		m.mask = 0
	}
	a := port.FromMask(m.mask, m.length)
	m.mask++
	return m.current.Clone(), a, true
}

// Sequences returns an iterator over the same tuples a Generator yields.
func Sequences(ports []uint16, length int) iter.Seq[port.Sequence] {
	return func(yield func(port.Sequence) bool) {
		g := New(ports, length)
		for {
			seq, ok := g.Next()
			if !ok || !yield(seq) {
				return
			}
		}
	}
}

// Assignments returns an iterator over all 2^length protocol assignments.
func Assignments(length int) iter.Seq[port.Assignment] {
	return func(yield func(port.Assignment) bool) {
		if length < 1 || length > MaxMixedLength {
			return
		}
		limit := uint64(1) << uint(length)
		for mask := uint64(0); mask < limit; mask++ {
			if !yield(port.FromMask(mask, length)) {
				return
			}
		}
	}
}
