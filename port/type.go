package port

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol is the transport used for a single knock.
type Protocol string

const (
	TCP Protocol = "tcp"
	UDP Protocol = "udp"
)

// ParseProtocol accepts "tcp" or "udp" in any case.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case TCP:
		return TCP, nil
	case UDP:
		return UDP, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

// Mode selects how protocols are assigned to sequence positions.
type Mode string

const (
	ModeTCP   Mode = "tcp"
	ModeUDP   Mode = "udp"
	ModeMixed Mode = "mixed" // every TCP/UDP assignment is tried per port tuple
)

// ParseMode accepts "tcp", "udp" or "mixed" in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeTCP, ModeUDP, ModeMixed:
		return m, nil
	}
	return "", fmt.Errorf("unknown protocol mode %q (want tcp|udp|mixed)", s)
}

// Protocol returns the single protocol of a tcp or udp mode.
// It returns false for mixed mode.
func (m Mode) Protocol() (Protocol, bool) {
	switch m {
	case ModeTCP:
		return TCP, true
	case ModeUDP:
		return UDP, true
	}
	return "", false
}

// Sequence is an ordered list of knock ports. Ports may repeat.
type Sequence []uint16

// Clone returns a copy that does not share the backing array.
func (s Sequence) Clone() Sequence {
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = strconv.Itoa(int(p))
	}
	return strings.Join(parts, ",")
}

// Assignment holds the protocol used at each position of a Sequence.
type Assignment []Protocol

// Uniform returns an assignment using proto at every one of n positions.
func Uniform(proto Protocol, n int) Assignment {
	a := make(Assignment, n)
	for i := range a {
		a[i] = proto
	}
	return a
}

// FromMask decodes an assignment bitmask: bit i set selects UDP for
// position i, a clear bit selects TCP.
func FromMask(mask uint64, n int) Assignment {
	a := make(Assignment, n)
	for i := range a {
		if mask&(1<<uint(i)) != 0 {
			a[i] = UDP
		} else {
			a[i] = TCP
		}
	}
	return a
}

// Clone returns a copy that does not share the backing array.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	copy(out, a)
	return out
}

// IsUniform reports whether every position uses the same protocol.
func (a Assignment) IsUniform() bool {
	for i := 1; i < len(a); i++ {
		if a[i] != a[0] {
			return false
		}
	}
	return true
}

// KnockState classifies the outcome of one network attempt.
type KnockState string

const (
	StateOpen     KnockState = "open"     // tcp connect completed
	StateClosed   KnockState = "closed"   // connection refused
	StateFiltered KnockState = "filtered" // timeout or other dial error
	StateSent     KnockState = "sent"     // udp datagram written
	StateError    KnockState = "error"    // udp dial or write failed
)

// KnockResult is the outcome of a single knock or monitor probe.
type KnockResult struct {
	IP            string
	Port          uint16
	Proto         Protocol
	State         KnockState
	Service       string
	ServiceBanner string
	Confidence    string // "low"|"medium"|"high"
	Error         string
	RTTMillis     int64
}

// Delivered reports whether the knock left the host without a local error.
func (r KnockResult) Delivered() bool {
	return r.State == StateOpen || r.State == StateSent
}

// Match is a sequence, and its protocol assignment, that opened the monitor port.
type Match struct {
	Sequence   Sequence
	Assignment Assignment
	Service    string
	Banner     string
}

// String renders "7000,8000" for single-protocol matches and
// "7000/tcp,8000/udp" when the assignment mixes protocols.
func (m Match) String() string {
	if m.Assignment.IsUniform() || len(m.Assignment) != len(m.Sequence) {
		return m.Sequence.String()
	}
	return m.Labeled()
}

// Labeled always renders each knock with its protocol.
func (m Match) Labeled() string {
	parts := make([]string, len(m.Sequence))
	for i, p := range m.Sequence {
		proto := TCP
		if i < len(m.Assignment) {
			proto = m.Assignment[i]
		}
		parts[i] = fmt.Sprintf("%d/%s", p, proto)
	}
	return strings.Join(parts, ",")
}
