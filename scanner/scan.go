package scanner

import (
	"context"
	"fmt"
	"time"

	"knockraven/netutil"
	"knockraven/port"
)

// Params are the inputs shared by ScanSequences and ScanSequencesMixed.
type Params struct {
	Host        string
	Ports       []uint16
	Length      int
	Delay       time.Duration
	ProbeWait   time.Duration // optional pause before the monitor probe
	Monitor     uint16
	Timeout     time.Duration
	Concurrency int
}

func (p Params) config(ctx context.Context, mode port.Mode) (Config, error) {
	ip, err := netutil.ResolveTarget(ctx, p.Host)
	if err != nil {
		return Config{}, fmt.Errorf("%w %q: %w", ErrResolve, p.Host, err)
	}
	return Config{
		Target:      p.Host,
		IP:          ip,
		Ports:       p.Ports,
		Length:      p.Length,
		Mode:        mode,
		Monitor:     p.Monitor,
		Delay:       p.Delay,
		ProbeWait:   p.ProbeWait,
		Timeout:     p.Timeout,
		Concurrency: p.Concurrency,
	}, nil
}

// ScanSequences brute-forces every single-protocol sequence and returns
// those that opened the monitor port. An empty result is not an error.
func ScanSequences(ctx context.Context, p Params, proto port.Protocol) ([]port.Sequence, error) {
	mode := port.ModeTCP
	if proto == port.UDP {
		mode = port.ModeUDP
	}
	cfg, err := p.config(ctx, mode)
	if err != nil {
		return nil, err
	}
	out, err := NewManager(cfg).Run(ctx)
	if out == nil {
		return nil, err
	}
	return out.Sequences(), err
}

// ScanSequencesMixed brute-forces every port tuple under every TCP/UDP
// assignment and returns the pairs that opened the monitor port.
func ScanSequencesMixed(ctx context.Context, p Params) ([]port.Match, error) {
	cfg, err := p.config(ctx, port.ModeMixed)
	if err != nil {
		return nil, err
	}
	out, err := NewManager(cfg).Run(ctx)
	if out == nil {
		return nil, err
	}
	return out.Matches(), err
}
