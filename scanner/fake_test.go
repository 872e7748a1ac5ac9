package scanner

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"knockraven/port"
)

type knockEvent struct {
	port  uint16
	proto port.Protocol
	at    time.Time
}

// secretKnocker opens the monitor port when the most recent knocks equal
// secret. It is only meaningful with a single runner at a time.
type secretKnocker struct {
	mu      sync.Mutex
	secret  []knockEvent
	history []knockEvent
	probes  []time.Time
	fail    bool // report every knock as filtered
}

func (k *secretKnocker) Knock(ctx context.Context, ip string, p uint16, proto port.Protocol) port.KnockResult {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.history = append(k.history, knockEvent{port: p, proto: proto, at: time.Now()})
	state := port.StateOpen
	if k.fail {
		state = port.StateFiltered
	}
	return port.KnockResult{IP: ip, Port: p, Proto: proto, State: state}
}

func (k *secretKnocker) Probe(ctx context.Context, ip string, p uint16) port.KnockResult {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.probes = append(k.probes, time.Now())
	res := port.KnockResult{IP: ip, Port: p, Proto: port.TCP, State: port.StateClosed}
	n := len(k.secret)
	if n == 0 || len(k.history) < n {
		return res
	}
	tail := k.history[len(k.history)-n:]
	if slices.EqualFunc(tail, k.secret, func(a, b knockEvent) bool {
		return a.port == b.port && a.proto == b.proto
	}) {
		res.State = port.StateOpen
		res.Service = "ssh"
	}
	return res
}

func (k *secretKnocker) events() []knockEvent {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.history)
}

// gateKnocker counts simultaneous network operations. Each runner has at
// most one operation in flight, so the peak bounds concurrent runners.
type gateKnocker struct {
	hold   time.Duration
	active atomic.Int64
	peak   atomic.Int64
	probes atomic.Int64
	knocks atomic.Int64
}

func (k *gateKnocker) enter() {
	n := k.active.Add(1)
	for {
		p := k.peak.Load()
		if n <= p || k.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(k.hold)
	k.active.Add(-1)
}

func (k *gateKnocker) Knock(ctx context.Context, ip string, p uint16, proto port.Protocol) port.KnockResult {
	k.knocks.Add(1)
	k.enter()
	return port.KnockResult{IP: ip, Port: p, Proto: proto, State: port.StateFiltered}
}

func (k *gateKnocker) Probe(ctx context.Context, ip string, p uint16) port.KnockResult {
	k.probes.Add(1)
	k.enter()
	return port.KnockResult{IP: ip, Port: p, Proto: port.TCP, State: port.StateClosed}
}
