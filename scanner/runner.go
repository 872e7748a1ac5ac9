package scanner

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"knockraven/port"
)

// Runner executes one knock sequence against a single address and probes
// the monitor port afterwards. Knocks within one Run are strictly ordered;
// concurrency only ever happens across Runs.
type Runner struct {
	Knocker Knocker
	IP      string
	Monitor uint16
	Delay   time.Duration // lower bound between consecutive knocks

	// ProbeWait pauses between the final knock and the monitor probe, for
	// firewalls that reject rather than drop until their rule is installed.
	ProbeWait time.Duration
	Limiter   *rate.Limiter // optional knocks-per-second cap shared by all runs
	Logger    *log.Logger

	sleep func(time.Duration)
}

// Run knocks seq in order using assign, then probes the monitor port.
// Every knock is sent whatever the outcome of the previous one. Delay is
// never applied after the final knock; only ProbeWait is. The returned
// bool reports a match.
func (r *Runner) Run(ctx context.Context, seq port.Sequence, assign port.Assignment) (port.Match, bool) {
	sleep := r.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for i, p := range seq {
		proto := port.TCP
		if i < len(assign) {
			proto = assign[i]
		}
		if r.Limiter != nil {
			// only fails when ctx ends; the knock still goes out
			_ = r.Limiter.Wait(ctx)
		}
		r.Knocker.Knock(ctx, r.IP, p, proto)
		if i < len(seq)-1 && r.Delay > 0 {
			sleep(r.Delay)
		}
	}

	if r.ProbeWait > 0 {
		sleep(r.ProbeWait)
	}
	res := r.Knocker.Probe(ctx, r.IP, r.Monitor)
	if res.State != port.StateOpen {
		return port.Match{}, false
	}
	m := port.Match{
		Sequence:   seq.Clone(),
		Assignment: assign.Clone(),
		Service:    res.Service,
		Banner:     res.ServiceBanner,
	}
	if r.Logger != nil {
		r.Logger.Info("monitor port opened", "sequence", m.Labeled(), "monitor", r.Monitor, "service", m.Service)
	}
	return m, true
}
