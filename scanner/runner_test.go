package scanner

import (
	"context"
	"reflect"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"knockraven/port"
)

func TestRunner_OrderAndDelay(t *testing.T) {
	k := &secretKnocker{}
	delay := 20 * time.Millisecond
	r := &Runner{Knocker: k, IP: "192.0.2.1", Monitor: 22, Delay: delay}

	seq := port.Sequence{7000, 8000, 9000, 7000}
	assign := port.Assignment{port.TCP, port.UDP, port.TCP, port.UDP}
	if _, ok := r.Run(context.Background(), seq, assign); ok {
		t.Fatalf("no secret configured, run must not match")
	}

	ev := k.events()
	if len(ev) != len(seq) {
		t.Fatalf("got %d knocks want %d", len(ev), len(seq))
	}
	for i, e := range ev {
		if e.port != seq[i] || e.proto != assign[i] {
			t.Fatalf("knock %d = %d/%s want %d/%s", i, e.port, e.proto, seq[i], assign[i])
		}
		if i > 0 {
			if gap := e.at.Sub(ev[i-1].at); gap < delay {
				t.Fatalf("gap before knock %d is %v, want >= %v", i, gap, delay)
			}
		}
	}

	// no delay after the final knock
	if len(k.probes) != 1 {
		t.Fatalf("got %d probes want 1", len(k.probes))
	}
	if gap := k.probes[0].Sub(ev[len(ev)-1].at); gap >= delay {
		t.Fatalf("probe waited %v after the final knock", gap)
	}
}

func TestRunner_SleepCalls(t *testing.T) {
	var slept []time.Duration
	r := &Runner{
		Knocker:   &secretKnocker{},
		Delay:     5 * time.Millisecond,
		ProbeWait: 7 * time.Millisecond,
		sleep:     func(d time.Duration) { slept = append(slept, d) },
	}
	r.Run(context.Background(), port.Sequence{1, 2, 3}, port.Uniform(port.TCP, 3))
	want := []time.Duration{5 * time.Millisecond, 5 * time.Millisecond, 7 * time.Millisecond}
	if !reflect.DeepEqual(slept, want) {
		t.Fatalf("sleeps = %v want %v", slept, want)
	}
}

func TestRunner_MatchAfterFailedKnocks(t *testing.T) {
	k := &secretKnocker{
		fail: true,
		secret: []knockEvent{
			{port: 7000, proto: port.TCP},
			{port: 8000, proto: port.UDP},
		},
	}
	r := &Runner{Knocker: k, Monitor: 22}
	m, ok := r.Run(context.Background(), port.Sequence{7000, 8000}, port.Assignment{port.TCP, port.UDP})
	if !ok {
		t.Fatalf("expected match even though every knock reported filtered")
	}
	if m.Service != "ssh" || m.String() != "7000/tcp,8000/udp" {
		t.Fatalf("unexpected match %+v", m)
	}
	if len(k.events()) != 2 {
		t.Fatalf("all knocks must be sent")
	}
}

func TestRunner_MatchOwnsSlices(t *testing.T) {
	k := &secretKnocker{secret: []knockEvent{{port: 1, proto: port.TCP}}}
	r := &Runner{Knocker: k}
	seq := port.Sequence{1}
	assign := port.Uniform(port.TCP, 1)
	m, ok := r.Run(context.Background(), seq, assign)
	if !ok {
		t.Fatalf("expected match")
	}
	seq[0] = 9
	if m.Sequence[0] != 1 {
		t.Fatalf("match shares the caller's slice")
	}
}

func TestRunner_Limiter(t *testing.T) {
	k := &secretKnocker{}
	// 50 knocks/s with burst 1: 4 knocks need at least ~60ms
	r := &Runner{Knocker: k, Limiter: rate.NewLimiter(50, 1)}
	start := time.Now()
	r.Run(context.Background(), port.Sequence{1, 2, 3, 4}, port.Uniform(port.UDP, 4))
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Fatalf("limiter not applied, run took %v", elapsed)
	}
}
