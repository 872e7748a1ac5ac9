package scanner

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"knockraven/knocktest"
	"knockraven/netutil"
	"knockraven/port"
)

// loopbackParams spaces knocks so the listener's MinGap separates one
// sequence from the next.
func loopbackParams(l *knocktest.Listener, length int) Params {
	return Params{
		Host:        "127.0.0.1",
		Ports:       l.Ports(),
		Length:      length,
		Delay:       60 * time.Millisecond,
		ProbeWait:   15 * time.Millisecond,
		Monitor:     l.Monitor(),
		Timeout:     300 * time.Millisecond,
		Concurrency: 1,
	}
}

func TestScanSequences_Loopback(t *testing.T) {
	l, err := knocktest.Start(knocktest.Config{
		Steps:  []knocktest.Step{{Proto: port.TCP}, {Proto: port.TCP}, {Proto: port.TCP}},
		MinGap: 40 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer l.Close()

	got, err := ScanSequences(context.Background(), loopbackParams(l, 3), port.TCP)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []port.Sequence{l.Sequence()}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v (listener saw %d knocks)", got, want, len(l.Knocks()))
	}
	if l.Unlocks() != 1 {
		t.Fatalf("listener unlocked %d times", l.Unlocks())
	}
}

func TestScanSequences_NoMatch(t *testing.T) {
	l, err := knocktest.Start(knocktest.Config{
		Steps:  []knocktest.Step{{Proto: port.TCP}, {Proto: port.TCP}},
		MinGap: 40 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer l.Close()

	// length 1 can never reproduce a two-knock secret
	got, err := ScanSequences(context.Background(), loopbackParams(l, 1), port.TCP)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestScanSequencesMixed_Loopback(t *testing.T) {
	l, err := knocktest.Start(knocktest.Config{
		Steps:  []knocktest.Step{{Proto: port.UDP}, {Proto: port.TCP}},
		MinGap: 40 * time.Millisecond,
		Banner: "SSH-2.0-knocktest\r\n",
	})
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer l.Close()

	steps := l.Steps()
	got, err := ScanSequencesMixed(context.Background(), loopbackParams(l, 2))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one match, got %v", got)
	}
	want := port.Match{
		Sequence:   port.Sequence{steps[0].Port, steps[1].Port},
		Assignment: port.Assignment{port.UDP, port.TCP},
	}
	if !reflect.DeepEqual(got[0].Sequence, want.Sequence) || !reflect.DeepEqual(got[0].Assignment, want.Assignment) {
		t.Fatalf("got %s want %s", got[0].Labeled(), want.Labeled())
	}
}

func TestScanSequences_ResolveError(t *testing.T) {
	orig := netutil.LookupIPFunc
	netutil.LookupIPFunc = func(ctx context.Context, network, host string) ([]net.IP, error) {
		return nil, errors.New("no such host")
	}
	defer func() { netutil.LookupIPFunc = orig }()

	_, err := ScanSequences(context.Background(), Params{
		Host: "knock.invalid", Ports: []uint16{1}, Length: 1, Concurrency: 1,
	}, port.TCP)
	if !errors.Is(err, ErrResolve) {
		t.Fatalf("expected ErrResolve, got %v", err)
	}
}

func TestScanSequences_MissingTimeout(t *testing.T) {
	l, err := knocktest.Start(knocktest.Config{Steps: []knocktest.Step{{Proto: port.UDP}}})
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer l.Close()

	p := loopbackParams(l, 1)
	p.Timeout = 0
	if _, err := ScanSequences(context.Background(), p, port.UDP); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without a timeout, got %v", err)
	}
	if n := len(l.Knocks()); n != 0 {
		t.Fatalf("no knock may be sent for an invalid scan, listener saw %d", n)
	}
}

func TestScanSequences_UDPLoopback(t *testing.T) {
	l, err := knocktest.Start(knocktest.Config{Steps: []knocktest.Step{{Proto: port.UDP}}})
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer l.Close()

	got, err := ScanSequences(context.Background(), loopbackParams(l, 1), port.UDP)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []port.Sequence{l.Sequence()}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v (listener saw %v)", got, want, l.Knocks())
	}
}

func TestScanSequences_InvalidLength(t *testing.T) {
	_, err := ScanSequences(context.Background(), Params{
		Host: "127.0.0.1", Ports: []uint16{1}, Length: 0, Concurrency: 1, Timeout: time.Second,
	}, port.TCP)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
