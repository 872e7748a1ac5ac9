package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"knockraven/logging"
	"knockraven/port"
	"knockraven/sequence"
)

var (
	// ErrInvalidConfig is returned before any knock is sent when the scan
	// configuration cannot work.
	ErrInvalidConfig = errors.New("invalid scan config")
	// ErrResolve is returned when the target cannot be resolved at all.
	ErrResolve = errors.New("cannot resolve target")
)

// Config contains runtime configuration for the Manager.
type Config struct {
	Target        string
	IP            string // resolved address used for every knock and probe
	Ports         []uint16
	Length        int
	Mode          port.Mode
	Monitor       uint16
	Delay         time.Duration
	ProbeWait     time.Duration
	Timeout       time.Duration
	Concurrency   int
	Rate          float64 // knocks per second across the whole scan, 0 = unlimited
	ServiceDetect bool
	Knocker       Knocker // nil uses a NetKnocker with Timeout
	Logger        *log.Logger
}

func (c Config) validate() error {
	switch {
	case c.IP == "":
		return fmt.Errorf("%w: missing target address", ErrInvalidConfig)
	case len(c.Ports) == 0:
		return fmt.Errorf("%w: no ports to knock", ErrInvalidConfig)
	case c.Length < 1:
		return fmt.Errorf("%w: sequence length must be at least 1, got %d", ErrInvalidConfig, c.Length)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, c.Timeout)
	case c.Delay < 0 || c.ProbeWait < 0:
		return fmt.Errorf("%w: delay and probe wait must not be negative", ErrInvalidConfig)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig)
	}
	switch c.Mode {
	case port.ModeTCP, port.ModeUDP:
	case port.ModeMixed:
		if c.Length > sequence.MaxMixedLength {
			return fmt.Errorf("%w: mixed mode supports at most %d knocks", ErrInvalidConfig, sequence.MaxMixedLength)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// Manager dispatches every enumerated sequence to a Runner, never running
// more than Concurrency runners at once.
type Manager struct {
	cfg   Config
	done  atomic.Uint64
	total uint64
}

// NewManager creates a new Manager with the provided config.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logging.DefaultLogger
	}
	if cfg.Knocker == nil {
		cfg.Knocker = &NetKnocker{Timeout: cfg.Timeout, GrabBanner: cfg.ServiceDetect, Logger: cfg.Logger}
	}
	m := &Manager{cfg: cfg}
	if cfg.Mode == port.ModeMixed {
		m.total, _ = sequence.MixedCount(len(cfg.Ports), cfg.Length)
	} else {
		m.total, _ = sequence.Count(len(cfg.Ports), cfg.Length)
	}
	return m
}

// Progress returns completed runs and the expected total. The total is 0
// when the count does not fit in a uint64.
func (m *Manager) Progress() (done, total uint64) {
	return m.done.Load(), m.total
}

// nextFunc yields the next sequence and its protocol assignment.
type nextFunc func() (port.Sequence, port.Assignment, bool)

func (m *Manager) source() nextFunc {
	if proto, ok := m.cfg.Mode.Protocol(); ok {
		g := sequence.New(m.cfg.Ports, m.cfg.Length)
		assign := port.Uniform(proto, m.cfg.Length)
		return func() (port.Sequence, port.Assignment, bool) {
			seq, ok := g.Next()
			return seq, assign, ok
		}
	}
	return sequence.NewMixed(m.cfg.Ports, m.cfg.Length).Next
}

// Run executes every sequence and returns the matches. It returns an error
// for invalid config before dispatching anything.
//
// Cancelling ctx stops dispatch of new sequences. Runs already in flight
// finish on their own timeouts; Run then returns the partial Outcome
// together with ctx's error.
func (m *Manager) Run(ctx context.Context) (*Outcome, error) {
	if err := m.cfg.validate(); err != nil {
		return nil, err
	}
	m.done.Store(0)

	runner := &Runner{
		Knocker:   m.cfg.Knocker,
		IP:        m.cfg.IP,
		Monitor:   m.cfg.Monitor,
		Delay:     m.cfg.Delay,
		ProbeWait: m.cfg.ProbeWait,
		Logger:    m.cfg.Logger,
	}
	if m.cfg.Rate > 0 {
		burst := int(m.cfg.Rate)
		if burst < 1 {
			burst = 1
		}
		runner.Limiter = rate.NewLimiter(rate.Limit(m.cfg.Rate), burst)
	}

	m.cfg.Logger.Debug("scan dispatch starting",
		"target", m.cfg.Target, "ip", m.cfg.IP, "mode", m.cfg.Mode,
		"length", m.cfg.Length, "ports", len(m.cfg.Ports), "concurrency", m.cfg.Concurrency)

	out := &Outcome{}
	sem := semaphore.NewWeighted(int64(m.cfg.Concurrency))
	runCtx := context.WithoutCancel(ctx)
	next := m.source()

	var (
		wg          sync.WaitGroup
		dispatchErr error
	)
	for {
		seq, assign, ok := next()
		if !ok {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			dispatchErr = err
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if match, ok := runner.Run(runCtx, seq, assign); ok {
				out.add(match)
			}
			m.done.Add(1)
		}()
	}
	wg.Wait()

	if dispatchErr != nil {
		m.cfg.Logger.Warn("scan interrupted", "completed", m.done.Load(), "err", dispatchErr)
		return out, dispatchErr
	}
	m.cfg.Logger.Debug("scan dispatch finished", "completed", m.done.Load(), "matches", out.Len())
	return out, nil
}
