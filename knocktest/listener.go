// Package knocktest provides a simulated port-knock listener for tests and
// local experiments. It plays the firewall side: it watches knock ports and
// opens the monitor port for a single connection once it has seen the
// secret sequence in order.
package knocktest

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"knockraven/port"
)

// Step is one expected knock of the secret sequence.
type Step struct {
	Port  uint16 // 0 allocates an ephemeral port
	Proto port.Protocol
}

func (s Step) String() string { return fmt.Sprintf("%d/%s", s.Port, s.Proto) }

// Config describes the simulated listener.
type Config struct {
	Addr    string // bind address, default 127.0.0.1
	Steps   []Step
	Monitor uint16 // 0 reserves an ephemeral port

	// MinGap restarts progress when a knock arrives sooner than this after
	// the previous one. Back-to-back knocks from the tail of one sequence
	// and the head of the next then cannot combine into the secret.
	MinGap time.Duration

	// Banner is written to each accepted monitor connection.
	Banner string
}

// Listener is a running simulated knock listener.
type Listener struct {
	cfg     Config
	steps   []Step
	monitor uint16

	tcp []net.Listener
	udp []net.PacketConn
	wg  sync.WaitGroup

	mu       sync.Mutex
	progress int
	last     time.Time
	knocks   []Step
	unlocks  int
	mon      net.Listener
	closed   bool
}

// Start binds every knock port and returns the running listener.
func Start(cfg Config) (*Listener, error) {
	if len(cfg.Steps) == 0 {
		return nil, errors.New("knocktest: no steps")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1"
	}
	l := &Listener{cfg: cfg, steps: slices.Clone(cfg.Steps)}

	bound := make(map[Step]bool)
	for i, s := range l.steps {
		if s.Proto == "" {
			s.Proto = port.TCP
		}
		if s.Port != 0 && bound[s] {
			l.steps[i] = s
			continue
		}
		p, err := l.bind(s)
		if err != nil {
			l.Close()
			return nil, err
		}
		s.Port = p
		bound[s] = true
		l.steps[i] = s
	}

	// Watch the other protocol on every knock port too, so a knock sent
	// with the wrong protocol breaks progress the way it would for a
	// daemon sniffing raw packets. Best effort: the port may be taken.
	for _, s := range l.steps {
		other := Step{Port: s.Port, Proto: port.UDP}
		if s.Proto == port.UDP {
			other.Proto = port.TCP
		}
		if bound[other] {
			continue
		}
		if _, err := l.bind(other); err == nil {
			bound[other] = true
		}
	}

	l.monitor = cfg.Monitor
	if l.monitor == 0 {
		p, err := reservePort(cfg.Addr)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.monitor = p
	}
	return l, nil
}

func (l *Listener) bind(s Step) (uint16, error) {
	addr := net.JoinHostPort(l.cfg.Addr, strconv.Itoa(int(s.Port)))
	if s.Proto == port.UDP {
		pc, err := net.ListenPacket("udp", addr)
		if err != nil {
			return 0, fmt.Errorf("knocktest: bind udp %s: %w", addr, err)
		}
		l.udp = append(l.udp, pc)
		p := uint16(pc.LocalAddr().(*net.UDPAddr).Port)
		l.wg.Add(1)
		go l.serveUDP(pc, p)
		return p, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("knocktest: bind tcp %s: %w", addr, err)
	}
	l.tcp = append(l.tcp, ln)
	p := uint16(ln.Addr().(*net.TCPAddr).Port)
	l.wg.Add(1)
	go l.serveTCP(ln, p)
	return p, nil
}

func reservePort(addr string) (uint16, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(addr, "0"))
	if err != nil {
		return 0, fmt.Errorf("knocktest: reserve monitor port: %w", err)
	}
	p := uint16(ln.Addr().(*net.TCPAddr).Port)
	return p, ln.Close()
}

func (l *Listener) serveTCP(ln net.Listener, p uint16) {
	defer l.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_ = c.Close()
		l.observe(Step{Port: p, Proto: port.TCP})
	}
}

func (l *Listener) serveUDP(pc net.PacketConn, p uint16) {
	defer l.wg.Done()
	buf := make([]byte, 1500)
	for {
		if _, _, err := pc.ReadFrom(buf); err != nil {
			return
		}
		l.observe(Step{Port: p, Proto: port.UDP})
	}
}

func (l *Listener) observe(s Step) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	now := time.Now()
	l.knocks = append(l.knocks, s)
	if l.cfg.MinGap > 0 && !l.last.IsZero() && now.Sub(l.last) < l.cfg.MinGap {
		l.progress = 0
	}
	l.last = now

	switch {
	case s == l.steps[l.progress]:
		l.progress++
	case s == l.steps[0]:
		l.progress = 1
	default:
		l.progress = 0
	}
	if l.progress == len(l.steps) {
		l.progress = 0
		l.unlockLocked()
	}
}

// unlockLocked opens the monitor port for exactly one connection.
func (l *Listener) unlockLocked() {
	l.unlocks++
	if l.mon != nil {
		return
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(l.cfg.Addr, strconv.Itoa(int(l.monitor))))
	if err != nil {
		return
	}
	l.mon = ln
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		c, err := ln.Accept()
		l.mu.Lock()
		_ = ln.Close()
		if l.mon == ln {
			l.mon = nil
		}
		l.mu.Unlock()
		if err != nil {
			return
		}
		if l.cfg.Banner != "" {
			_ = c.SetWriteDeadline(time.Now().Add(time.Second))
			_, _ = c.Write([]byte(l.cfg.Banner))
		}
		_ = c.Close()
	}()
}

// Steps returns the secret sequence with ephemeral ports filled in.
func (l *Listener) Steps() []Step { return slices.Clone(l.steps) }

// Sequence returns just the ports of the secret sequence.
func (l *Listener) Sequence() port.Sequence {
	seq := make(port.Sequence, len(l.steps))
	for i, s := range l.steps {
		seq[i] = s.Port
	}
	return seq
}

// Ports returns the distinct knock ports, sorted.
func (l *Listener) Ports() []uint16 {
	return port.Merge(l.Sequence())
}

// Monitor returns the monitor port.
func (l *Listener) Monitor() uint16 { return l.monitor }

// Unlocks returns how many times the full sequence was observed.
func (l *Listener) Unlocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlocks
}

// Knocks returns every knock observed so far, in arrival order.
func (l *Listener) Knocks() []Step {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.knocks)
}

// Close stops all listeners and waits for their goroutines.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.closed = true
	if l.mon != nil {
		_ = l.mon.Close()
		l.mon = nil
	}
	l.mu.Unlock()
	for _, ln := range l.tcp {
		_ = ln.Close()
	}
	for _, pc := range l.udp {
		_ = pc.Close()
	}
	l.wg.Wait()
	return nil
}

// ParseSteps parses "7000,8000/udp,9000/tcp". A knock without a protocol
// suffix is TCP.
func ParseSteps(spec string) ([]Step, error) {
	var steps []Step
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		num, proto, found := strings.Cut(tok, "/")
		s := Step{Proto: port.TCP}
		if found {
			p, err := port.ParseProtocol(proto)
			if err != nil {
				return nil, fmt.Errorf("knocktest: step %q: %w", tok, err)
			}
			s.Proto = p
		}
		v, err := strconv.Atoi(num)
		if err != nil || v < 0 || v > 65535 {
			return nil, fmt.Errorf("knocktest: step %q: invalid port", tok)
		}
		s.Port = uint16(v)
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, errors.New("knocktest: no steps")
	}
	return steps, nil
}
