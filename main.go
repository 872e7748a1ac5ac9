package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"knockraven/config"
	"knockraven/logging"
	"knockraven/netutil"
	"knockraven/output"
	"knockraven/port"
	"knockraven/scanner"
	"knockraven/sequence"
)

// countWarnThreshold is the sequence count above which the scan warns
// about its expected duration before starting.
const countWarnThreshold = 100000

// countFlag counts repeated boolean flags such as -v -v.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) Set(string) error { *c++; return nil }
func (c *countFlag) IsBoolFlag() bool { return true }

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] HOST [PORT ...]\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	def := config.Default()
	portsSpec := flag.String("p", "", "ports to knock (e.g. 7000,8000-8010), merged with positional ports")
	length := flag.Int("l", def.Length, "knocks per sequence")
	proto := flag.String("proto", def.Protocol, "knock protocol: tcp, udp or mixed")
	monitor := flag.Int("m", def.Monitor, "monitor port probed after each sequence")
	delayMS := flag.Int("d", int(def.Delay.Milliseconds()), "delay between knocks in ms")
	probeWaitMS := flag.Int("w", int(def.ProbeWait.Milliseconds()), "wait before the monitor probe in ms")
	timeoutMS := flag.Int("t", int(def.Timeout.Milliseconds()), "per connection timeout in ms")
	concurrency := flag.Int("c", def.Concurrency, "sequences in flight at once")
	knockRate := flag.Float64("rate", def.Rate, "max knocks per second across the scan (0 = unlimited)")
	serviceDetect := flag.Bool("service-detect", def.ServiceDetect, "grab a banner from the opened monitor port")
	ping := flag.Bool("ping", def.Ping, "ICMP reachability check before scanning")
	fileOut := flag.String("f", "", "write output to file (overwrite, atomic)")
	format := flag.String("format", def.Output.Format, "output format: text or json")
	cfgPath := flag.String("config", "", "YAML scan profile; flags override it")
	logMode := flag.String("log", def.Log, "log mode: dev, prod or none")
	var verbosity countFlag
	flag.Var(&verbosity, "v", "verbose output (repeat for more)")
	flag.Usage = usage
	flag.Parse()

	logger := logging.DefaultLogger

	cfg := def
	if *cfgPath != "" {
		loaded, err := config.LoadConfig(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(2)
		}
		cfg = *loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Ports = *portsSpec
		case "l":
			cfg.Length = *length
		case "proto":
			cfg.Protocol = *proto
		case "m":
			cfg.Monitor = *monitor
		case "d":
			cfg.Delay.Duration = time.Duration(*delayMS) * time.Millisecond
		case "w":
			cfg.ProbeWait.Duration = time.Duration(*probeWaitMS) * time.Millisecond
		case "t":
			cfg.Timeout.Duration = time.Duration(*timeoutMS) * time.Millisecond
		case "c":
			cfg.Concurrency = *concurrency
		case "rate":
			cfg.Rate = *knockRate
		case "service-detect":
			cfg.ServiceDetect = *serviceDetect
		case "ping":
			cfg.Ping = *ping
		case "f":
			cfg.Output.File = *fileOut
		case "format":
			cfg.Output.Format = *format
		case "log":
			cfg.Log = *logMode
		}
	})
	logging.SetLevel(logger, cfg.Log, int(verbosity))

	args := flag.Args()
	target := cfg.Target
	if len(args) > 0 {
		target, args = args[0], args[1:]
	}
	if target == "" {
		fmt.Fprintln(os.Stderr, "error: target positional argument required")
		flag.Usage()
		os.Exit(2)
	}

	ports, err := collectPorts(cfg.Ports, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid ports: %v\n", err)
		os.Exit(2)
	}
	mode, err := port.ParseMode(cfg.Protocol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid protocol: %v\n", err)
		os.Exit(2)
	}
	if cfg.Monitor < 1 || cfg.Monitor > 65535 {
		fmt.Fprintf(os.Stderr, "invalid monitor port: %d\n", cfg.Monitor)
		os.Exit(2)
	}
	if cfg.Output.Format != "text" && cfg.Output.Format != "json" {
		fmt.Fprintf(os.Stderr, "invalid output format: %q\n", cfg.Output.Format)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ip, err := netutil.ResolveTarget(ctx, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve target: %v\n", err)
		os.Exit(4)
	}

	report := output.NewReport(target, ip, mode, cfg.Length, ports, uint16(cfg.Monitor))
	logger = logger.With("scan", report.ScanID[:8])

	precheck(ctx, logger, ip, cfg)
	warnCount(logger, mode, len(ports), cfg.Length)

	mgr := scanner.NewManager(scanner.Config{
		Target:        target,
		IP:            ip,
		Ports:         ports,
		Length:        cfg.Length,
		Mode:          mode,
		Monitor:       uint16(cfg.Monitor),
		Delay:         cfg.Delay.Duration,
		ProbeWait:     cfg.ProbeWait.Duration,
		Timeout:       cfg.Timeout.Duration,
		Concurrency:   cfg.Concurrency,
		Rate:          cfg.Rate,
		ServiceDetect: cfg.ServiceDetect,
		Logger:        logger,
	})

	logger.Info("starting scan", "target", target, "ip", ip, "mode", mode, "ports", len(ports), "length", cfg.Length, "monitor", cfg.Monitor)
	stopProgress := reportProgress(logger, mgr, 5*time.Second)
	outcome, err := mgr.Run(ctx)
	stopProgress()

	interrupted := false
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrInvalidConfig):
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			interrupted = true
		default:
			fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
			os.Exit(4)
		}
	}

	matches := outcome.Matches()
	done, total := mgr.Progress()
	report.Finish(matches, done, total, interrupted)

	// Render output into buffer first
	var buf bytes.Buffer
	if cfg.Output.Format == "json" {
		data, err := report.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
			os.Exit(4)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	} else {
		output.PrintMatches(&buf, matches, mode == port.ModeMixed)
		if verbosity > 0 && len(matches) > 0 {
			buf.WriteByte('\n')
			output.PrintTable(&buf, matches)
		}
	}

	if cfg.Output.Format == "json" {
		if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write to stdout: %v\n", err)
			os.Exit(4)
		}
	} else {
		// printed again so colors apply when stdout is a terminal
		output.PrintMatches(os.Stdout, matches, mode == port.ModeMixed)
		if verbosity > 0 && len(matches) > 0 {
			fmt.Fprintln(os.Stdout)
			output.PrintTable(os.Stdout, matches)
		}
	}

	if cfg.Output.File != "" {
		if err := output.WriteAtomic(cfg.Output.File, buf.Bytes()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output file: %v\n", err)
			os.Exit(4)
		}
	}

	if interrupted {
		logger.Warn("scan interrupted, results are partial", "completed", done, "total", total)
		os.Exit(130)
	}
}

// collectPorts merges the -p spec with positional port arguments.
func collectPorts(spec string, args []string) ([]uint16, error) {
	var sets [][]uint16
	if spec != "" {
		ps, err := port.ParsePortSpec(spec)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ps)
	}
	if len(args) > 0 {
		ps, err := port.ParsePortArgs(args)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ps)
	}
	if len(sets) == 0 {
		return nil, errors.New("no ports given (use -p or positional ports)")
	}
	return port.Merge(sets...), nil
}

// precheck runs the advisory CDN and ping checks. Failures only warn.
func precheck(ctx context.Context, logger *log.Logger, ip string, cfg config.Config) {
	if info, ok, err := netutil.CheckCDN(ip); err != nil {
		logger.Debug("cdn check failed", "ip", ip, "err", err)
	} else if ok {
		logger.Warn("target is fronted by a CDN/WAF/cloud provider, knocks may never reach the host",
			"provider", info.Provider, "kind", info.Kind)
	}

	if !cfg.Ping {
		return
	}
	alive, err := netutil.Ping(ctx, ip, cfg.Timeout.Duration)
	switch {
	case err != nil:
		logger.Warn("ping failed", "ip", ip, "err", err)
	case !alive:
		logger.Warn("target did not answer ping, it may drop ICMP", "ip", ip)
	default:
		logger.Debug("target answered ping", "ip", ip)
	}
}

func warnCount(logger *log.Logger, mode port.Mode, numPorts, length int) {
	var (
		n   uint64
		err error
	)
	if mode == port.ModeMixed {
		n, err = sequence.MixedCount(numPorts, length)
	} else {
		n, err = sequence.Count(numPorts, length)
	}
	switch {
	case errors.Is(err, sequence.ErrOverflow):
		logger.Warn("sequence count does not fit in 64 bits, this scan will not finish", "ports", numPorts, "length", length)
	case err != nil:
		logger.Debug("sequence count unavailable", "err", err)
	case n > countWarnThreshold:
		logger.Warn("large number of sequences, this may take a long time", "sequences", n)
	default:
		logger.Debug("sequences to test", "sequences", n)
	}
}

// reportProgress logs completed/total at debug level every interval until
// the returned stop function is called.
func reportProgress(logger *log.Logger, mgr *scanner.Manager, every time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				n, total := mgr.Progress()
				logger.Debug("progress", "completed", n, "total", total)
			}
		}
	}()
	return func() { close(done) }
}
