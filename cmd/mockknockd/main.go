// Command mockknockd runs a simulated knock listener on the local host so a
// scan can be tried without touching a real firewall.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knockraven/knocktest"
	"knockraven/logging"
)

func main() {
	bind := flag.String("bind", "127.0.0.1", "Bind address")
	seq := flag.String("seq", "7000,8000,9000", "Secret sequence, e.g. 7000,8000/udp,9000")
	monitor := flag.Int("monitor", 2222, "Port opened after the sequence (0 = ephemeral)")
	banner := flag.String("banner", "SSH-2.0-mockknockd\r\n", "Banner written to monitor connections")
	gap := flag.Duration("gap", 0, "Restart progress when knocks arrive closer than this")
	flag.Parse()

	logger := logging.DefaultLogger

	steps, err := knocktest.ParseSteps(*seq)
	if err != nil {
		logger.Fatal("invalid sequence", "err", err)
	}
	if *monitor < 0 || *monitor > 65535 {
		logger.Fatal("invalid monitor port", "monitor", *monitor)
	}

	l, err := knocktest.Start(knocktest.Config{
		Addr:    *bind,
		Steps:   steps,
		Monitor: uint16(*monitor),
		MinGap:  *gap,
		Banner:  *banner,
	})
	if err != nil {
		logger.Fatal("listen failed", "err", err)
	}
	defer l.Close()

	logger.Info("listening", "bind", *bind, "steps", l.Steps(), "monitor", l.Monitor(), "gap", *gap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := time.NewTicker(time.Second)
	defer t.Stop()
	unlocks := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "knocks", len(l.Knocks()), "unlocks", l.Unlocks())
			return
		case <-t.C:
			if n := l.Unlocks(); n != unlocks {
				unlocks = n
				logger.Info("sequence observed, monitor opened", "unlocks", n)
			}
		}
	}
}
