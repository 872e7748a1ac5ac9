package netutil

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Ping sends a single ICMP echo to ip and reports whether a reply came back.
// Raw ICMP is used when the process may open raw sockets, otherwise the
// unprivileged UDP-based ping.
func Ping(ctx context.Context, ip string, timeout time.Duration) (bool, error) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = 1
	if timeout <= 0 {
		timeout = time.Second
	}
	pinger.Timeout = timeout
	privileged, _ := CanOpenRawSocket()
	pinger.SetPrivileged(privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("ping %s: %w", ip, err)
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}
