package scanner

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"knockraven/port"
)

// TCPKnock attempts a TCP connection to ip:portNum bounded by timeout.
// The attempt itself is the knock; an established connection is closed
// immediately. State is open, closed (refused) or filtered (timeout/other).
// When keep is true an established connection is returned instead of
// closed, and the caller owns it.
func TCPKnock(ctx context.Context, ip string, portNum uint16, timeout time.Duration, keep bool) (port.KnockResult, net.Conn) {
	addr := net.JoinHostPort(ip, strconv.Itoa(int(portNum)))
	d := net.Dialer{Timeout: timeout, KeepAlive: -1}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	rtt := time.Since(start)

	res := port.KnockResult{
		IP:        ip,
		Port:      portNum,
		Proto:     port.TCP,
		State:     port.StateFiltered,
		RTTMillis: rtt.Milliseconds(),
	}

	if err == nil {
		res.State = port.StateOpen
		if keep {
			return res, conn
		}
		_ = conn.Close()
		return res, nil
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		res.Error = "timeout"
		return res, nil
	}
	if isConnRefusedErr(err) {
		res.State = port.StateClosed
		res.Error = "connection refused"
		return res, nil
	}
	res.Error = err.Error()
	return res, nil
}

// isConnRefusedErr detects connection-refused semantics through the usual
// net.OpError -> os.SyscallError -> Errno wrapping.
func isConnRefusedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// fallback string check for platforms that do not wrap Errno
	return strings.Contains(err.Error(), "connection refused")
}
