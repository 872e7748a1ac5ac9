package scanner

import (
	"context"
	"net"
	"strconv"
	"time"

	"knockraven/port"
)

// knockPayload is the datagram sent for UDP knocks. Its content carries no meaning.
var knockPayload = []byte{0x00}

// UDPKnock sends a single datagram to ip:portNum. UDP is connectionless,
// so success (StateSent) only means the write completed; no reply is
// awaited and delivery is not confirmed.
func UDPKnock(ctx context.Context, ip string, portNum uint16, timeout time.Duration) port.KnockResult {
	addr := net.JoinHostPort(ip, strconv.Itoa(int(portNum)))
	res := port.KnockResult{
		IP:    ip,
		Port:  portNum,
		Proto: port.UDP,
		State: port.StateError,
	}

	d := net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		res.Error = err.Error()
		return res
	}
	if _, err := conn.Write(knockPayload); err != nil {
		res.Error = err.Error()
		return res
	}
	res.RTTMillis = time.Since(start).Milliseconds()
	res.State = port.StateSent
	return res
}
