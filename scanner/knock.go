package scanner

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"knockraven/detector"
	"knockraven/logging"
	"knockraven/port"
)

// Knocker delivers single knocks and monitor probes. Implementations never
// retry and never fail the caller: every outcome is a KnockResult state.
type Knocker interface {
	Knock(ctx context.Context, ip string, portNum uint16, proto port.Protocol) port.KnockResult
	Probe(ctx context.Context, ip string, portNum uint16) port.KnockResult
}

// NetKnocker is the Knocker that talks to the network.
type NetKnocker struct {
	Timeout    time.Duration
	GrabBanner bool // read a service banner from an opened monitor port
	Logger     *log.Logger
}

func (k *NetKnocker) logger() *log.Logger {
	if k.Logger == nil {
		return logging.DefaultLogger
	}
	return k.Logger
}

// Knock sends one knock using proto.
func (k *NetKnocker) Knock(ctx context.Context, ip string, portNum uint16, proto port.Protocol) port.KnockResult {
	var res port.KnockResult
	if proto == port.UDP {
		res = UDPKnock(ctx, ip, portNum, k.Timeout)
	} else {
		res, _ = TCPKnock(ctx, ip, portNum, k.Timeout, false)
	}
	if res.Error != "" {
		k.logger().Debug("knock failed", "ip", ip, "port", portNum, "proto", proto, "state", res.State, "err", res.Error)
	}
	return res
}

// Probe checks whether the monitor port accepts a TCP connection.
func (k *NetKnocker) Probe(ctx context.Context, ip string, portNum uint16) port.KnockResult {
	res, conn := TCPKnock(ctx, ip, portNum, k.Timeout, k.GrabBanner)
	if conn == nil {
		return res
	}
	defer conn.Close()
	banner := detector.GrabBanner(conn, portNum, k.Timeout)
	return detector.DetectService(res, banner)
}
