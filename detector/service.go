package detector

import (
	"net"
	"strings"
	"time"

	"knockraven/port"
	"knockraven/sigs"
)

const maxBanner = 2048

// probes are written to the monitor connection for ports whose services
// wait for the client to speak first.
var probes = map[uint16]string{
	80:   "HEAD / HTTP/1.0\r\n\r\n",
	8000: "HEAD / HTTP/1.0\r\n\r\n",
	8080: "HEAD / HTTP/1.0\r\n\r\n",
}

// GrabBanner reads whatever the service behind conn sends first. The
// connection must already be established; a knock window can be short, so
// the monitor probe connection is reused instead of dialing again.
// Read errors just produce an empty banner.
func GrabBanner(conn net.Conn, portNum uint16, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = time.Second
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if probe, ok := probes[portNum]; ok {
		_, _ = conn.Write([]byte(probe))
	}
	buf := make([]byte, maxBanner)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return ""
	}
	return strings.TrimSpace(string(buf[:n]))
}

// DetectService enriches an open monitor probe result with the service
// matched from its banner.
func DetectService(res port.KnockResult, banner string) port.KnockResult {
	if res.State != port.StateOpen || banner == "" {
		return res
	}
	res.ServiceBanner = banner
	if svc, conf, ok := sigs.Detect(banner); ok {
		res.Service = svc
		res.Confidence = conf
	}
	return res
}
