package scanner

import (
	"context"
	"net"
	"testing"
	"time"

	"knockraven/logging"
	"knockraven/port"
)

func TestTCPKnock_OpenAndClosed(t *testing.T) {
	// start a listener to get an open port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	portNum := uint16(l.Addr().(*net.TCPAddr).Port)

	res, conn := TCPKnock(context.Background(), "127.0.0.1", portNum, time.Second, false)
	if res.State != port.StateOpen || conn != nil {
		t.Fatalf("expected open without conn, got %s (err=%s)", res.State, res.Error)
	}

	// close listener to make the port closed (connection refused)
	_ = l.Close()
	time.Sleep(50 * time.Millisecond)

	res2, _ := TCPKnock(context.Background(), "127.0.0.1", portNum, 500*time.Millisecond, false)
	if !(res2.State == port.StateClosed || res2.State == port.StateFiltered) {
		t.Fatalf("expected closed or filtered after close, got %s (err=%s)", res2.State, res2.Error)
	}
	if res2.Delivered() {
		t.Fatalf("refused knock must not count as delivered")
	}
}

func TestTCPKnock_KeepReturnsConn(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	portNum := uint16(l.Addr().(*net.TCPAddr).Port)

	res, conn := TCPKnock(context.Background(), "127.0.0.1", portNum, time.Second, true)
	if res.State != port.StateOpen || conn == nil {
		t.Fatalf("expected open with conn, got %s", res.State)
	}
	conn.Close()
}

func TestUDPKnock_Sent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer conn.Close()
	portNum := uint16(conn.LocalAddr().(*net.UDPAddr).Port)

	got := make(chan int, 1)
	go func() {
		buf := make([]byte, 1500)
		n, _, err := conn.ReadFrom(buf)
		if err == nil {
			got <- n
		}
	}()

	res := UDPKnock(context.Background(), "127.0.0.1", portNum, time.Second)
	if res.State != port.StateSent || !res.Delivered() {
		t.Fatalf("expected udp sent, got %s (err=%s)", res.State, res.Error)
	}
	select {
	case n := <-got:
		if n != len(knockPayload) {
			t.Fatalf("listener read %d bytes", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("datagram never arrived")
	}
}

func TestUDPKnock_NoListenerStillSent(t *testing.T) {
	// reserve and release a port so nothing listens on it
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	portNum := uint16(pc.LocalAddr().(*net.UDPAddr).Port)
	pc.Close()

	res := UDPKnock(context.Background(), "127.0.0.1", portNum, time.Second)
	if res.State != port.StateSent {
		t.Fatalf("udp knock to a closed port should still be sent, got %s (%s)", res.State, res.Error)
	}
}

func TestNetKnocker_ProbeGrabsBanner(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		_, _ = c.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
		c.Close()
	}()
	portNum := uint16(l.Addr().(*net.TCPAddr).Port)

	k := &NetKnocker{Timeout: time.Second, GrabBanner: true, Logger: logging.Discard()}
	res := k.Probe(context.Background(), "127.0.0.1", portNum)
	if res.State != port.StateOpen || res.Service != "ssh" {
		t.Fatalf("unexpected probe result: %+v", res)
	}
}

func TestNetKnocker_KnockDispatchesByProtocol(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()
	udpPort := uint16(pc.LocalAddr().(*net.UDPAddr).Port)

	k := &NetKnocker{Timeout: time.Second, Logger: logging.Discard()}
	if res := k.Knock(context.Background(), "127.0.0.1", udpPort, port.UDP); res.Proto != port.UDP || res.State != port.StateSent {
		t.Fatalf("udp knock: %+v", res)
	}
	if res := k.Knock(context.Background(), "127.0.0.1", udpPort, port.TCP); res.Proto != port.TCP || res.State == port.StateOpen {
		t.Fatalf("tcp knock on a udp-only port: %+v", res)
	}
}
