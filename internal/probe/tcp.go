package probe

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// TCPChecker treats a completed TCP handshake on Port as reachability.
type TCPChecker struct {
	Port   uint16
	Dialer net.Dialer
}

func NewTCPChecker(port uint16) *TCPChecker {
	return &TCPChecker{Port: port}
}

func (t *TCPChecker) Check(ctx context.Context, addr netip.Addr) CheckResult {
	target := netip.AddrPortFrom(addr, t.Port).String()

	start := time.Now()
	conn, err := t.Dialer.DialContext(ctx, "tcp", target)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Name: "TCP", Success: false, Message: err.Error(), LatencyMS: latency}
	}
	defer conn.Close()

	return CheckResult{
		Name:      "TCP",
		Success:   true,
		Message:   "connected to " + conn.RemoteAddr().String(),
		LatencyMS: latency,
	}
}
