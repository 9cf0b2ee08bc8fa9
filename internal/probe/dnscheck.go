package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"time"
)

// DNSChecker asks the probed address, acting as a resolver, for the NS records of
// Query. Any answer from the server counts as reachable, including NXDOMAIN.
type DNSChecker struct {
	Query  string
	Port   uint16
	Dialer net.Dialer
}

func NewDNSChecker(query string) *DNSChecker {
	if strings.TrimSpace(query) == "" {
		query = "."
	}
	return &DNSChecker{Query: query, Port: 53}
}

func (d *DNSChecker) Check(ctx context.Context, addr netip.Addr) CheckResult {
	server := netip.AddrPortFrom(addr, d.Port).String()
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return d.Dialer.DialContext(ctx, network, server)
		},
	}

	start := time.Now()
	_, err := r.LookupNS(ctx, d.Query)
	latency := time.Since(start).Seconds() * 1000 // ms

	class := classifyDNS(err)
	return CheckResult{
		Name:      "DNS",
		Success:   class == "ANSWERED" || class == "NXDOMAIN",
		Message:   class,
		LatencyMS: latency,
	}
}

// classifyDNS returns "ANSWERED" | "NXDOMAIN" | "SERVFAIL_or_TIMEOUT" | "ERROR".
func classifyDNS(err error) string {
	if err == nil {
		return "ANSWERED"
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		switch {
		case de.IsNotFound:
			return "NXDOMAIN"
		case de.IsTemporary || de.Timeout():
			return "SERVFAIL_or_TIMEOUT"
		}
	}
	return "ERROR"
}
