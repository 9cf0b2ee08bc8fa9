package probe

import (
	"context"
	"net/netip"
)

// CheckResult holds the outcome of a single reachability test against one address.
type CheckResult struct {
	Name      string  `json:"name"`
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
}

// Checker is implemented by any reachability test (ICMP, TCP, DNS).
// Failures are reported in the result, never as a panic or error return.
type Checker interface {
	Check(ctx context.Context, addr netip.Addr) CheckResult
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context, addr netip.Addr) CheckResult

func (f CheckerFunc) Check(ctx context.Context, addr netip.Addr) CheckResult {
	return f(ctx, addr)
}

func failed(name string, err error) CheckResult {
	return CheckResult{Name: name, Success: false, Message: err.Error()}
}
