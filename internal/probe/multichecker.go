package probe

import (
	"context"
	"net/netip"
	"strings"
)

// MultiChecker chains checkers; an address is reachable if any of them succeeds.
type MultiChecker struct {
	Checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{Checkers: checkers}
}

// Check stops at the first successful checker.
func (m *MultiChecker) Check(ctx context.Context, addr netip.Addr) CheckResult {
	msgs := make([]string, 0, len(m.Checkers))
	for _, c := range m.Checkers {
		out := c.Check(ctx, addr)
		if out.Success {
			return out
		}
		msgs = append(msgs, out.Name+": "+out.Message)
		if ctx.Err() != nil {
			break
		}
	}
	return CheckResult{Name: "MULTI", Success: false, Message: strings.Join(msgs, "; ")}
}
