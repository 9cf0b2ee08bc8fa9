package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	pinger "github.com/macrat/go-parallel-pinger"
	"go.uber.org/multierr"
)

var ErrPingerUnavailable = errors.New("failed to setup ping service")

// family is the pinger of one address family. A family that failed to start
// is retried on its next use and never affects the other family.
type family struct {
	name    string
	newFunc func() *pinger.Pinger
	p       *pinger.Pinger
	stop    context.CancelFunc
}

// ICMPChecker sends echo requests through a shared IPv4 and IPv6 pinger.
// Each pinger is started on first use and lives until Close.
type ICMPChecker struct {
	Privileged *bool // nil tries the platform default, then the opposite
	Count      int
	Interval   time.Duration

	// start launches a pinger; replaced in tests.
	start func(ctx context.Context, p *pinger.Pinger) error

	mu sync.Mutex
	v4 family
	v6 family
}

func NewICMPChecker(privileged *bool) *ICMPChecker {
	return &ICMPChecker{
		Privileged: privileged,
		Count:      1,
		Interval:   200 * time.Millisecond,
		start:      func(ctx context.Context, p *pinger.Pinger) error { return p.Start(ctx) },
		v4:         family{name: "IPv4", newFunc: pinger.NewIPv4},
		v6:         family{name: "IPv6", newFunc: pinger.NewIPv6},
	}
}

// Start opens the ICMP sockets of both families and reports every family
// that could not be set up. Calling it is optional; Check starts lazily.
func (c *ICMPChecker) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return multierr.Combine(c.startLocked(&c.v4), c.startLocked(&c.v6))
}

func (c *ICMPChecker) startLocked(f *family) error {
	if f.p != nil {
		return nil
	}

	p := f.newFunc()
	if c.Privileged != nil {
		p.SetPrivileged(*c.Privileged)
	}

	ctx, stop := context.WithCancel(context.Background())
	err := c.start(ctx, p)
	if err != nil && c.Privileged == nil {
		p.SetPrivileged(!pinger.DEFAULT_PRIVILEGED)
		err = c.start(ctx, p)
	}
	if err != nil {
		stop()
		return fmt.Errorf("%w (%s): %v", ErrPingerUnavailable, f.name, err)
	}

	f.p, f.stop = p, stop
	return nil
}

// Close stops both pingers.
func (c *ICMPChecker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range []*family{&c.v4, &c.v6} {
		if f.stop != nil {
			f.stop()
		}
		f.p, f.stop = nil, nil
	}
}

func (c *ICMPChecker) pingerFor(addr netip.Addr) (*pinger.Pinger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &c.v6
	if addr.Unmap().Is4() {
		f = &c.v4
	}
	if err := c.startLocked(f); err != nil {
		return nil, err
	}
	return f.p, nil
}

func (c *ICMPChecker) Check(ctx context.Context, addr netip.Addr) CheckResult {
	p, err := c.pingerFor(addr)
	if err != nil {
		return failed("ICMP", err)
	}

	count := c.Count
	if count < 1 {
		count = 1
	}

	target := &net.IPAddr{IP: net.IP(addr.Unmap().AsSlice()), Zone: addr.Zone()}
	res, err := p.Ping(ctx, target, count, c.Interval)
	if err != nil {
		return failed("ICMP", err)
	}

	out := CheckResult{
		Name:      "ICMP",
		Success:   res.Recv > 0,
		LatencyMS: float64(res.AvgRTT.Microseconds()) / 1000,
		Message:   fmt.Sprintf("%d/%d packets came back", res.Recv, res.Sent),
	}
	if ctx.Err() != nil && !out.Success {
		out.Message = "probe timed out"
	}
	return out
}
