package probe

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	pinger "github.com/macrat/go-parallel-pinger"
)

// withFailingIPv6 makes every IPv6 pinger fail to start and counts the attempts.
func withFailingIPv6(c *ICMPChecker) *int {
	var v6Attempts int
	var v6 *pinger.Pinger
	c.v6.newFunc = func() *pinger.Pinger {
		v6 = pinger.NewIPv6()
		return v6
	}
	c.start = func(_ context.Context, p *pinger.Pinger) error {
		if p == v6 {
			v6Attempts++
			return errors.New("socket: address family not supported by protocol")
		}
		return nil
	}
	return &v6Attempts
}

func TestICMPChecker_IPv6SetupFailureLeavesIPv4Working(t *testing.T) {
	c := NewICMPChecker(nil)
	attempts := withFailingIPv6(c)
	defer c.Close()

	p, err := c.pingerFor(netip.MustParseAddr("198.41.0.4"))
	if err != nil || p == nil {
		t.Fatalf("IPv4 must be usable when only IPv6 fails: p=%v err=%v", p, err)
	}

	if _, err := c.pingerFor(netip.MustParseAddr("2001:503:ba3e::2:30")); !errors.Is(err, ErrPingerUnavailable) {
		t.Fatalf("want ErrPingerUnavailable for IPv6, got %v", err)
	}
	out := c.Check(context.Background(), netip.MustParseAddr("2001:503:ba3e::2:30"))
	if out.Success || !strings.Contains(out.Message, "IPv6") {
		t.Fatalf("IPv6 address should fail naming the family, got %+v", out)
	}
	// unprivileged fallback is tried too, and a failed family is retried on next use
	if *attempts < 4 {
		t.Fatalf("IPv6 start should be retried, attempts=%d", *attempts)
	}
}

func TestICMPChecker_StartReportsFailingFamily(t *testing.T) {
	c := NewICMPChecker(nil)
	withFailingIPv6(c)
	defer c.Close()

	err := c.Start()
	if !errors.Is(err, ErrPingerUnavailable) || !strings.Contains(err.Error(), "IPv6") {
		t.Fatalf("want IPv6 setup error, got %v", err)
	}
	if strings.Contains(err.Error(), "IPv4") {
		t.Fatalf("IPv4 started fine and must not be reported: %v", err)
	}
	if c.v4.p == nil {
		t.Fatal("IPv4 pinger should be running after Start")
	}
}
