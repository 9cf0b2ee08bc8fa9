package probe

import (
	"time"
)

// Options selects and tunes the address checker used by the daemon.
type Options struct {
	Method       string // icmp | tcp | icmp+tcp | dns
	TCPPort      uint16
	DNSQuery     string
	Retries      int
	RetryBackoff time.Duration
	Privileged   *bool
}

// NewChecker builds the checker for opts. The returned close function releases
// ICMP sockets and is always safe to call. ICMP sockets are opened right away;
// setupErr names the address families that could not be set up. It is not
// fatal: addresses of those families fail and setup is retried on each check.
func NewChecker(opts Options) (c Checker, closeFn func(), setupErr error) {
	closeFn = func() {}

	switch opts.Method {
	case "tcp":
		c = NewTCPChecker(opts.TCPPort)
	case "dns":
		c = NewDNSChecker(opts.DNSQuery)
	case "icmp+tcp":
		icmp := NewICMPChecker(opts.Privileged)
		closeFn = icmp.Close
		setupErr = icmp.Start()
		c = NewMultiChecker(icmp, NewTCPChecker(opts.TCPPort))
	default:
		icmp := NewICMPChecker(opts.Privileged)
		closeFn = icmp.Close
		setupErr = icmp.Start()
		c = icmp
	}

	if opts.Retries > 0 {
		c = &RetryChecker{Inner: c, Attempts: opts.Retries + 1, Backoff: opts.RetryBackoff}
	}
	return c, closeFn, setupErr
}
