package probe

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/domain"
)

// Prober runs one probe cycle: every endpoint, every address, each bounded by Timeout.
type Prober struct {
	Logger      *zap.Logger
	Checker     Checker
	Timeout     time.Duration
	Concurrency int
	Now         func() time.Time
}

func NewProber(logger *zap.Logger, checker Checker, timeout time.Duration, concurrency int) *Prober {
	if concurrency < 1 {
		concurrency = 8
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		Logger:      logger,
		Checker:     checker,
		Timeout:     timeout,
		Concurrency: concurrency,
		Now:         time.Now,
	}
}

// ProbeAll probes endpoints concurrently and returns results in endpoint order.
// It returns only after every probe has finished or timed out.
func (p *Prober) ProbeAll(ctx context.Context, endpoints []domain.Endpoint) []domain.ProbeResult {
	results := make([]domain.ProbeResult, len(endpoints))

	sem := make(chan struct{}, p.Concurrency)
	var wg sync.WaitGroup

	for i, ep := range endpoints {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = p.Probe(ctx, ep)
		}()
	}

	wg.Wait()
	return results
}

// Probe reports ep reachable if any of its addresses answers. An endpoint
// without addresses is unreachable.
func (p *Prober) Probe(ctx context.Context, ep domain.Endpoint) domain.ProbeResult {
	addrs := make([]domain.AddressResult, len(ep.Addresses))

	var wg sync.WaitGroup
	for i, addr := range ep.Addresses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addrs[i] = p.checkAddress(ctx, ep.Name, addr)
		}()
	}
	wg.Wait()

	res := domain.ProbeResult{
		Endpoint:  ep.Name,
		Addresses: addrs,
		CheckedAt: p.Now().UTC(),
	}
	for _, a := range addrs {
		if a.Reachable {
			res.Reachable = true
			break
		}
	}

	if !res.Reachable {
		p.Logger.Warn("endpoint_unreachable",
			zap.String("endpoint", ep.Name),
			zap.Stringers("addresses", ep.Addresses),
		)
	}
	return res
}

func (p *Prober) checkAddress(ctx context.Context, endpoint string, a netip.Addr) domain.AddressResult {
	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// buffered so a checker that ignores its context cannot leak a blocked sender
	ch := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- CheckResult{Success: false, Message: fmt.Sprintf("checker panic: %v", r)}
			}
		}()
		ch <- p.Checker.Check(cctx, a)
	}()

	var out CheckResult
	select {
	case out = <-ch:
	case <-cctx.Done():
		out = CheckResult{Success: false, Message: "no answer within " + p.Timeout.String()}
	}

	p.Logger.Debug("address_checked",
		zap.String("endpoint", endpoint),
		zap.String("address", a.String()),
		zap.Bool("reachable", out.Success),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	)

	return domain.AddressResult{
		Address:   a,
		Reachable: out.Success,
		LatencyMS: out.LatencyMS,
		Reason:    out.Message,
	}
}
