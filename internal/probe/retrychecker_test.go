package probe

import (
	"context"
	"net/netip"
	"testing"
	"time"
)

// fake checker you can control
type fakeChecker struct {
	results []CheckResult
	i       int
}

func (f *fakeChecker) Check(ctx context.Context, addr netip.Addr) CheckResult {
	if f.i >= len(f.results) {
		return CheckResult{Success: false, Message: "no more"}
	}
	r := f.results[f.i]
	f.i++
	return r
}

var testAddr = netip.MustParseAddr("192.0.2.1")

func TestRetryChecker_SucceedsAfterRetry(t *testing.T) {
	f := &fakeChecker{
		results: []CheckResult{
			{Success: false, Message: "first fail"},
			{Success: true, Message: "ok"},
		},
	}
	rc := &RetryChecker{
		Inner:    f,
		Attempts: 3,
		Backoff:  10 * time.Millisecond,
	}
	out := rc.Check(context.Background(), testAddr)
	if !out.Success {
		t.Fatalf("expected success after retry, got %+v", out)
	}
	if f.i != 2 {
		t.Fatalf("expected 2 attempts, got %d", f.i)
	}
}

func TestRetryChecker_AllFailAnnotates(t *testing.T) {
	f := &fakeChecker{
		results: []CheckResult{
			{Success: false, Message: "fail1"},
			{Success: false, Message: "fail2"},
		},
	}
	rc := &RetryChecker{
		Inner:    f,
		Attempts: 2,
		Backoff:  0,
	}
	out := rc.Check(context.Background(), testAddr)
	if out.Success {
		t.Fatalf("expected failure, got success")
	}
	if out.Message != "fail2 (after retries)" {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestRetryChecker_StopsWhenContextDone(t *testing.T) {
	f := &fakeChecker{results: []CheckResult{{Message: "a"}, {Message: "b"}, {Message: "c"}}}
	rc := &RetryChecker{Inner: f, Attempts: 3, Backoff: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := rc.Check(ctx, testAddr)
	if out.Success || f.i != 1 {
		t.Fatalf("expected one attempt then abandon, got %+v after %d", out, f.i)
	}
}

func TestMultiChecker_AnySuccessWins(t *testing.T) {
	fail := CheckerFunc(func(context.Context, netip.Addr) CheckResult {
		return CheckResult{Name: "ICMP", Message: "all packets have dropped"}
	})
	ok := CheckerFunc(func(context.Context, netip.Addr) CheckResult {
		return CheckResult{Name: "TCP", Success: true}
	})

	if out := NewMultiChecker(fail, ok).Check(context.Background(), testAddr); !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	out := NewMultiChecker(fail, fail).Check(context.Background(), testAddr)
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Message != "ICMP: all packets have dropped; ICMP: all packets have dropped" {
		t.Fatalf("unexpected message %q", out.Message)
	}
}
