package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/nickicker/internal/domain"
)

type memDispatcher struct {
	mu    sync.Mutex
	seen  []domain.Event
	block chan struct{}
}

func (m *memDispatcher) Dispatch(ctx context.Context, ev domain.Event) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, ev)
	return nil
}

func (m *memDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func TestAlerter_QueueFullDropsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	a := NewAlerter(zap.New(core), &memDispatcher{}, 1)

	if !a.Enqueue(domain.Event{Transition: domain.OutageConfirmed}) {
		t.Fatal("first event should fit")
	}
	if a.Enqueue(domain.Event{Transition: domain.Recovered}) {
		t.Fatal("second event should be dropped")
	}
	if logs.FilterMessage("dispatch_queue_full").Len() != 1 {
		t.Fatal("drop should be logged")
	}
}

func TestAlerter_DrainsQueuedEventsOnShutdown(t *testing.T) {
	d := &memDispatcher{}
	a := NewAlerter(zap.NewNop(), d, 4)
	a.Enqueue(domain.Event{Transition: domain.OutageConfirmed, EpisodeID: "1"})
	a.Enqueue(domain.Event{Transition: domain.Recovered, EpisodeID: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	if d.count() != 2 {
		t.Fatalf("want 2 drained events, got %d", d.count())
	}
}

func TestAlerter_DispatchesWhileRunning(t *testing.T) {
	d := &memDispatcher{}
	a := NewAlerter(zap.NewNop(), d, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.Enqueue(domain.Event{Transition: domain.OutageConfirmed})
	deadline := time.Now().Add(2 * time.Second)
	for d.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if d.count() != 1 {
		t.Fatalf("want 1 dispatched event, got %d", d.count())
	}
}
