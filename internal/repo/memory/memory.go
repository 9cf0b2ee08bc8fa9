package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/nickicker/internal/repo"
)

const (
	DefaultCycles = 512
	DefaultEvents = 128
)

// ring keeps the last cap(buf) items; next is where the following write goes.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](size int) ring[T] {
	return ring[T]{buf: make([]T, size)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// newest returns up to limit items, most recent first.
func (r *ring[T]) newest(limit int) []T {
	n := r.len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

type Store struct {
	mu     sync.RWMutex
	cycles ring[repo.CycleRecord]
	events ring[repo.EventRecord]
}

// New returns a Store bounded to the given sizes; non-positive sizes use the defaults.
func New(cycles, events int) *Store {
	if cycles <= 0 {
		cycles = DefaultCycles
	}
	if events <= 0 {
		events = DefaultEvents
	}
	return &Store{
		cycles: newRing[repo.CycleRecord](cycles),
		events: newRing[repo.EventRecord](events),
	}
}

func (m *Store) AppendCycle(ctx context.Context, r repo.CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles.push(r)
	return nil
}

func (m *Store) RecentCycles(ctx context.Context, limit int) ([]repo.CycleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cycles.newest(limit), nil
}

func (m *Store) AppendEvent(ctx context.Context, e repo.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events.push(e)
	return nil
}

func (m *Store) RecentEvents(ctx context.Context, limit int) ([]repo.EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events.newest(limit), nil
}
