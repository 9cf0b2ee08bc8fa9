package outage

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/nickicker/internal/domain"
)

var ErrInvalidThreshold = errors.New("outage threshold must be positive")

// Machine owns the State and feeds it one sample per cycle. Observe is called
// from a single goroutine; Snapshot may be called from anywhere.
type Machine struct {
	threshold time.Duration

	// NewID names outage episodes.
	NewID func() string

	mu    sync.RWMutex
	state State
}

func NewMachine(threshold time.Duration) (*Machine, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	return &Machine{
		threshold: threshold,
		NewID:     uuid.NewString,
		state:     Initial(),
	}, nil
}

// Observe advances the machine and returns the resulting event.
func (m *Machine) Observe(sample domain.ConnectivitySample) domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state.Status
	next, ev := Next(m.state, sample, m.threshold)
	if prev == Up && next.Status == Suspected {
		next.EpisodeID = m.NewID()
	}
	m.state = next
	return ev
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) Threshold() time.Duration { return m.threshold }
