package repo

import (
	"context"
	"time"

	"github.com/hamed0406/nickicker/internal/domain"
)

// CycleRecord is what one probe cycle leaves behind for inspection.
type CycleRecord struct {
	At        time.Time            `json:"at"`
	Up        bool                 `json:"up"`
	Reachable int                  `json:"reachable"`
	Total     int                  `json:"total"`
	State     string               `json:"state"`
	Endpoints []domain.ProbeResult `json:"endpoints"`
}

type EventKind string

const (
	KindTransition EventKind = "transition"
	KindAction     EventKind = "action"
)

// EventRecord is a state machine transition or the outcome of one action run.
type EventRecord struct {
	At         time.Time         `json:"at"`
	Kind       EventKind         `json:"kind"`
	Transition domain.Transition `json:"transition"`
	EpisodeID  string            `json:"episode_id,omitempty"`
	Action     string            `json:"action,omitempty"`
	OK         bool              `json:"ok"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
}

// Ports (interfaces). History is process-local; nothing survives a restart.
type CycleStore interface {
	AppendCycle(ctx context.Context, r CycleRecord) error
	// RecentCycles returns at most limit records, newest first. limit <= 0 means all.
	RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error)
}

type EventStore interface {
	AppendEvent(ctx context.Context, e EventRecord) error
	RecentEvents(ctx context.Context, limit int) ([]EventRecord, error)
}

type History interface {
	CycleStore
	EventStore
}
