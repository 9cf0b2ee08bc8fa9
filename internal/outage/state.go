// Package outage turns per-cycle connectivity samples into outage episodes.
//
// An outage is suspected on the first down sample and confirmed once it has
// lasted at least the threshold, measured in wall-clock time from the last
// sample that saw connectivity. Confirmation and recovery are each emitted
// exactly once per episode.
package outage

import (
	"time"

	"github.com/hamed0406/nickicker/internal/domain"
)

type Status int

const (
	Up Status = iota
	Suspected
	Confirmed
)

func (s Status) String() string {
	switch s {
	case Up:
		return "up"
	case Suspected:
		return "suspected"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the only mutable record of the monitor.
//
// SuspectedSince is non-zero exactly when Status != Up, and ActionsFired is
// true only while Status == Confirmed. ActionsFired means OutageConfirmed was
// emitted for the episode, not that every action ran; dispatch outcomes,
// including a dropped dispatch, are recorded as action events in the history.
type State struct {
	Status         Status    `json:"status"`
	SuspectedSince time.Time `json:"suspected_since"`
	ActionsFired   bool      `json:"actions_fired"`
	LastUpAt       time.Time `json:"last_up_at"`
	EpisodeID      string    `json:"episode_id,omitempty"`
}

// Initial is the state at daemon start.
func Initial() State {
	return State{Status: Up}
}

// Next applies one sample to s. It returns the new state and the event to
// dispatch, whose Transition is domain.NoTransition when nothing happened.
func Next(s State, sample domain.ConnectivitySample, threshold time.Duration) (State, domain.Event) {
	ts := sample.Timestamp
	none := domain.Event{Transition: domain.NoTransition, At: ts}

	switch s.Status {
	case Suspected:
		if sample.Up {
			// blip shorter than the threshold
			return State{Status: Up, LastUpAt: ts}, none
		}
		if ts.Sub(s.SuspectedSince) >= threshold {
			s.Status = Confirmed
			s.ActionsFired = true
			return s, domain.Event{
				Transition:  domain.OutageConfirmed,
				At:          ts,
				EpisodeID:   s.EpisodeID,
				OutageStart: s.SuspectedSince,
			}
		}
		return s, none

	case Confirmed:
		if !sample.Up {
			return s, none
		}
		return State{Status: Up, LastUpAt: ts}, domain.Event{
			Transition:  domain.Recovered,
			At:          ts,
			EpisodeID:   s.EpisodeID,
			OutageStart: s.SuspectedSince,
		}

	default:
		if sample.Up {
			return State{Status: Up, LastUpAt: ts}, none
		}
		since := ts
		if !s.LastUpAt.IsZero() && s.LastUpAt.Before(ts) {
			since = s.LastUpAt
		}
		return State{Status: Suspected, SuspectedSince: since, LastUpAt: s.LastUpAt}, none
	}
}
