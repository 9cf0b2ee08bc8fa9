package domain

import "time"

// Transition is an edge of the outage state machine that has visible effects.
type Transition int

const (
	NoTransition Transition = iota
	OutageConfirmed
	Recovered
)

func (t Transition) String() string {
	switch t {
	case OutageConfirmed:
		return "outage_confirmed"
	case Recovered:
		return "recovered"
	default:
		return "none"
	}
}

// MarshalText lets transitions appear by name in JSON and logs.
func (t Transition) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is a transition together with the outage episode it belongs to.
type Event struct {
	Transition  Transition `json:"transition"`
	At          time.Time  `json:"at"`
	EpisodeID   string     `json:"episode_id"`
	OutageStart time.Time  `json:"outage_start"`
}

// Duration is how long the outage had lasted when the event was emitted.
func (e Event) Duration() time.Duration {
	if e.OutageStart.IsZero() {
		return 0
	}
	return e.At.Sub(e.OutageStart)
}
