package outage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hamed0406/nickicker/internal/domain"
)

var t0 = time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

type step struct {
	min int
	up  bool
}

// run feeds samples through Next and returns the minute of every emitted event.
func run(t *testing.T, threshold time.Duration, steps []step) (State, map[domain.Transition][]int) {
	t.Helper()
	s := Initial()
	got := map[domain.Transition][]int{}
	for _, st := range steps {
		var ev domain.Event
		s, ev = Next(s, domain.ConnectivitySample{Timestamp: at(st.min), Up: st.up}, threshold)
		checkInvariants(t, s)
		if ev.Transition != domain.NoTransition {
			got[ev.Transition] = append(got[ev.Transition], st.min)
		}
	}
	return s, got
}

func checkInvariants(t *testing.T, s State) {
	t.Helper()
	if (s.Status != Up) == s.SuspectedSince.IsZero() {
		t.Fatalf("suspected_since must be set iff status != up: %+v", s)
	}
	if s.ActionsFired && s.Status != Confirmed {
		t.Fatalf("actions_fired outside confirmed: %+v", s)
	}
}

func TestNext_ConfirmsAtThreshold(t *testing.T) {
	// threshold 2h, interval 30m, all samples down
	_, got := run(t, 2*time.Hour, []step{{0, false}, {30, false}, {60, false}, {90, false}, {120, false}})

	want := map[domain.Transition][]int{domain.OutageConfirmed: {120}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestNext_UpSampleResetsSuspicion(t *testing.T) {
	_, got := run(t, 2*time.Hour, []step{
		{0, false}, {30, true}, {60, false}, {90, false}, {120, false}, {150, false}, {180, false},
	})

	want := map[domain.Transition][]int{domain.OutageConfirmed: {150}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestNext_ShortBlipNeverConfirms(t *testing.T) {
	s, got := run(t, 2*time.Hour, []step{
		{0, true}, {30, false}, {60, false}, {90, true}, {120, true},
	})
	if len(got) != 0 {
		t.Fatalf("blip below threshold emitted %v", got)
	}
	if s.Status != Up {
		t.Fatalf("want up after blip, got %s", s.Status)
	}
}

func TestNext_SustainedOutageFiresOnceThenRecovers(t *testing.T) {
	steps := []step{{0, false}}
	for m := 30; m <= 600; m += 30 {
		steps = append(steps, step{m, false})
	}
	steps = append(steps, step{630, true}, step{660, true})

	s, got := run(t, time.Hour, steps)
	want := map[domain.Transition][]int{
		domain.OutageConfirmed: {60},
		domain.Recovered:       {630},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if s.ActionsFired || s.Status != Up {
		t.Fatalf("recovery must clear state: %+v", s)
	}
}

func TestNext_SecondOutageFiresAgain(t *testing.T) {
	_, got := run(t, time.Hour, []step{
		{0, false}, {30, false}, {60, false}, // confirmed at 60
		{90, true}, // recovered
		{120, false}, {150, false}, {180, false}, // confirmed again at 150 (since last up at 90)
		{210, true},
	})
	want := map[domain.Transition][]int{
		domain.OutageConfirmed: {60, 150},
		domain.Recovered:       {90, 210},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestNext_RecoveredEventCarriesEpisode(t *testing.T) {
	s := State{Status: Confirmed, SuspectedSince: at(0), ActionsFired: true, EpisodeID: "ep-1"}
	next, ev := Next(s, domain.ConnectivitySample{Timestamp: at(90), Up: true}, time.Hour)

	want := domain.Event{Transition: domain.Recovered, At: at(90), EpisodeID: "ep-1", OutageStart: at(0)}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Fatalf("event (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(State{Status: Up, LastUpAt: at(90)}, next); diff != "" {
		t.Fatalf("state (-want +got):\n%s", diff)
	}
}

func TestNext_ClockGoingBackwardsDoesNotConfirm(t *testing.T) {
	_, got := run(t, time.Hour, []step{{120, false}, {60, false}, {0, false}})
	if len(got) != 0 {
		t.Fatalf("backwards clock emitted %v", got)
	}
}

// Random sample sequences: every confirmation is followed by exactly one
// recovery before the next confirmation, and no run of down samples that ends
// before the threshold has elapsed since the last up sample ever confirms.
func TestNext_RandomSequencesFireOncePerEpisode(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const threshold = 90 * time.Minute

	for iter := 0; iter < 200; iter++ {
		s := Initial()
		now := t0
		var lastUp time.Time
		confirmedThisEpisode := false

		for i := 0; i < 100; i++ {
			now = now.Add(time.Duration(10+rng.Intn(40)) * time.Minute)
			up := rng.Intn(5) < 2

			var ev domain.Event
			s, ev = Next(s, domain.ConnectivitySample{Timestamp: now, Up: up}, threshold)
			checkInvariants(t, s)

			switch ev.Transition {
			case domain.OutageConfirmed:
				if confirmedThisEpisode {
					t.Fatalf("iter %d: confirmed twice in one episode", iter)
				}
				if !lastUp.IsZero() && now.Sub(lastUp) < threshold {
					t.Fatalf("iter %d: confirmed after %s < threshold", iter, now.Sub(lastUp))
				}
				confirmedThisEpisode = true
			case domain.Recovered:
				if !confirmedThisEpisode {
					t.Fatalf("iter %d: recovered without confirmation", iter)
				}
				confirmedThisEpisode = false
			}
			if up {
				lastUp = now
				if confirmedThisEpisode {
					t.Fatalf("iter %d: up sample did not recover", iter)
				}
			}
		}
	}
}
