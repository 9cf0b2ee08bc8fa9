package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/domain"
	"github.com/hamed0406/nickicker/internal/outage"
	"github.com/hamed0406/nickicker/internal/probe"
	"github.com/hamed0406/nickicker/internal/repo"
)

var ErrInvalidInterval = errors.New("test interval must be positive")

type EndpointProber interface {
	ProbeAll(ctx context.Context, endpoints []domain.Endpoint) []domain.ProbeResult
}

// Monitor owns the poll loop: probe every endpoint, reduce to one sample,
// feed the state machine and queue any transition for dispatch.
type Monitor struct {
	Logger    *zap.Logger
	Prober    EndpointProber
	Machine   *outage.Machine
	Endpoints []domain.Endpoint
	Interval  time.Duration
	Alerter   *Alerter
	History   repo.History // optional
	Now       func() time.Time

	mu        sync.RWMutex
	startedAt time.Time
	last      *repo.CycleRecord
}

func NewMonitor(
	logger *zap.Logger,
	prober EndpointProber,
	machine *outage.Machine,
	endpoints []domain.Endpoint,
	interval time.Duration,
	alerter *Alerter,
) (*Monitor, error) {
	if len(endpoints) == 0 {
		return nil, probe.ErrNoEndpoints
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if machine == nil {
		return nil, errors.New("outage machine is required")
	}
	return &Monitor{
		Logger:    logger,
		Prober:    prober,
		Machine:   machine,
		Endpoints: endpoints,
		Interval:  interval,
		Alerter:   alerter,
		Now:       time.Now,
	}, nil
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// Cycles never overlap. The dispatch worker is stopped and drained before
// Run returns.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	m.startedAt = m.Now()
	m.mu.Unlock()

	var wg sync.WaitGroup
	if m.Alerter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Alerter.Run(ctx)
		}()
	}

	m.Logger.Info("monitor_started",
		zap.Int("endpoints", len(m.Endpoints)),
		zap.Duration("interval", m.Interval),
		zap.Duration("threshold", m.Machine.Threshold()),
	)

	t := time.NewTicker(m.Interval)
	defer t.Stop()

	m.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s := m.Machine.Snapshot()
			m.Logger.Info("monitor_stopped",
				zap.Stringer("state", s.Status),
				zap.Time("suspected_since", s.SuspectedSince),
				zap.String("episode_id", s.EpisodeID),
			)
			return
		case <-t.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	if _, _, err := m.RunCycle(ctx); err != nil {
		m.Logger.Error("cycle_error", zap.Error(err))
	}
}

// RunCycle performs one full cycle. Every probe has finished (or timed out)
// before the sample is built. A cycle cut short by cancellation leaves the
// state machine untouched.
func (m *Monitor) RunCycle(ctx context.Context) (domain.ConnectivitySample, domain.Event, error) {
	results := m.Prober.ProbeAll(ctx, m.Endpoints)
	if err := ctx.Err(); err != nil {
		m.Logger.Info("cycle_abandoned", zap.Error(err))
		return domain.ConnectivitySample{}, domain.Event{}, nil
	}

	up, err := probe.Aggregate(results)
	if err != nil {
		return domain.ConnectivitySample{}, domain.Event{}, err
	}

	sample := domain.ConnectivitySample{Timestamp: m.Now().UTC(), Up: up}
	before := m.Machine.Snapshot()
	ev := m.Machine.Observe(sample)
	after := m.Machine.Snapshot()

	reachable := probe.CountReachable(results)
	m.Logger.Info("cycle_result",
		zap.Int("reachable", reachable),
		zap.Int("total", len(results)),
		zap.Bool("up", up),
		zap.Stringer("state", after.Status),
	)

	rec := repo.CycleRecord{
		At:        sample.Timestamp,
		Up:        up,
		Reachable: reachable,
		Total:     len(results),
		State:     after.Status.String(),
		Endpoints: results,
	}
	m.mu.Lock()
	m.last = &rec
	m.mu.Unlock()
	if m.History != nil {
		if err := m.History.AppendCycle(ctx, rec); err != nil {
			m.Logger.Warn("history_append_error", zap.Error(err))
		}
	}

	if before.Status == outage.Up && after.Status == outage.Suspected {
		m.Logger.Warn("outage_suspected",
			zap.String("episode_id", after.EpisodeID),
			zap.Time("suspected_since", after.SuspectedSince),
		)
	}
	if ev.Transition != domain.NoTransition {
		m.onTransition(ctx, ev)
	}
	return sample, ev, nil
}

func (m *Monitor) onTransition(ctx context.Context, ev domain.Event) {
	fields := []zap.Field{
		zap.String("episode_id", ev.EpisodeID),
		zap.Time("outage_start", ev.OutageStart),
		zap.Duration("outage_duration", ev.Duration()),
	}
	switch ev.Transition {
	case domain.OutageConfirmed:
		m.Logger.Error("outage_confirmed", fields...)
	case domain.Recovered:
		m.Logger.Info("recovered", fields...)
	}

	if m.History != nil {
		rec := repo.EventRecord{
			At:         ev.At,
			Kind:       repo.KindTransition,
			Transition: ev.Transition,
			EpisodeID:  ev.EpisodeID,
			OK:         true,
		}
		if err := m.History.AppendEvent(ctx, rec); err != nil {
			m.Logger.Warn("history_append_error", zap.Error(err))
		}
	}

	if m.Alerter != nil && !m.Alerter.Enqueue(ev) && m.History != nil {
		// the episode stays marked as fired; keep a record that nothing ran
		rec := repo.EventRecord{
			At:         ev.At,
			Kind:       repo.KindAction,
			Transition: ev.Transition,
			EpisodeID:  ev.EpisodeID,
			Action:     "dispatch",
			Error:      ErrQueueFull.Error(),
		}
		if err := m.History.AppendEvent(ctx, rec); err != nil {
			m.Logger.Warn("history_append_error", zap.Error(err))
		}
	}
}

// Status is a point-in-time view of the monitor for the status API.
type Status struct {
	State     outage.State      `json:"state"`
	StartedAt time.Time         `json:"started_at"`
	Interval  string            `json:"interval"`
	Threshold string            `json:"threshold"`
	Endpoints []domain.Endpoint `json:"endpoints"`
	LastCycle *repo.CycleRecord `json:"last_cycle,omitempty"`
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		State:     m.Machine.Snapshot(),
		StartedAt: m.startedAt,
		Interval:  m.Interval.String(),
		Threshold: m.Machine.Threshold().String(),
		Endpoints: m.Endpoints,
		LastCycle: m.last,
	}
}
