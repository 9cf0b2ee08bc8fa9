package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/domain"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) error
}

var ErrQueueFull = errors.New("dispatch queue full")

const (
	DefaultQueueSize    = 8
	DefaultDrainTimeout = 30 * time.Second
)

// Alerter hands transitions to the Dispatcher on its own goroutine so a slow
// action never holds up the next probe cycle.
type Alerter struct {
	Logger       *zap.Logger
	Dispatcher   Dispatcher
	DrainTimeout time.Duration

	queue chan domain.Event
}

func NewAlerter(logger *zap.Logger, d Dispatcher, queueSize int) *Alerter {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Alerter{
		Logger:       logger,
		Dispatcher:   d,
		DrainTimeout: DefaultDrainTimeout,
		queue:        make(chan domain.Event, queueSize),
	}
}

// Enqueue never blocks. It reports false when the queue is full and the
// event was dropped.
func (a *Alerter) Enqueue(ev domain.Event) bool {
	select {
	case a.queue <- ev:
		return true
	default:
		a.Logger.Error("dispatch_queue_full",
			zap.Stringer("transition", ev.Transition),
			zap.String("episode_id", ev.EpisodeID),
		)
		return false
	}
}

// Run dispatches queued events until ctx is cancelled, then gives whatever
// is still queued DrainTimeout to finish.
func (a *Alerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.drain(ctx)
			return
		case ev := <-a.queue:
			a.handle(ctx, ev)
		}
	}
}

func (a *Alerter) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.DrainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-a.queue:
			a.handle(ctx, ev)
		default:
			return
		}
	}
}

func (a *Alerter) handle(ctx context.Context, ev domain.Event) {
	err := a.Dispatcher.Dispatch(ctx, ev)
	a.Logger.Info("dispatch_completed",
		zap.Stringer("transition", ev.Transition),
		zap.String("episode_id", ev.EpisodeID),
		zap.Int("failures", len(multierr.Errors(err))),
	)
}
