package action

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/domain"
	"github.com/hamed0406/nickicker/internal/repo"
)

const DefaultTimeout = 5 * time.Minute

// Dispatcher runs the action list that belongs to a transition. Every action
// gets its own deadline and a failure never stops the ones after it.
type Dispatcher struct {
	Logger   *zap.Logger
	Actions  map[Kind]Action
	Outage   []Ref
	Recovery []Ref
	Timeout  time.Duration
	Events   repo.EventStore // optional
	Now      func() time.Time
}

func NewDispatcher(logger *zap.Logger, actions map[Kind]Action, outage, recovery []Ref, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if actions == nil {
		actions = map[Kind]Action{}
	}
	return &Dispatcher{
		Logger:   logger,
		Actions:  actions,
		Outage:   outage,
		Recovery: recovery,
		Timeout:  timeout,
		Now:      time.Now,
	}
}

// Dispatch runs every action configured for ev.Transition in order and
// returns the combined failures. Unknown names are skipped, not failures.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) error {
	var refs []Ref
	switch ev.Transition {
	case domain.OutageConfirmed:
		refs = d.Outage
	case domain.Recovered:
		refs = d.Recovery
	default:
		return nil
	}

	if len(refs) == 0 {
		d.Logger.Info("no_actions_configured",
			zap.Stringer("transition", ev.Transition),
			zap.String("episode_id", ev.EpisodeID),
		)
		return nil
	}

	var errs error
	for _, ref := range refs {
		if ref.Kind == Unknown {
			d.Logger.Warn("unknown_action_skipped",
				zap.String("action", ref.Name),
				zap.Stringer("transition", ev.Transition),
				zap.Error(ErrUnknown),
			)
			continue
		}
		errs = multierr.Append(errs, d.runOne(ctx, ref, ev))
	}
	return errs
}

func (d *Dispatcher) runOne(ctx context.Context, ref Ref, ev domain.Event) error {
	start := d.Now()
	a, ok := d.Actions[ref.Kind]

	var err error
	if !ok || a == nil {
		err = ErrUnavailable
	} else {
		err = d.invoke(ctx, a)(ev)
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", ref, err)
	}
	took := d.Now().Sub(start)

	if err != nil {
		d.Logger.Error("action_failed",
			zap.String("action", ref.String()),
			zap.Stringer("transition", ev.Transition),
			zap.String("episode_id", ev.EpisodeID),
			zap.Duration("took", took),
			zap.Error(err),
		)
	} else {
		d.Logger.Info("action_succeeded",
			zap.String("action", ref.String()),
			zap.Stringer("transition", ev.Transition),
			zap.String("episode_id", ev.EpisodeID),
			zap.Duration("took", took),
		)
	}

	if d.Events != nil {
		rec := repo.EventRecord{
			At:         start.UTC(),
			Kind:       repo.KindAction,
			Transition: ev.Transition,
			EpisodeID:  ev.EpisodeID,
			Action:     ref.String(),
			OK:         err == nil,
			DurationMS: took.Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if aerr := d.Events.AppendEvent(ctx, rec); aerr != nil {
			d.Logger.Warn("event_append_error", zap.Error(aerr))
		}
	}
	return err
}

// invoke bounds a by d.Timeout even when it ignores its context, and turns a
// panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, a Action) func(domain.Event) error {
	return func(ev domain.Event) error {
		cctx, cancel := context.WithTimeout(ctx, d.Timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic: %v", r)
				}
			}()
			done <- a.Run(cctx, ev)
		}()

		select {
		case err := <-done:
			return err
		case <-cctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", ErrTimeout, d.Timeout)
		}
	}
}
