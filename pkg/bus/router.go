package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrCapacityReached = errors.New("event capacity reached")

type event struct {
	id   EventId
	data any
}

// Router buffers events posted by the engines and dispatches them to handlers on the caller of
// Exec or Drain. Post never blocks, so it is safe to call while holding engine locks.
type Router struct {
	logger *zap.Logger
	events chan event

	OnTick           TickEventHandler
	OnBar            BarEventHandler
	OnOrderFilled    OrderFilledEventHandler
	OnOrderCanceled  OrderCanceledEventHandler
	OnPositionClosed PositionClosedEventHandler
	OnMarginCall     MarginCallEventHandler

	runTime       atomic.Int64
	postCount     atomic.Uint64
	postFails     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	return &Router{
		logger: logger,
		events: make(chan event, eventCapacity),
	}
}

func (r *Router) Post(id EventId, data any) error {
	select {
	case r.events <- event{id, data}:
		r.postCount.Add(1)
		return nil
	default:
		r.postFails.Add(1)
		return fmt.Errorf("unable to post %s event: %w", id, ErrCapacityReached)
	}
}

// Exec dispatches events until ctx is done. The returned channel yields the context error.
func (r *Router) Exec(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		start := time.Now()
		defer func() {
			r.runTime.Add(int64(time.Since(start)))
		}()

		for {
			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case ev := <-r.events:
				r.handle(ctx, ev)
			}
		}
	}()

	return done
}

// Drain synchronously dispatches everything currently queued and returns the number of events handled.
func (r *Router) Drain(ctx context.Context) int {
	handled := 0
	for {
		select {
		case ev := <-r.events:
			r.handle(ctx, ev)
			handled++
		default:
			return handled
		}
	}
}

func (r *Router) Statistics() Statistics {
	runTime := time.Duration(r.runTime.Load())
	stats := Statistics{
		RunTime:       runTime,
		PostCount:     r.postCount.Load(),
		PostFails:     r.postFails.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
	}
	if runTime > 0 {
		stats.Throughput = float64(stats.PostCount) / runTime.Seconds()
	}
	return stats
}

func (r *Router) handle(ctx context.Context, ev event) {
	r.dispatchCount.Add(1)
	if err := r.dispatch(ctx, ev); err != nil {
		r.dispatchFails.Add(1)
		r.logger.Warn("dispatch failed", zap.Stringer("event", ev.id), zap.Error(err))
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case TickEvent:
		return invoke(ctx, ev, r.OnTick)
	case BarEvent:
		return invoke(ctx, ev, r.OnBar)
	case OrderFilledEvent:
		return invoke(ctx, ev, r.OnOrderFilled)
	case OrderCanceledEvent:
		return invoke(ctx, ev, r.OnOrderCanceled)
	case PositionClosedEvent:
		return invoke(ctx, ev, r.OnPositionClosed)
	case MarginCallEvent:
		return invoke(ctx, ev, r.OnMarginCall)
	default:
		return fmt.Errorf("unsupported event id: %v", ev.id)
	}
}

func invoke[T any, H ~func(context.Context, T)](ctx context.Context, ev event, handler H) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("invalid type assertion for %s event", ev.id)
	}
	if handler != nil {
		handler(ctx, data)
	}
	return nil
}
