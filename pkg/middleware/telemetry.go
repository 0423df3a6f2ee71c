package middleware

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

// Telemetry counts the events that pass through the wrapped handlers.
type Telemetry struct {
	logger *zap.Logger

	ticks           atomic.Int64
	bars            atomic.Int64
	ordersFilled    atomic.Int64
	ordersCanceled  atomic.Int64
	positionsClosed atomic.Int64
	marginCalls     atomic.Int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

func count[T any, H ~func(context.Context, T)](counter *atomic.Int64, handler H) H {
	return func(ctx context.Context, event T) {
		counter.Add(1)
		if handler != nil {
			handler(ctx, event)
		}
	}
}

func (t *Telemetry) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return count[common.Tick](&t.ticks, handler)
}

func (t *Telemetry) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return count[common.Bar](&t.bars, handler)
}

func (t *Telemetry) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return count[common.OrderFilled](&t.ordersFilled, handler)
}

func (t *Telemetry) WithOrderCanceled(handler bus.OrderCanceledEventHandler) bus.OrderCanceledEventHandler {
	return count[common.OrderCanceled](&t.ordersCanceled, handler)
}

func (t *Telemetry) WithPositionClosed(handler bus.PositionClosedEventHandler) bus.PositionClosedEventHandler {
	return count[common.PositionClosed](&t.positionsClosed, handler)
}

func (t *Telemetry) WithMarginCall(handler bus.MarginCallEventHandler) bus.MarginCallEventHandler {
	return count[common.MarginCall](&t.marginCalls, handler)
}

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("tick_events", t.ticks.Load()),
		zap.Int64("bar_events", t.bars.Load()),
		zap.Int64("order_filled_events", t.ordersFilled.Load()),
		zap.Int64("order_canceled_events", t.ordersCanceled.Load()),
		zap.Int64("position_closed_events", t.positionsClosed.Load()),
		zap.Int64("margin_call_events", t.marginCalls.Load()))
}

// Instrument wraps every handler on router with the monitor and telemetry. Handlers must be
// assigned before it is called.
func Instrument(router *bus.Router, monitor *Monitor, telemetry *Telemetry) {
	router.OnTick = Chain(monitor.WithTick, telemetry.WithTick)(router.OnTick)
	router.OnBar = Chain(monitor.WithBar, telemetry.WithBar)(router.OnBar)
	router.OnOrderFilled = Chain(monitor.WithOrderFilled, telemetry.WithOrderFilled)(router.OnOrderFilled)
	router.OnOrderCanceled = Chain(monitor.WithOrderCanceled, telemetry.WithOrderCanceled)(router.OnOrderCanceled)
	router.OnPositionClosed = Chain(monitor.WithPositionClosed, telemetry.WithPositionClosed)(router.OnPositionClosed)
	router.OnMarginCall = Chain(monitor.WithMarginCall, telemetry.WithMarginCall)(router.OnMarginCall)
}
