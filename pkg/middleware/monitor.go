package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone  MonitorFlags = 0
	MonitorTicks MonitorFlags = 1 << iota
	MonitorBars
	MonitorOrdersFilled
	MonitorOrdersCanceled
	MonitorPositionsClosed
	MonitorMarginCalls

	MonitorAll = MonitorTicks | MonitorBars | MonitorOrdersFilled | MonitorOrdersCanceled |
		MonitorPositionsClosed | MonitorMarginCalls
)

// Monitor logs the events selected by its flags before passing them on.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0
}

func (m *Monitor) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return func(ctx context.Context, tick common.Tick) {
		if m.enabled(MonitorTicks) {
			m.logger.Info("tick",
				zap.String("symbol", tick.Symbol),
				zap.Stringer("price", tick.Price),
				zap.Time("ts", tick.TimeStamp))
		}
		if handler != nil {
			handler(ctx, tick)
		}
	}
}

func (m *Monitor) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return func(ctx context.Context, bar common.Bar) {
		if m.enabled(MonitorBars) {
			m.logger.Info("bar",
				zap.String("symbol", bar.Symbol),
				zap.Duration("period", bar.Period),
				zap.Stringer("open", bar.Open),
				zap.Stringer("high", bar.High),
				zap.Stringer("low", bar.Low),
				zap.Stringer("close", bar.Close),
				zap.Time("ts", bar.TimeStamp))
		}
		if handler != nil {
			handler(ctx, bar)
		}
	}
}

func (m *Monitor) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		if m.enabled(MonitorOrdersFilled) {
			m.logger.Info("order filled",
				zap.String("id", filled.Order.Id),
				zap.String("symbol", filled.Order.Symbol),
				zap.String("side", string(filled.Order.Side)),
				zap.String("type", string(filled.Order.Type)),
				zap.Stringer("size", filled.Order.FilledSize),
				zap.Stringer("price", filled.Order.FilledPrice),
				zap.Stringer("fee", filled.Order.Fee))
		}
		if handler != nil {
			handler(ctx, filled)
		}
	}
}

func (m *Monitor) WithOrderCanceled(handler bus.OrderCanceledEventHandler) bus.OrderCanceledEventHandler {
	return func(ctx context.Context, canceled common.OrderCanceled) {
		if m.enabled(MonitorOrdersCanceled) {
			m.logger.Info("order canceled",
				zap.String("id", canceled.Order.Id),
				zap.String("symbol", canceled.Order.Symbol),
				zap.String("reason", canceled.Reason))
		}
		if handler != nil {
			handler(ctx, canceled)
		}
	}
}

func (m *Monitor) WithPositionClosed(handler bus.PositionClosedEventHandler) bus.PositionClosedEventHandler {
	return func(ctx context.Context, closed common.PositionClosed) {
		if m.enabled(MonitorPositionsClosed) {
			m.logger.Info("position closed",
				zap.String("symbol", closed.Position.Symbol),
				zap.Stringer("size", closed.Position.Size),
				zap.Stringer("realized", closed.Realized))
		}
		if handler != nil {
			handler(ctx, closed)
		}
	}
}

func (m *Monitor) WithMarginCall(handler bus.MarginCallEventHandler) bus.MarginCallEventHandler {
	return func(ctx context.Context, call common.MarginCall) {
		if m.enabled(MonitorMarginCalls) {
			m.logger.Warn("margin call",
				zap.String("symbol", call.Symbol),
				zap.Stringer("size", call.Size),
				zap.Stringer("value", call.Value),
				zap.Stringer("cash", call.Cash))
		}
		if handler != nil {
			handler(ctx, call)
		}
	}
}
