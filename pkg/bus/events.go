package bus

import (
	"context"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

type EventId uint8

const (
	TickEvent EventId = iota
	BarEvent
	OrderFilledEvent
	OrderCanceledEvent
	PositionClosedEvent
	MarginCallEvent
)

func (e EventId) String() string {
	switch e {
	case TickEvent:
		return "tick"
	case BarEvent:
		return "bar"
	case OrderFilledEvent:
		return "order_filled"
	case OrderCanceledEvent:
		return "order_canceled"
	case PositionClosedEvent:
		return "position_closed"
	case MarginCallEvent:
		return "margin_call"
	}
	return "unknown"
}

type EventHandler[T any] = func(context.Context, T)

type TickEventHandler EventHandler[common.Tick]
type BarEventHandler EventHandler[common.Bar]
type OrderFilledEventHandler EventHandler[common.OrderFilled]
type OrderCanceledEventHandler EventHandler[common.OrderCanceled]
type PositionClosedEventHandler EventHandler[common.PositionClosed]
type MarginCallEventHandler EventHandler[common.MarginCall]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
