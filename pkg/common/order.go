package common

import (
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/utility"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type OrderSide string
type OrderType string
type OrderStatus string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopLoss   OrderType = "stop_loss"
	OrderTypeTakeProfit OrderType = "take_profit"
)

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
)

func ParseOrderSide(s string) (OrderSide, bool) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), true
	}
	return "", false
}

func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Active reports whether an order in this status can still fill or be canceled.
func (s OrderStatus) Active() bool {
	return s == OrderStatusOpen || s == OrderStatusPending
}

type Order struct {
	Id         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       OrderSide   `json:"side"`
	Type       OrderType   `json:"type"`
	Size       fixed.Point `json:"size"`
	LimitPrice fixed.Point `json:"price"`
	Status     OrderStatus `json:"status"`
	ReduceOnly bool        `json:"reduce_only,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`

	FilledAt      time.Time   `json:"filled_at,omitempty"`
	FilledPrice   fixed.Point `json:"filled_price"`
	FilledSize    fixed.Point `json:"filled_size"`
	ExecutedValue fixed.Point `json:"executed_value"`
	Fee           fixed.Point `json:"fee"`

	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	Extensions  map[string]any      `json:"extensions,omitempty"`
}

// LimitLike reports whether the order rests in the book until a price condition holds.
func (o Order) LimitLike() bool {
	return o.Type != OrderTypeMarket
}

type OrderFilled struct {
	Order     Order     `json:"order"`
	TimeStamp time.Time `json:"ts"`
}

type OrderCanceled struct {
	Order     Order     `json:"order"`
	Reason    string    `json:"reason,omitempty"`
	TimeStamp time.Time `json:"ts"`
}
