package exchange

import (
	"context"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type PriceSource interface {
	Price(symbol string) (fixed.Point, error)
}

type Clock interface {
	Now() time.Time
}

type ProductInfo interface {
	OrderFilter(symbol string) (SymbolInfo, error)
}

type HistoryProvider interface {
	ProductHistory(ctx context.Context, symbol string, start, stop time.Time, resolution time.Duration) ([]common.Bar, error)
}

// PriceFunc adapts a plain function to PriceSource.
type PriceFunc func(symbol string) (fixed.Point, error)

func (f PriceFunc) Price(symbol string) (fixed.Point, error) { return f(symbol) }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type OrderOption func(*common.Order)

func ReduceOnly() OrderOption {
	return func(o *common.Order) {
		o.ReduceOnly = true
	}
}

func WithExtension(key string, value any) OrderOption {
	return func(o *common.Order) {
		if o.Extensions == nil {
			o.Extensions = make(map[string]any)
		}
		o.Extensions[key] = value
	}
}

// Exchange is the order and account surface strategies trade against.
type Exchange interface {
	MarketOrder(symbol string, side common.OrderSide, size fixed.Point, opts ...OrderOption) (common.Order, error)
	LimitOrder(symbol string, side common.OrderSide, price, size fixed.Point, opts ...OrderOption) (common.Order, error)
	StopLossOrder(symbol string, side common.OrderSide, trigger, size fixed.Point, opts ...OrderOption) (common.Order, error)
	TakeProfitOrder(symbol string, side common.OrderSide, trigger, size fixed.Point, opts ...OrderOption) (common.Order, error)
	CancelOrder(symbol, id string) (common.Order, error)
	GetOpenOrders(symbol string) []common.Order
	GetOrder(symbol, id string) (common.Order, error)
	GetAccount(asset string) (common.Balance, error)
	GetAccounts() map[string]common.Balance
}

type FuturesExchange interface {
	Exchange
	GetPosition(symbol string) (common.Position, bool)
	GetPositions() []common.Position
	SetLeverage(leverage fixed.Point, symbol string) error
	GetLeverage(symbol string) fixed.Point
	SetMarginType(symbol string, marginType common.MarginType) error
	GetMarginType(symbol string) common.MarginType
}
