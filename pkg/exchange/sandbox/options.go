package sandbox

import (
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type Option func(*engine)

func WithFees(maker, taker fixed.Point) Option {
	return func(e *engine) {
		e.makerFee = maker
		e.takerFee = taker
	}
}

// WithProducts enables order filter checks. Sizes and prices are truncated to the product
// increments before any funds are reserved.
func WithProducts(products exchange.ProductInfo) Option {
	return func(e *engine) {
		e.products = products
	}
}

func WithRouter(router *bus.Router) Option {
	return func(e *engine) {
		e.router = router
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *engine) {
		e.logger = logger
	}
}

func WithClock(clock exchange.Clock) Option {
	return func(e *engine) {
		e.clock = clock
	}
}

// WithMinIncrement sets the size increment used when no product info is known for a symbol.
func WithMinIncrement(increment fixed.Point) Option {
	return func(e *engine) {
		e.minIncrement = increment
	}
}

// WithLeverage sets the default futures leverage for symbols without an explicit setting.
func WithLeverage(leverage fixed.Point) Option {
	return func(e *engine) {
		e.defaultLeverage = leverage
	}
}
