package datasource

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

type barKey struct {
	symbol string
	period time.Duration
}

// BarBuilder aggregates ticks into bars aligned to their period. A bar is posted to the router
// once the first tick of the following period arrives.
type BarBuilder struct {
	logger *zap.Logger
	router *bus.Router

	mu             sync.Mutex
	periods        map[string][]time.Duration
	inConstruction map[barKey]*common.Bar
}

type BarOption func(*BarBuilder)

// WithBars registers the periods to build for symbol.
func WithBars(symbol string, periods ...time.Duration) BarOption {
	return func(b *BarBuilder) {
		symbol = strings.ToUpper(symbol)
		for _, period := range periods {
			if period > 0 {
				b.periods[symbol] = append(b.periods[symbol], period)
			}
		}
	}
}

func NewBarBuilder(logger *zap.Logger, router *bus.Router, options ...BarOption) *BarBuilder {
	b := &BarBuilder{
		logger:         logger,
		router:         router,
		periods:        make(map[string][]time.Duration),
		inConstruction: make(map[barKey]*common.Bar),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *BarBuilder) OnTick(_ context.Context, tick common.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbol := strings.ToUpper(tick.Symbol)
	for _, period := range b.periods[symbol] {
		b.construct(barKey{symbol, period}, tick)
	}
}

// Flush posts every bar still under construction.
func (b *BarBuilder) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, bar := range b.inConstruction {
		b.post(*bar)
		delete(b.inConstruction, key)
	}
}

func (b *BarBuilder) construct(key barKey, tick common.Tick) {
	start := tick.TimeStamp.Truncate(key.period)

	if bar, ok := b.inConstruction[key]; ok {
		if start.After(bar.TimeStamp) {
			b.post(*bar)
			delete(b.inConstruction, key)
		} else {
			if tick.Price.Gt(bar.High) {
				bar.High = tick.Price
			}
			if tick.Price.Lt(bar.Low) {
				bar.Low = tick.Price
			}
			bar.Close = tick.Price
			return
		}
	}

	b.inConstruction[key] = &common.Bar{
		Symbol:    key.symbol,
		TimeStamp: start,
		Period:    key.period,
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
	}
}

func (b *BarBuilder) post(bar common.Bar) {
	if err := b.router.Post(bus.BarEvent, bar); err != nil {
		b.logger.Warn("unable to post bar", zap.String("symbol", bar.Symbol), zap.Error(err))
	}
}
