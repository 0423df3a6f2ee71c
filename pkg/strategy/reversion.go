package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

const componentName = "strategy.reversion"

var DefaultThreshold = fixed.Two

// MeanReversion buys when the price drops threshold standard deviations below its rolling mean
// and sells the same size back once the price rises threshold deviations above it.
type MeanReversion struct {
	logger    *zap.Logger
	ex        exchange.Exchange
	window    int
	threshold fixed.Point
	size      fixed.Point

	mu      sync.Mutex
	zScores map[string]*zScore
	long    map[string]bool
}

type Option func(*MeanReversion)

func WithLogger(logger *zap.Logger) Option {
	return func(m *MeanReversion) {
		m.logger = logger
	}
}

func WithThreshold(threshold fixed.Point) Option {
	return func(m *MeanReversion) {
		m.threshold = threshold.Abs()
	}
}

func NewMeanReversion(ex exchange.Exchange, window int, size fixed.Point, options ...Option) *MeanReversion {
	m := &MeanReversion{
		logger:    zap.NewNop(),
		ex:        ex,
		window:    window,
		threshold: DefaultThreshold,
		size:      size,
		zScores:   make(map[string]*zScore),
		long:      make(map[string]bool),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// OnPrice feeds one price observation. Its signature matches the replay callback so the same
// strategy runs in backtests and against the live feed.
func (m *MeanReversion) OnPrice(_ context.Context, price fixed.Point, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol = strings.ToUpper(symbol)
	z, ok := m.zScores[symbol]
	if !ok {
		z = newZScore(m.window)
		m.zScores[symbol] = z
	}
	z.add(price)

	score, err := z.value()
	if errors.Is(err, errNotReady) || errors.Is(err, errFlat) {
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case !m.long[symbol] && score.Lte(m.threshold.Neg()):
		order, err := m.ex.MarketOrder(symbol, common.OrderSideBuy, m.size,
			exchange.WithExtension("source", componentName))
		if err != nil {
			return fmt.Errorf("unable to enter %s at z-score %s: %w", symbol, score, err)
		}
		m.long[symbol] = true
		m.logger.Info("entered", zap.String("symbol", symbol), zap.Stringer("z", score),
			zap.Stringer("price", order.FilledPrice))

	case m.long[symbol] && score.Gte(m.threshold):
		opts := []exchange.OrderOption{exchange.WithExtension("source", componentName)}
		if _, isFutures := m.ex.(exchange.FuturesExchange); isFutures {
			opts = append(opts, exchange.ReduceOnly())
		}
		order, err := m.ex.MarketOrder(symbol, common.OrderSideSell, m.size, opts...)
		if err != nil {
			return fmt.Errorf("unable to exit %s at z-score %s: %w", symbol, score, err)
		}
		m.long[symbol] = false
		m.logger.Info("exited", zap.String("symbol", symbol), zap.Stringer("z", score),
			zap.Stringer("price", order.FilledPrice))
	}
	return nil
}
