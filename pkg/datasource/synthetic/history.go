package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

const (
	secondsPerYear = 365.25 * 24 * 3600
	stepsPerBar    = 4
	priceDigits    = 8
)

// History generates OHLCV bars from a geometric Brownian motion. The same seed, symbol and
// range always produce the same bars, which makes it usable as a stand-in history provider.
type History struct {
	seed       int64
	startPrice float64
	mu         float64
	sigma      float64
	maxBars    int
}

type Option func(*History)

// WithDrift sets the annualized drift and volatility.
func WithDrift(mu, sigma float64) Option {
	return func(h *History) {
		h.mu = mu
		h.sigma = sigma
	}
}

func WithStartPrice(price float64) Option {
	return func(h *History) {
		h.startPrice = price
	}
}

func NewHistory(seed int64, options ...Option) *History {
	h := &History{
		seed:       seed,
		startPrice: 100,
		mu:         0.05,
		sigma:      0.6,
		maxBars:    1_000_000,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

func (h *History) ProductHistory(_ context.Context, symbol string, start, stop time.Time, resolution time.Duration) ([]common.Bar, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: resolution must be positive", exchange.ErrInvalidOrder)
	}
	start = start.UTC().Truncate(resolution)
	count := int(stop.Sub(start) / resolution)
	if count > h.maxBars {
		return nil, fmt.Errorf("%w: %d bars requested, at most %d", exchange.ErrInvalidOrder, count, h.maxBars)
	}

	symbol = strings.ToUpper(symbol)
	rng := rand.New(rand.NewSource(h.seed ^ symbolSeed(symbol))) // #nosec G404

	dt := resolution.Seconds() / secondsPerYear / stepsPerBar
	drift := (h.mu - h.sigma*h.sigma/2) * dt
	diffusion := h.sigma * math.Sqrt(dt)

	price := h.startPrice
	bars := make([]common.Bar, 0, max(count, 0))
	for i := 0; i < count; i++ {
		open, high, low := price, price, price
		volume := 0.0
		for step := 0; step < stepsPerBar; step++ {
			price *= math.Exp(drift + diffusion*rng.NormFloat64())
			high = math.Max(high, price)
			low = math.Min(low, price)
			volume += rng.ExpFloat64()
		}

		bars = append(bars, common.Bar{
			Symbol:    symbol,
			TimeStamp: start.Add(time.Duration(i) * resolution),
			Period:    resolution,
			Open:      round(open),
			High:      round(high),
			Low:       round(low),
			Close:     round(price),
			Volume:    round(volume),
		})
	}
	return bars, nil
}

func round(v float64) fixed.Point {
	return fixed.FromFloat64(v).Trunc(priceDigits)
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return int64(h.Sum64())
}
