package datasource

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Frame is the replay view of the market: the last price pushed per symbol and the
// timestamp of the most recent push.
type Frame struct {
	mu     sync.RWMutex
	now    time.Time
	prices map[string]fixed.Point
}

func NewFrame() *Frame {
	return &Frame{prices: make(map[string]fixed.Point)}
}

func (f *Frame) Update(symbol string, price fixed.Point, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prices[strings.ToUpper(symbol)] = price
	f.now = t
}

func (f *Frame) Price(symbol string) (fixed.Point, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	price, ok := f.prices[strings.ToUpper(symbol)]
	if !ok {
		return fixed.Zero, fmt.Errorf("no replay price for %s: %w", symbol, exchange.ErrNotFound)
	}
	return price, nil
}

func (f *Frame) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *Frame) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = time.Time{}
	f.prices = make(map[string]fixed.Point)
}
