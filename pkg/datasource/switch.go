package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Switch is the price, time and history source handed to engines and strategies. Outside a
// backtest it forwards to the live collaborators; between Begin and End it answers from the
// replay frame and never looks past the frame time.
type Switch struct {
	mu          sync.RWMutex
	live        exchange.PriceSource
	clock       exchange.Clock
	history     exchange.HistoryProvider
	frame       *Frame
	replay      map[string][]common.Bar
	backtesting bool
}

type SwitchOption func(*Switch)

func WithLiveClock(clock exchange.Clock) SwitchOption {
	return func(s *Switch) {
		s.clock = clock
	}
}

func WithHistory(history exchange.HistoryProvider) SwitchOption {
	return func(s *Switch) {
		s.history = history
	}
}

// NewSwitch wraps the live price source. live may be nil for a process that only backtests.
func NewSwitch(live exchange.PriceSource, options ...SwitchOption) *Switch {
	s := &Switch{
		live:  live,
		clock: exchange.SystemClock{},
		frame: NewFrame(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Begin enters backtest mode with a fresh frame. replay is the full bar history of the run
// and is served by ProductHistory up to the frame time.
func (s *Switch) Begin(replay map[string][]common.Bar) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame.Reset()
	s.replay = make(map[string][]common.Bar, len(replay))
	for symbol, bars := range replay {
		s.replay[strings.ToUpper(symbol)] = bars
	}
	s.backtesting = true
	return s.frame
}

func (s *Switch) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replay = nil
	s.backtesting = false
}

func (s *Switch) Backtesting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backtesting
}

func (s *Switch) Frame() *Frame {
	return s.frame
}

func (s *Switch) Price(symbol string) (fixed.Point, error) {
	s.mu.RLock()
	backtesting, live := s.backtesting, s.live
	s.mu.RUnlock()

	if backtesting {
		return s.frame.Price(symbol)
	}
	if live == nil {
		return fixed.Zero, fmt.Errorf("no live price source for %s: %w", symbol, exchange.ErrNotFound)
	}
	return live.Price(symbol)
}

func (s *Switch) Now() time.Time {
	s.mu.RLock()
	backtesting := s.backtesting
	s.mu.RUnlock()

	if backtesting {
		return s.frame.Now()
	}
	return s.clock.Now()
}

// ProductHistory returns bars in [start, stop]. In backtest mode stop is clamped to the frame
// time and the answer comes from the replay data; a request the replay cannot cover fails
// with ErrBacktesting instead of downloading.
func (s *Switch) ProductHistory(ctx context.Context, symbol string, start, stop time.Time, resolution time.Duration) ([]common.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.backtesting {
		if s.history == nil {
			return nil, fmt.Errorf("no history provider for %s: %w", symbol, exchange.ErrNotFound)
		}
		return s.history.ProductHistory(ctx, symbol, start, stop, resolution)
	}

	bars, ok := s.replay[strings.ToUpper(symbol)]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("%s is not part of the replay: %w", symbol, exchange.ErrBacktesting)
	}
	if start.Before(bars[0].TimeStamp) {
		return nil, fmt.Errorf("history of %s before %s requires a download: %w",
			symbol, bars[0].TimeStamp.Format(time.RFC3339), exchange.ErrBacktesting)
	}
	if resolution > 0 && resolution < bars[0].Period {
		return nil, fmt.Errorf("resolution %s is finer than the replay data of %s: %w",
			resolution, symbol, exchange.ErrBacktesting)
	}

	now := s.frame.Now()
	if stop.After(now) {
		stop = now
	}

	window := make([]common.Bar, 0)
	for _, bar := range bars {
		if bar.TimeStamp.Before(start) {
			continue
		}
		if bar.TimeStamp.After(stop) {
			break
		}
		window = append(window, bar)
	}
	return Resample(window, resolution), nil
}
