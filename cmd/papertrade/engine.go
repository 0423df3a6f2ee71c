package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/internal/config"
	"github.com/blankly-finance/blankly-sub000/pkg/backtest"
	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource/historical"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange/sandbox"
)

type paperEngine interface {
	exchange.Exchange
	backtest.Engine
	EvaluateLimits(ctx context.Context) error
}

func newEngine(settings config.Settings, prices exchange.PriceSource, clock exchange.Clock, router *bus.Router, logger *zap.Logger) paperEngine {
	var ledgerOptions []sandbox.LedgerOption
	if settings.StrictAccountLookup {
		ledgerOptions = append(ledgerOptions, sandbox.WithStrictLookup())
	}
	ledger := sandbox.NewLedger(settings.Assets(), ledgerOptions...)

	options := []sandbox.Option{
		sandbox.WithLogger(logger),
		sandbox.WithRouter(router),
		sandbox.WithClock(clock),
		sandbox.WithFees(settings.MakerFee, settings.TakerFee),
		sandbox.WithMinIncrement(settings.MinSizeIncrement),
		sandbox.WithLeverage(settings.Leverage),
	}

	if settings.Mode == config.ModeFutures {
		return sandbox.NewFutures(ledger, prices, options...)
	}
	return sandbox.NewSpot(ledger, prices, options...)
}

// newHistory connects the duckdb bar store and puts the binary cache in front of it when a
// cache directory is configured. Both results are nil without duckdb_path.
func newHistory(settings config.Settings, logger *zap.Logger) (exchange.HistoryProvider, *historical.DuckDB, error) {
	if settings.DuckDBPath == "" {
		return nil, nil, nil
	}

	db := historical.NewDuckDB(settings.DuckDBPath, settings.BasePeriod.Std())
	if err := db.Connect(); err != nil {
		return nil, nil, err
	}
	if settings.CacheDir == "" {
		return db, db, nil
	}
	return historical.NewCache(logger.Named("cache"), settings.CacheDir, db), db, nil
}

// fundingSchedule spreads the configured rates over the window, one event per funding interval.
func fundingSchedule(settings config.Settings, start, stop time.Time) []backtest.FundingEvent {
	interval := settings.FundingInterval.Std()
	if settings.Mode != config.ModeFutures || interval <= 0 {
		return nil
	}

	var events []backtest.FundingEvent
	for symbol, rate := range settings.FundingRates {
		for t := start.Truncate(interval).Add(interval); !t.After(stop); t = t.Add(interval) {
			events = append(events, backtest.FundingEvent{Symbol: symbol, TimeStamp: t, Rate: rate})
		}
	}
	return events
}

func requireSymbols(settings config.Settings) error {
	if len(settings.FeedSymbols) == 0 {
		return fmt.Errorf("%w: no symbols configured, set feed_symbols or --symbols", config.ErrInvalidSettings)
	}
	return nil
}
