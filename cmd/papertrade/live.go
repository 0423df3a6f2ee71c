package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blankly-finance/blankly-sub000/internal/config"
	"github.com/blankly-finance/blankly-sub000/internal/handler"
	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource/live"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/middleware"
	"github.com/blankly-finance/blankly-sub000/pkg/scheduler"
)

const shutdownTimeout = 5 * time.Second

func liveCommand() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "paper trade against the live ticker feed and serve the HTTP API",
		Flags: append(strategyFlags(),
			&cli.BoolFlag{Name: "no-strategy", Usage: "only serve the HTTP API"},
			&cli.BoolFlag{Name: "record", Usage: "store bars built from the feed in duckdb"},
		),
		Action: runLive,
	}
}

func runLive(c *cli.Context) error {
	settings, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := requireSymbols(settings); err != nil {
		return err
	}

	history, db, err := newHistory(settings, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	feed := live.NewFeed(logger.Named("feed"), settings.FeedURL, settings.FeedSymbols)
	if err := feed.Connect(c.Context); err != nil {
		return err
	}
	defer func() { _ = feed.Close() }()

	switchOptions := []datasource.SwitchOption{datasource.WithLiveClock(exchange.SystemClock{})}
	if history != nil {
		switchOptions = append(switchOptions, datasource.WithHistory(history))
	}
	source := datasource.NewSwitch(feed, switchOptions...)

	router := bus.NewRouter(logger.Named("router"), routerEventCapacity)
	engine := newEngine(settings, source, source, router, logger.Named("engine"))

	bars := make([]datasource.BarOption, 0, len(settings.FeedSymbols))
	for _, symbol := range settings.FeedSymbols {
		bars = append(bars, datasource.WithBars(symbol, settings.Resolution.Std()))
	}
	builder := datasource.NewBarBuilder(logger, router, bars...)
	router.OnTick = bus.MergeHandlers[common.Tick](engine.OnTick, builder.OnTick)

	if c.Bool("record") {
		if db == nil {
			return fmt.Errorf("%w: --record needs duckdb_path", config.ErrInvalidSettings)
		}
		router.OnBar = func(ctx context.Context, bar common.Bar) {
			if err := db.Store(ctx, bar.Symbol, []common.Bar{bar}); err != nil {
				logger.Warn("unable to record bar", zap.String("symbol", bar.Symbol), zap.Error(err))
			}
		}
	}

	telemetry := middleware.NewTelemetry(logger)
	middleware.Instrument(router, middleware.NewMonitor(logger.Named("events"),
		middleware.MonitorOrdersFilled|middleware.MonitorOrdersCanceled|
			middleware.MonitorPositionsClosed|middleware.MonitorMarginCalls), telemetry)
	defer telemetry.PrintStatistics()

	sched := scheduler.New(logger.Named("scheduler"))
	if err := sched.Watchdog(settings.PollInterval.Std(), engine.EvaluateLimits); err != nil {
		return err
	}
	if !c.Bool("no-strategy") {
		sample, err := newStrategy(c, engine, logger)
		if err != nil {
			return err
		}
		for _, symbol := range settings.FeedSymbols {
			err := sched.Every("strategy "+symbol, settings.Resolution.Std(), func(ctx context.Context) error {
				price, err := source.Price(symbol)
				if err != nil {
					return err
				}
				return sample.OnPrice(ctx, price, symbol)
			})
			if err != nil {
				return err
			}
		}
	}

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           handler.NewRouter(engine, settings.QuoteCurrency, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(c.Context)
	done := router.Exec(ctx)
	dispatch := datasource.CreateTickDispatcher(router, feed)

	g.Go(func() error {
		for {
			err := dispatch(ctx)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, bus.ErrCapacityReached):
				logger.Warn("tick dropped", zap.Error(err))
			default:
				return fmt.Errorf("feed stopped: %w", err)
			}
		}
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("http api listening", zap.String("addr", settings.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		_ = feed.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	<-done
	builder.Flush()
	router.Drain(context.Background())
	router.Statistics().Log(logger)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("papertrade finished")
	return nil
}
