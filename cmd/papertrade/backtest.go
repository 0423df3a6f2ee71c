package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/internal/config"
	"github.com/blankly-finance/blankly-sub000/pkg/backtest"
	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource/synthetic"
	"github.com/blankly-finance/blankly-sub000/pkg/middleware"
	"github.com/blankly-finance/blankly-sub000/pkg/strategy"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

func strategyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "window", Usage: "rolling window of the sample strategy", Value: 20},
		&cli.StringFlag{Name: "size", Usage: "order size of the sample strategy", Value: "0.01"},
		&cli.StringFlag{Name: "threshold", Usage: "z-score that triggers entries and exits", Value: "2"},
	}
}

func newStrategy(c *cli.Context, ex paperEngine, logger *zap.Logger) (*strategy.MeanReversion, error) {
	size, err := fixed.Parse(c.String("size"))
	if err != nil {
		return nil, err
	}
	threshold, err := fixed.Parse(c.String("threshold"))
	if err != nil {
		return nil, err
	}
	if c.Int("window") < 2 {
		return nil, fmt.Errorf("%w: window must be at least 2", config.ErrInvalidSettings)
	}
	return strategy.NewMeanReversion(ex, c.Int("window"), size,
		strategy.WithLogger(logger.Named("strategy")),
		strategy.WithThreshold(threshold)), nil
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "replay stored bars through the paper engine",
		Flags: append(strategyFlags(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the account time series as CSV"},
			&cli.Int64Flag{Name: "synthetic", Usage: "replay generated bars from this seed instead of stored history"},
		),
		Action: runBacktest,
	}
}

func runBacktest(c *cli.Context) error {
	settings, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := requireSymbols(settings); err != nil {
		return err
	}
	start, stop, err := settings.Window(time.Now())
	if err != nil {
		return err
	}

	history, db, err := newHistory(settings, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if c.IsSet("synthetic") {
		history = synthetic.NewHistory(c.Int64("synthetic"))
		logger.Info("using synthetic history", zap.Int64("seed", c.Int64("synthetic")))
	}
	if history == nil {
		return fmt.Errorf("%w: backtest needs duckdb_path or --synthetic", config.ErrInvalidSettings)
	}

	histories := make(map[string][]common.Bar, len(settings.FeedSymbols))
	for _, symbol := range settings.FeedSymbols {
		bars, err := history.ProductHistory(c.Context, symbol, start, stop, settings.Resolution.Std())
		if err != nil {
			return fmt.Errorf("unable to load %s history: %w", symbol, err)
		}
		logger.Info("history loaded", zap.String("symbol", symbol), zap.Int("bars", len(bars)))
		histories[symbol] = bars
	}

	source := datasource.NewSwitch(nil, datasource.WithHistory(history))
	router := bus.NewRouter(logger.Named("router"), routerEventCapacity)
	engine := newEngine(settings, source, source, router, logger.Named("engine"))

	sample, err := newStrategy(c, engine, logger)
	if err != nil {
		return err
	}
	events := make([]backtest.PriceEvent, 0, len(settings.FeedSymbols))
	for _, symbol := range settings.FeedSymbols {
		events = append(events, backtest.PriceEvent{
			Symbol:   symbol,
			Interval: settings.Resolution.Std(),
			Callback: sample.OnPrice,
		})
	}

	telemetry := middleware.NewTelemetry(logger)
	middleware.Instrument(router, middleware.NewMonitor(logger.Named("events"),
		middleware.MonitorPositionsClosed|middleware.MonitorMarginCalls), telemetry)

	usePrice, err := backtest.ParsePriceField(settings.UsePrice)
	if err != nil {
		return err
	}
	controller := backtest.NewController(engine, source, histories, events,
		backtest.WithLogger(logger.Named("backtest")),
		backtest.WithRouter(router),
		backtest.WithFunding(fundingSchedule(settings, start, stop)...),
		backtest.WithUsePrice(usePrice),
		backtest.WithQuoteCurrency(settings.QuoteCurrency))

	result, err := controller.Run(c.Context)
	if err != nil {
		return err
	}

	result.Report.Print(logger)
	telemetry.PrintStatistics()
	router.Statistics().Log(logger)

	if output := c.String("output"); output != "" {
		f, err := os.Create(output) // #nosec G304
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if err := result.WriteCSV(f); err != nil {
			return err
		}
		logger.Info("account series written", zap.String("path", output), zap.Int("rows", len(result.Rows)))
	}
	return nil
}
