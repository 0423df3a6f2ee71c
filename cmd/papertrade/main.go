package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/internal/config"
	"github.com/blankly-finance/blankly-sub000/internal/dbg"
)

var version = "dev"

const routerEventCapacity = 1024

func main() {
	app := &cli.App{
		Name:    "papertrade",
		Usage:   "paper trading and backtesting against simulated funds",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "settings file (YAML)",
				EnvVars: []string{"PAPER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before the environment is read",
				Value: ".env",
			},
			&cli.StringSliceFlag{
				Name:  "symbols",
				Usage: "symbols to trade, overrides feed_symbols",
			},
		},
		Commands: []*cli.Command{
			backtestCommand(),
			liveCommand(),
			importCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the settings and builds the logger every command starts from.
func setup(c *cli.Context) (config.Settings, *zap.Logger, error) {
	settings, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return settings, nil, err
	}
	if symbols := c.StringSlice("symbols"); len(symbols) > 0 {
		settings.FeedSymbols = symbols
		if err := settings.Validate(); err != nil {
			return settings, nil, err
		}
	}

	logger, err := dbg.NewLogger(settings.LogLevel, settings.Production)
	if err != nil {
		return settings, nil, err
	}
	logger.Info("papertrade started",
		zap.String("command", c.Command.Name),
		zap.String("mode", string(settings.Mode)),
		zap.String("version", version))
	return settings, logger, nil
}
