package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/internal/config"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "store OHLCV bars from a CSV file in duckdb",
		ArgsUsage: "<file.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbol", Usage: "symbol the bars belong to", Required: true},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	settings, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if c.Args().Len() != 1 {
		return errors.New("expected exactly one CSV file")
	}
	_, db, err := newHistory(settings, logger)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("%w: import needs duckdb_path", config.ErrInvalidSettings)
	}
	defer db.Close()

	path := c.Args().First()
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	symbol := strings.ToUpper(c.String("symbol"))
	bars, err := readBars(f, symbol, settings.BasePeriod.Std())
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", path, err)
	}
	if err := db.Store(c.Context, symbol, bars); err != nil {
		return err
	}

	logger.Info("bars imported", zap.String("symbol", symbol), zap.String("file", path), zap.Int("bars", len(bars)))
	return nil
}

// readBars parses "time,open,high,low,close,volume" rows after a header line. Times are RFC3339
// or unix seconds.
func readBars(r io.Reader, symbol string, period time.Duration) ([]common.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}

	var bars []common.Bar
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		ts, err := parseBarTime(record[0])
		if err != nil {
			return nil, err
		}

		bar := common.Bar{Symbol: symbol, TimeStamp: ts, Period: period}
		for i, dst := range []*fixed.Point{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
			if *dst, err = fixed.Parse(strings.TrimSpace(record[i+1])); err != nil {
				return nil, fmt.Errorf("line %d: %w", len(bars)+2, err)
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported bar time %q", s)
	}
	return t.UTC(), nil
}
