package historical

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
)

// Cache keeps downloaded history in binary bar files, one per symbol and resolution, and
// only asks the upstream provider when the file does not cover the requested range.
type Cache struct {
	logger   *zap.Logger
	dir      string
	upstream exchange.HistoryProvider
}

func NewCache(logger *zap.Logger, dir string, upstream exchange.HistoryProvider) *Cache {
	return &Cache{
		logger:   logger,
		dir:      dir,
		upstream: upstream,
	}
}

func (c *Cache) ProductHistory(ctx context.Context, symbol string, start, stop time.Time, resolution time.Duration) ([]common.Bar, error) {
	path := c.path(symbol, resolution)

	bars, err := c.load(path, symbol, start, stop, resolution)
	if err == nil {
		c.logger.Debug("history served from cache", zap.String("symbol", symbol), zap.String("path", path))
		return bars, nil
	}
	if !errors.Is(err, errCacheMiss) {
		c.logger.Warn("unable to read history cache", zap.String("path", path), zap.Error(err))
	}

	bars, err = c.upstream.ProductHistory(ctx, symbol, start, stop, resolution)
	if err != nil {
		return nil, err
	}

	if err := c.store(path, bars); err != nil {
		c.logger.Warn("unable to write history cache", zap.String("path", path), zap.Error(err))
	}
	return bars, nil
}

var errCacheMiss = errors.New("cache miss")

func (c *Cache) load(path, symbol string, start, stop time.Time, resolution time.Duration) ([]common.Bar, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errCacheMiss
	}

	source := NewSource[BinaryBar](path)
	if err := source.Open(); err != nil {
		return nil, err
	}
	defer source.Close()

	count, err := source.EntryCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errCacheMiss
	}

	var first, last BinaryBar
	if err := source.Read(0, &first); err != nil {
		return nil, err
	}
	if err := source.Read(count-1, &last); err != nil {
		return nil, err
	}
	if first.TimeStamp > start.UnixNano() || last.TimeStamp < stop.Add(-resolution).UnixNano() {
		return nil, errCacheMiss
	}

	return NewBarReader(source, symbol, start, stop).ReadAll()
}

func (c *Cache) store(path string, bars []common.Bar) error {
	records := make([]BinaryBar, 0, len(bars))
	for _, bar := range bars {
		record, err := NewBinaryBar(bar)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("unable to create cache dir: %w", err)
	}
	return WriteRecords(path, records)
}

func (c *Cache) path(symbol string, resolution time.Duration) string {
	name := fmt.Sprintf("%s_%d.bin", strings.ToUpper(symbol), int64(resolution.Seconds()))
	return filepath.Join(c.dir, name)
}
