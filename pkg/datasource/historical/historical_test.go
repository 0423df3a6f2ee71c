package historical

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bars(symbol string, period time.Duration, closes ...string) []common.Bar {
	out := make([]common.Bar, len(closes))
	for i, c := range closes {
		price := fixed.MustParse(c)
		out[i] = common.Bar{
			Symbol:    symbol,
			TimeStamp: start.Add(time.Duration(i) * period),
			Period:    period,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    fixed.MustParse("0.5"),
		}
	}
	return out
}

func writeCache(t *testing.T, input []common.Bar) string {
	t.Helper()
	records := make([]BinaryBar, len(input))
	for i, bar := range input {
		record, err := NewBinaryBar(bar)
		require.NoError(t, err)
		records[i] = record
	}
	path := filepath.Join(t.TempDir(), "bars.bin")
	require.NoError(t, WriteRecords(path, records))
	return path
}

func TestBinaryBar_RoundTrip(t *testing.T) {
	bar := bars("BTC-USD", time.Hour, "42123.12345678")[0]

	record, err := NewBinaryBar(bar)
	require.NoError(t, err)
	assert.Equal(t, int64(4212312345678), record.Close)

	got := record.ToBar("BTC-USD")
	assert.Equal(t, bar.TimeStamp, got.TimeStamp)
	assert.Equal(t, time.Hour, got.Period)
	assert.True(t, got.Close.Eq(bar.Close))
	assert.True(t, got.Volume.Eq(bar.Volume))
}

func TestBinaryBar_OutOfRange(t *testing.T) {
	bar := bars("BTC-USD", time.Hour, "1")[0]
	bar.High = fixed.MustParse("1000000000000000")
	_, err := NewBinaryBar(bar)
	assert.Error(t, err)
}

func TestBarReader_Range(t *testing.T) {
	path := writeCache(t, bars("BTC-USD", time.Hour, "1", "2", "3", "4", "5"))

	source := NewSource[BinaryBar](path)
	require.NoError(t, source.Open())
	defer source.Close()

	count, err := source.EntryCount()
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	reader := NewBarReader(source, "BTC-USD", start.Add(90*time.Minute), start.Add(3*time.Hour))
	got, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Close.String())
	assert.Equal(t, "4", got[1].Close.String())

	reader = NewBarReader(source, "BTC-USD", start.Add(10*time.Hour), start.Add(11*time.Hour))
	_, err = reader.GetNext()
	assert.ErrorIs(t, err, ErrEof)
}

func TestSource_MisalignedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	_, err := NewSource[BinaryBar](path).EntryCount()
	assert.Error(t, err)
}

type countingHistory struct {
	bars  []common.Bar
	calls int
}

func (h *countingHistory) ProductHistory(_ context.Context, _ string, from, to time.Time, _ time.Duration) ([]common.Bar, error) {
	h.calls++
	var out []common.Bar
	for _, bar := range h.bars {
		if !bar.TimeStamp.Before(from) && !bar.TimeStamp.After(to) {
			out = append(out, bar)
		}
	}
	return out, nil
}

func TestCache_ServesCoveredRangeFromDisk(t *testing.T) {
	upstream := &countingHistory{bars: bars("ETH-USD", time.Hour, "10", "11", "12", "13")}
	cache := NewCache(zap.NewNop(), t.TempDir(), upstream)
	ctx := context.Background()

	first, err := cache.ProductHistory(ctx, "ETH-USD", start, start.Add(3*time.Hour), time.Hour)
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, 1, upstream.calls)

	second, err := cache.ProductHistory(ctx, "ETH-USD", start.Add(time.Hour), start.Add(2*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.calls)
	require.Len(t, second, 2)
	assert.Equal(t, "11", second[0].Close.String())

	_, err = cache.ProductHistory(ctx, "ETH-USD", start.Add(-time.Hour), start, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls)
}

func TestDuckDB_StoreAndQuery(t *testing.T) {
	db := NewDuckDB("", time.Minute)
	require.NoError(t, db.Connect())
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Store(ctx, "BTC-USD", bars("BTC-USD", time.Minute, "1", "2", "3", "4")))

	got, err := db.ProductHistory(ctx, "BTC-USD", start, start.Add(3*time.Minute), time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "BTC-USD", got[0].Symbol)
	assert.Equal(t, start, got[0].TimeStamp)
	assert.Equal(t, "4", got[3].Close.String())

	resampled, err := db.ProductHistory(ctx, "BTC-USD", start, start.Add(3*time.Minute), 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, resampled, 2)
	assert.Equal(t, "1", resampled[0].Open.String())
	assert.Equal(t, "2", resampled[0].Close.String())
	assert.Equal(t, "1", resampled[0].Volume.String())
}
