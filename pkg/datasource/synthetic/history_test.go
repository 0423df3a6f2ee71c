package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestHistory_Deterministic(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(42, WithStartPrice(1000), WithDrift(0, 0.8))

	first, err := h.ProductHistory(ctx, "btc-usd", start, start.Add(24*time.Hour), time.Hour)
	require.NoError(t, err)
	second, err := h.ProductHistory(ctx, "BTC-USD", start, start.Add(24*time.Hour), time.Hour)
	require.NoError(t, err)

	require.Len(t, first, 24)
	assert.Equal(t, first, second)
	assert.Equal(t, "1000", first[0].Open.String())
	assert.Equal(t, start.Add(23*time.Hour), first[23].TimeStamp)

	for i, bar := range first {
		assert.True(t, bar.Low.Lte(bar.Open) && bar.Low.Lte(bar.Close), "bar %d low", i)
		assert.True(t, bar.High.Gte(bar.Open) && bar.High.Gte(bar.Close), "bar %d high", i)
		assert.True(t, bar.Low.IsPos(), "bar %d price stays positive", i)
		if i > 0 {
			assert.Equal(t, first[i-1].Close, bar.Open, "bar %d opens at the previous close", i)
		}
	}

	other, err := h.ProductHistory(ctx, "ETH-USD", start, start.Add(24*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first[23].Close, other[23].Close)
}

func TestHistory_InvalidRequests(t *testing.T) {
	h := NewHistory(1)
	h.maxBars = 10

	_, err := h.ProductHistory(context.Background(), "BTC-USD", start, start.Add(time.Hour), 0)
	assert.ErrorIs(t, err, exchange.ErrInvalidOrder)

	_, err = h.ProductHistory(context.Background(), "BTC-USD", start, start.Add(24*time.Hour), time.Hour)
	assert.ErrorIs(t, err, exchange.ErrInvalidOrder)

	bars, err := h.ProductHistory(context.Background(), "BTC-USD", start, start, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, bars)
}
