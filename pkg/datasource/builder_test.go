package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

func TestBarBuilder_Construct(t *testing.T) {
	router := bus.NewRouter(zap.NewNop(), 16)
	var bars []common.Bar
	router.OnBar = func(_ context.Context, bar common.Bar) { bars = append(bars, bar) }

	builder := NewBarBuilder(zap.NewNop(), router, WithBars("btc-usd", time.Minute))
	ctx := context.Background()

	ticks := []struct {
		offset time.Duration
		price  string
	}{
		{5 * time.Second, "100"},
		{20 * time.Second, "103"},
		{40 * time.Second, "98"},
		{59 * time.Second, "101"},
		{61 * time.Second, "102"},
	}
	for _, tk := range ticks {
		builder.OnTick(ctx, common.Tick{Symbol: "BTC-USD", Price: p(tk.price), TimeStamp: start.Add(tk.offset)})
	}
	builder.OnTick(ctx, common.Tick{Symbol: "ETH-USD", Price: p("1"), TimeStamp: start})
	router.Drain(ctx)

	require.Len(t, bars, 1)
	bar := bars[0]
	assert.Equal(t, "BTC-USD", bar.Symbol)
	assert.Equal(t, start, bar.TimeStamp)
	assert.Equal(t, time.Minute, bar.Period)
	assert.Equal(t, "100", bar.Open.String())
	assert.Equal(t, "103", bar.High.String())
	assert.Equal(t, "98", bar.Low.String())
	assert.Equal(t, "101", bar.Close.String())

	builder.Flush()
	router.Drain(ctx)
	require.Len(t, bars, 2)
	assert.Equal(t, start.Add(time.Minute), bars[1].TimeStamp)
	assert.Equal(t, "102", bars[1].Close.String())
}
