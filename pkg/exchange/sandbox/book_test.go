package sandbox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
)

func limitOrder(symbol string, side common.OrderSide, price, size string) common.Order {
	return common.Order{
		Symbol:     symbol,
		Side:       side,
		Type:       common.OrderTypeLimit,
		LimitPrice: p(price),
		Size:       p(size),
	}
}

func TestSandboxBook_Validate(t *testing.T) {
	tests := []struct {
		name  string
		order common.Order
	}{
		{"missing symbol", common.Order{Side: common.OrderSideBuy, Type: common.OrderTypeMarket, Size: p("1")}},
		{"bad side", common.Order{Symbol: "BTC-USD", Side: "hold", Type: common.OrderTypeMarket, Size: p("1")}},
		{"zero size", common.Order{Symbol: "BTC-USD", Side: common.OrderSideBuy, Type: common.OrderTypeMarket, Size: p("0")}},
		{"limit without price", limitOrder("BTC-USD", common.OrderSideBuy, "0", "1")},
		{"unknown type", common.Order{Symbol: "BTC-USD", Side: common.OrderSideBuy, Type: "iceberg", Size: p("1")}},
	}

	b := NewBook()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Place(tt.order, common.OrderStatusOpen)
			assert.ErrorIs(t, err, exchange.ErrInvalidOrder)
		})
	}
	assert.Equal(t, 0, b.Len())
}

func TestSandboxBook_PlaceCancel(t *testing.T) {
	b := NewBook()

	order, err := b.Place(limitOrder("BTC-USD", common.OrderSideBuy, "50", "1"), common.OrderStatusOpen)
	require.NoError(t, err)
	assert.Len(t, order.Id, 36)
	assert.Equal(t, common.OrderStatusOpen, order.Status)

	canceled, err := b.Cancel(order.Id)
	require.NoError(t, err)
	assert.Equal(t, common.OrderStatusCanceled, canceled.Status)

	_, err = b.Cancel(order.Id)
	assert.ErrorIs(t, err, exchange.ErrNotFound)

	got, err := b.Get(order.Id)
	require.NoError(t, err)
	assert.Equal(t, common.OrderStatusCanceled, got.Status)
	assert.Empty(t, b.Open(""))
}

func TestSandboxBook_MarketPriceZeroed(t *testing.T) {
	b := NewBook()
	order, err := b.Place(common.Order{
		Symbol:     "BTC-USD",
		Side:       common.OrderSideSell,
		Type:       common.OrderTypeMarket,
		Size:       p("1"),
		LimitPrice: p("123"),
	}, common.OrderStatusOpen)
	require.NoError(t, err)
	assert.True(t, order.LimitPrice.IsZero())
}

func TestSandboxBook_Fill(t *testing.T) {
	b := NewBook()
	order, err := b.Place(limitOrder("BTC-USD", common.OrderSideSell, "110", "2"), common.OrderStatusOpen)
	require.NoError(t, err)

	filled, err := b.Fill(order.Id, Fill{Price: p("110"), Size: p("2"), Value: p("220"), Fee: p("1.1")})
	require.NoError(t, err)
	assert.Equal(t, common.OrderStatusFilled, filled.Status)
	assert.Equal(t, "220", filled.ExecutedValue.String())

	_, err = b.Cancel(order.Id)
	assert.ErrorIs(t, err, exchange.ErrNotFound)
	_, err = b.Fill(order.Id, Fill{})
	assert.ErrorIs(t, err, exchange.ErrNotFound)
}

func TestSandboxBook_OpenFiltersBySymbol(t *testing.T) {
	b := NewBook()
	_, _ = b.Place(limitOrder("BTC-USD", common.OrderSideBuy, "1", "1"), common.OrderStatusOpen)
	_, _ = b.Place(limitOrder("ETH-USD", common.OrderSideBuy, "1", "1"), common.OrderStatusOpen)
	_, _ = b.Place(limitOrder("BTC-USD", common.OrderSideBuy, "2", "1"), common.OrderStatusOpen)

	assert.Len(t, b.Open("BTC-USD"), 2)
	assert.Len(t, b.Open(""), 3)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, b.Symbols())
}

func TestProperty_BookInsertionOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBook()
		n := rapid.IntRange(1, 40).Draw(t, "orders")

		var expected []string
		for i := 0; i < n; i++ {
			order, err := b.Place(limitOrder("BTC-USD", common.OrderSideBuy, fmt.Sprint(i+1), "1"), common.OrderStatusOpen)
			if err != nil {
				t.Fatal(err)
			}
			if rapid.Bool().Draw(t, "cancel") {
				if _, err := b.Cancel(order.Id); err != nil {
					t.Fatal(err)
				}
				continue
			}
			expected = append(expected, order.Id)
		}

		open := b.Open("BTC-USD")
		if len(open) != len(expected) {
			t.Fatalf("expected %d open orders, got %d", len(expected), len(open))
		}
		for i, order := range open {
			if order.Id != expected[i] {
				t.Fatalf("order %d out of insertion order", i)
			}
		}
	})
}
