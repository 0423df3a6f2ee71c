package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

func TestExchangeSymbolInfo_NormalizeSize(t *testing.T) {
	info := SymbolInfo{
		Symbol:        "BTC-USD",
		BaseMinSize:   fixed.MustParse("0.001"),
		BaseMaxSize:   fixed.MustParse("100"),
		BaseIncrement: fixed.MustParse("0.001"),
	}

	size, err := info.NormalizeSize(fixed.MustParse("0.123456"))
	require.NoError(t, err)
	assert.Equal(t, "0.123", size.String())

	_, err = info.NormalizeSize(fixed.MustParse("0.0009"))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = info.NormalizeSize(fixed.MustParse("101"))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = info.NormalizeSize(fixed.MustParse("999999999999999999"))
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestExchangeSymbolInfo_NormalizePrice(t *testing.T) {
	info := SymbolInfo{
		Symbol:         "BTC-USD",
		PriceIncrement: fixed.MustParse("0.01"),
		MinPrice:       fixed.MustParse("1"),
	}

	price, err := info.NormalizePrice(fixed.MustParse("100.129"))
	require.NoError(t, err)
	assert.Equal(t, "100.12", price.String())

	_, err = info.NormalizePrice(fixed.MustParse("0.5"))
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestExchangeSymbols_OrderFilter(t *testing.T) {
	symbols := NewSymbols(SymbolInfo{Symbol: "eth-usd"})

	info, err := symbols.OrderFilter("ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, "ETH", info.BaseAsset)
	assert.Equal(t, "USD", info.QuoteAsset)

	_, err = symbols.OrderFilter("SOL-USD")
	assert.ErrorIs(t, err, ErrNotFound)
}
