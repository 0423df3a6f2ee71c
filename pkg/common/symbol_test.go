package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommon_SplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USD", quote)

	for _, bad := range []string{"BTCUSD", "-USD", "BTC-", "A-B-C"} {
		_, _, err := SplitSymbol(bad)
		assert.Error(t, err, bad)
	}
}

func TestCommon_OrderStatusActive(t *testing.T) {
	assert.True(t, OrderStatusOpen.Active())
	assert.True(t, OrderStatusPending.Active())
	assert.False(t, OrderStatusFilled.Active())
	assert.False(t, OrderStatusCanceled.Active())
}
