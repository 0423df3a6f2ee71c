package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

func p(s string) fixed.Point {
	return fixed.MustParse(s)
}

func TestSandboxLedger_Seed(t *testing.T) {
	l := NewLedger(map[string]fixed.Point{"USD": p("1000")})

	usd, err := l.Account("USD")
	require.NoError(t, err)
	assert.True(t, usd.Available.Eq(p("1000")))
	assert.True(t, usd.Hold.IsZero())

	btc, err := l.Account("BTC")
	require.NoError(t, err)
	assert.True(t, btc.Available.IsZero())
	assert.Equal(t, []string{"BTC", "USD"}, l.Assets())
}

func TestSandboxLedger_StrictLookup(t *testing.T) {
	l := NewLedger(map[string]fixed.Point{"USD": p("1")}, WithStrictLookup())

	_, err := l.Account("ETH")
	assert.ErrorIs(t, err, exchange.ErrNotFound)

	l.Credit("ETH", p("2"))
	eth, err := l.Account("ETH")
	require.NoError(t, err)
	assert.True(t, eth.Available.Eq(p("2")))
}

func TestSandboxLedger_Reserve(t *testing.T) {
	l := NewLedger(map[string]fixed.Point{"USD": p("100")})

	assert.True(t, l.Reserve("USD", p("60")))
	assert.False(t, l.Reserve("USD", p("60")))
	assert.False(t, l.Reserve("USD", p("-1")))

	usd, _ := l.Account("USD")
	assert.Equal(t, "40", usd.Available.String())
	assert.Equal(t, "60", usd.Hold.String())

	l.ReleaseToAvailable("USD", p("60"))
	usd, _ = l.Account("USD")
	assert.Equal(t, "100", usd.Available.String())
	assert.True(t, usd.Hold.IsZero())
}

func TestSandboxLedger_ReleaseToOther(t *testing.T) {
	l := NewLedger(map[string]fixed.Point{"USD": p("100")})

	require.True(t, l.Reserve("USD", p("100")))
	l.ReleaseToOther("USD", p("100"), "BTC", p("0.995"))

	usd, _ := l.Account("USD")
	btc, _ := l.Account("BTC")
	assert.True(t, usd.Total().IsZero())
	assert.Equal(t, "0.995", btc.Available.String())
}

func TestSandboxLedger_DebitClamps(t *testing.T) {
	l := NewLedger(map[string]fixed.Point{"USD": p("10")})

	shortfall := l.Debit("USD", p("25"))
	assert.Equal(t, "15", shortfall.String())

	usd, _ := l.Account("USD")
	assert.True(t, usd.Available.IsZero())
}

func TestSandboxLedger_Override(t *testing.T) {
	l := NewLedger(map[string]fixed.Point{"USD": p("10")})
	require.True(t, l.Reserve("USD", p("5")))

	l.Override(map[string]fixed.Point{"EUR": p("3")})

	accounts := l.Accounts()
	assert.Len(t, accounts, 1)
	assert.Equal(t, "3", accounts["EUR"].Available.String())
}
