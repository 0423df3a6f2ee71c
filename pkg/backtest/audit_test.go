package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

func TestAudit_GenerateReport(t *testing.T) {
	a := &audit{}
	for i, value := range []string{"100", "120", "90", "110"} {
		a.addSnapshot(p(value), start.Add(time.Duration(i)*day))
	}
	a.addFill()
	a.addFill()
	a.addClosedPosition(common.PositionClosed{Realized: p("15")})
	a.addClosedPosition(common.PositionClosed{Realized: p("-5")})

	report := a.generateReport()
	assert.Equal(t, start, report.StartDate)
	assert.Equal(t, start.Add(3*day), report.EndDate)
	assert.Equal(t, "10", report.CumulativeReturn.String())
	assert.Equal(t, "25", report.MaxDrawdown.String())
	assert.Equal(t, 2, report.TotalFills)
	assert.Equal(t, 2, report.ClosedPositions)
	assert.Equal(t, 1, report.WinningTrades)
	assert.Equal(t, "50", report.WinRate.String())
	assert.Equal(t, "10", report.RealizedProfit.String())
	assert.True(t, report.Volatility.IsPos())
	assert.True(t, report.CAGR.IsPos())

	report.Print(zap.NewNop())
}

func TestAudit_DailyReturnsUseLastValuePerDay(t *testing.T) {
	a := &audit{}
	a.addSnapshot(p("100"), start)
	a.addSnapshot(p("150"), start.Add(12*time.Hour))
	a.addSnapshot(p("200"), start.Add(day))
	a.addSnapshot(p("300"), start.Add(day+time.Hour))

	returns := a.dailyReturns()
	require.Len(t, returns, 1)
	assert.True(t, returns[0].Eq(fixed.One))
}

func TestAudit_EmptyReport(t *testing.T) {
	report := (&audit{}).generateReport()
	assert.True(t, report.FinalValue.IsZero())
	assert.True(t, report.CAGR.IsZero())
}

func TestAudit_ShortWindowReport(t *testing.T) {
	tests := []struct {
		name       string
		final      string
		elapsed    time.Duration
		cumulative string
		annualized bool
	}{
		{"half a day", "1001", 12 * time.Hour, "0.1", true},
		{"one day doubling", "2000", day, "100", false},
		{"one hour", "1050", time.Hour, "5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &audit{}
			a.addSnapshot(p("1000"), start)
			a.addSnapshot(p(tt.final), start.Add(tt.elapsed))

			var report Report
			require.NotPanics(t, func() { report = a.generateReport() })
			assert.Equal(t, tt.cumulative, report.CumulativeReturn.String())
			assert.Equal(t, tt.annualized, report.CAGR.IsPos())
		})
	}
}
