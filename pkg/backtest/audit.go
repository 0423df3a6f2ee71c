package backtest

import (
	"math"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

const day = 24 * time.Hour

const daysPerYear = 365.0

var maxPercent = fixed.MustParse("1000000000000000")

type valueSnapshot struct {
	value fixed.Point
	t     time.Time
}

// audit collects what the report is computed from: account value over time, fills and
// closed positions.
type audit struct {
	snapshots       []valueSnapshot
	fills           int
	closedPositions []common.PositionClosed
}

func (a *audit) addSnapshot(value fixed.Point, t time.Time) {
	a.snapshots = append(a.snapshots, valueSnapshot{value: value, t: t})
}

func (a *audit) addFill() {
	a.fills++
}

func (a *audit) addClosedPosition(closed common.PositionClosed) {
	a.closedPositions = append(a.closedPositions, closed)
}

func (a *audit) generateReport() Report {
	report := Report{TotalFills: a.fills}
	if len(a.snapshots) == 0 {
		return report
	}

	first, last := a.snapshots[0], a.snapshots[len(a.snapshots)-1]
	report.StartDate = first.t
	report.EndDate = last.t
	report.InitialValue = first.value
	report.FinalValue = last.value

	// --- Return Metrics ---
	if ratio, err := last.value.TryDiv(first.value); err == nil && first.value.IsPos() {
		report.CumulativeReturn = percent(ratio.Sub(fixed.One))

		elapsed := last.t.Sub(first.t)
		if elapsed > 0 && ratio.IsPos() {
			report.CAGR = cagr(ratio, elapsed)
		}
	}

	// --- Max Drawdown ---
	values := make([]fixed.Point, len(a.snapshots))
	for i, snapshot := range a.snapshots {
		values[i] = snapshot.value
	}
	report.MaxDrawdown = percent(fixed.MaxDrawdown(values))

	// --- Trade Statistics ---
	for _, closed := range a.closedPositions {
		report.ClosedPositions++
		if closed.Realized.IsPos() {
			report.WinningTrades++
		} else {
			report.LosingTrades++
		}
		report.RealizedProfit = report.RealizedProfit.Add(closed.Realized)
	}
	if report.ClosedPositions > 0 {
		report.WinRate = percent(fixed.FromInt(report.WinningTrades, 0).DivInt(report.ClosedPositions))
	}

	// --- Risk Metrics: Volatility, Sharpe, Sortino ---
	dailyReturns := a.dailyReturns()
	if len(dailyReturns) > 1 {
		meanReturn := fixed.Mean(dailyReturns)
		vol := fixed.StdDev(dailyReturns, meanReturn)

		if !vol.IsZero() {
			report.Volatility = percent(vol.Mul(fixed.Sqrt365))
			report.SharpeRatio = annualize(fixed.SharpeRatio(dailyReturns, fixed.Zero))
			report.SortinoRatio = annualize(fixed.SortinoRatio(dailyReturns, fixed.Zero))
		}
	}

	return report
}

// cagr annualizes ratio over elapsed. Short windows raise the ratio to large powers, so the
// growth is computed in float64 and reported as zero when it does not fit a decimal.
func cagr(ratio fixed.Point, elapsed time.Duration) fixed.Point {
	growth := math.Pow(ratio.Float(), daysPerYear/(elapsed.Hours()/24))
	annualized, err := fixed.TryFromFloat64((growth - 1) * 100)
	if err != nil || annualized.Abs().Gt(maxPercent) {
		return fixed.Zero
	}
	return annualized.Rescale(2)
}

// percent converts a fraction to percent with two decimals, zero when out of range.
func percent(fraction fixed.Point) fixed.Point {
	v, err := fraction.TryMul(fixed.Hundred)
	if err != nil || v.Abs().Gt(maxPercent) {
		return fixed.Zero
	}
	return v.Rescale(2)
}

func annualize(ratio fixed.Point) fixed.Point {
	v, err := ratio.TryMul(fixed.Sqrt365)
	if err != nil || v.Abs().Gt(maxPercent) {
		return fixed.Zero
	}
	return v.Rescale(5)
}

// dailyReturns resamples the account value to the last value of each UTC day and returns the
// day-over-day changes.
func (a *audit) dailyReturns() []fixed.Point {
	var closes []fixed.Point
	var prevDate time.Time

	for i, snapshot := range a.snapshots {
		currDate := snapshot.t.Truncate(day)
		if i == 0 || currDate.After(prevDate) {
			closes = append(closes, snapshot.value)
			prevDate = currDate
			continue
		}
		closes[len(closes)-1] = snapshot.value
	}

	dailyReturns := make([]fixed.Point, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if !closes[i-1].IsPos() {
			continue
		}
		dailyReturns = append(dailyReturns, closes[i].Div(closes[i-1]).Sub(fixed.One))
	}
	return dailyReturns
}
