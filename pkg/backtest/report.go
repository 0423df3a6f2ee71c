package backtest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Report summarizes a replay. Percentages are expressed in percent, ratios are annualized
// over 365 days of daily returns.
type Report struct {
	StartDate        time.Time
	EndDate          time.Time
	InitialValue     fixed.Point
	FinalValue       fixed.Point
	CumulativeReturn fixed.Point
	CAGR             fixed.Point
	MaxDrawdown      fixed.Point
	Volatility       fixed.Point
	SharpeRatio      fixed.Point
	SortinoRatio     fixed.Point
	TotalFills       int
	ClosedPositions  int
	WinningTrades    int
	LosingTrades     int
	WinRate          fixed.Point
	RealizedProfit   fixed.Point
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.Time("start", report.StartDate),
		zap.Time("end", report.EndDate),
		zap.String("initial_value", report.InitialValue.String()),
		zap.String("final_value", report.FinalValue.String()),
		zap.String("cumulative_return", fmt.Sprintf("%s%%", report.CumulativeReturn.String())),
		zap.String("cagr", fmt.Sprintf("%s%%", report.CAGR.String())),
		zap.String("max_drawdown", fmt.Sprintf("%s%%", report.MaxDrawdown.String())),
	)

	logger.Info("trade statistics",
		zap.Int("total_fills", report.TotalFills),
		zap.Int("closed_positions", report.ClosedPositions),
		zap.Int("winning_trades", report.WinningTrades),
		zap.Int("losing_trades", report.LosingTrades),
		zap.String("win_rate", fmt.Sprintf("%s%%", report.WinRate.String())),
		zap.String("realized_profit", report.RealizedProfit.String()),
	)

	logger.Info("risk metrics",
		zap.String("sharpe_ratio", report.SharpeRatio.String()),
		zap.String("sortino_ratio", report.SortinoRatio.String()),
		zap.String("volatility", fmt.Sprintf("%s%%", report.Volatility.String())),
	)
}
