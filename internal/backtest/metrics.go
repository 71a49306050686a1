package backtest

import (
	"infinite-buy/internal/report"
	"infinite-buy/internal/strategy"
)

// Metrics 记录回测绩效指标。
type Metrics struct {
	TotalReturnPct float64 // 四舍五入到两位小数
	FinalEquity    float64
	MaxDrawdownPct float64 // 非正
	TradeCount     int
	AvgDaysHeld    float64
	AvgReturnPct   float64
	WinRatePct     float64
	TotalFee       float64
}

func calculateMetrics(rows []Row, trades []strategy.ClosedTrade, ledger *strategy.Ledger, lastClose, initialFunds float64) Metrics {
	finalEquity := ledger.Equity(lastClose)

	totalReturn := 0.0
	if initialFunds > 0 {
		totalReturn = report.RoundHalfUpToTwo((finalEquity/initialFunds - 1) * 100)
	}

	maxDD := 0.0
	if len(rows) > 0 {
		maxDD = rows[len(rows)-1].Drawdown
	}

	m := Metrics{
		TotalReturnPct: totalReturn,
		FinalEquity:    finalEquity,
		MaxDrawdownPct: maxDD,
		TradeCount:     len(trades),
		TotalFee:       ledger.TotalFee,
	}

	if len(trades) == 0 {
		return m
	}

	var daysSum, returnSum float64
	wins := 0
	for _, t := range trades {
		daysSum += float64(t.DaysHeld)
		returnSum += t.ReturnPct
		if t.ReturnPct > 0 {
			wins++
		}
	}
	m.AvgDaysHeld = daysSum / float64(len(trades))
	m.AvgReturnPct = returnSum / float64(len(trades))
	m.WinRatePct = float64(wins) / float64(len(trades)) * 100

	return m
}
