package backtest

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"infinite-buy/internal/market"
	"infinite-buy/internal/strategy"
)

// ErrNoData 表示请求区间内没有任何行情数据，调用方应中止本次运行。
var ErrNoData = errors.New("backtest: 行情序列为空")

// Row 为日度报表中的一行。
type Row struct {
	Date       time.Time
	Open       float64
	High       float64
	Close      float64
	ChangePct  float64
	Bought     int
	ProfitSold int
	StopSold   int
	Holdings   int
	Cash       float64
	Equity     float64
	ReturnPct  float64
	Drawdown   float64 // 截至当日的最大回撤（%，非正）
	Tier       int
	Mode       string
	TotalFee   float64
}

// Result 汇总回测结果。
type Result struct {
	Rows    []Row
	Trades  []strategy.ClosedTrade
	Ledger  *strategy.Ledger
	Metrics Metrics
}

// Driver 将引擎按日折叠到完整行情区间上。
type Driver struct {
	engine *strategy.Engine
	logger *zap.Logger
}

// NewDriver 构建回测驱动。
func NewDriver(engine *strategy.Engine, logger *zap.Logger) (*Driver, error) {
	if engine == nil {
		return nil, errors.New("backtest: engine 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{engine: engine, logger: logger}, nil
}

// Run 在闭区间 [startIdx, startIdx+period] 上逐日执行引擎。
// series 应包含预热区间（起始日前约30个自然日）以提供前收盘价。
func (d *Driver) Run(series market.Series, startIdx, period int) (Result, error) {
	if len(series) == 0 || startIdx < 0 || startIdx+period >= len(series) || period < 0 {
		return Result{}, ErrNoData
	}

	params := d.engine.Params()
	ledger := strategy.NewLedger(params.InitialFunds)

	rows := make([]Row, 0, period+1)
	trades := make([]strategy.ClosedTrade, 0)

	peakEquity := 0.0
	maxDrawdown := 0.0

	for i := startIdx; i <= startIdx+period; i++ {
		bar := series[i]
		prevClose := series.PrevClose(i)

		delta := d.engine.Step(ledger, bar, prevClose)
		trades = append(trades, delta.Closed...)

		equity := ledger.Equity(bar.Close)
		if equity > peakEquity {
			peakEquity = equity
		}
		if peakEquity > 0 {
			dd := (equity - peakEquity) / peakEquity * 100
			if dd < maxDrawdown {
				maxDrawdown = dd
			}
		}

		endTier := len(ledger.OpenLots)
		mode := strategy.ModeInvesting
		if endTier >= 6 {
			mode = strategy.ModeRecovery
		}

		rows = append(rows, Row{
			Date:       bar.Date,
			Open:       bar.Open,
			High:       bar.High,
			Close:      bar.Close,
			ChangePct:  series.ChangePct(i),
			Bought:     delta.Bought,
			ProfitSold: delta.ProfitSold,
			StopSold:   delta.StopSold,
			Holdings:   ledger.Holdings(),
			Cash:       ledger.Cash,
			Equity:     equity,
			ReturnPct:  (equity/params.InitialFunds - 1) * 100,
			Drawdown:   maxDrawdown,
			Tier:       endTier,
			Mode:       mode,
			TotalFee:   ledger.TotalFee,
		})
	}

	lastClose := series[startIdx+period].Close
	metrics := calculateMetrics(rows, trades, ledger, lastClose, params.InitialFunds)

	d.logger.Info("回测完成",
		zap.Int("days", len(rows)),
		zap.Int("trades", len(trades)),
		zap.Float64("final_equity", metrics.FinalEquity),
		zap.Float64("total_return_pct", metrics.TotalReturnPct),
	)

	return Result{
		Rows:    rows,
		Trades:  trades,
		Ledger:  ledger,
		Metrics: metrics,
	}, nil
}
