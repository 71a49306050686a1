package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"infinite-buy/internal/app"
	"infinite-buy/internal/backtest"
	"infinite-buy/internal/config"
	"infinite-buy/internal/report"
	"infinite-buy/internal/store"
	"infinite-buy/internal/strategy"
)

// warmupDays 为策略起始日之前额外加载的自然日数，保证首日有前收盘价。
const warmupDays = 30

var (
	btStart string
	btEnd   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "在本地行情缓存上执行历史回测并导出报表",
	Long: `backtest 从本地 SQLite 行情缓存读取日线数据，在指定区间上逐日
执行无限买入策略，导出日度报表与平仓流水两份CSV，并在终端打印
绩效摘要。行情需事先通过 backfill 命令回补。`,
	RunE: runBacktestCmd,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btStart, "start", "", "回测起始日（YYYY-MM-DD），默认取配置 trading.start_date")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "回测截止日（YYYY-MM-DD），默认到缓存中最后一个交易日")
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	tc := rt.cfg.Trading

	if btStart != "" {
		tc.StartDate = btStart
	}
	if btEnd != "" {
		tc.EndDate = btEnd
	}

	startDate, err := tc.StartTime()
	if err != nil {
		return err
	}
	endDate, err := tc.EndTime()
	if err != nil {
		return err
	}
	if endDate.IsZero() {
		endDate = time.Now().UTC()
	}

	prices, err := store.NewPriceStore(rt.store, rt.logger)
	if err != nil {
		return err
	}
	journal, err := store.NewJournal(rt.store, rt.logger)
	if err != nil {
		return err
	}

	series, err := prices.GetPrices(ctx, tc.Symbol, startDate.AddDate(0, 0, -warmupDays), endDate)
	if err != nil {
		return err
	}

	startIdx := series.IndexOnOrAfter(startDate)
	if startIdx >= len(series) {
		return backtest.ErrNoData
	}
	period := len(series) - 1 - startIdx

	engine := strategy.NewBacktestEngine(app.StrategyParams(tc))
	driver, err := backtest.NewDriver(engine, rt.logger)
	if err != nil {
		return err
	}

	result, err := driver.Run(series, startIdx, period)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	prefix := fmt.Sprintf("%s_%s_%s",
		series[startIdx].Date.Format(config.DateLayout),
		series[len(series)-1].Date.Format(config.DateLayout),
		runID[:8],
	)
	dailyPath := filepath.Join(rt.cfg.Export.Dir, prefix+"_daily.csv")
	tradesPath := filepath.Join(rt.cfg.Export.Dir, prefix+"_trades.csv")

	if err := report.WriteDailyReport(dailyPath, dailyRecords(result.Rows)); err != nil {
		return err
	}
	if err := report.WriteTradeLog(tradesPath, tradeRecords(result.Trades)); err != nil {
		return err
	}

	journal.MustRecord(ctx, runID, store.EventBacktest, map[string]interface{}{
		"symbol":  tc.Symbol,
		"start":   series[startIdx].Date.Format(config.DateLayout),
		"end":     series[len(series)-1].Date.Format(config.DateLayout),
		"variant": tc.Variant,
		"metrics": result.Metrics,
	})

	rt.logger.Info("回测报表已导出",
		zap.String("daily", dailyPath),
		zap.String("trades", tradesPath),
	)

	printSummary(tc, result, series[startIdx].Date, series[len(series)-1].Date)
	return nil
}

func dailyRecords(rows []backtest.Row) []report.DailyRecord {
	out := make([]report.DailyRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, report.DailyRecord{
			Date:       r.Date.Format(config.DateLayout),
			Open:       r.Open,
			High:       r.High,
			Close:      r.Close,
			ChangePct:  r.ChangePct,
			Bought:     r.Bought,
			ProfitSold: r.ProfitSold,
			StopSold:   r.StopSold,
			Holdings:   r.Holdings,
			Cash:       r.Cash,
			Equity:     r.Equity,
			ReturnPct:  r.ReturnPct,
			Drawdown:   r.Drawdown,
			Tier:       r.Tier,
			Mode:       r.Mode,
			TotalFee:   r.TotalFee,
		})
	}
	return out
}

func tradeRecords(trades []strategy.ClosedTrade) []report.TradeRecord {
	out := make([]report.TradeRecord, 0, len(trades))
	for _, t := range trades {
		out = append(out, report.TradeRecord{
			LotID:     t.LotID,
			BuyDate:   t.BuyDate.Format(config.DateLayout),
			BuyPrice:  t.BuyPrice,
			Quantity:  t.Quantity,
			SellDate:  t.SellDate.Format(config.DateLayout),
			SellPrice: t.SellPrice,
			DaysHeld:  t.DaysHeld,
			ReturnPct: t.ReturnPct,
			Reason:    string(t.Reason),
			Mode:      t.Mode,
			Tier:      t.Tier,
		})
	}
	return out
}

func printSummary(tc config.TradingConfig, result backtest.Result, start, end time.Time) {
	m := result.Metrics

	fmt.Println("==================================================")
	fmt.Printf("标的: %s  变体: %s\n", tc.Symbol, tc.Variant)
	fmt.Printf("区间: %s ~ %s（%d个交易日）\n",
		start.Format(config.DateLayout), end.Format(config.DateLayout), len(result.Rows))
	fmt.Println("--------------------------------------------------")
	fmt.Printf("初始资金: $%s\n", report.FormatMoney(tc.InitialFunds))
	fmt.Printf("最终资产: $%s\n", report.FormatMoney(m.FinalEquity))
	fmt.Printf("总收益率: %s\n", report.FormatPct(m.TotalReturnPct))
	fmt.Printf("最大回撤: %s\n", report.FormatPct(m.MaxDrawdownPct))
	fmt.Printf("累计手续费: $%s\n", report.FormatMoney(m.TotalFee))
	fmt.Println("--------------------------------------------------")
	fmt.Printf("平仓次数: %d\n", m.TradeCount)
	if m.TradeCount > 0 {
		fmt.Printf("平均持有: %.1f天\n", m.AvgDaysHeld)
		fmt.Printf("平均单笔收益: %s\n", report.FormatPct(m.AvgReturnPct))
		fmt.Printf("胜率: %s\n", report.FormatPct(m.WinRatePct))
	}
	fmt.Printf("期末持仓: %d股，现金 $%s\n",
		result.Ledger.Holdings(), report.FormatMoney(result.Ledger.Cash))
	fmt.Println("==================================================")
}
