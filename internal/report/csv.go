package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DailyRecord 为日度报表的一行，调用方负责从回测结果映射。
type DailyRecord struct {
	Date       string
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
	Drawdown   float64
	Tier       int
	Mode       string
	TotalFee   float64
}

// TradeRecord 为平仓流水的一行。
type TradeRecord struct {
	LotID     int
	BuyDate   string
	BuyPrice  float64
	Quantity  int
	SellDate  string
	SellPrice float64
	DaysHeld  int
	ReturnPct float64
	Reason    string
	Mode      string
	Tier      int
}

// WriteDailyReport 将日度报表写为CSV文件。
func WriteDailyReport(path string, rows []DailyRecord) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"date", "open", "high", "close", "change_pct",
		"loc_buy", "profit_sell", "moc_stop",
		"holdings", "cash", "equity", "return_pct", "mdd_pct",
		"tier", "mode", "total_fee",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.Date,
			money(r.Open),
			money(r.High),
			money(r.Close),
			pct(r.ChangePct),
			strconv.Itoa(r.Bought),
			strconv.Itoa(r.ProfitSold),
			strconv.Itoa(r.StopSold),
			strconv.Itoa(r.Holdings),
			money(r.Cash),
			money(r.Equity),
			pct(r.ReturnPct),
			pct(r.Drawdown),
			strconv.Itoa(r.Tier),
			r.Mode,
			money(r.TotalFee),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteTradeLog 将平仓流水写为CSV文件。
func WriteTradeLog(path string, trades []TradeRecord) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"lot_id", "buy_date", "buy_price", "quantity",
		"sell_date", "sell_price", "days_held", "return_pct",
		"reason", "mode", "tier",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		record := []string{
			strconv.Itoa(t.LotID),
			t.BuyDate,
			money(t.BuyPrice),
			strconv.Itoa(t.Quantity),
			t.SellDate,
			money(t.SellPrice),
			strconv.Itoa(t.DaysHeld),
			pct(t.ReturnPct),
			t.Reason,
			t.Mode,
			strconv.Itoa(t.Tier),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("report: 创建输出目录失败: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: 创建输出文件失败: %w", err)
	}
	return f, nil
}

func money(v float64) string {
	return strconv.FormatFloat(RoundHalfUpToTwo(v), 'f', 2, 64)
}

func pct(v float64) string {
	return strconv.FormatFloat(RoundHalfUpToTwo(v), 'f', 2, 64)
}
