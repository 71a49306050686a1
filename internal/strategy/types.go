package strategy

import "time"

// CloseReason 表示持仓批次被平掉的原因。
type CloseReason string

const (
	// CloseProfit 表示达到止盈目标价卖出。
	CloseProfit CloseReason = "profit"
	// CloseTimeStop 表示超过最大持有天数后按收盘价无条件卖出。
	CloseTimeStop CloseReason = "time_stop"
)

// 模式标签，防沉没变体依据当日起始回次数区分。
const (
	ModeInvesting = "investing"
	ModeRecovery  = "recovery"
)

// Lot 代表一笔独立管理的买入批次，批次只会整体卖出。
type Lot struct {
	ID       int       `json:"id"`
	BuyDate  time.Time `json:"buy_date"`
	BuyPrice float64   `json:"buy_price"`
	Quantity int       `json:"quantity"`
	DaysHeld int       `json:"days_held"`
}

// Ledger 为单次模拟的全部可变状态。
type Ledger struct {
	Cash      float64
	OpenLots  []Lot
	NextLotID int
	TotalFee  float64
}

// NewLedger 以初始资金创建空账本。
func NewLedger(initialFunds float64) *Ledger {
	return &Ledger{
		Cash:      initialFunds,
		NextLotID: 1,
	}
}

// Holdings 返回当前持有的股票总数。
func (l *Ledger) Holdings() int {
	total := 0
	for _, lot := range l.OpenLots {
		total += lot.Quantity
	}
	return total
}

// Equity 返回按给定价格计算的总资产。
func (l *Ledger) Equity(price float64) float64 {
	return l.Cash + float64(l.Holdings())*price
}

// ClosedTrade 记录一次完整的批次平仓。
type ClosedTrade struct {
	LotID     int
	BuyDate   time.Time
	BuyPrice  float64
	Quantity  int
	SellDate  time.Time
	SellPrice float64
	DaysHeld  int
	ReturnPct float64
	Reason    CloseReason
	Mode      string
	Tier      int
}

// DayDelta 汇总单个交易日内引擎产生的变化。
type DayDelta struct {
	Date       time.Time
	Bought     int
	ProfitSold int
	StopSold   int
	Closed     []ClosedTrade
	Tier       int
	Mode       string
}
