package projector

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"infinite-buy/internal/market"
	"infinite-buy/internal/strategy"
)

// ErrNoData 表示没有可用行情，无法推算次日订单。
var ErrNoData = errors.New("projector: 行情序列为空")

// OrderKind 为订单类型。
type OrderKind string

const (
	// OrderLOCBuy 收盘限价买入。
	OrderLOCBuy OrderKind = "LOC_BUY"
	// OrderLOCSell 收盘限价卖出。
	OrderLOCSell OrderKind = "LOC_SELL"
	// OrderMOCSell 收盘市价卖出，价格字段无意义。
	OrderMOCSell OrderKind = "MOC_SELL"
)

// OrderIntent 为一条可独立提交的订单。
type OrderIntent struct {
	Kind       OrderKind
	Symbol     string
	Quantity   int
	LimitPrice float64
}

// Portfolio 为推算完成时的组合快照。
type Portfolio struct {
	Cash     float64
	Holdings int
	Equity   float64 // 按最后收盘价估值
	OpenLots []strategy.Lot
}

// Ticket 为次日订单票据：一条LOC买单加每个在持批次各一条卖单。
type Ticket struct {
	ReferenceDate  time.Time
	ReferencePrice float64
	Buy            OrderIntent
	Sells          []OrderIntent
	Portfolio      Portfolio
}

// Projector 将实盘路径引擎推进到最近收盘日，再从终态账本推导次日订单。
// 推导只读取引擎输出，不修改任何持久状态，重复执行结果相同。
type Projector struct {
	engine *strategy.Engine
	symbol string
	logger *zap.Logger
}

// New 构建次日订单推算器。实盘路径只使用 simple 变体规则。
func New(params strategy.Params, symbol string, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	params.Variant = strategy.VariantSimple
	return &Projector{
		engine: strategy.NewLiveEngine(params),
		symbol: symbol,
		logger: logger,
	}
}

// Project 从 startIdx 起逐日模拟到序列末尾，返回次日订单票据。
func (p *Projector) Project(series market.Series, startIdx int) (Ticket, error) {
	if len(series) == 0 || startIdx < 0 || startIdx >= len(series) {
		return Ticket{}, ErrNoData
	}

	params := p.engine.Params()
	ledger := strategy.NewLedger(params.InitialFunds)

	for i := startIdx; i < len(series); i++ {
		p.engine.Step(ledger, series[i], series.PrevClose(i))
	}

	last := series[len(series)-1]
	lastClose := last.Close

	budget := p.engine.BuyBudget(ledger.Cash, len(ledger.OpenLots))
	buyQty := strategy.TruncateQty(budget, lastClose)

	ticket := Ticket{
		ReferenceDate:  last.Date,
		ReferencePrice: lastClose,
		Buy: OrderIntent{
			Kind:       OrderLOCBuy,
			Symbol:     p.symbol,
			Quantity:   buyQty,
			LimitPrice: lastClose,
		},
		Portfolio: Portfolio{
			Cash:     ledger.Cash,
			Holdings: ledger.Holdings(),
			Equity:   ledger.Equity(lastClose),
			OpenLots: append([]strategy.Lot(nil), ledger.OpenLots...),
		},
	}

	fee := params.FeeRate
	for _, lot := range ledger.OpenLots {
		if lot.DaysHeld < strategy.BacktestTimeStopDays {
			ticket.Sells = append(ticket.Sells, OrderIntent{
				Kind:       OrderLOCSell,
				Symbol:     p.symbol,
				Quantity:   lot.Quantity,
				LimitPrice: lot.BuyPrice * (1 + 2*fee),
			})
		} else {
			ticket.Sells = append(ticket.Sells, OrderIntent{
				Kind:     OrderMOCSell,
				Symbol:   p.symbol,
				Quantity: lot.Quantity,
			})
		}
	}

	p.logger.Info("次日订单推算完成",
		zap.String("symbol", p.symbol),
		zap.Time("reference_date", ticket.ReferenceDate),
		zap.Int("buy_qty", buyQty),
		zap.Int("sell_orders", len(ticket.Sells)),
		zap.Int("holdings", ticket.Portfolio.Holdings),
	)

	return ticket, nil
}
