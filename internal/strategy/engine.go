package strategy

import (
	"math"

	"infinite-buy/internal/market"
)

// Variant 选择规则集。
type Variant string

const (
	// VariantSimple 为基础"跌买涨卖"规则集。
	VariantSimple Variant = "simple"
	// VariantAntiDrawdown 为带回次数自适应阈值的防沉没规则集。
	VariantAntiDrawdown Variant = "anti_drawdown"
)

// 时间止损天数。回测与实盘路径阈值不一致，策略本身即如此，保留为两个常量。
const (
	BacktestTimeStopDays = 39
	LiveTimeStopDays     = 40
)

// maxTier 为防沉没变体阈值计算使用的回次数上限。
const maxTier = 6

// Params 定义一次模拟所需的策略参数。
type Params struct {
	InitialFunds float64
	Divisions    int
	FeeRate      float64 // 单边手续费率（小数）
	Compounding  bool
	Variant      Variant
	// CheckAffordability 控制 simple 变体回测路径买入前是否检查资金充足。
	CheckAffordability bool
}

// rules 固化回测路径与实盘路径之间的行为差异。
type rules struct {
	timeStopDays int
	seedDaysHeld int
	// affordability 为 simple 变体买入是否检查资金，防沉没变体始终检查。
	affordability bool
	// fullCashFallback 控制复利预算在分割数用尽时回退为全部现金还是不再买入。
	fullCashFallback bool
}

// Engine 按日推进账本状态，纯计算，无任何 I/O。
type Engine struct {
	params Params
	rules  rules
}

// NewBacktestEngine 构建历史回测路径的引擎。
func NewBacktestEngine(p Params) *Engine {
	return &Engine{
		params: p,
		rules: rules{
			timeStopDays:     BacktestTimeStopDays,
			seedDaysHeld:     0,
			affordability:    p.CheckAffordability,
			fullCashFallback: false,
		},
	}
}

// NewLiveEngine 构建次日下单路径的引擎。
// 与回测路径的差异：止损阈值40天、买入当日持有天数记为1、
// 买入前检查资金、复利预算回退为全部现金。
func NewLiveEngine(p Params) *Engine {
	return &Engine{
		params: p,
		rules: rules{
			timeStopDays:     LiveTimeStopDays,
			seedDaysHeld:     1,
			affordability:    true,
			fullCashFallback: true,
		},
	}
}

// Params 返回引擎参数。
func (e *Engine) Params() Params {
	return e.params
}

// TimeStopDays 返回该路径的时间止损阈值。
func (e *Engine) TimeStopDays() int {
	return e.rules.timeStopDays
}

// BuyBudget 返回当日单回次买入预算。复利时按剩余分割数摊分现金，
// 分割数用尽时按路径规则回退。
func (e *Engine) BuyBudget(cash float64, openCount int) float64 {
	if !e.params.Compounding {
		return e.params.InitialFunds / float64(e.params.Divisions)
	}
	if e.params.Divisions > openCount {
		return cash / float64(e.params.Divisions-openCount)
	}
	if e.rules.fullCashFallback {
		return cash
	}
	return 0
}

// Step 以当日K线推进账本一个交易日，返回当日变化。
// 先对每个批次按买入顺序做老化与卖出判定，再做一次买入判定。
// 回次数、买入预算均在当日开始时冻结。
func (e *Engine) Step(led *Ledger, bar market.PriceBar, prevClose float64) DayDelta {
	if e.params.Variant == VariantAntiDrawdown {
		return e.stepAntiDrawdown(led, bar, prevClose)
	}
	return e.stepSimple(led, bar, prevClose)
}

func (e *Engine) stepSimple(led *Ledger, bar market.PriceBar, prevClose float64) DayDelta {
	fee := e.params.FeeRate
	price := bar.Close
	delta := DayDelta{Date: bar.Date}

	startCount := len(led.OpenLots)
	budget := e.BuyBudget(led.Cash, startCount)

	kept := led.OpenLots[:0]
	for i := range led.OpenLots {
		lot := led.OpenLots[i]
		lot.DaysHeld++

		target := lot.BuyPrice * (1 + 2*fee)
		switch {
		case price >= target:
			e.closeLot(led, &delta, lot, bar, CloseProfit, "", 0)
		case lot.DaysHeld >= e.rules.timeStopDays:
			e.closeLot(led, &delta, lot, bar, CloseTimeStop, "", 0)
		default:
			kept = append(kept, lot)
		}
	}
	led.OpenLots = kept

	if price <= prevClose && startCount < e.params.Divisions {
		qty := TruncateQty(budget, prevClose)
		if qty > 0 {
			cost := float64(qty) * price * (1 + fee)
			if !e.rules.affordability || led.Cash >= cost {
				e.openLot(led, &delta, bar, qty, price)
			}
		}
	}

	return delta
}

func (e *Engine) stepAntiDrawdown(led *Ledger, bar market.PriceBar, prevClose float64) DayDelta {
	fee := e.params.FeeRate
	price := bar.Close

	// 阈值与预算全部基于当日开始时的回次数，当日内的平仓不回灌。
	startTier := len(led.OpenLots)
	tier := startTier
	if tier > maxTier {
		tier = maxTier
	}
	locBuy := 1.06 - 0.01*float64(tier)
	locSell := 1.125 - 0.02*float64(tier)
	maxHoldDays := 30 - 3*tier
	mode := ModeInvesting
	if tier >= maxTier {
		mode = ModeRecovery
	}

	var budget float64
	if e.params.Compounding {
		if e.params.Divisions > startTier {
			budget = led.Cash / float64(e.params.Divisions-startTier)
		} else {
			budget = led.Cash
		}
	} else {
		budget = e.params.InitialFunds / float64(e.params.Divisions)
	}

	delta := DayDelta{Date: bar.Date, Tier: startTier, Mode: mode}

	kept := led.OpenLots[:0]
	for i := range led.OpenLots {
		lot := led.OpenLots[i]
		lot.DaysHeld++

		target := lot.BuyPrice * locSell
		switch {
		case price >= target:
			e.closeLot(led, &delta, lot, bar, CloseProfit, mode, startTier)
		case lot.DaysHeld >= maxHoldDays:
			e.closeLot(led, &delta, lot, bar, CloseTimeStop, mode, startTier)
		default:
			kept = append(kept, lot)
		}
	}
	led.OpenLots = kept

	trigger := prevClose * locBuy
	if price <= trigger {
		qty := TruncateQty(budget, trigger)
		if qty > 0 && led.Cash >= float64(qty)*price*(1+fee) {
			e.openLot(led, &delta, bar, qty, price)
		}
	}

	return delta
}

func (e *Engine) closeLot(led *Ledger, delta *DayDelta, lot Lot, bar market.PriceBar, reason CloseReason, mode string, tier int) {
	price := bar.Close
	proceeds := float64(lot.Quantity) * price
	feeAmount := proceeds * e.params.FeeRate

	led.Cash += proceeds - feeAmount
	led.TotalFee += feeAmount

	returnPct := 0.0
	if lot.BuyPrice != 0 {
		returnPct = (price/lot.BuyPrice - 1) * 100
	}

	switch reason {
	case CloseProfit:
		delta.ProfitSold += lot.Quantity
	case CloseTimeStop:
		delta.StopSold += lot.Quantity
	}

	delta.Closed = append(delta.Closed, ClosedTrade{
		LotID:     lot.ID,
		BuyDate:   lot.BuyDate,
		BuyPrice:  lot.BuyPrice,
		Quantity:  lot.Quantity,
		SellDate:  bar.Date,
		SellPrice: price,
		DaysHeld:  lot.DaysHeld,
		ReturnPct: returnPct,
		Reason:    reason,
		Mode:      mode,
		Tier:      tier,
	})
}

func (e *Engine) openLot(led *Ledger, delta *DayDelta, bar market.PriceBar, qty int, price float64) {
	cost := float64(qty) * price
	feeAmount := cost * e.params.FeeRate

	led.Cash -= cost + feeAmount
	led.TotalFee += feeAmount
	led.OpenLots = append(led.OpenLots, Lot{
		ID:       led.NextLotID,
		BuyDate:  bar.Date,
		BuyPrice: price,
		Quantity: qty,
		DaysHeld: e.rules.seedDaysHeld,
	})
	led.NextLotID++
	delta.Bought += qty
}

// TruncateQty 将预算按价格换算为整数股数，向零截断。
// 非法价格或预算直接返回0，保证退化行情下不会崩溃。
func TruncateQty(budget, price float64) int {
	if price <= 0 || budget <= 0 {
		return 0
	}
	q := budget / price
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return int(q)
}
