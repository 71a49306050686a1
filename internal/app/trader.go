package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"infinite-buy/internal/broker"
	"infinite-buy/internal/calendar"
	"infinite-buy/internal/config"
	"infinite-buy/internal/projector"
	"infinite-buy/internal/report"
	"infinite-buy/internal/store"
)

// Mode 控制每日任务的执行方式。
type Mode string

const (
	// ModeDryRun 计算并记录订单但不提交。
	ModeDryRun Mode = "dry-run"
	// ModeLive 计算订单并实际提交到券商。
	ModeLive Mode = "live"
	// ModeUpdateOnly 只更新行情缓存。
	ModeUpdateOnly Mode = "update-only"
)

// warmupDays 为策略起始日之前需要加载的自然日数，保证首日有前收盘价。
const warmupDays = 30

// DailyTrader 驱动每日定时任务：早间推算并提交订单，晚间更新收盘行情。
type DailyTrader struct {
	cfg     *config.Config
	logger  *zap.Logger
	broker  *broker.Client
	prices  *store.PriceStore
	lots    *store.LotStore
	journal *store.Journal
	loc     *time.Location
	mode    Mode
}

// NewDailyTrader 构建每日任务执行器。
func NewDailyTrader(cfg *config.Config, logger *zap.Logger, st *store.Store, brk *broker.Client, mode Mode) (*DailyTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prices, err := store.NewPriceStore(st, logger)
	if err != nil {
		return nil, err
	}
	lots, err := store.NewLotStore(st, logger)
	if err != nil {
		return nil, err
	}
	journal, err := store.NewJournal(st, logger)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}

	switch mode {
	case ModeDryRun, ModeLive, ModeUpdateOnly:
	default:
		return nil, fmt.Errorf("不支持的运行模式: %q", mode)
	}

	return &DailyTrader{
		cfg:     cfg,
		logger:  logger,
		broker:  brk,
		prices:  prices,
		lots:    lots,
		journal: journal,
		loc:     loc,
		mode:    mode,
	}, nil
}

// usDate 返回美东时区的当前日历日。
func (t *DailyTrader) usDate() time.Time {
	now := time.Now().In(t.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// RunMorning 执行早间任务：推算次日订单、保存批次快照、记录订单日志，
// live 模式下提交订单。
func (t *DailyTrader) RunMorning(ctx context.Context) error {
	runID := uuid.NewString()
	symbol := t.cfg.Trading.Symbol
	usToday := t.usDate()

	t.logger.Info("早间任务开始",
		zap.String("run_id", runID),
		zap.String("mode", string(t.mode)),
		zap.Time("us_date", usToday),
	)

	if !calendar.IsTradingDay(usToday) {
		t.logger.Info("美股今日休市", zap.Time("us_date", usToday))
		return nil
	}

	ticket, err := t.calculateOrders(ctx, usToday)
	if err != nil {
		t.journal.RecordError(ctx, runID, "订单推算失败", err)
		return err
	}

	if err := t.lots.SaveLots(ctx, symbol, ticket.Portfolio.OpenLots); err != nil {
		t.journal.RecordError(ctx, runID, "保存批次快照失败", err)
		return err
	}

	t.journal.MustRecord(ctx, runID, store.EventProjection, ticket)

	if err := t.appendOrderLog(usToday, ticket); err != nil {
		t.logger.Warn("写入订单日志文件失败", zap.Error(err))
	}

	if t.mode != ModeLive {
		t.logger.Info("非实盘模式，订单未提交", zap.String("mode", string(t.mode)))
		return nil
	}

	return t.submitOrders(ctx, runID, ticket)
}

func (t *DailyTrader) calculateOrders(ctx context.Context, usToday time.Time) (projector.Ticket, error) {
	startDate, err := t.cfg.Trading.StartTime()
	if err != nil {
		return projector.Ticket{}, err
	}

	loadStart := startDate.AddDate(0, 0, -warmupDays)
	endDate := usToday.AddDate(0, 0, -1)

	series, err := t.prices.GetPrices(ctx, t.cfg.Trading.Symbol, loadStart, endDate)
	if err != nil {
		return projector.Ticket{}, err
	}
	if len(series) == 0 {
		return projector.Ticket{}, projector.ErrNoData
	}

	proj := projector.New(StrategyParams(t.cfg.Trading), t.cfg.Trading.Symbol, t.logger)
	return proj.Project(series, series.IndexOnOrAfter(startDate))
}

func (t *DailyTrader) submitOrders(ctx context.Context, runID string, ticket projector.Ticket) error {
	type submission struct {
		kind  broker.OrderKind
		qty   int
		price float64
	}

	var subs []submission
	if ticket.Buy.Quantity > 0 {
		subs = append(subs, submission{broker.OrderLOCBuy, ticket.Buy.Quantity, ticket.Buy.LimitPrice})
	}
	for _, sell := range ticket.Sells {
		kind := broker.OrderLOCSell
		price := sell.LimitPrice
		if sell.Kind == projector.OrderMOCSell {
			kind = broker.OrderMOCSell
			price = 0
		}
		subs = append(subs, submission{kind, sell.Quantity, price})
	}

	succeeded := 0
	for _, sub := range subs {
		result, err := t.broker.PlaceOrder(ctx, sub.kind, t.cfg.Trading.Symbol, sub.qty, sub.price)
		if err != nil {
			t.journal.RecordError(ctx, runID, "提交订单失败", err)
			return err
		}
		t.journal.MustRecord(ctx, runID, store.EventOrderSubmit, map[string]interface{}{
			"kind":     sub.kind,
			"quantity": sub.qty,
			"price":    sub.price,
			"result":   result,
		})
		if result.Success {
			succeeded++
		}
	}

	t.logger.Info("订单提交完成",
		zap.String("run_id", runID),
		zap.Int("succeeded", succeeded),
		zap.Int("total", len(subs)),
	)
	return nil
}

// appendOrderLog 把当日订单追加写入文本日志，便于人工复核。
func (t *DailyTrader) appendOrderLog(usToday time.Time, ticket projector.Ticket) error {
	dir := t.cfg.Export.OrderLogDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("orders_%s.txt", usToday.Format("20060102")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "\n==================================================\n")
	fmt.Fprintf(f, "Time: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "US Date: %s\n", usToday.Format(config.DateLayout))
	fmt.Fprintf(f, "Mode: %s\n", t.mode)
	fmt.Fprintf(f, "Buy Order (LOC): %d shares @ $%s\n", ticket.Buy.Quantity, report.FormatMoney(ticket.Buy.LimitPrice))
	for _, sell := range ticket.Sells {
		if sell.Kind == projector.OrderMOCSell {
			fmt.Fprintf(f, "Sell Order (MOC): %d shares\n", sell.Quantity)
		} else {
			fmt.Fprintf(f, "Sell Order (LOC): %d shares @ $%s\n", sell.Quantity, report.FormatMoney(sell.LimitPrice))
		}
	}
	return nil
}

// RunEvening 执行晚间任务：拉取当日收盘行情并更新本地缓存。
func (t *DailyTrader) RunEvening(ctx context.Context) error {
	runID := uuid.NewString()
	symbol := t.cfg.Trading.Symbol
	usToday := t.usDate()

	t.logger.Info("晚间任务开始",
		zap.String("run_id", runID),
		zap.Time("us_date", usToday),
	)

	if !calendar.IsTradingDay(usToday) {
		t.logger.Info("美股今日休市", zap.Time("us_date", usToday))
		return nil
	}

	bars, err := t.broker.GetDailyPrices(ctx, symbol, usToday, usToday)
	if err != nil {
		t.journal.RecordError(ctx, runID, "拉取收盘行情失败", err)
		return err
	}
	if len(bars) == 0 {
		t.logger.Warn("当日暂无收盘数据", zap.Time("us_date", usToday))
		return nil
	}

	if err := t.prices.SavePrices(ctx, symbol, bars); err != nil {
		t.journal.RecordError(ctx, runID, "更新行情缓存失败", err)
		return err
	}

	t.journal.MustRecord(ctx, runID, store.EventPriceUpdate, map[string]interface{}{
		"symbol": symbol,
		"date":   bars[len(bars)-1].Date.Format(config.DateLayout),
		"close":  bars[len(bars)-1].Close,
	})

	t.logger.Info("收盘行情已更新",
		zap.String("symbol", symbol),
		zap.Float64("close", bars[len(bars)-1].Close),
	)
	return nil
}
