package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"infinite-buy/internal/broker"
	"infinite-buy/internal/market"
	"infinite-buy/internal/store"
)

const (
	// backfillChunkDays 为单个回补窗口覆盖的自然日数。
	backfillChunkDays = 180
	// backfillConcurrency 控制并发窗口数，过高会触发接口限流。
	backfillConcurrency = 2
)

// Backfiller 分段并发地从券商接口回补历史日线并写入本地缓存。
type Backfiller struct {
	broker *broker.Client
	prices *store.PriceStore
	logger *zap.Logger
}

// NewBackfiller 构建历史行情回补器。
func NewBackfiller(brk *broker.Client, prices *store.PriceStore, logger *zap.Logger) (*Backfiller, error) {
	if brk == nil {
		return nil, fmt.Errorf("backfill: broker 客户端不能为空")
	}
	if prices == nil {
		return nil, fmt.Errorf("backfill: 行情存储不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{broker: brk, prices: prices, logger: logger}, nil
}

// Run 回补闭区间 [start, end] 内的日线行情，返回写入的K线条数。
func (b *Backfiller) Run(ctx context.Context, symbol string, start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("backfill: 截止日 %s 早于起始日 %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	windows := splitWindows(start, end, backfillChunkDays)
	b.logger.Info("历史行情回补开始",
		zap.String("symbol", symbol),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("windows", len(windows)),
	)

	var (
		mu     sync.Mutex
		merged market.Series
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)

	for _, w := range windows {
		w := w
		g.Go(func() error {
			bars, err := b.broker.GetDailyPrices(gctx, symbol, w.start, w.end)
			if err != nil {
				return fmt.Errorf("backfill: 拉取 %s~%s 失败: %w",
					w.start.Format("2006-01-02"), w.end.Format("2006-01-02"), err)
			}
			mu.Lock()
			merged = append(merged, bars...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	merged = dedupeSorted(merged)
	if len(merged) == 0 {
		b.logger.Warn("回补区间内没有行情数据",
			zap.String("symbol", symbol),
			zap.Time("start", start),
			zap.Time("end", end),
		)
		return 0, nil
	}

	if err := b.prices.SavePrices(ctx, symbol, merged); err != nil {
		return 0, err
	}

	b.logger.Info("历史行情回补完成",
		zap.String("symbol", symbol),
		zap.Int("bars", len(merged)),
		zap.Time("first", merged[0].Date),
		zap.Time("last", merged[len(merged)-1].Date),
	)
	return len(merged), nil
}

type window struct {
	start time.Time
	end   time.Time
}

func splitWindows(start, end time.Time, chunkDays int) []window {
	var ws []window
	for cur := start; !cur.After(end); {
		next := cur.AddDate(0, 0, chunkDays-1)
		if next.After(end) {
			next = end
		}
		ws = append(ws, window{start: cur, end: next})
		cur = next.AddDate(0, 0, 1)
	}
	return ws
}

// dedupeSorted 按日期升序排序并去重，窗口边界上可能出现重复K线。
func dedupeSorted(series market.Series) market.Series {
	if len(series) == 0 {
		return series
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	out := series[:1]
	for _, bar := range series[1:] {
		if bar.Date.Equal(out[len(out)-1].Date) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
