package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"infinite-buy/internal/app"
	"infinite-buy/internal/broker"
	"infinite-buy/internal/config"
	"infinite-buy/internal/store"
)

var (
	bfStart string
	bfEnd   string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "从券商接口回补历史日线行情",
	Long: `backfill 按约半年一个窗口并发地从券商接口拉取历史日线，
合并去重后写入本地 SQLite 缓存。回测与订单推算都依赖该缓存。`,
	RunE: runBackfillCmd,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&bfStart, "start", "", "回补起始日（YYYY-MM-DD），默认取配置 trading.start_date 前30天")
	backfillCmd.Flags().StringVar(&bfEnd, "end", "", "回补截止日（YYYY-MM-DD），默认到今天")
}

func runBackfillCmd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	tc := rt.cfg.Trading

	var start time.Time
	if bfStart != "" {
		start, err = time.Parse(config.DateLayout, bfStart)
		if err != nil {
			return fmt.Errorf("解析 --start 失败: %w", err)
		}
	} else {
		start, err = tc.StartTime()
		if err != nil {
			return err
		}
		start = start.AddDate(0, 0, -warmupDays)
	}

	end := time.Now().UTC()
	if bfEnd != "" {
		end, err = time.Parse(config.DateLayout, bfEnd)
		if err != nil {
			return fmt.Errorf("解析 --end 失败: %w", err)
		}
	}

	prices, err := store.NewPriceStore(rt.store, rt.logger)
	if err != nil {
		return err
	}

	client := broker.NewClient(rt.cfg.Broker, rt.logger)
	backfiller, err := app.NewBackfiller(client, prices, rt.logger)
	if err != nil {
		return err
	}

	n, err := backfiller.Run(cmd.Context(), tc.Symbol, start, end)
	if err != nil {
		return err
	}

	fmt.Printf("已回补 %s %d条日线（%s ~ %s）\n",
		tc.Symbol, n, start.Format(config.DateLayout), end.Format(config.DateLayout))
	return nil
}
