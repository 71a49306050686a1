package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"infinite-buy/internal/app"
	"infinite-buy/internal/config"
	"infinite-buy/internal/projector"
	"infinite-buy/internal/report"
	"infinite-buy/internal/store"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "推算下一个交易日应提交的订单",
	Long: `project 从策略起始日起在本地行情缓存上重放实盘路径，
然后打印下一个交易日应提交的订单票据：一条LOC买单，
加每个在持批次各一条卖单。只读操作，不会下单也不会修改状态。`,
	RunE: runProjectCmd,
}

func init() {
	rootCmd.AddCommand(projectCmd)
}

func runProjectCmd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	tc := rt.cfg.Trading

	startDate, err := tc.StartTime()
	if err != nil {
		return err
	}

	prices, err := store.NewPriceStore(rt.store, rt.logger)
	if err != nil {
		return err
	}

	series, err := prices.GetPrices(ctx, tc.Symbol,
		startDate.AddDate(0, 0, -warmupDays), time.Now().UTC())
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return projector.ErrNoData
	}

	proj := projector.New(app.StrategyParams(tc), tc.Symbol, rt.logger)
	ticket, err := proj.Project(series, series.IndexOnOrAfter(startDate))
	if err != nil {
		return err
	}

	printTicket(ticket)
	return nil
}

func printTicket(t projector.Ticket) {
	fmt.Println("==================================================")
	fmt.Printf("参考日: %s  参考收盘价: $%s\n",
		t.ReferenceDate.Format(config.DateLayout), report.FormatMoney(t.ReferencePrice))
	fmt.Printf("现金: $%s  持仓: %d股  总资产: $%s\n",
		report.FormatMoney(t.Portfolio.Cash),
		t.Portfolio.Holdings,
		report.FormatMoney(t.Portfolio.Equity))
	fmt.Println("--------------------------------------------------")

	if t.Buy.Quantity > 0 {
		fmt.Printf("买单 (LOC): %d股 @ $%s\n", t.Buy.Quantity, report.FormatMoney(t.Buy.LimitPrice))
	} else {
		fmt.Println("买单: 无（分割数用尽或预算不足）")
	}

	if len(t.Sells) == 0 {
		fmt.Println("卖单: 无在持批次")
	}
	for _, s := range t.Sells {
		if s.Kind == projector.OrderMOCSell {
			fmt.Printf("卖单 (MOC): %d股（到期止损）\n", s.Quantity)
		} else {
			fmt.Printf("卖单 (LOC): %d股 @ $%s\n", s.Quantity, report.FormatMoney(s.LimitPrice))
		}
	}
	fmt.Println("==================================================")
}
