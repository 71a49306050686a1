package cmd

import (
	"github.com/spf13/cobra"

	"infinite-buy/internal/app"
	"infinite-buy/internal/broker"
)

var morningMode string

var morningCmd = &cobra.Command{
	Use:   "morning",
	Short: "早间任务：推算订单、保存快照，live 模式下实际下单",
	Long: `morning 为美股开盘前的定时任务入口。它在本地行情缓存上重放
实盘路径，保存在持批次快照，把次日订单写入订单日志文件，
并在 live 模式下通过券商接口实际提交订单。`,
	RunE: runMorningCmd,
}

func init() {
	rootCmd.AddCommand(morningCmd)

	morningCmd.Flags().StringVar(&morningMode, "mode", string(app.ModeDryRun),
		"运行模式: dry-run（只记录不下单）或 live（实际下单）")
}

func runMorningCmd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	client := broker.NewClient(rt.cfg.Broker, rt.logger)
	trader, err := app.NewDailyTrader(rt.cfg, rt.logger, rt.store, client, app.Mode(morningMode))
	if err != nil {
		return err
	}

	return trader.RunMorning(cmd.Context())
}
