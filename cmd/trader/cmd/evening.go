package cmd

import (
	"github.com/spf13/cobra"

	"infinite-buy/internal/app"
	"infinite-buy/internal/broker"
)

var eveningCmd = &cobra.Command{
	Use:   "evening",
	Short: "晚间任务：拉取当日收盘行情并更新缓存",
	Long: `evening 为美股收盘后的定时任务入口。它从券商接口拉取
当日日线并写入本地行情缓存，供次日早间任务使用。`,
	RunE: runEveningCmd,
}

func init() {
	rootCmd.AddCommand(eveningCmd)
}

func runEveningCmd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	client := broker.NewClient(rt.cfg.Broker, rt.logger)
	trader, err := app.NewDailyTrader(rt.cfg, rt.logger, rt.store, client, app.ModeUpdateOnly)
	if err != nil {
		return err
	}

	return trader.RunEvening(cmd.Context())
}
