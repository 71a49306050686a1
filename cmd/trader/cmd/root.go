package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"infinite-buy/internal/config"
	"infinite-buy/internal/log"
	"infinite-buy/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "无限买入策略的回测与实盘执行工具",
	Long: `trader 实现杠杆ETF的无限买入（分批定投）策略。

支持以下操作：
  backtest  在本地行情缓存上执行历史回测并导出报表
  project   推算下一个交易日应提交的订单
  morning   早间定时任务：推算订单、保存快照，live 模式下实际下单
  evening   晚间定时任务：拉取当日收盘行情并更新缓存
  backfill  从券商接口回补历史日线行情`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute 运行根命令。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
}

// runtime 聚合各子命令共用的依赖。
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, store: sqliteStore}, nil
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		r.logger.Warn("关闭数据库失败", zap.Error(err))
	}
	_ = r.logger.Sync()
}
