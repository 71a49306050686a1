package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Variant 取值。
const (
	VariantSimple       = "simple"
	VariantAntiDrawdown = "anti_drawdown"
)

// DateLayout 为配置及数据库中日期的统一格式。
const DateLayout = "2006-01-02"

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Export    ExportConfig    `mapstructure:"export"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// TradingConfig 描述无限买入策略参数。
type TradingConfig struct {
	Symbol             string  `mapstructure:"symbol"`
	StartDate          string  `mapstructure:"start_date"`
	EndDate            string  `mapstructure:"end_date"`
	InitialFunds       float64 `mapstructure:"initial_funds"`
	Divisions          int     `mapstructure:"divisions"`
	FeeRatePct         float64 `mapstructure:"fee_rate_pct"`
	Compounding        bool    `mapstructure:"compounding"`
	Variant            string  `mapstructure:"variant"`
	CheckAffordability bool    `mapstructure:"check_affordability"`
}

// StartTime 返回解析后的策略起始日。
func (c TradingConfig) StartTime() (time.Time, error) {
	t, err := time.Parse(DateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析 trading.start_date 失败: %w", err)
	}
	return t, nil
}

// EndTime 返回解析后的回测截止日，未配置时返回零值。
func (c TradingConfig) EndTime() (time.Time, error) {
	if c.EndDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, c.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析 trading.end_date 失败: %w", err)
	}
	return t, nil
}

// FeeRate 返回以小数表示的单边手续费率。
func (c TradingConfig) FeeRate() float64 {
	return c.FeeRatePct / 100
}

// BrokerConfig 描述券商接口连接信息。
type BrokerConfig struct {
	AppKey        string      `mapstructure:"app_key"`
	AppSecret     string      `mapstructure:"app_secret"`
	AccountNumber string      `mapstructure:"account_number"`
	AccountCode   string      `mapstructure:"account_code"`
	BaseURL       string      `mapstructure:"base_url"`
	ExchangeCode  string      `mapstructure:"exchange_code"`
	TokenPath     string      `mapstructure:"token_path"`
	Retry         RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ExportConfig 控制报表与订单日志输出目录。
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	OrderLogDir string `mapstructure:"order_log_dir"`
}

// SchedulerConfig 控制定时任务相关参数。
type SchedulerConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Trading.Symbol == "" {
		err = multierr.Append(err, errors.New("trading.symbol 不能为空"))
	}
	if c.Trading.StartDate == "" {
		err = multierr.Append(err, errors.New("trading.start_date 不能为空"))
	} else if _, parseErr := c.Trading.StartTime(); parseErr != nil {
		err = multierr.Append(err, parseErr)
	}
	if c.Trading.EndDate != "" {
		if _, parseErr := c.Trading.EndTime(); parseErr != nil {
			err = multierr.Append(err, parseErr)
		}
	}
	if c.Trading.InitialFunds <= 0 {
		err = multierr.Append(err, errors.New("trading.initial_funds 必须大于0"))
	}
	if c.Trading.Divisions < 1 {
		err = multierr.Append(err, errors.New("trading.divisions 必须大于等于1"))
	}
	if c.Trading.FeeRatePct < 0 {
		err = multierr.Append(err, errors.New("trading.fee_rate_pct 不能为负"))
	}
	switch c.Trading.Variant {
	case VariantSimple, VariantAntiDrawdown:
	default:
		err = multierr.Append(err, fmt.Errorf("trading.variant 不支持: %q", c.Trading.Variant))
	}
	if c.Broker.BaseURL == "" {
		err = multierr.Append(err, errors.New("broker.base_url 不能为空"))
	}
	if c.Broker.ExchangeCode == "" {
		err = multierr.Append(err, errors.New("broker.exchange_code 不能为空"))
	}
	if c.Broker.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("broker.retry.max_attempts 必须大于0"))
	}
	if c.Broker.Retry.MinDelay <= 0 || c.Broker.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("broker.retry.delay 必须为正"))
	}
	if c.Broker.Retry.MinDelay > c.Broker.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("broker.retry.min_delay 不能大于 max_delay"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Export.Dir == "" {
		err = multierr.Append(err, errors.New("export.dir 不能为空"))
	}
	if c.Export.OrderLogDir == "" {
		err = multierr.Append(err, errors.New("export.order_log_dir 不能为空"))
	}
	if c.Scheduler.Timezone == "" {
		err = multierr.Append(err, errors.New("scheduler.timezone 不能为空"))
	} else if _, loadErr := time.LoadLocation(c.Scheduler.Timezone); loadErr != nil {
		err = multierr.Append(err, fmt.Errorf("解析 scheduler.timezone 失败: %w", loadErr))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
