package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "infbuy"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("trading.symbol", "SOXL")
	v.SetDefault("trading.initial_funds", 10000)
	v.SetDefault("trading.divisions", 7)
	v.SetDefault("trading.fee_rate_pct", 0.25)
	v.SetDefault("trading.compounding", true)
	v.SetDefault("trading.variant", VariantSimple)
	v.SetDefault("trading.check_affordability", false)

	v.SetDefault("broker.base_url", "https://openapi.koreainvestment.com:9443")
	v.SetDefault("broker.account_code", "01")
	v.SetDefault("broker.exchange_code", "AMS")
	v.SetDefault("broker.token_path", "data/kis_token.json")
	v.SetDefault("broker.retry.max_attempts", 3)
	v.SetDefault("broker.retry.min_delay", "5s")
	v.SetDefault("broker.retry.max_delay", "60s")

	v.SetDefault("database.path", "data/trading.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.order_log_dir", "logs")

	v.SetDefault("scheduler.timezone", "America/New_York")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
