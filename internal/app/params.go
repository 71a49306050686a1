package app

import (
	"infinite-buy/internal/config"
	"infinite-buy/internal/strategy"
)

// StrategyParams 将交易配置映射为引擎参数。
func StrategyParams(tc config.TradingConfig) strategy.Params {
	variant := strategy.VariantSimple
	if tc.Variant == config.VariantAntiDrawdown {
		variant = strategy.VariantAntiDrawdown
	}
	return strategy.Params{
		InitialFunds:       tc.InitialFunds,
		Divisions:          tc.Divisions,
		FeeRate:            tc.FeeRate(),
		Compounding:        tc.Compounding,
		Variant:            variant,
		CheckAffordability: tc.CheckAffordability,
	}
}
