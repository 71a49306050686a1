package report

import "github.com/shopspring/decimal"

// RoundHalfUpToTwo 四舍五入到两位小数，0.5一律进位（非银行家舍入）。
// 负数向零截断，与原始报表口径保持一致。
func RoundHalfUpToTwo(v float64) float64 {
	d := decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100))
	truncated := d.Truncate(0)
	if d.Sub(truncated).GreaterThanOrEqual(decimal.NewFromFloat(0.5)) {
		truncated = truncated.Add(decimal.NewFromInt(1))
	}
	out, _ := truncated.Div(decimal.NewFromInt(100)).Float64()
	return out
}

// RoundToCents 将价格对齐到 0.01 美元报价单位。
func RoundToCents(v float64) float64 {
	return RoundHalfUpToTwo(v)
}

// FormatMoney 以两位小数输出金额。
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(RoundHalfUpToTwo(v)).StringFixed(2)
}

// FormatPct 以两位小数输出百分比并附加百分号。
func FormatPct(v float64) string {
	return decimal.NewFromFloat(RoundHalfUpToTwo(v)).StringFixed(2) + "%"
}
