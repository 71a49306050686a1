package market

import "time"

// PriceBar 代表单个交易日的日线行情。
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Series 为按日期升序排列的日线序列。
type Series []PriceBar

// IndexOnOrAfter 返回首个日期不早于 t 的下标，不存在时返回 len(s)。
func (s Series) IndexOnOrAfter(t time.Time) int {
	for i, bar := range s {
		if !bar.Date.Before(t) {
			return i
		}
	}
	return len(s)
}

// PrevClose 返回第 i 根K线的前收盘价，i==0 时回退为当日收盘价。
func (s Series) PrevClose(i int) float64 {
	if i <= 0 {
		return s[i].Close
	}
	return s[i-1].Close
}

// ChangePct 返回第 i 根K线相对前收盘价的涨跌幅（百分比）。
func (s Series) ChangePct(i int) float64 {
	prev := s.PrevClose(i)
	if prev == 0 {
		return 0
	}
	return (s[i].Close/prev - 1) * 100
}
