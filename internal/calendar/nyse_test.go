package calendar

import (
	"testing"
	"time"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestIsTradingDay(t *testing.T) {
	cases := []struct {
		name string
		date time.Time
		want bool
	}{
		{"ordinary weekday", d(2024, time.March, 12), true},
		{"saturday", d(2024, time.March, 16), false},
		{"sunday", d(2024, time.March, 17), false},
		{"new year", d(2024, time.January, 1), false},
		{"mlk day 2024", d(2024, time.January, 15), false},
		{"presidents day 2024", d(2024, time.February, 19), false},
		{"good friday 2024", d(2024, time.March, 29), false},
		{"memorial day 2024", d(2024, time.May, 27), false},
		{"juneteenth 2024", d(2024, time.June, 19), false},
		{"independence day 2024", d(2024, time.July, 4), false},
		{"labor day 2024", d(2024, time.September, 2), false},
		{"thanksgiving 2024", d(2024, time.November, 28), false},
		{"christmas 2024", d(2024, time.December, 25), false},
		// 2023年元旦是周日，顺延到周一休市
		{"new year observed monday", d(2023, time.January, 2), false},
		// 2026年独立日是周六，提前到周五休市
		{"july 4 observed friday", d(2026, time.July, 3), false},
		// 六月节2022年才成为假日
		{"juneteenth before 2022", d(2021, time.June, 18), true},
		// 感恩节次日是半日市，仍视为交易日
		{"black friday 2024", d(2024, time.November, 29), true},
	}

	for _, c := range cases {
		if got := IsTradingDay(c.date); got != c.want {
			t.Errorf("%s (%s): IsTradingDay = %v, want %v",
				c.name, c.date.Format("2006-01-02"), got, c.want)
		}
	}
}

func TestNextTradingDay(t *testing.T) {
	cases := []struct {
		from time.Time
		want time.Time
	}{
		// 普通周中
		{d(2024, time.March, 12), d(2024, time.March, 13)},
		// 跨周末
		{d(2024, time.March, 15), d(2024, time.March, 18)},
		// 耶稣受难日加周末，周四直接跳到下周一
		{d(2024, time.March, 28), d(2024, time.April, 1)},
		// 平安夜收盘后，圣诞节休市
		{d(2024, time.December, 24), d(2024, time.December, 26)},
	}

	for _, c := range cases {
		if got := NextTradingDay(c.from); !got.Equal(c.want) {
			t.Errorf("NextTradingDay(%s) = %s, want %s",
				c.from.Format("2006-01-02"), got.Format("2006-01-02"), c.want.Format("2006-01-02"))
		}
	}
}
