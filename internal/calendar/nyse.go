// Package calendar 提供NYSE交易日判定。只覆盖全天休市日，
// 半日市（感恩节次日、平安夜等）仍视为交易日。
package calendar

import "time"

// IsTradingDay 判断给定日期（按美东日历日）是否为NYSE交易日。
func IsTradingDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !isHoliday(d)
}

// NextTradingDay 返回严格晚于 d 的下一个交易日。
func NextTradingDay(d time.Time) time.Time {
	next := d.AddDate(0, 0, 1)
	for !IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func isHoliday(d time.Time) bool {
	y := d.Year()
	for _, h := range holidays(y) {
		if sameDate(d, h) {
			return true
		}
	}
	return false
}

func holidays(year int) []time.Time {
	hs := []time.Time{
		observed(date(year, time.January, 1)),             // 元旦
		nthWeekday(year, time.January, time.Monday, 3),    // 马丁·路德·金纪念日
		nthWeekday(year, time.February, time.Monday, 3),   // 总统日
		goodFriday(year),                                  // 耶稣受难日
		lastWeekday(year, time.May, time.Monday),          // 阵亡将士纪念日
		observed(date(year, time.July, 4)),                // 独立日
		nthWeekday(year, time.September, time.Monday, 1),  // 劳动节
		nthWeekday(year, time.November, time.Thursday, 4), // 感恩节
		observed(date(year, time.December, 25)),           // 圣诞节
	}
	// 六月节自2022年起为联邦假日
	if year >= 2022 {
		hs = append(hs, observed(date(year, time.June, 19)))
	}
	return hs
}

// observed 处理落在周末的固定日期假日：周六提前到周五，周日顺延到周一。
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// goodFriday 为复活节前的周五，复活节按匿名格里高利算法计算。
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	dd := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - dd - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := date(year, time.Month(month), day)
	return easter.AddDate(0, 0, -2)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
