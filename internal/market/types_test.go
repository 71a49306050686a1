package market

import (
	"math"
	"testing"
	"time"
)

func testSeries() Series {
	s := Series{}
	for i, c := range []float64{100, 98, 99} {
		s = append(s, PriceBar{
			Date:  time.Date(2024, time.January, (i+1)*2, 0, 0, 0, 0, time.UTC),
			Close: c,
		})
	}
	return s
}

func TestIndexOnOrAfter(t *testing.T) {
	s := testSeries()

	cases := []struct {
		day  int
		want int
	}{
		{1, 0},
		{2, 0},
		{3, 1},
		{4, 1},
		{6, 2},
		{7, 3}, // 晚于全部K线
	}
	for _, c := range cases {
		at := time.Date(2024, time.January, c.day, 0, 0, 0, 0, time.UTC)
		if got := s.IndexOnOrAfter(at); got != c.want {
			t.Errorf("IndexOnOrAfter(day %d) = %d, want %d", c.day, got, c.want)
		}
	}
}

func TestPrevCloseAndChangePct(t *testing.T) {
	s := testSeries()

	// 首根K线没有前收盘价，回退为自身收盘价，涨跌幅为0
	if got := s.PrevClose(0); got != 100 {
		t.Errorf("PrevClose(0) = %f, want 100", got)
	}
	if got := s.ChangePct(0); got != 0 {
		t.Errorf("ChangePct(0) = %f, want 0", got)
	}

	if got := s.PrevClose(1); got != 100 {
		t.Errorf("PrevClose(1) = %f, want 100", got)
	}
	if got := s.ChangePct(1); math.Abs(got-(-2)) > 1e-9 {
		t.Errorf("ChangePct(1) = %f, want -2", got)
	}
	want := (99.0/98.0 - 1) * 100
	if got := s.ChangePct(2); math.Abs(got-want) > 1e-9 {
		t.Errorf("ChangePct(2) = %f, want %f", got, want)
	}
}
