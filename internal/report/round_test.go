package report

import "testing"

func TestRoundHalfUpToTwo(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.004, 1.00},
		{1.005, 1.01},
		{1.006, 1.01},
		// 浮点下2.675*100通常略小于267.5，decimal保证进位
		{2.675, 2.68},
		{0.125, 0.13},
		{99.999, 100.00},
		{0, 0},
		// 负数向零截断，-1.006不会舍入到-1.01
		{-1.004, -1.00},
		{-1.005, -1.00},
		{-1.006, -1.00},
		{-1.01, -1.01},
	}

	for _, c := range cases {
		if got := RoundHalfUpToTwo(c.in); got != c.want {
			t.Errorf("RoundHalfUpToTwo(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1234.5, "1234.50"},
		{0, "0.00"},
		{10035.071, "10035.07"},
		{-0.25, "-0.25"},
	}
	for _, c := range cases {
		if got := FormatMoney(c.in); got != c.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatPct(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{2.0202, "2.02%"},
		{-3.456, "-3.45%"},
		{0, "0.00%"},
	}
	for _, c := range cases {
		if got := FormatPct(c.in); got != c.want {
			t.Errorf("FormatPct(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
