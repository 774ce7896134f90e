package model

import (
	"errors"
	"testing"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
	}{
		{"1m", IntervalMinute},
		{"minute", IntervalMinute},
		{"MIN", IntervalMinute},
		{"1h", IntervalHour},
		{"hourly", IntervalHour},
		{"d", IntervalDaily},
		{"1d", IntervalDaily},
		{" daily ", IntervalDaily},
	}
	for _, c := range cases {
		got, err := ParseInterval(c.in)
		if err != nil {
			t.Errorf("ParseInterval(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseInterval(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseIntervalRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "5m", "week", "tick"} {
		if _, err := ParseInterval(in); !errors.Is(err, ErrConfiguration) {
			t.Errorf("ParseInterval(%q) err = %v, want ErrConfiguration", in, err)
		}
	}
}

func TestCommodityCode(t *testing.T) {
	cases := []struct{ symbol, want string }{
		{"rb2401", "rb"},
		{"SR405", "SR"},
		{"m2405", "m"},
		{"IF2403", "IF"},
		{"sc2402", "sc"},
	}
	for _, c := range cases {
		if got := CommodityCode(c.symbol); got != c.want {
			t.Errorf("CommodityCode(%q) = %q, want %q", c.symbol, got, c.want)
		}
	}
}

func TestInferExchange(t *testing.T) {
	cases := []struct{ symbol, want string }{
		{"rb2401", "SHFE"},
		{"m2405", "DCE"},
		{"SR405", "CZCE"},
		{"sc2402", "INE"},
		{"IF2403", "CFFEX"},
		{"zz9999", ""},
	}
	for _, c := range cases {
		if got := InferExchange(c.symbol); got != c.want {
			t.Errorf("InferExchange(%q) = %q, want %q", c.symbol, got, c.want)
		}
	}
}

func TestVtSymbol(t *testing.T) {
	b := Bar{Symbol: "rb2401", Exchange: "SHFE"}
	if got := b.VtSymbol(); got != "rb2401.SHFE" {
		t.Errorf("VtSymbol() = %q, want rb2401.SHFE", got)
	}
}
