package aggregate

import (
	"testing"
	"time"

	"github.com/navid-fn/barpipe/internal/model"
)

// Full night+day session: bars from 21:00 on the 15th through the 14:59
// cutoff on the 16th must collapse into exactly one daily bar stamped
// 15:00 on the 16th, opening at the 21:00 bar and closing at the cutoff.
func TestDailyFullSession(t *testing.T) {
	a := testAggregator(t)

	bars := []model.Bar{
		minuteBar(t, "2024-01-15 21:00:00", 3900, 3905, 3898, 3902, 100),
		minuteBar(t, "2024-01-15 23:00:00", 3902, 3940, 3900, 3935, 150),
		minuteBar(t, "2024-01-16 00:10:00", 3935, 3938, 3920, 3925, 80),
		minuteBar(t, "2024-01-16 02:45:00", 3925, 3930, 3880, 3885, 60),
		minuteBar(t, "2024-01-16 09:00:00", 3885, 3895, 3882, 3890, 200),
		minuteBar(t, "2024-01-16 14:59:00", 3890, 3892, 3887, 3891, 40),
	}

	out := a.Daily(bars)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 daily bar, got %d", len(out))
	}

	d := out[0]
	want := time.Date(2024, 1, 16, 15, 0, 0, 0, time.Local)
	if !d.Datetime.Equal(want) {
		t.Errorf("datetime = %v, want %v", d.Datetime, want)
	}
	if d.OpenPrice != 3900 {
		t.Errorf("open = %v, want the 21:00 bar's open 3900", d.OpenPrice)
	}
	if d.ClosePrice != 3891 {
		t.Errorf("close = %v, want the 14:59 bar's close 3891", d.ClosePrice)
	}
	if d.HighPrice != 3940 {
		t.Errorf("high = %v, want night-session high 3940", d.HighPrice)
	}
	if d.LowPrice != 3880 {
		t.Errorf("low = %v, want post-midnight low 3880", d.LowPrice)
	}
	if d.Volume != 630 {
		t.Errorf("volume = %v, want 630", d.Volume)
	}
	if d.Interval != string(model.IntervalDaily) {
		t.Errorf("interval = %q, want %q", d.Interval, model.IntervalDaily)
	}
}

// An evening session that begins before 21:00 still belongs to the next
// trading day: everything after the 14:59 close rolls forward.
func TestDailyEveningStartBeforeNightSession(t *testing.T) {
	a := testAggregator(t)

	bars := []model.Bar{
		minuteBar(t, "2024-01-15 20:55:00", 3898, 3901, 3896, 3900, 50),
		minuteBar(t, "2024-01-15 23:00:00", 3900, 3940, 3898, 3935, 150),
		minuteBar(t, "2024-01-16 00:10:00", 3935, 3938, 3920, 3925, 80),
		minuteBar(t, "2024-01-16 02:45:00", 3925, 3930, 3880, 3885, 60),
		minuteBar(t, "2024-01-16 09:00:00", 3885, 3895, 3882, 3890, 200),
		minuteBar(t, "2024-01-16 14:59:00", 3890, 3892, 3887, 3891, 40),
	}

	out := a.Daily(bars)
	if len(out) != 1 {
		t.Fatalf("expected one trading day, got %d bars", len(out))
	}
	d := out[0]
	if !d.Datetime.Equal(time.Date(2024, 1, 16, 15, 0, 0, 0, time.Local)) {
		t.Errorf("stamped %v, want 2024-01-16 15:00:00", d.Datetime)
	}
	if d.OpenPrice != 3898 || d.ClosePrice != 3891 {
		t.Errorf("open/close = %v/%v, want 3898/3891", d.OpenPrice, d.ClosePrice)
	}
	if d.Volume != 580 {
		t.Errorf("volume = %v, want 580", d.Volume)
	}
}

// Bars before the day-end cutoff group with their own calendar date while
// the following evening rolls into the next trading day.
func TestDailySessionGrouping(t *testing.T) {
	a := testAggregator(t)

	bars := []model.Bar{
		minuteBar(t, "2024-01-15 09:00:00", 3870, 3880, 3865, 3875, 90),
		minuteBar(t, "2024-01-15 14:59:00", 3875, 3878, 3871, 3876, 30),
		minuteBar(t, "2024-01-15 21:00:00", 3876, 3890, 3875, 3888, 100),
		minuteBar(t, "2024-01-16 02:45:00", 3888, 3892, 3880, 3882, 60),
		minuteBar(t, "2024-01-16 09:00:00", 3882, 3895, 3881, 3890, 200),
		minuteBar(t, "2024-01-16 14:59:00", 3890, 3893, 3888, 3892, 40),
	}

	out := a.Daily(bars)
	if len(out) != 2 {
		t.Fatalf("expected 2 daily bars, got %d", len(out))
	}

	first := out[0]
	if !first.Datetime.Equal(time.Date(2024, 1, 15, 15, 0, 0, 0, time.Local)) {
		t.Errorf("first day stamped %v, want 2024-01-15 15:00:00", first.Datetime)
	}
	if first.ClosePrice != 3876 {
		t.Errorf("first day close = %v, want 3876", first.ClosePrice)
	}

	second := out[1]
	if !second.Datetime.Equal(time.Date(2024, 1, 16, 15, 0, 0, 0, time.Local)) {
		t.Errorf("second day stamped %v, want 2024-01-16 15:00:00", second.Datetime)
	}
	if second.OpenPrice != 3876 {
		t.Errorf("second day open = %v, want the 21:00 bar's open 3876", second.OpenPrice)
	}
	if second.Volume != 400 {
		t.Errorf("second day volume = %v, want 400", second.Volume)
	}
}

// A stream truncated before the cutoff still emits the partial day, using
// the last available bar's own timestamp and close.
func TestDailyPartialDayFlushOnStreamEnd(t *testing.T) {
	a := testAggregator(t)

	bars := []model.Bar{
		minuteBar(t, "2024-01-16 09:00:00", 3885, 3895, 3882, 3890, 200),
		minuteBar(t, "2024-01-16 10:15:00", 3890, 3900, 3889, 3898, 120),
		minuteBar(t, "2024-01-16 11:30:00", 3898, 3902, 3896, 3901, 75),
	}

	out := a.Daily(bars)
	if len(out) != 1 {
		t.Fatalf("partial day must not be dropped, got %d bars", len(out))
	}

	d := out[0]
	want := time.Date(2024, 1, 16, 11, 30, 0, 0, time.Local)
	if !d.Datetime.Equal(want) {
		t.Errorf("partial day stamped %v, want last bar's own time %v", d.Datetime, want)
	}
	if d.ClosePrice != 3901 {
		t.Errorf("close = %v, want last bar's close 3901", d.ClosePrice)
	}
	if d.Volume != 395 {
		t.Errorf("volume = %v, want 395", d.Volume)
	}
}

// A shortened session with no cutoff bar flushes when the next trading
// day's bars begin.
func TestDailyPartialDayFlushOnLabelChange(t *testing.T) {
	a := testAggregator(t)

	bars := []model.Bar{
		minuteBar(t, "2024-01-15 09:00:00", 3870, 3880, 3865, 3875, 90),
		minuteBar(t, "2024-01-15 11:30:00", 3875, 3879, 3872, 3877, 45),
		// No 14:59 bar for the 15th; the next session starts directly.
		minuteBar(t, "2024-01-16 09:00:00", 3877, 3885, 3876, 3880, 150),
		minuteBar(t, "2024-01-16 14:59:00", 3880, 3884, 3878, 3883, 35),
	}

	out := a.Daily(bars)
	if len(out) != 2 {
		t.Fatalf("expected 2 daily bars, got %d", len(out))
	}

	partial := out[0]
	want := time.Date(2024, 1, 15, 11, 30, 0, 0, time.Local)
	if !partial.Datetime.Equal(want) {
		t.Errorf("partial day stamped %v, want %v", partial.Datetime, want)
	}
	if partial.ClosePrice != 3877 {
		t.Errorf("partial close = %v, want 3877", partial.ClosePrice)
	}

	complete := out[1]
	if !complete.Datetime.Equal(time.Date(2024, 1, 16, 15, 0, 0, 0, time.Local)) {
		t.Errorf("complete day stamped %v, want 2024-01-16 15:00:00", complete.Datetime)
	}
}

func TestDailyFlushesAtCutoffInstantly(t *testing.T) {
	a := testAggregator(t)

	bars := []model.Bar{
		minuteBar(t, "2024-01-16 14:58:00", 3880, 3884, 3878, 3882, 20),
		minuteBar(t, "2024-01-16 14:59:00", 3882, 3883, 3881, 3883, 15),
		// Stray settlement-window bar after the cutoff.
		minuteBar(t, "2024-01-16 15:15:00", 3883, 3883, 3883, 3883, 1),
	}

	out := a.Daily(bars)
	if len(out) != 2 {
		t.Fatalf("expected cutoff flush plus trailing partial, got %d bars", len(out))
	}
	if out[0].ClosePrice != 3883 || !out[0].Datetime.Equal(time.Date(2024, 1, 16, 15, 0, 0, 0, time.Local)) {
		t.Errorf("cutoff bar not flushed as the day close: %+v", out[0])
	}
}

func TestDailyEmptyInput(t *testing.T) {
	a := testAggregator(t)
	if out := a.Daily(nil); len(out) != 0 {
		t.Errorf("expected no output for empty input, got %d", len(out))
	}
}
