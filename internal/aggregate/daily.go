package aggregate

import (
	"time"

	"github.com/navid-fn/barpipe/internal/model"
)

// Daily folds ascending 1-minute bars into session-aware daily bars. Bars
// group on their trading-day label, so an evening session spanning
// midnight lands in the same day as the day session that follows it.
//
// A day flushes the instant its day-end cutoff bar is folded; the output
// bar is stamped on the cutoff bar's calendar date at the configured daily
// stamp time and closes at the cutoff bar's close. A day that never
// reaches the cutoff (shortened session, truncated stream) flushes when
// the trading-day label changes or the input ends, stamped with the last
// seen bar's own timestamp. The stamp mismatch between complete and
// partial days is long-standing observed behavior that downstream
// consumers rely on; do not normalize it here.
func (a *Aggregator) Daily(bars []model.Bar) []model.Bar {
	var (
		out      []model.Bar
		g        group
		label    time.Time
		last     model.Bar
		symbol   string
		exchange string
	)

	flush := func(stamp time.Time, closePrice float64) {
		if g.count == 0 {
			return
		}
		vol, _ := g.volume.Float64()
		out = append(out, model.Bar{
			Symbol:     symbol,
			Exchange:   exchange,
			Datetime:   stamp,
			Interval:   string(model.IntervalDaily),
			Volume:     vol,
			OpenPrice:  g.open,
			HighPrice:  g.high,
			LowPrice:   g.low,
			ClosePrice: closePrice,
		})
		g = group{}
	}

	for i := range bars {
		b := &bars[i]
		if !a.valid(b) {
			continue
		}

		day := a.resolver.TradingDay(b.Datetime)
		if g.count > 0 && !day.Equal(label) {
			// Day ended without a cutoff bar; emit the partial day.
			flush(last.Datetime, last.ClosePrice)
		}
		if g.count == 0 {
			label = day
			symbol = b.Symbol
			exchange = b.Exchange
		}
		g.fold(b)
		last = *b

		if a.resolver.IsDayEnd(b.Datetime) {
			flush(a.resolver.DailyStamp(b.Datetime), b.ClosePrice)
		}
	}

	// Dangling partial day at stream end.
	flush(last.Datetime, last.ClosePrice)
	return out
}
