package aggregate

import (
	"time"

	"github.com/navid-fn/barpipe/internal/model"
)

// Hourly folds ascending 1-minute bars into hourly bars. Bars group on
// their calendar (date, hour); each output bar is stamped at the hour's
// start. A group flushes when a bar of the next hour arrives, and the
// final open group flushes unconditionally when the input ends.
//
// Turnover and open interest are not carried: the minute sources lack
// turnover and per-hour open interest has no meaningful reduction here,
// so both stay zero as in the stored daily bars.
func (a *Aggregator) Hourly(bars []model.Bar) []model.Bar {
	var (
		out       []model.Bar
		g         group
		hourStart time.Time
		symbol    string
		exchange  string
	)

	flush := func() {
		if g.count == 0 {
			return
		}
		vol, _ := g.volume.Float64()
		out = append(out, model.Bar{
			Symbol:     symbol,
			Exchange:   exchange,
			Datetime:   hourStart,
			Interval:   string(model.IntervalHour),
			Volume:     vol,
			OpenPrice:  g.open,
			HighPrice:  g.high,
			LowPrice:   g.low,
			ClosePrice: g.close,
		})
		g = group{}
	}

	for i := range bars {
		b := &bars[i]
		if !a.valid(b) {
			continue
		}

		h := time.Date(b.Datetime.Year(), b.Datetime.Month(), b.Datetime.Day(),
			b.Datetime.Hour(), 0, 0, 0, b.Datetime.Location())
		if g.count > 0 && !h.Equal(hourStart) {
			flush()
		}
		if g.count == 0 {
			hourStart = h
			symbol = b.Symbol
			exchange = b.Exchange
		}
		g.fold(b)
	}

	flush()
	return out
}
