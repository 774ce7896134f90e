// Package aggregate folds ordered 1-minute bars into hourly and daily
// bars. Both folds are stateful stream reductions and require their input
// in strictly ascending timestamp order.
package aggregate

import (
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/navid-fn/barpipe/internal/model"
	"github.com/navid-fn/barpipe/internal/session"
)

// Aggregator converts 1-minute bars into coarser intervals.
type Aggregator struct {
	resolver *session.Resolver
	logger   *slog.Logger
}

// New creates an Aggregator using the given session boundaries.
func New(resolver *session.Resolver, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		logger:   logger,
	}
}

// group is the running reduction for one output bar. Volume is accumulated
// as a decimal to avoid floating drift over very long sessions.
type group struct {
	open   float64
	high   float64
	low    float64
	close  float64
	volume decimal.Decimal
	count  int
}

func (g *group) fold(b *model.Bar) {
	if g.count == 0 {
		g.open = b.OpenPrice
		g.high = b.HighPrice
		g.low = b.LowPrice
	} else {
		g.high = math.Max(g.high, b.HighPrice)
		g.low = math.Min(g.low, b.LowPrice)
	}
	g.close = b.ClosePrice
	g.volume = g.volume.Add(decimal.NewFromFloat(b.Volume))
	g.count++
}

// valid filters corrupted rows so one bad bar never discards the batch.
func (a *Aggregator) valid(b *model.Bar) bool {
	for _, v := range [...]float64{b.OpenPrice, b.HighPrice, b.LowPrice, b.ClosePrice, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			a.logger.Warn("skipping malformed bar",
				"symbol", b.Symbol, "datetime", b.Datetime)
			return false
		}
	}
	return true
}
