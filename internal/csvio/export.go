package csvio

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/navid-fn/barpipe/internal/model"
	"github.com/navid-fn/barpipe/internal/storage"
)

// ExportCSV writes stored bars for the key and range to w using the
// platform's interchange column order.
func ExportCSV(ctx context.Context, store storage.BarStore, w io.Writer,
	symbol, exchange string, interval model.Interval, start, end time.Time) (int, error) {

	bars, err := store.QueryBars(ctx, symbol, exchange, interval, start, end)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	header := []string{
		"symbol", "exchange", "datetime",
		"open", "high", "low", "close",
		"volume", "turnover", "open_interest",
	}
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	for i := range bars {
		b := &bars[i]
		rec := []string{
			b.Symbol,
			b.Exchange,
			b.Datetime.Format(datetimeLayout),
			formatFloat(b.OpenPrice),
			formatFloat(b.HighPrice),
			formatFloat(b.LowPrice),
			formatFloat(b.ClosePrice),
			formatFloat(b.Volume),
			formatFloat(b.Turnover),
			formatFloat(b.OpenInterest),
		}
		if err := writer.Write(rec); err != nil {
			return 0, err
		}
	}

	writer.Flush()
	return len(bars), writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
