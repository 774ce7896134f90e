// Package csvio moves 1-minute bar data between converted CSV files and
// the bar store. The CSV layout is the converter's output: a header of
// datetime,open,high,low,close,volume,turnover,open_interest with local
// wall-clock datetimes.
package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/barpipe/internal/model"
	"github.com/navid-fn/barpipe/internal/storage"
)

// FileSuffix is the naming convention of converted 1-minute CSV files,
// e.g. rb2401_1min.csv.
const FileSuffix = "_1min.csv"

const datetimeLayout = "2006-01-02 15:04:05"

// NewLogger builds the logrus logger used on the import side.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// Importer reads converted CSV files into the 1-minute store.
type Importer struct {
	store  storage.BarStore
	logger *logrus.Logger
}

func NewImporter(store storage.BarStore, logger *logrus.Logger) *Importer {
	return &Importer{store: store, logger: logger}
}

// ImportResult summarizes one file import.
type ImportResult struct {
	Start   time.Time
	End     time.Time
	Rows    int
	Skipped int
}

// ImportFile reads one converted CSV into the 1-minute store. Rows that
// fail datetime or numeric parsing are skipped and counted; a single bad
// row never discards the file. Overlapping rows replace their stored
// counterparts, so re-importing a grown file is safe.
func (im *Importer) ImportFile(ctx context.Context, path, symbol, exchange string) (ImportResult, error) {
	var res ImportResult

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	// Some converted files carry stray NUL bytes; strip them before parsing.
	clean := strings.ReplaceAll(string(data), "\x00", "")

	reader := csv.NewReader(strings.NewReader(clean))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return res, nil
	}

	head := headerIndex(records[0])
	rows := records
	if head != nil {
		rows = records[1:]
	} else {
		// Headerless files use the converter's fixed column order.
		head = map[string]int{
			"datetime": 0, "open": 1, "high": 2, "low": 3,
			"close": 4, "volume": 5, "turnover": 6, "open_interest": 7,
		}
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, rec := range rows {
		bar, err := parseRow(rec, head, symbol, exchange)
		if err != nil {
			res.Skipped++
			im.logger.Warnf("skipping row in %s: %v", filepath.Base(path), err)
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return res, nil
	}

	if err := im.store.UpsertBars(ctx, bars); err != nil {
		return res, err
	}

	res.Rows = len(bars)
	res.Start = bars[0].Datetime
	res.End = bars[len(bars)-1].Datetime

	// Keep the 1-minute overview in step with what was just written.
	count, start, end, err := im.store.OverviewStats(ctx, symbol, exchange, model.IntervalMinute)
	if err != nil {
		return res, err
	}
	if count > 0 {
		err = im.store.UpsertOverview(ctx, model.Overview{
			Symbol: symbol, Exchange: exchange, Interval: string(model.IntervalMinute),
			Count: count, Start: start, End: end,
		})
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

// ImportDir imports every converted CSV in dir. The contract symbol comes
// from the file name and the exchange from its commodity code; files with
// an unknown commodity are skipped. With force set, existing 1-minute rows
// for each contract are deleted before the import. A failing file is
// logged and the scan continues.
func (im *Importer) ImportDir(ctx context.Context, dir string, force bool) (imported, errs int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read target dir %s: %v", model.ErrConfiguration, dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), FileSuffix) {
			files = append(files, e.Name())
		}
	}
	im.logger.Infof("found %d converted files in %s", len(files), dir)

	for i, name := range files {
		symbol := strings.TrimSuffix(name, FileSuffix)
		exchange := model.InferExchange(symbol)
		if exchange == "" {
			im.logger.Warnf("[%d/%d] unknown commodity code for %s, skipping", i+1, len(files), symbol)
			continue
		}

		if force {
			deleted, err := im.store.DeleteBars(ctx, symbol, exchange, model.IntervalMinute)
			if err != nil {
				im.logger.Errorf("delete old rows for %s.%s: %v", symbol, exchange, err)
				errs++
				continue
			}
			if deleted > 0 {
				im.logger.Infof("deleted %d existing 1m rows for %s.%s", deleted, symbol, exchange)
			}
		}

		res, err := im.ImportFile(ctx, filepath.Join(dir, name), symbol, exchange)
		if err != nil {
			im.logger.Errorf("[%d/%d] import %s failed: %v", i+1, len(files), name, err)
			errs++
			continue
		}

		im.logger.Infof("[%d/%d] imported %s.%s: %d rows (%d skipped)",
			i+1, len(files), symbol, exchange, res.Rows, res.Skipped)
		imported++
	}

	return imported, errs, nil
}

func headerIndex(rec []string) map[string]int {
	idx := make(map[string]int, len(rec))
	for i, name := range rec {
		idx[strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := idx["datetime"]; !ok {
		return nil
	}
	return idx
}

func parseRow(rec []string, head map[string]int, symbol, exchange string) (model.Bar, error) {
	field := func(name string) string {
		i, ok := head[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	dt, err := time.ParseInLocation(datetimeLayout, field("datetime"), time.Local)
	if err != nil {
		return model.Bar{}, fmt.Errorf("%w: bad datetime %q", model.ErrMalformedBar, field("datetime"))
	}

	num := func(name string) (float64, error) {
		s := field(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad %s %q", model.ErrMalformedBar, name, s)
		}
		return v, nil
	}

	bar := model.Bar{
		Symbol:   symbol,
		Exchange: exchange,
		Datetime: dt,
		Interval: string(model.IntervalMinute),
	}
	if bar.OpenPrice, err = num("open"); err != nil {
		return model.Bar{}, err
	}
	if bar.HighPrice, err = num("high"); err != nil {
		return model.Bar{}, err
	}
	if bar.LowPrice, err = num("low"); err != nil {
		return model.Bar{}, err
	}
	if bar.ClosePrice, err = num("close"); err != nil {
		return model.Bar{}, err
	}
	if bar.Volume, err = num("volume"); err != nil {
		return model.Bar{}, err
	}
	if bar.Turnover, err = num("turnover"); err != nil {
		return model.Bar{}, err
	}
	if bar.OpenInterest, err = num("open_interest"); err != nil {
		return model.Bar{}, err
	}
	return bar, nil
}
