// Package storage provides the SQLite-backed bar store used by the
// aggregation pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/navid-fn/barpipe/internal/model"
)

// BarStore defines the persistence contract for OHLCV bars and their
// overview rows. Every call is individually transactional; cross-call
// atomicity is the caller's responsibility.
type BarStore interface {
	// QueryMinuteBars returns all 1-minute bars for the key ascending by
	// datetime. When since is non-nil only bars strictly after it are
	// returned, so the boundary bar is never reprocessed.
	QueryMinuteBars(ctx context.Context, symbol, exchange string, since *time.Time) ([]model.Bar, error)

	// QueryBars returns bars for the key whose datetime falls within
	// [start, end], ascending.
	QueryBars(ctx context.Context, symbol, exchange string, interval model.Interval, start, end time.Time) ([]model.Bar, error)

	// InsertBars batch-inserts bars. Constraint violations surface as
	// errors; callers must delete conflicting rows first.
	InsertBars(ctx context.Context, bars []model.Bar) error

	// UpsertBars batch-inserts bars, replacing rows that collide on the
	// (symbol, exchange, interval, datetime) key. Used by the CSV
	// importer, where re-reading an overlapping file must not fail.
	UpsertBars(ctx context.Context, bars []model.Bar) error

	// DeleteBars removes every bar for the key and reports how many
	// rows went away.
	DeleteBars(ctx context.Context, symbol, exchange string, interval model.Interval) (int64, error)

	// CountExisting reports the number of bars stored for the key.
	CountExisting(ctx context.Context, symbol, exchange string, interval model.Interval) (int64, error)

	// LastTimestamp returns the newest bar datetime for the key, or nil
	// when the key has no rows.
	LastTimestamp(ctx context.Context, symbol, exchange string, interval model.Interval) (*time.Time, error)

	// OverviewStats recomputes COUNT/MIN/MAX over the bar table for the
	// key. count is zero when the key has no rows.
	OverviewStats(ctx context.Context, symbol, exchange string, interval model.Interval) (count int64, start, end time.Time, err error)

	// UpsertOverview writes the summary row for the key, replacing any
	// existing one.
	UpsertOverview(ctx context.Context, ov model.Overview) error

	// ListOverviews returns every overview row.
	ListOverviews(ctx context.Context) ([]model.Overview, error)

	// ListSymbolsWithInterval returns each (symbol, exchange) holding
	// bars of the interval together with its row count.
	ListSymbolsWithInterval(ctx context.Context, interval model.Interval) ([]SymbolCount, error)

	// Close releases database resources.
	Close() error
}

// SymbolCount is one entry of ListSymbolsWithInterval.
type SymbolCount struct {
	Symbol   string
	Exchange string
	Count    int64
}

type gormBarStore struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and returns a BarStore.
func Open(path string) (BarStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", model.ErrStore, path, err)
	}
	return &gormBarStore{db: db}, nil
}

// NewGormBarStore wraps an existing gorm connection. Used by tests and the
// status API which share one handle.
func NewGormBarStore(db *gorm.DB) BarStore {
	return &gormBarStore{db: db}
}

func (s *gormBarStore) QueryMinuteBars(ctx context.Context, symbol, exchange string, since *time.Time) ([]model.Bar, error) {
	var bars []model.Bar
	q := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(model.IntervalMinute))
	if since != nil {
		q = q.Where("datetime > ?", *since)
	}
	if err := q.Order("datetime").Find(&bars).Error; err != nil {
		return nil, fmt.Errorf("%w: query minute bars %s.%s: %v", model.ErrStore, symbol, exchange, err)
	}
	return bars, nil
}

func (s *gormBarStore) QueryBars(ctx context.Context, symbol, exchange string, interval model.Interval, start, end time.Time) ([]model.Bar, error) {
	var bars []model.Bar
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval)).
		Where("datetime >= ? AND datetime <= ?", start, end).
		Order("datetime").
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query bars %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, err)
	}
	return bars, nil
}

// InsertBars retries on SQLITE_BUSY with capped exponential backoff; any
// other failure (constraint violations included) returns immediately.
func (s *gormBarStore) InsertBars(ctx context.Context, bars []model.Bar) error {
	return s.writeBars(ctx, bars, false)
}

func (s *gormBarStore) UpsertBars(ctx context.Context, bars []model.Bar) error {
	return s.writeBars(ctx, bars, true)
}

func (s *gormBarStore) writeBars(ctx context.Context, bars []model.Bar, replace bool) error {
	if len(bars) == 0 {
		return nil
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx := s.db.WithContext(ctx)
		if replace {
			tx = tx.Clauses(clause.OnConflict{UpdateAll: true})
		}
		if err := tx.CreateInBatches(bars, 500).Error; err != nil {
			if isBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write %d bars: %v", model.ErrStore, len(bars), err)
	}
	return nil
}

func (s *gormBarStore) DeleteBars(ctx context.Context, symbol, exchange string, interval model.Interval) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval)).
		Delete(&model.Bar{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: delete bars %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormBarStore) CountExisting(ctx context.Context, symbol, exchange string, interval model.Interval) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Bar{}).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count bars %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, err)
	}
	return count, nil
}

func (s *gormBarStore) LastTimestamp(ctx context.Context, symbol, exchange string, interval model.Interval) (*time.Time, error) {
	var bar model.Bar
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval)).
		Order("datetime desc").
		First(&bar).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: last timestamp %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, err)
	}
	ts := bar.Datetime
	return &ts, nil
}

func (s *gormBarStore) OverviewStats(ctx context.Context, symbol, exchange string, interval model.Interval) (int64, time.Time, time.Time, error) {
	where := s.db.WithContext(ctx).Model(&model.Bar{}).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval))

	var count int64
	if err := where.Count(&count).Error; err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("%w: overview stats %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, err)
	}
	if count == 0 {
		return 0, time.Time{}, time.Time{}, nil
	}

	var first, last model.Bar
	if err := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval)).
		Order("datetime").First(&first).Error; err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("%w: overview stats %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, err)
	}
	if err := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ? AND interval = ?", symbol, exchange, string(interval)).
		Order("datetime desc").First(&last).Error; err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("%w: overview stats %s.%s %s: %v", model.ErrStore, symbol, exchange, interval, err)
	}
	return count, first.Datetime, last.Datetime, nil
}

func (s *gormBarStore) UpsertOverview(ctx context.Context, ov model.Overview) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Overview{}).
			Where("symbol = ? AND exchange = ? AND interval = ?", ov.Symbol, ov.Exchange, ov.Interval).
			Updates(map[string]any{"count": ov.Count, "start": ov.Start, "end": ov.End})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(&ov).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert overview %s.%s %s: %v", model.ErrStore, ov.Symbol, ov.Exchange, ov.Interval, err)
	}
	return nil
}

func (s *gormBarStore) ListOverviews(ctx context.Context) ([]model.Overview, error) {
	var rows []model.Overview
	if err := s.db.WithContext(ctx).Order("symbol, exchange, interval").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list overviews: %v", model.ErrStore, err)
	}
	return rows, nil
}

func (s *gormBarStore) ListSymbolsWithInterval(ctx context.Context, interval model.Interval) ([]SymbolCount, error) {
	var rows []SymbolCount
	err := s.db.WithContext(ctx).Model(&model.Bar{}).
		Select("symbol, exchange, count(*) as count").
		Where("interval = ?", string(interval)).
		Group("symbol, exchange").
		Order("symbol").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list symbols with %s data: %v", model.ErrStore, interval, err)
	}
	return rows, nil
}

func (s *gormBarStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isBusy reports whether err is a transient SQLite lock contention error.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
