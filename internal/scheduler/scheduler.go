// Package scheduler decides, per contract, how aggregation runs (from
// scratch, resumed from the last aggregated timestamp, or skipped), drives
// the per-symbol batch loop, and keeps the pipeline's persisted
// bookkeeping. Symbols are processed one at a time; a corrupt symbol never
// aborts a batch run.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/navid-fn/barpipe/internal/aggregate"
	"github.com/navid-fn/barpipe/internal/model"
	"github.com/navid-fn/barpipe/internal/storage"
)

// Policy selects how existing target-interval rows are treated when force
// mode is off. The two policies are intentionally not equivalent:
// timestamp-resume aggregates the new tail, skip-if-present does nothing
// as soon as any data exists.
type Policy string

const (
	// PolicyResumeByTimestamp re-queries 1-minute bars strictly after
	// the last aggregated timestamp and aggregates only the tail.
	PolicyResumeByTimestamp Policy = "resume_by_timestamp"

	// PolicySkipIfPresent leaves the target interval untouched whenever
	// it already has any rows.
	PolicySkipIfPresent Policy = "skip_if_present"
)

// Config carries scheduler tuning.
type Config struct {
	// Policy is the incremental policy; defaults to timestamp-resume.
	Policy Policy

	// Staleness is how old a contract's newest 1-minute datum may be
	// before CheckForUpdates reports it.
	Staleness time.Duration
}

// Scheduler runs aggregation per contract and interval.
type Scheduler struct {
	store  storage.BarStore
	agg    *aggregate.Aggregator
	state  *StateStore
	logger *slog.Logger
	cfg    Config
}

func New(store storage.BarStore, agg *aggregate.Aggregator, state *StateStore, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.Policy == "" {
		cfg.Policy = PolicyResumeByTimestamp
	}
	if cfg.Staleness == 0 {
		cfg.Staleness = 24 * time.Hour
	}
	return &Scheduler{
		store:  store,
		agg:    agg,
		state:  state,
		logger: logger,
		cfg:    cfg,
	}
}

// AggregateSymbol aggregates one contract into the requested intervals and
// returns the rows written per interval. A failing interval is logged and
// the remaining intervals still run.
func (s *Scheduler) AggregateSymbol(ctx context.Context, symbol, exchange string, intervals []model.Interval, force bool) map[model.Interval]int {
	written := make(map[model.Interval]int, len(intervals))
	for _, interval := range intervals {
		n, err := s.aggregateOne(ctx, symbol, exchange, interval, force)
		if err != nil {
			s.logger.Error("aggregation failed",
				"symbol", symbol, "exchange", exchange, "interval", interval, "error", err)
			continue
		}
		written[interval] = n
	}
	return written
}

func (s *Scheduler) aggregateOne(ctx context.Context, symbol, exchange string, interval model.Interval, force bool) (int, error) {
	if interval != model.IntervalHour && interval != model.IntervalDaily {
		return 0, model.ErrConfiguration
	}

	existing, err := s.store.CountExisting(ctx, symbol, exchange, interval)
	if err != nil {
		return 0, err
	}

	var since *time.Time
	switch {
	case existing > 0 && force:
		deleted, err := s.store.DeleteBars(ctx, symbol, exchange, interval)
		if err != nil {
			return 0, err
		}
		s.logger.Info("force update, regenerating",
			"symbol", symbol, "interval", interval, "deleted", deleted)

	case existing > 0 && s.cfg.Policy == PolicySkipIfPresent:
		s.logger.Info("existing data found, skipping",
			"symbol", symbol, "interval", interval, "rows", existing)
		return 0, nil

	case existing > 0:
		last, err := s.store.LastTimestamp(ctx, symbol, exchange, interval)
		if err == nil && last == nil {
			err = model.ErrResumePoint
		}
		if err != nil {
			// Resume point unavailable; fall back to a full rebuild
			// rather than failing the symbol.
			s.logger.Warn("cannot determine resume point, regenerating all data",
				"symbol", symbol, "interval", interval, "error", err)
		} else {
			since = last
			s.logger.Info("incremental aggregation",
				"symbol", symbol, "interval", interval, "since", *last)
		}

	default:
		s.logger.Info("first aggregation", "symbol", symbol, "interval", interval)
	}

	minutes, err := s.store.QueryMinuteBars(ctx, symbol, exchange, since)
	if err != nil {
		return 0, err
	}
	if len(minutes) == 0 {
		return 0, nil
	}

	var out []model.Bar
	if interval == model.IntervalHour {
		out = s.agg.Hourly(minutes)
	} else {
		out = s.agg.Daily(minutes)
	}
	if len(out) == 0 {
		return 0, nil
	}

	if err := s.store.InsertBars(ctx, out); err != nil {
		return 0, err
	}
	if err := s.refreshOverview(ctx, symbol, exchange, interval); err != nil {
		return 0, err
	}
	return len(out), nil
}

// refreshOverview recomputes the summary row from the bar table itself.
// Counting from scratch, instead of incrementing, keeps the overview
// honest after partial failures.
func (s *Scheduler) refreshOverview(ctx context.Context, symbol, exchange string, interval model.Interval) error {
	count, start, end, err := s.store.OverviewStats(ctx, symbol, exchange, interval)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return s.store.UpsertOverview(ctx, model.Overview{
		Symbol:   symbol,
		Exchange: exchange,
		Interval: string(interval),
		Count:    count,
		Start:    start,
		End:      end,
	})
}

// AggregateAll runs hourly and daily aggregation for every contract with
// 1-minute data. Per-symbol failures are logged and counted, never fatal.
func (s *Scheduler) AggregateAll(ctx context.Context, force bool) (hourly, daily, errs int) {
	symbols, err := s.store.ListSymbolsWithInterval(ctx, model.IntervalMinute)
	if err != nil {
		s.logger.Error("cannot list contracts with 1-minute data", "error", err)
		return 0, 0, 1
	}
	s.logger.Info("aggregating contracts", "count", len(symbols))

	for _, sc := range symbols {
		written := s.AggregateSymbol(ctx, sc.Symbol, sc.Exchange,
			[]model.Interval{model.IntervalHour, model.IntervalDaily}, force)

		h, hok := written[model.IntervalHour]
		d, dok := written[model.IntervalDaily]
		if !hok || !dok {
			errs++
		}
		hourly += h
		daily += d

		if err := s.state.MarkContractUpdated(sc.Symbol, sc.Exchange); err != nil {
			s.logger.Warn("cannot record contract state",
				"symbol", sc.Symbol, "exchange", sc.Exchange, "error", err)
		}

		if h > 0 || d > 0 {
			s.logger.Info("contract aggregated",
				"symbol", sc.Symbol, "exchange", sc.Exchange, "hourly", h, "daily", d)
		}
	}
	return hourly, daily, errs
}

// UpdateCheck is the result of CheckForUpdates.
type UpdateCheck struct {
	// PendingFiles are raw source files present on disk but not yet
	// recorded as processed.
	PendingFiles []string `json:"pending_files"`

	// ContractsNeedingUpdate lists vt_symbols whose newest 1-minute
	// datum is older than the staleness threshold.
	ContractsNeedingUpdate []string `json:"contracts_needing_update"`
}

// CheckForUpdates reports pending source files and stale contracts.
func (s *Scheduler) CheckForUpdates(ctx context.Context, sourceDir string) (*UpdateCheck, error) {
	check := &UpdateCheck{PendingFiles: []string{}, ContractsNeedingUpdate: []string{}}

	if sourceDir != "" {
		pending, err := s.state.PendingFiles(sourceDir)
		if err != nil {
			return nil, err
		}
		check.PendingFiles = pending
	}

	symbols, err := s.store.ListSymbolsWithInterval(ctx, model.IntervalMinute)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, sc := range symbols {
		last, err := s.store.LastTimestamp(ctx, sc.Symbol, sc.Exchange, model.IntervalMinute)
		if err != nil || last == nil {
			continue
		}
		if now.Sub(*last) > s.cfg.Staleness {
			check.ContractsNeedingUpdate = append(check.ContractsNeedingUpdate, sc.Symbol+"."+sc.Exchange)
		}
	}
	return check, nil
}

// Status returns the persisted pipeline state document.
func (s *Scheduler) Status() (*State, error) {
	return s.state.Load()
}
