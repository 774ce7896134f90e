package scheduler

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/navid-fn/barpipe/internal/csvio"
)

// ConvertFunc turns pending raw source files into converted CSVs under
// targetDir and returns how many files it produced. The binary decoding
// itself lives outside this module; the pipeline only schedules it.
type ConvertFunc func(ctx context.Context, files []string, targetDir string) (int, error)

// RunOptions selects what a pipeline run does.
type RunOptions struct {
	SourceDir     string
	TargetDir     string
	AutoAggregate bool
	ForceUpdate   bool
}

// RunStats is the user-visible summary of a pipeline run. Partial failure
// never raises; it shows up as a non-zero error count plus log lines.
type RunStats struct {
	ConvertedFiles    int `json:"converted_files"`
	ImportedContracts int `json:"imported_contracts"`
	AggregatedHourly  int `json:"aggregated_hourly"`
	AggregatedDaily   int `json:"aggregated_daily"`
	Errors            int `json:"errors"`
}

// Pipeline chains file detection, CSV import and aggregation into one
// sequential batch run.
type Pipeline struct {
	sched    *Scheduler
	importer *csvio.Importer
	state    *StateStore
	logger   *slog.Logger

	// Convert handles raw file conversion when set. When nil, pending
	// raw files are left for an external converter and only reported.
	Convert ConvertFunc
}

func NewPipeline(sched *Scheduler, importer *csvio.Importer, state *StateStore, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sched:    sched,
		importer: importer,
		state:    state,
		logger:   logger,
	}
}

// Run executes the full update pipeline: detect new raw files, import
// converted CSVs into the 1-minute store, then aggregate hourly and daily
// bars for every contract. Each stage is optional depending on the
// options; failures increment the error count and the run continues.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) RunStats {
	var stats RunStats
	p.logger.Info("pipeline starting",
		"source_dir", opts.SourceDir, "target_dir", opts.TargetDir,
		"auto_aggregate", opts.AutoAggregate, "force_update", opts.ForceUpdate)

	if opts.SourceDir != "" {
		converted, err := p.processNewFiles(ctx, opts.SourceDir, opts.TargetDir)
		if err != nil {
			p.logger.Error("file conversion stage failed", "error", err)
			stats.Errors++
		}
		stats.ConvertedFiles = converted
	}

	if opts.TargetDir != "" {
		if _, err := os.Stat(opts.TargetDir); err == nil {
			imported, errs, err := p.importer.ImportDir(ctx, opts.TargetDir, opts.ForceUpdate)
			if err != nil {
				p.logger.Error("import stage failed", "error", err)
				stats.Errors++
			}
			stats.ImportedContracts = imported
			stats.Errors += errs
		} else {
			p.logger.Warn("target dir missing, skipping import", "target_dir", opts.TargetDir)
		}
	}

	if opts.AutoAggregate {
		hourly, daily, errs := p.sched.AggregateAll(ctx, opts.ForceUpdate)
		stats.AggregatedHourly = hourly
		stats.AggregatedDaily = daily
		stats.Errors += errs
	}

	if err := p.state.MarkRunFinished(time.Now()); err != nil {
		p.logger.Warn("cannot record run time", "error", err)
	}

	p.logger.Info("pipeline finished",
		"converted_files", stats.ConvertedFiles,
		"imported_contracts", stats.ImportedContracts,
		"aggregated_hourly", stats.AggregatedHourly,
		"aggregated_daily", stats.AggregatedDaily,
		"errors", stats.Errors)
	return stats
}

func (p *Pipeline) processNewFiles(ctx context.Context, sourceDir, targetDir string) (int, error) {
	pending, err := p.state.PendingFiles(sourceDir)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		p.logger.Info("no new raw files to process")
		return 0, nil
	}
	p.logger.Info("raw files pending", "count", len(pending))

	if p.Convert == nil {
		p.logger.Info("no converter configured, leaving raw files pending")
		return 0, nil
	}

	converted, err := p.Convert(ctx, pending, targetDir)
	if err != nil {
		return converted, err
	}

	for _, f := range pending {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := p.state.MarkFileProcessed(f); err != nil {
			p.logger.Warn("cannot mark file processed", "file", f, "error", err)
		}
	}
	return converted, nil
}
