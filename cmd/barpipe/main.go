package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for goose
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/navid-fn/barpipe/configs"
	"github.com/navid-fn/barpipe/internal/aggregate"
	"github.com/navid-fn/barpipe/internal/api"
	"github.com/navid-fn/barpipe/internal/csvio"
	"github.com/navid-fn/barpipe/internal/migrations"
	"github.com/navid-fn/barpipe/internal/model"
	"github.com/navid-fn/barpipe/internal/scheduler"
	"github.com/navid-fn/barpipe/internal/session"
	"github.com/navid-fn/barpipe/internal/storage"
)

var (
	dbPath       string
	sourceDir    string
	targetDir    string
	noAggregate  bool
	forceUpdate  bool
	skipPolicy   bool
	symbolFlag   string
	exchangeFlag string
	intervalsStr []string
	startStr     string
	endStr       string
	outPath      string
	servePort    string
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	rootCmd := &cobra.Command{
		Use:   "barpipe",
		Short: "Futures bar aggregation pipeline",
		Long:  "barpipe imports converted 1-minute futures bars into SQLite and aggregates them into session-aware hourly and daily bars.",
	}

	// Explicit flags win over environment, which wins over defaults.
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", cfg.DBPath, "SQLite database file")
	rootCmd.PersistentFlags().BoolVar(&skipPolicy, "skip-if-present", false,
		"skip aggregation whenever the target interval already has rows (coarser than timestamp resume)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full data update pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), cfg, logger)
		},
	}
	runCmd.Flags().StringVar(&sourceDir, "source-dir", cfg.SourceDir, "raw 1-minute file source directory")
	runCmd.Flags().StringVar(&targetDir, "target-dir", cfg.TargetDir, "converted CSV directory")
	runCmd.Flags().BoolVar(&noAggregate, "no-aggregate", false, "skip hourly/daily aggregation")
	runCmd.Flags().BoolVar(&forceUpdate, "force", false, "delete and regenerate existing data")

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate one contract into hourly/daily bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd.Context(), cfg, logger)
		},
	}
	aggregateCmd.Flags().StringVar(&symbolFlag, "symbol", "", "contract symbol, e.g. rb2401")
	aggregateCmd.Flags().StringVar(&exchangeFlag, "exchange", "", "exchange (inferred from symbol when omitted)")
	aggregateCmd.Flags().StringSliceVar(&intervalsStr, "intervals", []string{"1h", "1d"}, "intervals to generate")
	aggregateCmd.Flags().BoolVar(&forceUpdate, "force", false, "delete and regenerate existing data")
	_ = aggregateCmd.MarkFlagRequired("symbol")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the pipeline state document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cfg)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Report pending files and stale contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cfg, logger)
		},
	}
	checkCmd.Flags().StringVar(&sourceDir, "source-dir", cfg.SourceDir, "raw 1-minute file source directory")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored bars to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cfg)
		},
	}
	exportCmd.Flags().StringVar(&symbolFlag, "symbol", "", "contract symbol")
	exportCmd.Flags().StringVar(&exchangeFlag, "exchange", "", "exchange (inferred from symbol when omitted)")
	exportCmd.Flags().StringSliceVar(&intervalsStr, "intervals", []string{"1d"}, "interval to export")
	exportCmd.Flags().StringVar(&startStr, "start", "1970-01-01", "range start (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&endStr, "end", "2100-01-01", "range end (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&outPath, "out", "", "output file (stdout when omitted)")
	_ = exportCmd.MarkFlagRequired("symbol")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(logger)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg, logger)
		},
	}
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "listen port")

	rootCmd.AddCommand(runCmd, aggregateCmd, statusCmd, checkCmd, exportCmd, migrateCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildScheduler wires the store, resolver, aggregator and state store.
func buildScheduler(cfg *configs.AppConfig, logger *slog.Logger) (storage.BarStore, *scheduler.Scheduler, *scheduler.StateStore, error) {
	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}

	resolver, err := session.New(cfg.Session)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	state, err := scheduler.NewStateStore(cfg.StateFile)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	policy := scheduler.PolicyResumeByTimestamp
	if skipPolicy {
		policy = scheduler.PolicySkipIfPresent
	}

	agg := aggregate.New(resolver, logger)
	sched := scheduler.New(store, agg, state, logger, scheduler.Config{
		Policy:    policy,
		Staleness: time.Duration(cfg.StalenessHours) * time.Hour,
	})
	return store, sched, state, nil
}

func runPipeline(ctx context.Context, cfg *configs.AppConfig, logger *slog.Logger) error {
	store, sched, state, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	importer := csvio.NewImporter(store, csvio.NewLogger())
	pipeline := scheduler.NewPipeline(sched, importer, state, logger)

	stats := pipeline.Run(ctx, scheduler.RunOptions{
		SourceDir:     sourceDir,
		TargetDir:     targetDir,
		AutoAggregate: !noAggregate,
		ForceUpdate:   forceUpdate,
	})
	return printJSON(stats)
}

func runAggregate(ctx context.Context, cfg *configs.AppConfig, logger *slog.Logger) error {
	exchange := exchangeFlag
	if exchange == "" {
		exchange = model.InferExchange(symbolFlag)
		if exchange == "" {
			return fmt.Errorf("%w: cannot infer exchange for %q, pass --exchange", model.ErrConfiguration, symbolFlag)
		}
	}

	intervals := make([]model.Interval, 0, len(intervalsStr))
	for _, s := range intervalsStr {
		iv, err := model.ParseInterval(s)
		if err != nil {
			return err
		}
		intervals = append(intervals, iv)
	}

	store, sched, state, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	written := sched.AggregateSymbol(ctx, symbolFlag, exchange, intervals, forceUpdate)
	if err := state.MarkContractUpdated(symbolFlag, exchange); err != nil {
		logger.Warn("cannot record contract state", "error", err)
	}

	for iv, n := range written {
		fmt.Printf("%s.%s %s: %d rows\n", symbolFlag, exchange, iv, n)
	}
	return nil
}

func runStatus(cfg *configs.AppConfig) error {
	state, err := scheduler.NewStateStore(cfg.StateFile)
	if err != nil {
		return err
	}
	st, err := state.Load()
	if err != nil {
		return err
	}
	return printJSON(st)
}

func runCheck(ctx context.Context, cfg *configs.AppConfig, logger *slog.Logger) error {
	store, sched, _, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	check, err := sched.CheckForUpdates(ctx, sourceDir)
	if err != nil {
		return err
	}
	return printJSON(check)
}

func runExport(ctx context.Context, cfg *configs.AppConfig) error {
	exchange := exchangeFlag
	if exchange == "" {
		exchange = model.InferExchange(symbolFlag)
		if exchange == "" {
			return fmt.Errorf("%w: cannot infer exchange for %q, pass --exchange", model.ErrConfiguration, symbolFlag)
		}
	}
	if len(intervalsStr) != 1 {
		return fmt.Errorf("%w: export takes exactly one interval", model.ErrConfiguration)
	}
	interval, err := model.ParseInterval(intervalsStr[0])
	if err != nil {
		return err
	}
	start, err := time.ParseInLocation("2006-01-02", startStr, time.Local)
	if err != nil {
		return fmt.Errorf("%w: bad start date %q", model.ErrConfiguration, startStr)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, time.Local)
	if err != nil {
		return fmt.Errorf("%w: bad end date %q", model.ErrConfiguration, endStr)
	}
	end = end.Add(24*time.Hour - time.Second)

	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := csvio.ExportCSV(ctx, store, out, symbolFlag, exchange, interval, start, end)
	if err != nil {
		return err
	}
	if outPath != "" {
		fmt.Printf("wrote %d bars to %s\n", n, outPath)
	}
	return nil
}

func runMigrate(logger *slog.Logger) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	logger.Info("running database migrations", "db", dbPath)
	if err := goose.Up(db, "."); err != nil {
		return err
	}
	logger.Info("migrations completed")
	return nil
}

func runServe(cfg *configs.AppConfig, logger *slog.Logger) error {
	store, sched, _, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	router := api.NewRouter(api.NewHandler(store, sched))
	logger.Info("status API listening", "port", servePort)
	return router.Run(":" + servePort)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
