// Command taskq-janitor runs the background sweeps that recover tasks
// abandoned by a dead leaseholder and retire old terminal tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/config"
	sqlstore "github.com/arcflow-systems/taskq/sql"
	"github.com/arcflow-systems/taskq/task"
)

func main() {
	var (
		configPath          string
		runningStaleSeconds int
		janitorInterval     float64
		dryRun              bool
		cleanInterval       float64
		cleanAfterHours     float64
		logLevel            string
		logFormat           string
	)

	cmd := &cobra.Command{
		Use:   "taskq-janitor",
		Short: "Recover stale leases and retire old terminal tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat)

			db, kind, err := sqlstore.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			ctx := cmd.Context()
			if err := sqlstore.InitDB(ctx, db, kind); err != nil {
				return fmt.Errorf("initializing schema: %w", err)
			}

			janitor := sqlstore.NewJanitor(db)
			jw := taskq.NewJanitorWorker(janitor, &taskq.JanitorConfig{
				RunningStaleSeconds: time.Duration(runningStaleSeconds) * time.Second,
				Interval:            time.Duration(janitorInterval * float64(time.Second)),
				DryRun:              dryRun,
			}, log)

			cleaner := sqlstore.NewCleaner(db)
			cw := taskq.NewCleanWorker(cleaner, &taskq.CleanConfig{
				Status:   task.Unknown,
				Interval: time.Duration(cleanInterval * float64(time.Second)),
				Before:   cleanAfterHours > 0,
				Delta:    time.Duration(cleanAfterHours * float64(time.Hour)),
			}, log)

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := jw.Start(runCtx); err != nil {
				return fmt.Errorf("starting janitor: %w", err)
			}
			if err := cw.Start(runCtx); err != nil {
				return fmt.Errorf("starting cleaner: %w", err)
			}
			log.Info("janitor started", "running_stale_seconds", runningStaleSeconds, "dry_run", dryRun)

			<-runCtx.Done()
			log.Info("shutting down")
			if err := jw.Stop(30 * time.Second); err != nil {
				log.Error("stopping janitor", "err", err)
			}
			if err := cw.Stop(30 * time.Second); err != nil {
				log.Error("stopping cleaner", "err", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to an optional YAML config file")
	cmd.Flags().IntVar(&runningStaleSeconds, "running-stale-seconds", 600, "Heartbeat age past which a running task is presumed abandoned")
	cmd.Flags().Float64Var(&janitorInterval, "janitor-interval-seconds", 30, "Cadence of the stale-lease sweep")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count stale tasks without requeuing them")
	cmd.Flags().Float64Var(&cleanInterval, "clean-interval-seconds", 3600, "Cadence of the terminal-task retention sweep")
	cmd.Flags().Float64Var(&cleanAfterHours, "clean-after-hours", 168, "Delete terminal tasks last updated more than this many hours ago (<= 0 disables the age filter and deletes all terminal tasks every pass)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")

	if err := cmd.Execute(); err != nil {
		slog.Error("taskq-janitor failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
