// Command taskq-orchestrator runs one lease/execute/reconcile loop
// against a single target_backend filter.
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
	"github.com/arcflow-systems/taskq/backend"
	"github.com/arcflow-systems/taskq/config"
	sqlstore "github.com/arcflow-systems/taskq/sql"
)

func main() {
	var (
		configPath           string
		targetBackend        string
		mode                 string
		leaseSeconds         int
		pollSeconds          float64
		jobPollSeconds       float64
		finishedGraceSeconds int
		idleExitSeconds      int
		logLevel             string
		logFormat            string
		boincURL             string
	)

	cmd := &cobra.Command{
		Use:   "taskq-orchestrator",
		Short: "Lease and execute tasks for one target_backend",
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

			store := sqlstore.NewStore(db, kind)
			observer := sqlstore.NewObserver(db)

			adapters := []backend.Adapter{backend.NewLocalAdapter()}
			if dir := cfg.SlurmTaskDir; dir != "" {
				adapters = append(adapters, backend.NewSlurmAdapter(dir))
			}
			if boincURL != "" {
				adapters = append(adapters, backend.NewBoincAdapter(boincURL))
			}

			var tb *string
			if targetBackend != "" {
				tb = &targetBackend
			}
			orchMode := taskq.ModeReal
			if mode == "demo" {
				orchMode = taskq.ModeDemo
			}

			occ := &taskq.Config{
				TargetBackend:        tb,
				LeaseSeconds:         time.Duration(leaseSeconds) * time.Second,
				PollSeconds:          time.Duration(pollSeconds * float64(time.Second)),
				JobPollSeconds:       time.Duration(jobPollSeconds * float64(time.Second)),
				FinishedGraceSeconds: time.Duration(finishedGraceSeconds) * time.Second,
				Mode:                 orchMode,
				IdleExitSeconds:      time.Duration(idleExitSeconds) * time.Second,
				Backoff: taskq.BackoffConfig{
					MaxRetries:          0,
					InitialInterval:     500 * time.Millisecond,
					MaxInterval:         30 * time.Second,
					Multiplier:          2.0,
					RandomizationFactor: 0.2,
				},
			}

			identity := taskq.NewIdentity()
			orch := taskq.NewOrchestrator(store, observer, adapters, identity, occ, log)

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := orch.Start(runCtx); err != nil {
				return fmt.Errorf("starting orchestrator: %w", err)
			}
			log.Info("orchestrator started", "identity", identity, "target_backend", targetBackend, "mode", string(orchMode))

			<-runCtx.Done()
			log.Info("shutting down")
			if err := orch.Stop(30 * time.Second); err != nil {
				return fmt.Errorf("stopping orchestrator: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to an optional YAML config file")
	cmd.Flags().StringVar(&targetBackend, "target-backend", "", "Only lease tasks whose target_backend matches (empty = nil)")
	cmd.Flags().StringVar(&mode, "mode", "real", "Run mode: real or demo (demo exits after idle-exit-seconds)")
	cmd.Flags().IntVar(&leaseSeconds, "lease-seconds", 120, "Lease duration in seconds")
	cmd.Flags().Float64Var(&pollSeconds, "poll-seconds", 2, "Delay between empty lease_one calls")
	cmd.Flags().Float64Var(&jobPollSeconds, "job-poll-seconds", 5, "Cadence of detached-job reconciliation")
	cmd.Flags().IntVar(&finishedGraceSeconds, "finished-grace-seconds", 20, "Grace period after a detached job reports finished before giving up on its callback")
	cmd.Flags().IntVar(&idleExitSeconds, "idle-exit-seconds", 30, "In demo mode, exit after this many idle seconds")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")
	cmd.Flags().StringVar(&boincURL, "boinc-url", "", "Base URL of a BOINC work-unit API to dispatch boinc_* task types to")

	if err := cmd.Execute(); err != nil {
		slog.Error("taskq-orchestrator failed", "err", err)
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
