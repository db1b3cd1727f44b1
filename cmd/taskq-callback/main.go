// Command taskq-callback runs the signed HTTP ingest that detached
// backend workers use to report task outcomes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcflow-systems/taskq/callback"
	"github.com/arcflow-systems/taskq/config"
	sqlstore "github.com/arcflow-systems/taskq/sql"
)

func main() {
	var (
		configPath     string
		addr           string
		rateLimitRPS   float64
		rateLimitBurst int
		logLevel       string
		logFormat      string
	)

	cmd := &cobra.Command{
		Use:   "taskq-callback",
		Short: "Serve the signed task-result callback endpoint",
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

			if cfg.ResultSecret == "" {
				return fmt.Errorf("RESULT_SECRET is required to run the callback ingest")
			}

			db, kind, err := sqlstore.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			ctx := cmd.Context()
			if err := sqlstore.InitDB(ctx, db, kind); err != nil {
				return fmt.Errorf("initializing schema: %w", err)
			}

			store := sqlstore.NewStore(db, kind)
			srv := callback.NewServer(store, &callback.Config{
				Secret:         cfg.ResultSecret,
				RateLimitRPS:   rateLimitRPS,
				RateLimitBurst: rateLimitBurst,
			}, log)

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 5 * time.Second,
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("callback ingest listening", "addr", addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-runCtx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serving: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to an optional YAML config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().Float64Var(&rateLimitRPS, "rate-limit-rps", 10, "Per-IP requests/sec (<= 0 disables limiting)")
	cmd.Flags().IntVar(&rateLimitBurst, "rate-limit-burst", 20, "Per-IP token bucket burst size")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")

	if err := cmd.Execute(); err != nil {
		slog.Error("taskq-callback failed", "err", err)
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
