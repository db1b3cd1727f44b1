package taskq

import (
	"context"
	"log/slog"
	"time"

	"github.com/arcflow-systems/taskq/internal"
)

// JanitorConfig defines the scheduling parameters for a JanitorWorker.
//
// RunningStaleSeconds is the heartbeat-age threshold past which a
// running task is presumed abandoned and is requeued.
//
// Interval defines how often the janitor pass runs.
//
// DryRun, when true, calls CountStale instead of RequeueStale: rows
// are reported but never mutated. Useful for observing what a janitor
// pass would touch before enabling it.
type JanitorConfig struct {
	RunningStaleSeconds time.Duration
	Interval            time.Duration
	DryRun              bool
}

// JanitorWorker periodically invokes a Janitor implementation to
// recover tasks abandoned by a dead leaseholder.
//
// JanitorWorker has a strict lifecycle:
//   - Start may only be called once.
//   - Stop must be called to terminate the worker.
//   - Stop waits for the internal task to finish or until the timeout
//     expires.
type JanitorWorker struct {
	lcBase
	janitor             Janitor
	task                internal.TimerTask
	log                 *slog.Logger
	runningStaleSeconds time.Duration
	interval            time.Duration
	dryRun              bool
}

// NewJanitorWorker creates a new JanitorWorker using the provided
// Janitor implementation and configuration.
//
// The worker is not started automatically. Call Start to begin
// periodic recovery sweeps.
func NewJanitorWorker(janitor Janitor, config *JanitorConfig, log *slog.Logger) *JanitorWorker {
	return &JanitorWorker{
		janitor:             janitor,
		log:                 log,
		runningStaleSeconds: config.RunningStaleSeconds,
		interval:            config.Interval,
		dryRun:              config.DryRun,
	}
}

func (jw *JanitorWorker) sweep(ctx context.Context) {
	if jw.dryRun {
		counts, err := jw.janitor.CountStale(ctx, jw.runningStaleSeconds)
		if err != nil {
			jw.log.Error("error while counting stale tasks", "error", err)
			return
		}
		jw.log.Info("dry-run janitor pass",
			"expired_leases", counts.ExpiredLeases,
			"stale_running", counts.StaleRunning,
			"total", counts.Total())
		return
	}

	counts, err := jw.janitor.RequeueStale(ctx, jw.runningStaleSeconds)
	if err != nil {
		jw.log.Error("error while requeuing stale tasks", "error", err)
		return
	}
	if counts.Total() > 0 {
		jw.log.Info("requeued stale tasks",
			"expired_leases", counts.ExpiredLeases,
			"stale_running", counts.StaleRunning,
			"total", counts.Total())
	}
}

// Start begins periodic execution of the janitor sweep.
//
// Start returns ErrDoubleStarted if the worker has already been
// started. The provided context controls cancellation of the
// background task.
func (jw *JanitorWorker) Start(ctx context.Context) error {
	if err := jw.tryStart(); err != nil {
		return err
	}
	jw.task.Start(ctx, jw.sweep, jw.interval)
	return nil
}

// Stop terminates the background janitor task.
//
// Stop waits until the task finishes or the specified timeout expires.
// If shutdown does not complete within the timeout, ErrStopTimeout is
// returned.
//
// Stop returns ErrDoubleStopped if the worker is not running.
func (jw *JanitorWorker) Stop(timeout time.Duration) error {
	return jw.tryStop(timeout, jw.task.Stop)
}
