package taskq

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/arcflow-systems/taskq/backend"
	"github.com/arcflow-systems/taskq/internal"
	"github.com/arcflow-systems/taskq/task"
)

// Mode selects whether an Orchestrator runs forever (real) or exits
// after an idle period with nothing to lease (demo).
type Mode string

const (
	ModeReal Mode = "real"
	ModeDemo Mode = "demo"
)

const maxErrorLen = 4096

// Config configures an Orchestrator.
//
// TargetBackend scopes LeaseOne to rows whose target_backend matches
// (nil means "only rows with a nil target_backend"). LeaseSeconds is
// the soft deadline passed to LeaseOne and Heartbeat.
//
// PollSeconds is the backoff applied when LeaseOne finds nothing.
// JobPollSeconds is the cadence of the detached reconciliation loop.
// FinishedGraceSeconds is how long reconciliation tolerates a
// disappeared external job before giving up on its callback.
//
// Mode and IdleExitSeconds control demo-mode exit; real mode ignores
// IdleExitSeconds and runs until its context is canceled.
//
// Backoff paces retries of the orchestrator's own LeaseOne calls after
// a store error; it does not affect task retry policy. A failed
// Heartbeat is treated as lost ownership, not retried.
type Config struct {
	TargetBackend        *string
	LeaseSeconds         time.Duration
	PollSeconds          time.Duration
	JobPollSeconds       time.Duration
	FinishedGraceSeconds time.Duration
	Mode                 Mode
	IdleExitSeconds      time.Duration
	Backoff              BackoffConfig
}

// NewIdentity returns a per-process leaseholder identity of the form
// "{hostname}:{uuid}", assigned once at startup and reused for every
// store operation the orchestrator issues.
func NewIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s:%s", host, uuid.New())
}

// Orchestrator coordinates leasing, backend dispatch, heartbeating and
// outcome reconciliation for one target_backend filter.
//
// Its work loop is single-threaded: lease one task, drive it to a
// terminal-or-abandoned outcome, then lease the next. Running many
// Orchestrators (as separate processes) is how this system scales, not
// concurrency within one.
//
// Orchestrator has a strict lifecycle: Start may only be called once;
// Stop waits for the in-flight task (if any) to reach a decision point
// or for the timeout to elapse.
type Orchestrator struct {
	lcBase
	store    Store
	observer Observer
	adapters []backend.Adapter
	identity string
	cfg      Config
	log      *slog.Logger
	cancel   context.CancelFunc
	done     internal.DoneChan
	backoff  backoffCounter
}

// NewOrchestrator creates an Orchestrator. It is not started
// automatically; call Start to begin leasing.
func NewOrchestrator(store Store, observer Observer, adapters []backend.Adapter, identity string, cfg *Config, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		observer: observer,
		adapters: adapters,
		identity: identity,
		cfg:      *cfg,
		log:      log,
		backoff:  backoffCounter{cfg.Backoff},
	}
}

func (o *Orchestrator) pick(taskType string) backend.Adapter {
	for _, a := range o.adapters {
		if a.Supports(taskType) {
			return a
		}
	}
	return nil
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateError(err error) string {
	s := err.Error()
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen] + "... (truncated)"
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)
	idleSince := time.Now()
	var storeErrAttempt uint32

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, err := o.store.LeaseOne(ctx, o.identity, o.cfg.LeaseSeconds, o.cfg.TargetBackend)
		if err != nil {
			storeErrAttempt++
			delay, ok := o.backoff.next(storeErrAttempt)
			if !ok {
				delay = o.cfg.Backoff.MaxInterval
			}
			o.log.Error("lease_one failed, backing off", "err", err, "attempt", storeErrAttempt)
			if !o.sleep(ctx, delay) {
				return
			}
			continue
		}
		storeErrAttempt = 0

		if t == nil {
			if o.cfg.Mode == ModeDemo && time.Since(idleSince) >= o.cfg.IdleExitSeconds {
				o.log.Info("idle timeout reached, exiting", "idle_exit_seconds", o.cfg.IdleExitSeconds)
				return
			}
			if !o.sleep(ctx, o.cfg.PollSeconds) {
				return
			}
			continue
		}

		idleSince = time.Now()
		o.execute(ctx, t)
	}
}

func (o *Orchestrator) execute(ctx context.Context, t *task.Task) {
	adapter := o.pick(t.TaskType)
	if adapter == nil {
		o.log.Warn("unsupported task_type for this backend, releasing",
			"task_type", t.TaskType, "id", t.Id)
		msg := fmt.Sprintf("task_type %q not supported by this orchestrator", t.TaskType)
		if err := o.store.MarkFailed(ctx, t.Id, o.identity, msg, true); err != nil {
			o.log.Error("mark_failed (unsupported type) failed", "id", t.Id, "err", err)
		}
		return
	}

	switch a := adapter.(type) {
	case backend.SyncAdapter:
		o.executeSync(ctx, t, a)
	case backend.DetachedAdapter:
		o.executeDetached(ctx, t, a)
	default:
		o.log.Error("adapter implements neither SyncAdapter nor DetachedAdapter", "name", adapter.Name())
	}
}

func (o *Orchestrator) executeSync(ctx context.Context, t *task.Task, adapter backend.SyncAdapter) {
	if err := o.store.MarkRunning(ctx, t.Id, o.identity, adapter.Name(), nil); err != nil {
		o.log.Warn("lost lease before mark_running", "id", t.Id, "err", err)
		return
	}
	if err := o.store.Heartbeat(ctx, t.Id, o.identity, o.cfg.LeaseSeconds, nil); err != nil {
		o.log.Warn("lost lease before sync execution", "id", t.Id, "err", err)
		return
	}

	result, err := adapter.Run(ctx, t)
	if err != nil {
		retry := t.CanRetry()
		if mfErr := o.store.MarkFailed(ctx, t.Id, o.identity, truncateError(err), retry); mfErr != nil {
			o.log.Error("mark_failed failed", "id", t.Id, "err", mfErr)
		}
		return
	}
	if err := o.store.MarkDone(ctx, t.Id, o.identity, result); err != nil {
		o.log.Error("mark_done failed", "id", t.Id, "err", err)
	}
}

func (o *Orchestrator) executeDetached(ctx context.Context, t *task.Task, adapter backend.DetachedAdapter) {
	handle, err := adapter.Submit(ctx, t)
	if err != nil {
		retry := t.CanRetry()
		if mfErr := o.store.MarkFailed(ctx, t.Id, o.identity, truncateError(err), retry); mfErr != nil {
			o.log.Error("mark_failed (submission failure) failed", "id", t.Id, "err", mfErr)
		}
		return
	}

	h := handle
	if err := o.store.MarkRunning(ctx, t.Id, o.identity, adapter.Name(), &h); err != nil {
		o.log.Warn("lost lease before mark_running", "id", t.Id, "err", err)
		return
	}
	if err := o.store.Heartbeat(ctx, t.Id, o.identity, o.cfg.LeaseSeconds, nil); err != nil {
		o.log.Warn("lost lease before reconciliation", "id", t.Id, "err", err)
		return
	}

	o.reconcile(ctx, t, adapter, handle)
}

// reconcile polls the store and the external backend until the task
// reaches a terminal-or-abandoned state. It never calls MarkDone
// itself: for detached tasks, only the signed callback ingest does
// that. Besides heartbeats, reconcile's only direct write is the
// diagnostic MarkFailed(retry=false) issued when the external job has disappeared
// longer than FinishedGraceSeconds without a callback arriving.
func (o *Orchestrator) reconcile(ctx context.Context, t *task.Task, adapter backend.DetachedAdapter, handle string) {
	ticker := time.NewTicker(o.cfg.JobPollSeconds)
	defer ticker.Stop()

	var goneSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, err := o.observer.Get(ctx, t.Id)
		if err != nil {
			o.log.Error("observer.Get failed during reconciliation", "id", t.Id, "err", err)
			continue
		}
		if cur == nil || cur.Status.Terminal() || cur.Status == task.Queued {
			status := task.Unknown
			if cur != nil {
				status = cur.Status
			}
			o.log.Info("reconciliation exiting", "id", t.Id, "status", status)
			return
		}

		state, err := adapter.Poll(ctx, handle)
		if err != nil {
			o.log.Error("backend poll failed", "id", t.Id, "handle", handle, "err", err)
			continue
		}
		if err := o.store.Heartbeat(ctx, t.Id, o.identity, o.cfg.LeaseSeconds, task.Document{
			"external_state": state.String(),
		}); err != nil {
			o.log.Warn("lost lease during reconciliation", "id", t.Id, "err", err)
			return
		}

		if state == backend.JobFinished {
			if goneSince.IsZero() {
				goneSince = time.Now()
			}
			if time.Since(goneSince) >= o.cfg.FinishedGraceSeconds {
				msg := fmt.Sprintf(
					"external job %s reported finished but no callback arrived within %s",
					handle, o.cfg.FinishedGraceSeconds,
				)
				if err := o.store.MarkFailed(ctx, t.Id, o.identity, msg, false); err != nil {
					o.log.Error("mark_failed (missing callback) failed", "id", t.Id, "err", err)
				}
				return
			}
		} else {
			goneSince = time.Time{}
		}
	}
}

// Start begins the lease/execute/reconcile loop in the background.
//
// Start returns ErrDoubleStarted if already started. When ctx is
// canceled, the loop stops after its current step.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.tryStart(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(internal.DoneChan)
	go o.run(runCtx)
	return nil
}

func (o *Orchestrator) doStop() internal.DoneChan {
	o.cancel()
	return o.done
}

// Stop initiates graceful shutdown, waiting up to timeout for the loop
// to exit. Returns ErrStopTimeout if it does not finish in time, and
// ErrDoubleStopped if the orchestrator was not running.
func (o *Orchestrator) Stop(timeout time.Duration) error {
	return o.tryStop(timeout, o.doStop)
}
