package sql

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/task"
)

// Janitor implements taskq.Janitor using a SQL backend.
//
// It performs the two sweeps requeue_stale describes: expired leased
// rows (lazy bookkeeping) and running rows whose last_heartbeat_at has
// gone stale (the case lease_one's own lazy reclaim cannot reach,
// since lease_one only looks at status=leased).
type Janitor struct {
	db *bun.DB
}

// NewJanitor creates a new SQL-backed Janitor.
func NewJanitor(db *bun.DB) *Janitor {
	return &Janitor{db: db}
}

func (j *Janitor) countExpiredLeases(ctx context.Context, db bun.IDB, now time.Time) (int64, error) {
	count, err := db.NewSelect().
		Model((*taskModel)(nil)).
		Where("status = ?", task.Leased).
		Where("lease_expires_at < ?", now).
		Count(ctx)
	return int64(count), err
}

func (j *Janitor) countStaleRunning(ctx context.Context, db bun.IDB, staleBefore time.Time) (int64, error) {
	count, err := db.NewSelect().
		Model((*taskModel)(nil)).
		Where("status = ?", task.Running).
		Where("last_heartbeat_at < ?", staleBefore).
		Count(ctx)
	return int64(count), err
}

// CountStale reports how many rows the next RequeueStale call would
// touch, without mutating anything.
func (j *Janitor) CountStale(ctx context.Context, runningStaleSeconds time.Duration) (taskq.StaleCounts, error) {
	now := time.Now()
	staleBefore := now.Add(-runningStaleSeconds)

	expired, err := j.countExpiredLeases(ctx, j.db, now)
	if err != nil {
		return taskq.StaleCounts{}, err
	}
	running, err := j.countStaleRunning(ctx, j.db, staleBefore)
	if err != nil {
		return taskq.StaleCounts{}, err
	}
	return taskq.StaleCounts{ExpiredLeases: expired, StaleRunning: running}, nil
}

// RequeueStale performs both sweeps in one transaction and returns how
// many rows each touched.
func (j *Janitor) RequeueStale(ctx context.Context, runningStaleSeconds time.Duration) (taskq.StaleCounts, error) {
	now := time.Now()
	staleBefore := now.Add(-runningStaleSeconds)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return taskq.StaleCounts{}, err
	}

	expiredRes, err := tx.NewUpdate().
		Model((*taskModel)(nil)).
		Set("status = ?", task.Queued).
		Set("leased_by = NULL").
		Set("lease_expires_at = NULL").
		Where("status = ?", task.Leased).
		Where("lease_expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return taskq.StaleCounts{}, errors.Join(err, tx.Rollback())
	}

	runningRes, err := tx.NewUpdate().
		Model((*taskModel)(nil)).
		Set("status = ?", task.Queued).
		Set("leased_by = NULL").
		Set("lease_expires_at = NULL").
		Set("backend_job_id = NULL").
		Set("started_at = NULL").
		Where("status = ?", task.Running).
		Where("last_heartbeat_at < ?", staleBefore).
		Exec(ctx)
	if err != nil {
		return taskq.StaleCounts{}, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return taskq.StaleCounts{}, err
	}

	return taskq.StaleCounts{
		ExpiredLeases: getAffected(expiredRes),
		StaleRunning:  getAffected(runningRes),
	}, nil
}
