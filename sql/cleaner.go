package sql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/task"
)

// Cleaner implements taskq.Cleaner using a SQL backend.
//
// Cleaner permanently removes terminal tasks from storage. It is
// intended for retention management and administrative cleanup and
// never touches queued, leased or running rows.
type Cleaner struct {
	db *bun.DB
}

// NewCleaner creates a new SQL-backed Cleaner.
func NewCleaner(db *bun.DB) *Cleaner {
	return &Cleaner{db: db}
}

// Clean deletes tasks matching status, runID and a time condition.
func (c *Cleaner) Clean(ctx context.Context, status task.Status, runID *uuid.UUID, before *time.Time) (int64, error) {
	if status != task.Unknown && !status.Terminal() {
		return 0, taskq.ErrBadStatus
	}

	query := c.db.NewDelete().Model((*taskModel)(nil))
	if status != task.Unknown {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status IN (?, ?, ?)", task.Done, task.Failed, task.Canceled)
	}
	if runID != nil {
		query = query.Where("run_id = ?", *runID)
	}
	if before != nil {
		query = query.Where("updated_at <= ?", *before)
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}
