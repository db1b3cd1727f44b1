package sql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arcflow-systems/taskq/task"
)

// Observer implements taskq.Observer using a SQL backend.
//
// Observer provides read-only access to task state stored in the
// database. It does not participate in lease handling or state
// transitions and must not modify task records.
//
// Returned Task values represent authoritative snapshots of storage
// state at the time of the query.
type Observer struct {
	db *bun.DB
}

// NewObserver creates a new SQL-backed Observer.
func NewObserver(db *bun.DB) *Observer {
	return &Observer{db: db}
}

// Get retrieves a task by its identifier, or (nil, nil) if absent.
func (o *Observer) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	var ret taskModel
	err := o.db.NewSelect().
		Model(&ret).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ret.toTask(), nil
}

// List returns up to limit tasks matching status and, if runID is
// non-nil, matching run_id. task.Unknown applies no status filter;
// limit <= 0 applies no limit.
func (o *Observer) List(ctx context.Context, status task.Status, runID *uuid.UUID, limit int) ([]*task.Task, error) {
	var models []*taskModel
	query := o.db.NewSelect().Model(&models)
	if status != task.Unknown {
		query = query.Where("status = ?", status)
	}
	if runID != nil {
		query = query.Where("run_id = ?", *runID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	query = query.Order("priority DESC", "created_at ASC")
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*task.Task, len(models))
	for i, m := range models {
		ret[i] = m.toTask()
	}
	return ret, nil
}
