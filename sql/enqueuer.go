package sql

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/arcflow-systems/taskq/task"
)

// Enqueuer implements taskq.Enqueuer using a SQL backend.
//
// Enqueuer inserts new tasks into storage in the queued state. It
// performs no deduplication; callers that need idempotent enqueue
// must enforce that externally (e.g. a unique index on a caller-chosen
// id, which Enqueue honors if set).
type Enqueuer struct {
	db *bun.DB
}

// NewEnqueuer creates a new SQL-backed Enqueuer.
func NewEnqueuer(db *bun.DB) *Enqueuer {
	return &Enqueuer{db: db}
}

// Enqueue inserts spec as a new queued task and returns its stored
// snapshot.
func (e *Enqueuer) Enqueue(ctx context.Context, spec *task.Spec) (*task.Task, error) {
	model := fromSpec(spec)
	if _, err := e.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, err
	}
	return model.toTask(), nil
}
