package taskq

import (
	"context"

	"github.com/google/uuid"

	"github.com/arcflow-systems/taskq/task"
)

// Observer provides read-only access to tasks stored in the queue.
//
// Observer does not modify task state and does not participate in
// lease or lifecycle transitions. It is intended for diagnostic,
// monitoring, and administrative use.
//
// Returned Task values are authoritative snapshots at the time of the
// call; mutating them does not affect the underlying queue.
type Observer interface {

	// Get returns the task identified by id, or (nil, nil) if no such
	// task exists. Get must not change task state.
	Get(ctx context.Context, id uuid.UUID) (*task.Task, error)

	// List returns up to limit tasks matching status and, if runID is
	// non-nil, matching run_id.
	//
	// status of task.Unknown applies no status filter. limit <= 0
	// applies no limit, subject to storage-specific constraints.
	//
	// List is intended for inspection and administrative use and
	// should not be used as part of normal task consumption.
	List(ctx context.Context, status task.Status, runID *uuid.UUID, limit int) ([]*task.Task, error)
}
