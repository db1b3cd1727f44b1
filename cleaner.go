package taskq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcflow-systems/taskq/task"
)

// Cleaner provides a mechanism for permanently removing terminal tasks
// from storage, e.g. the batch-delete-by-run_id lifecycle step.
//
// Cleaner is intended for administrative and retention-management use.
// It does not participate in the lease protocol and must not modify
// non-terminal rows.
type Cleaner interface {

	// Clean deletes tasks matching status, runID and a time condition.
	//
	// status of task.Unknown targets all terminal statuses (done,
	// failed, canceled). A non-terminal status returns ErrBadStatus.
	//
	// If runID is non-nil, only tasks with a matching run_id are
	// eligible. If before is non-nil, only tasks with updated_at <=
	// *before are eligible. Either filter may be combined with the
	// other or omitted.
	//
	// Clean returns the number of deleted rows. It never touches
	// queued, leased or running tasks.
	Clean(ctx context.Context, status task.Status, runID *uuid.UUID, before *time.Time) (int64, error)
}
