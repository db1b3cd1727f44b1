package taskq

import (
	"context"

	"github.com/arcflow-systems/taskq/task"
)

// Enqueuer defines the write-side entry point used by producers to
// submit new work. Everything past insertion is driven by Store, with
// Janitor and Cleaner handling recovery and retention.
type Enqueuer interface {

	// Enqueue inserts spec as a new task in the queued state.
	//
	// Implementations are expected to:
	//
	//   - assign Id if spec.Id is the zero UUID
	//   - persist the task durably before returning nil
	//   - default MaxAttempts to 1 if unset
	//
	// Enqueue must not mutate spec's Id after returning. If Enqueue
	// returns a non-nil error, the task must not be considered enqueued.
	Enqueue(ctx context.Context, spec *task.Spec) (*task.Task, error)
}
