package taskq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcflow-systems/taskq/task"
)

// Store defines the atomic queue-protocol operations described by the
// lease/heartbeat/outcome state machine. Every operation here commits
// or rolls back as a single transaction; none hold locks beyond their
// own call.
//
// Store provides at-least-once delivery: a task may be leased more
// than once if an orchestrator crashes or its lease expires before
// completion. Backend adapters invoked on behalf of a leased task must
// be safe to run more than once for the same task.
type Store interface {

	// LeaseOne selects the highest-priority eligible task matching
	// targetBackend and atomically transitions it to leased.
	//
	// Eligibility: status is queued, or status is leased with an
	// expired lease_expires_at; attempts < max_attempts; status is not
	// canceled; target_backend matches targetBackend using
	// null-equivalent comparison (a nil targetBackend only matches rows
	// with a nil target_backend).
	//
	// Ordering is priority DESC, created_at ASC within the selecting
	// transaction's snapshot; there is no ordering guarantee across
	// concurrent callers. Row selection uses SKIP LOCKED semantics so
	// concurrent leasers never block or collide.
	//
	// On a match, attempts is incremented only if the prior status was
	// queued (reclaiming an expired lease does not re-bill the
	// attempt). leased_by, leased_at, last_heartbeat_at and
	// lease_expires_at are stamped.
	//
	// LeaseOne returns (nil, nil) if no eligible row exists.
	LeaseOne(ctx context.Context, leasedBy string, leaseSeconds time.Duration, targetBackend *string) (*task.Task, error)

	// MarkRunning transitions a leased task to running and stamps the
	// backend identity. Preconditions: leased_by matches and status is
	// leased. StartedAt is set the first time only.
	//
	// If the precondition fails, MarkRunning affects zero rows and
	// returns ErrLockLost: the caller has lost ownership and should
	// abandon the task.
	MarkRunning(ctx context.Context, id uuid.UUID, leasedBy string, backend string, backendJobID *string) error

	// Heartbeat extends the lease and records worker metadata.
	// Preconditions: leased_by matches and status is leased or running.
	//
	// lease_expires_at is extended by leaseSeconds from now,
	// last_heartbeat_at is refreshed, and meta is shallow-merged into
	// worker_meta inside the same transaction (not read-modify-write),
	// so concurrent heartbeats never lose content.
	//
	// Heartbeat is idempotent. On precondition failure it returns
	// ErrLockLost.
	Heartbeat(ctx context.Context, id uuid.UUID, leasedBy string, leaseSeconds time.Duration, meta task.Document) error

	// MarkDone transitions a leased task to done. Preconditions:
	// leased_by matches and status is leased or running, so a terminal
	// row is never changed. Stores result, clears error, stamps
	// finished_at and exit_code=0, nulls lease_expires_at.
	//
	// The leased_by precondition is what prevents a delayed callback
	// from a prior orchestrator incarnation from clobbering a row that
	// has since been re-leased. On precondition failure it returns
	// ErrLockLost.
	MarkDone(ctx context.Context, id uuid.UUID, leasedBy string, result task.Document) error

	// MarkFailed records a failure. Preconditions: leased_by matches and
	// status is leased or running; on a canceled task it returns
	// ErrConflict.
	//
	// If retry is false: status becomes failed, error/finished_at/
	// exit_code=1 are stamped, leased_by and lease_expires_at are
	// retained as-is for post-mortem inspection.
	//
	// If retry is true: status becomes queued (not failed), error is
	// recorded, leased_by and lease_expires_at are cleared. Retry is
	// only legal when attempts < max_attempts; implementations should
	// reject an out-of-budget retry request.
	//
	// On precondition failure it returns ErrLockLost.
	MarkFailed(ctx context.Context, id uuid.UUID, leasedBy string, errMsg string, retry bool) error

	// Cancel transitions any non-terminal task to canceled.
	//
	// Cancel returns ErrConflict if the task is already done, failed,
	// or canceled, and ErrTaskLost if the task does not exist. Cancel
	// does not signal a running backend job; terminal status is sticky
	// either way.
	Cancel(ctx context.Context, id uuid.UUID) error
}
