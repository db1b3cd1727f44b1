package taskq

import "errors"

var (
	// ErrTaskLost indicates that the referenced task no longer exists,
	// or no longer exists in the state the caller expected.
	ErrTaskLost = errors.New("task lost")

	// ErrLockLost indicates that the caller no longer owns the task's
	// lease: a mutating store operation guarded by leased_by affected
	// zero rows. Per spec, this means the caller has lost ownership and
	// must abandon the task rather than retry the same operation.
	ErrLockLost = errors.New("lease lost")

	// ErrConflict indicates that cancel was called on a task already in
	// a terminal state (done, failed, canceled), or that mark_failed was
	// called on a canceled task. Terminal states are sticky; the caller
	// should treat this as informational, not fatal.
	ErrConflict = errors.New("task already terminal")

	// ErrBadStatus indicates that a Cleaner operation was asked to act
	// on a non-terminal status where only terminal statuses are valid
	// targets.
	ErrBadStatus = errors.New("bad task status")
)
