package task

import (
	"time"

	"github.com/google/uuid"
)

// Document is an opaque, arbitrarily nested key/value structure. The
// core never introspects Document values; it treats them as JSON at
// the store boundary. Used for Payload, Result and WorkerMeta.
type Document map[string]any

// Spec holds the fields a producer supplies when enqueuing a task. It
// carries no delivery or scheduling state; that is added by the store
// on insert and maintained thereafter by Store operations.
type Spec struct {
	Id            uuid.UUID
	TaskType      string
	N             int
	Priority      int
	MaxAttempts   uint32
	TargetBackend *string
	RunID         *uuid.UUID
	Payload       Document
}

// NewSpec creates a Spec with a freshly generated Id and a default
// MaxAttempts of 1 (single attempt, no retry) unless overridden by the
// caller before enqueuing.
func NewSpec(taskType string) *Spec {
	return &Spec{
		Id:          uuid.New(),
		TaskType:    taskType,
		MaxAttempts: 1,
	}
}

// Task is a Spec augmented with the lifecycle state maintained by the
// queue protocol: status, lease ownership, backend assignment, and
// outcome. Task values returned by Store/Observer operations are
// authoritative snapshots; mutating them locally has no effect on
// storage. All transitions happen through a Store.
type Task struct {
	Spec

	Status   Status
	Attempts uint32

	Backend      *string
	BackendJobID *string

	LeasedBy        *string
	LeasedAt        *time.Time
	LeaseExpiresAt  *time.Time
	LastHeartbeatAt *time.Time

	Result Document
	Error  *string

	StartedAt  *time.Time
	FinishedAt *time.Time
	ExitCode   *int

	WorkerMeta Document

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanRetry reports whether the task has remaining attempt budget, i.e.
// whether a mark_failed(retry=true) call is legal: attempts <
// max_attempts.
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}
