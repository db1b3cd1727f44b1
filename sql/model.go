package sql

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arcflow-systems/taskq/task"
)

// taskModel is the bun mapping for the single "tasks" table. Field
// names mirror the data model table verbatim; see task.Task for the
// domain-facing view.
type taskModel struct {
	bun.BaseModel `bun:"table:tasks"`

	Id uuid.UUID `bun:"id,pk,type:uuid"`

	TaskType    string     `bun:"task_type,notnull"`
	N           int        `bun:"n,notnull,default:0"`
	Priority    int        `bun:"priority,notnull,default:0"`
	MaxAttempts uint32     `bun:"max_attempts,notnull,default:1"`
	RunID       *uuid.UUID `bun:"run_id,type:uuid"`

	Status   task.Status `bun:"status,notnull,default:0"`
	Attempts uint32      `bun:"attempts,notnull,default:0"`

	TargetBackend *string `bun:"target_backend"`
	Backend       *string `bun:"backend"`
	BackendJobID  *string `bun:"backend_job_id"`

	LeasedBy        *string    `bun:"leased_by"`
	LeasedAt        *time.Time `bun:"leased_at"`
	LeaseExpiresAt  *time.Time `bun:"lease_expires_at"`
	LastHeartbeatAt *time.Time `bun:"last_heartbeat_at"`

	Payload task.Document `bun:"payload,type:jsonb"`
	Result  task.Document `bun:"result,type:jsonb"`
	Error   *string       `bun:"error"`

	StartedAt  *time.Time `bun:"started_at"`
	FinishedAt *time.Time `bun:"finished_at"`
	ExitCode   *int       `bun:"exit_code"`

	WorkerMeta task.Document `bun:"worker_meta,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (tm *taskModel) toTask() *task.Task {
	return &task.Task{
		Spec: task.Spec{
			Id:            tm.Id,
			TaskType:      tm.TaskType,
			N:             tm.N,
			Priority:      tm.Priority,
			MaxAttempts:   tm.MaxAttempts,
			TargetBackend: tm.TargetBackend,
			RunID:         tm.RunID,
			Payload:       tm.Payload,
		},
		Status:          tm.Status,
		Attempts:        tm.Attempts,
		Backend:         tm.Backend,
		BackendJobID:    tm.BackendJobID,
		LeasedBy:        tm.LeasedBy,
		LeasedAt:        tm.LeasedAt,
		LeaseExpiresAt:  tm.LeaseExpiresAt,
		LastHeartbeatAt: tm.LastHeartbeatAt,
		Result:          tm.Result,
		Error:           tm.Error,
		StartedAt:       tm.StartedAt,
		FinishedAt:      tm.FinishedAt,
		ExitCode:        tm.ExitCode,
		WorkerMeta:      tm.WorkerMeta,
		CreatedAt:       tm.CreatedAt,
		UpdatedAt:       tm.UpdatedAt,
	}
}

func fromSpec(spec *task.Spec) *taskModel {
	now := time.Now()
	id := spec.Id
	if id == uuid.Nil {
		id = uuid.New()
	}
	maxAttempts := spec.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &taskModel{
		Id:            id,
		TaskType:      spec.TaskType,
		N:             spec.N,
		Priority:      spec.Priority,
		MaxAttempts:   maxAttempts,
		RunID:         spec.RunID,
		TargetBackend: spec.TargetBackend,
		Payload:       spec.Payload,
		Status:        task.Queued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
