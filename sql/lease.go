package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/task"
)

// Store implements taskq.Store using a SQL backend.
//
// Every method here issues a single UPDATE (or, for LeaseOne, an
// UPDATE over a SELECT ... FOR UPDATE SKIP LOCKED subquery on
// PostgreSQL) guarded by a WHERE clause expressing its precondition.
// Zero rows affected is how ownership loss and stale state are
// detected; Store never reads-then-writes across two round trips for
// its guarded transitions.
type Store struct {
	db   *bun.DB
	kind dialectKind
}

// NewStore creates a new SQL-backed Store. kind must be the value
// returned alongside db by Open, since the null-equivalent
// target_backend comparison and the worker_meta merge expression are
// both dialect-specific.
func NewStore(db *bun.DB, kind dialectKind) *Store {
	return &Store{db: db, kind: kind}
}

func (s *Store) targetBackendPredicate() string {
	if s.kind == dialectPostgres {
		return "target_backend IS NOT DISTINCT FROM ?"
	}
	return "target_backend IS ?"
}

func encodeMeta(meta task.Document) (string, error) {
	if meta == nil {
		meta = task.Document{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) getModel(ctx context.Context, id uuid.UUID) (*taskModel, error) {
	var ret taskModel
	err := s.db.NewSelect().Model(&ret).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

// LeaseOne implements the lease_one queue-protocol operation: see
// taskq.Store for the full eligibility and stamping contract.
func (s *Store) LeaseOne(ctx context.Context, leasedBy string, leaseSeconds time.Duration, targetBackend *string) (*task.Task, error) {
	now := time.Now()
	expiresAt := now.Add(leaseSeconds)

	sub := s.db.NewSelect().
		Model((*taskModel)(nil)).
		Column("id").
		Where("(status = ? OR (status = ? AND lease_expires_at < ?))", task.Queued, task.Leased, now).
		Where("attempts < max_attempts").
		Where("status != ?", task.Canceled).
		Where(s.targetBackendPredicate(), targetBackend).
		OrderExpr("priority DESC, created_at ASC").
		Limit(1)
	if s.kind == dialectPostgres {
		sub = sub.For("UPDATE SKIP LOCKED")
	}

	var models []*taskModel
	err := s.db.NewUpdate().
		Model((*taskModel)(nil)).
		Set("status = ?", task.Leased).
		Set("attempts = CASE WHEN status = ? THEN attempts + 1 ELSE attempts END", task.Queued).
		Set("leased_by = ?", leasedBy).
		Set("leased_at = ?", now).
		Set("last_heartbeat_at = ?", now).
		Set("lease_expires_at = ?", expiresAt).
		Where("id = (?)", sub).
		Returning("*").
		Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toTask(), nil
}

// MarkRunning implements the mark_running queue-protocol operation.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID, leasedBy string, backend string, backendJobID *string) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*taskModel)(nil)).
		Set("status = ?", task.Running).
		Set("backend = ?", backend).
		Set("backend_job_id = ?", backendJobID).
		Set("started_at = COALESCE(started_at, ?)", now).
		Where("id = ?", id).
		Where("leased_by = ?", leasedBy).
		Where("status = ?", task.Leased).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return taskq.ErrLockLost
	}
	return nil
}

// Heartbeat implements the heartbeat queue-protocol operation,
// including the server-side merge of meta into worker_meta. On
// PostgreSQL the merge is shallow (jsonb ||). On SQLite it is
// json_patch, which merges nested objects recursively and removes keys
// whose incoming value is null.
func (s *Store) Heartbeat(ctx context.Context, id uuid.UUID, leasedBy string, leaseSeconds time.Duration, meta task.Document) error {
	now := time.Now()
	expiresAt := now.Add(leaseSeconds)
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return err
	}

	q := s.db.NewUpdate().Model((*taskModel)(nil)).
		Set("lease_expires_at = ?", expiresAt).
		Set("last_heartbeat_at = ?", now)
	if s.kind == dialectPostgres {
		q = q.Set("worker_meta = COALESCE(worker_meta, '{}'::jsonb) || ?::jsonb", metaJSON)
	} else {
		q = q.Set("worker_meta = json_patch(COALESCE(worker_meta, '{}'), ?)", metaJSON)
	}
	res, err := q.
		Where("id = ?", id).
		Where("leased_by = ?", leasedBy).
		Where("status IN (?, ?)", task.Leased, task.Running).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return taskq.ErrLockLost
	}
	return nil
}

// MarkDone implements the mark_done queue-protocol operation.
func (s *Store) MarkDone(ctx context.Context, id uuid.UUID, leasedBy string, result task.Document) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*taskModel)(nil)).
		Set("status = ?", task.Done).
		Set("result = ?", result).
		Set("error = NULL").
		Set("finished_at = ?", now).
		Set("exit_code = ?", 0).
		Set("lease_expires_at = NULL").
		Where("id = ?", id).
		Where("leased_by = ?", leasedBy).
		Where("status IN (?, ?)", task.Leased, task.Running).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return taskq.ErrLockLost
	}
	return nil
}

// MarkFailed implements the mark_failed queue-protocol operation,
// including the retry=true branch that writes queued in place of
// failed.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, leasedBy string, errMsg string, retry bool) error {
	now := time.Now()
	var q *bun.UpdateQuery
	if retry {
		q = s.db.NewUpdate().Model((*taskModel)(nil)).
			Set("status = ?", task.Queued).
			Set("error = ?", errMsg).
			Set("leased_by = NULL").
			Set("lease_expires_at = NULL").
			Where("id = ?", id).
			Where("leased_by = ?", leasedBy).
			Where("attempts < max_attempts").
			Where("status IN (?, ?)", task.Leased, task.Running)
	} else {
		q = s.db.NewUpdate().Model((*taskModel)(nil)).
			Set("status = ?", task.Failed).
			Set("error = ?", errMsg).
			Set("finished_at = ?", now).
			Set("exit_code = ?", 1).
			Where("id = ?", id).
			Where("leased_by = ?", leasedBy).
			Where("status IN (?, ?)", task.Leased, task.Running)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if isAffected(res) {
		return nil
	}

	cur, gerr := s.getModel(ctx, id)
	if gerr != nil {
		return gerr
	}
	if cur != nil && cur.Status == task.Canceled {
		return taskq.ErrConflict
	}
	return taskq.ErrLockLost
}

// Cancel implements the cancel queue-protocol operation.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewUpdate().
		Model((*taskModel)(nil)).
		Set("status = ?", task.Canceled).
		Set("lease_expires_at = NULL").
		Where("id = ?", id).
		Where("status NOT IN (?, ?, ?)", task.Done, task.Failed, task.Canceled).
		Exec(ctx)
	if err != nil {
		return err
	}
	if isAffected(res) {
		return nil
	}

	cur, gerr := s.getModel(ctx, id)
	if gerr != nil {
		return gerr
	}
	if cur == nil {
		return taskq.ErrTaskLost
	}
	return taskq.ErrConflict
}
