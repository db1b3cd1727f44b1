package sql

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*taskModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createLeaseIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*taskModel)(nil)).
		Index("idx_tasks_status_priority_created").
		Column("status", "priority", "created_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createJanitorIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*taskModel)(nil)).
		Index("idx_tasks_status_lease_expires").
		Column("status", "lease_expires_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createRunIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*taskModel)(nil)).
		Index("idx_tasks_run_id").
		Column("run_id").
		IfNotExists().
		Exec(ctx)
	return err
}

// createUpdatedTrigger installs a server-side trigger that stamps
// updated_at on every UPDATE, per spec: "updated_at set on every
// mutation by a store-side trigger", rather than relying on every
// store method to set it client-side.
func createUpdatedTrigger(ctx context.Context, db bun.IDB, kind dialectKind) error {
	switch kind {
	case dialectPostgres:
		if _, err := db.ExecContext(ctx, `
			CREATE OR REPLACE FUNCTION tasks_set_updated_at() RETURNS trigger AS $$
			BEGIN
				NEW.updated_at := now();
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql;
		`); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			DROP TRIGGER IF EXISTS trg_tasks_updated_at ON tasks;
			CREATE TRIGGER trg_tasks_updated_at
				BEFORE UPDATE ON tasks
				FOR EACH ROW
				EXECUTE FUNCTION tasks_set_updated_at();
		`)
		return err
	default: // dialectSQLite
		_, err := db.ExecContext(ctx, `
			CREATE TRIGGER IF NOT EXISTS trg_tasks_updated_at
			AFTER UPDATE ON tasks
			FOR EACH ROW
			BEGIN
				UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
			END;
		`)
		return err
	}
}

func initDB(ctx context.Context, db *bun.DB, kind dialectKind) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createLeaseIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createJanitorIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createRunIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// SQLite's trigger DDL and Postgres's function+trigger DDL are not
	// always valid inside the same transaction as preceding DDL under
	// every driver, so the trigger is installed as its own statement
	// after the structural commit.
	return createUpdatedTrigger(ctx, db, kind)
}

// InitDB initializes the database schema required by the SQL backend:
// the tasks table, the lease-scan and janitor indices required by
// spec, a run_id index for batch lookups/cleanup, and a trigger that
// maintains updated_at on every row mutation.
//
// InitDB is idempotent and may be safely called multiple times. It
// does not drop or modify existing tables beyond creating missing
// objects.
func InitDB(ctx context.Context, db *bun.DB, kind dialectKind) error {
	return initDB(ctx, db, kind)
}

// MustInitDB behaves like InitDB but panics if initialization fails.
//
// This helper is intended for application bootstrap code where failure
// to initialize schema is considered unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB, kind dialectKind) {
	if err := initDB(ctx, db, kind); err != nil {
		panic(err)
	}
}
