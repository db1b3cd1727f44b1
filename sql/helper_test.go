package sql_test

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	gsql "github.com/arcflow-systems/taskq/sql"
)

// newTestDB opens an in-memory SQLite database through the same Open
// path production code uses, so dialectKind round-trips correctly
// into InitDB/NewStore without the test package needing to name the
// unexported type itself.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, kind, err := gsql.Open("file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := gsql.InitDB(ctx, db, kind); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestStore(t *testing.T) (*bun.DB, *gsql.Enqueuer, *gsql.Store, *gsql.Observer) {
	t.Helper()
	db, kind, err := gsql.Open("file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := gsql.InitDB(ctx, db, kind); err != nil {
		t.Fatal(err)
	}
	return db, gsql.NewEnqueuer(db), gsql.NewStore(db, kind), gsql.NewObserver(db)
}
