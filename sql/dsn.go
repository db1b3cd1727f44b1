package sql

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

// dialectKind distinguishes the two supported storage engines. The
// lease_one predicate's null-equivalent target_backend comparison and
// the updated_at trigger DDL both branch on this.
type dialectKind int

const (
	dialectSQLite dialectKind = iota
	dialectPostgres
)

// Open opens a *bun.DB for dsn and returns it along with which dialect
// was selected. dsn beginning with "postgres://" or "postgresql://"
// selects PostgreSQL via jackc/pgx; anything else (including a bare
// file path or "file::memory:") is treated as a SQLite DSN via
// modernc.org/sqlite, matching the teacher's dialect-agnostic stance
// on bun.DB construction.
func Open(dsn string) (*bun.DB, dialectKind, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

func openPostgres(dsn string) (*bun.DB, dialectKind, error) {
	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, dialectPostgres, fmt.Errorf("sql: opening postgres dsn: %w", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	return db, dialectPostgres, nil
}

func openSQLite(dsn string) (*bun.DB, dialectKind, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dialectSQLite, fmt.Errorf("sql: opening sqlite dsn: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, dialectSQLite, fmt.Errorf("sql: setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, dialectSQLite, fmt.Errorf("sql: setting busy_timeout: %w", err)
	}
	return db, dialectSQLite, nil
}
