// Package sql provides a bun-based SQL storage implementation of every
// taskq interface: Enqueuer, Store, Observer, Cleaner and Janitor.
//
// # Overview
//
// The SQL backend provides:
//
//   - durable persistence of tasks in a single "tasks" table
//   - atomic lease/heartbeat/outcome transitions guarded by leased_by
//     preconditions
//   - skip-locked row reservation for lease_one on PostgreSQL
//   - a server-side trigger maintaining updated_at on every mutation
//   - a server-side merge of heartbeat metadata into worker_meta
//     (shallow on PostgreSQL; on SQLite json_patch merges nested
//     objects recursively and drops keys whose new value is null)
//
// It is compatible with SQLite (via modernc.org/sqlite) and PostgreSQL
// (via jackc/pgx/v5/stdlib), selected by Open based on the DSN scheme.
//
// # Concurrency Model
//
// LeaseOne is implemented as a single UPDATE statement whose WHERE
// clause is a subquery selecting the highest-priority eligible row.
// On PostgreSQL the subquery carries FOR UPDATE SKIP LOCKED so
// concurrent leasers never block or collide; SQLite's single-writer
// model makes the clause unnecessary there.
//
// Every other Store method is a single guarded UPDATE: the WHERE
// clause encodes the operation's precondition (leased_by match, a
// status set, an attempts budget), and zero rows affected is how
// ownership loss is detected, never a separate read-then-write.
//
// # Schema
//
// The backend expects a "tasks" table corresponding to taskModel.
// InitDB creates:
//
//   - the tasks table (if not exists)
//   - index (status, priority, created_at) for lease_one
//   - index (status, lease_expires_at) for the janitor
//   - index (run_id) for batch lookup and cleanup
//   - a trigger maintaining updated_at
//
// InitDB is idempotent and the structural DDL runs inside a
// transaction; the trigger is installed as a following statement.
//
// # Database Lifecycle
//
// This package does not manage migrations beyond InitDB. Callers are
// responsible for connection limits and, for SQLite, relying on Open's
// WAL/busy_timeout configuration rather than overriding it.
//
// # Limitations
//
// Delivery remains at-least-once: Store does not use lease tokens or
// optimistic-locking versions beyond the leased_by string comparison
// itself.
//
// # Summary
//
// Package sql provides a pragmatic, storage-backed implementation of
// taskq suitable for embedded (SQLite) development and server-grade
// (PostgreSQL) deployment, while keeping queue logic storage-agnostic.
package sql
