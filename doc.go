// Package taskq provides a distributed task queue with pluggable
// execution backends, built around a durable lease protocol over a
// relational store.
//
// # Overview
//
// taskq models a durable work queue with explicit state transitions.
// It separates producer-facing fields (task.Spec) from delivery state
// (task.Task) and defines interfaces for enqueuing, leasing, observing,
// cleaning and recovering tasks.
//
// The package does not mandate a particular storage engine; the sql
// package implements every interface here against SQLite and
// PostgreSQL via bun. Dispatch to an execution backend (in-process,
// batch scheduler, volunteer-computing platform) is delegated to the
// backend package's two-shape adapter contract.
//
// # Delivery Semantics
//
// taskq provides at-least-once processing guarantees, not
// exactly-once. A task may be executed more than once if:
//
//   - an orchestrator crashes before finalizing it
//   - its lease expires before completion
//   - the janitor reclaims it after a stale heartbeat
//
// Backend adapters must therefore be idempotent, or rely on the
// at-most-once attempts budget to bound retries.
//
// # Lease Model
//
// LeaseOne transitions a task from queued to leased and stamps
// lease_expires_at. While the lease is unexpired, the task is not
// eligible for another LeaseOne call. MarkRunning advances it to
// running once the backend adapter has started; Heartbeat extends the
// lease and records worker metadata while work is outstanding.
//
// If the lease expires, or the last heartbeat goes stale while
// running, the task becomes reclaimable again — by the next LeaseOne
// call for an expired lease, or by the Janitor for a stale running
// row.
//
// # State Machine
//
// Tasks follow this lifecycle:
//
//	queued  -> leased -> running -> done
//	queued  -> leased -> running -> failed
//	leased  -> queued                (lease expiry, lazily or via Janitor)
//	running -> queued                (Janitor, stale heartbeat)
//	failed  -> queued                (MarkFailed retry=true)
//	queued/leased/running -> canceled
//
// Terminal states (done, failed, canceled) are sticky: no operation
// transitions out of them, except that MarkFailed(retry=true) writes
// queued in place of failed.
//
// # Retry Policy
//
// Unlike a computed backoff delay, a taskq retry is an immediate
// requeue: MarkFailed(retry=true) sets status back to queued with no
// scheduled delay, and the task competes for the next LeaseOne call
// like any other queued row. The attempts counter, billed once per
// queued->leased transition, is what bounds total retries via
// attempts < max_attempts; there is no exponential backoff on the task
// itself. (BackoffConfig in this package instead governs how the
// Orchestrator paces its own retries after a transient store error —
// see backoff.go.)
//
// # Orchestrator
//
// Orchestrator coordinates leasing, dispatching to a backend adapter,
// heartbeating and reconciling outcome. Unlike a pool-based worker, it
// processes one task at a time per process: concurrency comes from
// running many Orchestrator processes, each bound to one
// target_backend filter, not from fan-out within a single process.
//
// Orchestrator does not guarantee exactly-once delivery.
//
// # Interfaces
//
// taskq defines the following primary interfaces:
//
//	Enqueuer — submit new tasks
//	Store    — manage the lease/heartbeat/outcome state machine
//	Observer — inspect task state
//	Cleaner  — remove terminal tasks
//	Janitor  — recover tasks abandoned by a dead leaseholder
//
// These interfaces let storage implementations be plugged in without
// coupling queue logic to one database.
//
// # Concurrency Model
//
// Orchestrator's work loop is single-threaded: lease one, execute,
// reconcile, repeat. JanitorWorker and CleanWorker run on independent
// timers and do not interact with in-flight leases.
//
// Shutdown works the same way for all three: Stop cancels the context
// the in-flight work runs under and waits, up to a configurable
// timeout, for the loop to return.
//
// # Storage Expectations
//
// Implementations of Store must ensure atomic state transitions,
// durable persistence, and SKIP LOCKED-safe concurrent leasing.
//
// taskq assumes storage provides reliable write semantics and a
// server-side trigger maintaining updated_at; behavior under
// concurrent writers depends on the chosen backend's isolation level.
//
// # Summary
//
// taskq provides a structured foundation for building durable,
// crash-tolerant background processing systems with explicit lifecycle
// control, at-least-once delivery and pluggable execution backends.
package taskq
