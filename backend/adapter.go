// Package backend defines the two-shape contract an Orchestrator uses
// to dispatch a task to an execution engine, and ships three concrete
// adapters: local (in-process, synchronous), slurm (detached, via a
// Slurm batch scheduler) and boinc (detached, via a volunteer-computing
// project server).
package backend

import (
	"context"
	"fmt"

	"github.com/arcflow-systems/taskq/task"
)

// Kind distinguishes the two execution shapes an adapter can offer.
type Kind int

const (
	// Synchronous adapters run a task to completion within the calling
	// goroutine and return its result or error directly.
	Synchronous Kind = iota
	// Detached adapters submit a task to an external system and return
	// an opaque handle; completion is reported asynchronously, either
	// through Poll or through a signed callback.
	Detached
)

func (k Kind) String() string {
	switch k {
	case Synchronous:
		return "synchronous"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// JobState is the coarse status an external scheduler reports for a
// submitted job.
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	// JobFinished means the external system no longer considers the job
	// active — it may have succeeded, failed, or been purged from the
	// scheduler's own history. The orchestrator treats this as a signal
	// to start waiting for the result callback, not as the result
	// itself.
	JobFinished
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Adapter is the common surface every execution backend implements.
// Concrete adapters also implement either SyncAdapter or
// DetachedAdapter (never both), and the Orchestrator type-switches on
// which to decide how to drive them.
type Adapter interface {
	// Name identifies this adapter; it is stored verbatim in a task's
	// backend column.
	Name() string

	// Kind reports whether this adapter is Synchronous or Detached.
	Kind() Kind

	// Supports reports whether this adapter can execute the given
	// task_type. An Orchestrator holding several adapters picks the
	// first whose Supports call returns true.
	Supports(taskType string) bool
}

// SyncAdapter runs a task to completion in the calling goroutine.
type SyncAdapter interface {
	Adapter

	// Run executes t and returns its result document, or an error if
	// execution failed. Run must respect ctx cancellation.
	Run(ctx context.Context, t *task.Task) (task.Document, error)
}

// DetachedAdapter submits a task to an external system and later
// reports its coarse state through Poll. It never produces a task's
// final result itself — that arrives through the signed callback
// ingest — but Poll lets the Orchestrator notice when the external job
// appears to have finished so it can bound how long it waits for the
// callback.
type DetachedAdapter interface {
	Adapter

	// Submit hands t to the external system and returns an opaque
	// handle identifying it there. Submit failing is treated as an
	// execution failure (subject to the task's normal retry budget),
	// not as a transient store error.
	Submit(ctx context.Context, t *task.Task) (handle string, err error)

	// Poll reports the external system's coarse view of handle's
	// state.
	Poll(ctx context.Context, handle string) (JobState, error)
}
