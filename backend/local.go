package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/arcflow-systems/taskq/task"
)

// LocalAdapter is the reference Synchronous adapter: it runs entirely
// in-process and exists mainly to exercise the orchestrator's
// lease/mark_running/heartbeat/mark_done path without any external
// system.
//
// It recognizes two task_type values:
//
//	demo_sleep — sleeps payload["sleep_s"] seconds (0 if absent), then
//	  returns {ok: true, task_type, slept, echo: payload}.
//	demo_fail  — always returns an error, for exercising retry-budget
//	  exhaustion.
//
// Any other task_type is rejected by Supports, leaving it for another
// adapter (or MarkFailed(retry=true) if none matches).
type LocalAdapter struct{}

// NewLocalAdapter constructs a LocalAdapter.
func NewLocalAdapter() *LocalAdapter {
	return &LocalAdapter{}
}

func (a *LocalAdapter) Name() string { return "local" }

func (a *LocalAdapter) Kind() Kind { return Synchronous }

func (a *LocalAdapter) Supports(taskType string) bool {
	return taskType == "demo_sleep" || taskType == "demo_fail"
}

func (a *LocalAdapter) Run(ctx context.Context, t *task.Task) (task.Document, error) {
	switch t.TaskType {
	case "demo_fail":
		return nil, fmt.Errorf("demo_fail: task %s always fails", t.Id)
	case "demo_sleep":
		sleepS := 0.0
		if v, ok := t.Payload["sleep_s"]; ok {
			sleepS = toFloat(v)
		}
		if sleepS > 0 {
			timer := time.NewTimer(time.Duration(sleepS * float64(time.Second)))
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		return task.Document{
			"ok":        true,
			"task_type": t.TaskType,
			"slept":     sleepS,
			"echo":      t.Payload,
		}, nil
	default:
		return nil, fmt.Errorf("local adapter does not support task_type %q", t.TaskType)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
