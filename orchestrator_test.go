package taskq_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/backend"
	"github.com/arcflow-systems/taskq/task"
)

// fakeStore is a minimal in-memory taskq.Store + taskq.Observer used
// to exercise Orchestrator without a real database.
type fakeStore struct {
	mu         sync.Mutex
	tasks      map[uuid.UUID]*task.Task
	leaseCalls int
}

func newFakeStore(tasks ...*task.Task) *fakeStore {
	fs := &fakeStore{tasks: map[uuid.UUID]*task.Task{}}
	for _, t := range tasks {
		fs.tasks[t.Id] = t
	}
	return fs
}

func (fs *fakeStore) LeaseOne(ctx context.Context, leasedBy string, leaseSeconds time.Duration, targetBackend *string) (*task.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.leaseCalls++
	for _, t := range fs.tasks {
		if t.Status != task.Queued {
			continue
		}
		t.Status = task.Leased
		t.Attempts++
		t.LeasedBy = &leasedBy
		return t, nil
	}
	return nil, nil
}

func (fs *fakeStore) MarkRunning(ctx context.Context, id uuid.UUID, leasedBy string, bk string, backendJobID *string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t := fs.tasks[id]
	t.Status = task.Running
	t.Backend = &bk
	t.BackendJobID = backendJobID
	return nil
}

func (fs *fakeStore) Heartbeat(ctx context.Context, id uuid.UUID, leasedBy string, leaseSeconds time.Duration, meta task.Document) error {
	return nil
}

func (fs *fakeStore) MarkDone(ctx context.Context, id uuid.UUID, leasedBy string, result task.Document) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t := fs.tasks[id]
	t.Status = task.Done
	t.Result = result
	return nil
}

func (fs *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, leasedBy string, errMsg string, retry bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t := fs.tasks[id]
	t.Error = &errMsg
	if retry {
		t.Status = task.Queued
	} else {
		t.Status = task.Failed
	}
	return nil
}

func (fs *fakeStore) Cancel(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (fs *fakeStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tasks[id], nil
}

func (fs *fakeStore) List(ctx context.Context, status task.Status, runID *uuid.UUID, limit int) ([]*task.Task, error) {
	return nil, nil
}

func (fs *fakeStore) statusOf(id uuid.UUID) task.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tasks[id].Status
}

func (fs *fakeStore) leaseCallCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.leaseCalls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(devNull{}, nil))
}

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func demoConfig() *taskq.Config {
	return &taskq.Config{
		LeaseSeconds:         time.Minute,
		PollSeconds:          5 * time.Millisecond,
		JobPollSeconds:       5 * time.Millisecond,
		FinishedGraceSeconds: 50 * time.Millisecond,
		Mode:                 taskq.ModeDemo,
		IdleExitSeconds:      30 * time.Millisecond,
		Backoff: taskq.BackoffConfig{
			InitialInterval: time.Millisecond,
			MaxInterval:     10 * time.Millisecond,
			Multiplier:      2,
		},
	}
}

func TestOrchestratorRunsSyncTaskToCompletion(t *testing.T) {
	spec := task.NewSpec("demo_sleep")
	spec.Payload = task.Document{"sleep_s": 0}
	spec.MaxAttempts = 1
	tk := &task.Task{Spec: *spec, Status: task.Queued}

	store := newFakeStore(tk)
	orch := taskq.NewOrchestrator(store, store, []backend.Adapter{backend.NewLocalAdapter()}, "test-worker", demoConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := orch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer orch.Stop(time.Second)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if store.statusOf(tk.Id) == task.Done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected task to reach Done, got %v", store.statusOf(tk.Id))
}

func TestOrchestratorMarksFailedWithoutRetryBudget(t *testing.T) {
	spec := task.NewSpec("demo_fail")
	spec.MaxAttempts = 1
	tk := &task.Task{Spec: *spec, Status: task.Queued, Attempts: 0}

	store := newFakeStore(tk)
	orch := taskq.NewOrchestrator(store, store, []backend.Adapter{backend.NewLocalAdapter()}, "test-worker", demoConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := orch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer orch.Stop(time.Second)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if store.statusOf(tk.Id) == task.Failed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected task to reach Failed, got %v", store.statusOf(tk.Id))
}

func TestOrchestratorUnsupportedTaskTypeFailsWithRetry(t *testing.T) {
	spec := task.NewSpec("nobody_handles_this")
	spec.MaxAttempts = 5
	tk := &task.Task{Spec: *spec, Status: task.Queued}

	store := newFakeStore(tk)
	orch := taskq.NewOrchestrator(store, store, []backend.Adapter{backend.NewLocalAdapter()}, "test-worker", demoConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := orch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer orch.Stop(time.Second)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		if store.statusOf(tk.Id) == task.Queued && store.tasks[tk.Id].Error != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected task to be requeued with an error recorded, got status=%v", store.statusOf(tk.Id))
}

func TestOrchestratorDemoModeExitsWhenIdle(t *testing.T) {
	store := newFakeStore()
	orch := taskq.NewOrchestrator(store, store, []backend.Adapter{backend.NewLocalAdapter()}, "test-worker", demoConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := orch.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Well past IdleExitSeconds the loop has returned on its own, so
	// LeaseOne is no longer being called before Stop cancels anything.
	time.Sleep(200 * time.Millisecond)
	n := store.leaseCallCount()
	time.Sleep(50 * time.Millisecond)
	if got := store.leaseCallCount(); got != n {
		t.Fatalf("expected no LeaseOne calls after the idle timeout, got %d more", got-n)
	}

	err := orch.Stop(500 * time.Millisecond)
	if err != nil {
		t.Fatalf("expected the demo-mode loop to have exited on its own idle timeout, Stop returned: %v", err)
	}
}

func TestOrchestratorDoubleStartFails(t *testing.T) {
	store := newFakeStore()
	orch := taskq.NewOrchestrator(store, store, []backend.Adapter{backend.NewLocalAdapter()}, "test-worker", demoConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := orch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer orch.Stop(time.Second)

	if err := orch.Start(ctx); err != taskq.ErrDoubleStarted {
		t.Fatalf("expected ErrDoubleStarted, got %v", err)
	}
}
