package taskq_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/task"
)

type mockCleaner struct {
	count atomic.Int64

	mu         sync.Mutex
	lastBefore *time.Time
}

func (m *mockCleaner) Clean(ctx context.Context, status task.Status, runID *uuid.UUID, before *time.Time) (int64, error) {
	m.count.Add(1)
	m.mu.Lock()
	m.lastBefore = before
	m.mu.Unlock()
	return 1, nil
}

func (m *mockCleaner) before() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBefore
}

func TestCleanWorkerBasic(t *testing.T) {
	cleaner := &mockCleaner{}
	logger := slog.Default()

	cfg := &taskq.CleanConfig{
		Status:   task.Done,
		Interval: 30 * time.Millisecond,
		Before:   false,
	}

	w := taskq.NewCleanWorker(cleaner, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}

	if cleaner.count.Load() == 0 {
		t.Fatal("expected cleaner to run at least once")
	}
}

func TestCleanWorkerLifecycleErrors(t *testing.T) {
	cleaner := &mockCleaner{}
	logger := slog.Default()

	cfg := &taskq.CleanConfig{
		Status:   task.Done,
		Interval: time.Second,
	}

	w := taskq.NewCleanWorker(cleaner, cfg, logger)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != taskq.ErrDoubleStarted {
		t.Fatalf("expected ErrDoubleStarted, got %v", err)
	}
	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(time.Second); err != taskq.ErrDoubleStopped {
		t.Fatalf("expected ErrDoubleStopped, got %v", err)
	}
}

func TestCleanWorkerBeforeStampAppliesDelta(t *testing.T) {
	cleaner := &mockCleaner{}
	cfg := &taskq.CleanConfig{
		Status:   task.Unknown,
		Interval: time.Hour,
		Before:   true,
		Delta:    time.Hour,
	}
	w := taskq.NewCleanWorker(cleaner, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(time.Second)

	time.Sleep(20 * time.Millisecond)
	if cleaner.count.Load() == 0 {
		t.Fatal("expected the initial clean pass to run immediately on Start")
	}
	before := cleaner.before()
	if before == nil {
		t.Fatal("expected Before=true to pass a non-nil before stamp")
	}
	if age := time.Since(*before); age < time.Hour || age > time.Hour+time.Minute {
		t.Fatalf("expected the before stamp to be now - Delta (1h), got %v ago", age)
	}
}
