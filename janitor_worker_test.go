package taskq_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	taskq "github.com/arcflow-systems/taskq"
)

type mockJanitor struct {
	requeueCalls atomic.Int64
	countCalls   atomic.Int64
}

func (m *mockJanitor) RequeueStale(ctx context.Context, runningStaleSeconds time.Duration) (taskq.StaleCounts, error) {
	m.requeueCalls.Add(1)
	return taskq.StaleCounts{ExpiredLeases: 1, StaleRunning: 2}, nil
}

func (m *mockJanitor) CountStale(ctx context.Context, runningStaleSeconds time.Duration) (taskq.StaleCounts, error) {
	m.countCalls.Add(1)
	return taskq.StaleCounts{ExpiredLeases: 1}, nil
}

func TestJanitorWorkerAppliesByDefault(t *testing.T) {
	janitor := &mockJanitor{}
	w := taskq.NewJanitorWorker(janitor, &taskq.JanitorConfig{
		RunningStaleSeconds: time.Minute,
		Interval:            30 * time.Millisecond,
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}

	if janitor.requeueCalls.Load() == 0 {
		t.Fatal("expected RequeueStale to be called at least once")
	}
	if janitor.countCalls.Load() != 0 {
		t.Fatal("expected CountStale to never be called outside dry-run")
	}
}

func TestJanitorWorkerDryRunNeverMutates(t *testing.T) {
	janitor := &mockJanitor{}
	w := taskq.NewJanitorWorker(janitor, &taskq.JanitorConfig{
		RunningStaleSeconds: time.Minute,
		Interval:            30 * time.Millisecond,
		DryRun:              true,
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}

	if janitor.countCalls.Load() == 0 {
		t.Fatal("expected CountStale to be called at least once in dry-run")
	}
	if janitor.requeueCalls.Load() != 0 {
		t.Fatal("expected RequeueStale to never be called in dry-run")
	}
}

func TestJanitorWorkerLifecycleErrors(t *testing.T) {
	janitor := &mockJanitor{}
	w := taskq.NewJanitorWorker(janitor, &taskq.JanitorConfig{Interval: time.Second}, slog.Default())

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
