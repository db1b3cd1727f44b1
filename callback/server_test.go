package callback_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/callback"
	"github.com/arcflow-systems/taskq/task"
)

type fakeFinalizer struct {
	markDoneCalls   []uuid.UUID
	markFailedCalls []uuid.UUID
	err             error
}

func (f *fakeFinalizer) MarkDone(ctx context.Context, id uuid.UUID, leasedBy string, result task.Document) error {
	f.markDoneCalls = append(f.markDoneCalls, id)
	return f.err
}

func (f *fakeFinalizer) MarkFailed(ctx context.Context, id uuid.UUID, leasedBy string, errMsg string, retry bool) error {
	f.markFailedCalls = append(f.markFailedCalls, id)
	return f.err
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleTaskResultSuccess(t *testing.T) {
	fin := &fakeFinalizer{}
	srv := callback.NewServer(fin, &callback.Config{Secret: "shh"}, discardLogger())

	id := uuid.New()
	body, _ := json.Marshal(map[string]any{
		"task_id":   id.String(),
		"leased_by": "worker-1",
		"ok":        true,
		"result":    map[string]any{"ok": true},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/task-result", bytes.NewReader(body))
	req.Header.Set("x-task-sig", signBody("shh", body))
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(fin.markDoneCalls) != 1 || fin.markDoneCalls[0] != id {
		t.Fatalf("expected MarkDone called once with %s, got %v", id, fin.markDoneCalls)
	}
}

func TestHandleTaskResultFailure(t *testing.T) {
	fin := &fakeFinalizer{}
	srv := callback.NewServer(fin, &callback.Config{Secret: "shh"}, discardLogger())

	id := uuid.New()
	errMsg := "out of memory"
	body, _ := json.Marshal(map[string]any{
		"task_id":   id.String(),
		"leased_by": "worker-1",
		"ok":        false,
		"error":     errMsg,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/task-result", bytes.NewReader(body))
	req.Header.Set("x-task-sig", signBody("shh", body))
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(fin.markFailedCalls) != 1 || fin.markFailedCalls[0] != id {
		t.Fatalf("expected MarkFailed called once with %s, got %v", id, fin.markFailedCalls)
	}
}

func TestHandleTaskResultBadSignature(t *testing.T) {
	fin := &fakeFinalizer{}
	srv := callback.NewServer(fin, &callback.Config{Secret: "shh"}, discardLogger())

	body, _ := json.Marshal(map[string]any{"task_id": uuid.New().String(), "ok": true})
	req := httptest.NewRequest(http.MethodPost, "/v1/task-result", bytes.NewReader(body))
	req.Header.Set("x-task-sig", signBody("wrong-secret", body))
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(fin.markDoneCalls) != 0 {
		t.Fatal("expected no store mutation on a bad signature")
	}
}

func TestHandleTaskResultIgnoresLostLease(t *testing.T) {
	fin := &fakeFinalizer{err: taskq.ErrLockLost}
	srv := callback.NewServer(fin, &callback.Config{Secret: "shh"}, discardLogger())

	body, _ := json.Marshal(map[string]any{"task_id": uuid.New().String(), "ok": true})
	req := httptest.NewRequest(http.MethodPost, "/v1/task-result", bytes.NewReader(body))
	req.Header.Set("x-task-sig", signBody("shh", body))
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with ignored status, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ignored" {
		t.Fatalf("expected status=ignored, got %v", resp["status"])
	}
}

func TestHealthz(t *testing.T) {
	fin := &fakeFinalizer{}
	srv := callback.NewServer(fin, &callback.Config{Secret: "shh"}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
