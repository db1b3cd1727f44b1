// Package callback implements the signed HTTP endpoint through which
// detached backend workers report task outcomes without the
// orchestrator polling them directly.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	taskq "github.com/arcflow-systems/taskq"
	"github.com/arcflow-systems/taskq/task"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// sigHeader is the header carrying the hex HMAC-SHA256 of the raw
// request body.
const sigHeader = "x-task-sig"

// Finalizer is the subset of taskq.Store the ingest needs to apply a
// callback result on behalf of the original leaseholder.
type Finalizer interface {
	MarkDone(ctx context.Context, id uuid.UUID, leasedBy string, result task.Document) error
	MarkFailed(ctx context.Context, id uuid.UUID, leasedBy string, errMsg string, retry bool) error
}

// Config configures a Server.
//
// Secret is the shared HMAC key; an empty Secret makes every request
// fail verification (see verify).
//
// RateLimitRPS <= 0 disables per-IP rate limiting.
type Config struct {
	Secret         string
	RateLimitRPS   float64
	RateLimitBurst int
	RateLimitTTL   time.Duration
}

// Server is the HTTP callback ingest: GET /healthz and POST
// /v1/task-result.
type Server struct {
	store   Finalizer
	secret  []byte
	limiter *ipLimiter
	log     *slog.Logger
	router  *mux.Router
}

// NewServer constructs a Server. The returned value implements
// http.Handler and can be passed directly to http.Server or httptest.
func NewServer(store Finalizer, cfg *Config, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		secret: []byte(cfg.Secret),
		log:    log,
	}
	if cfg.RateLimitRPS > 0 {
		ttl := cfg.RateLimitTTL
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		s.limiter = newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, ttl)
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/v1/task-result", s.rateLimitMiddleware(http.HandlerFunc(s.handleTaskResult))).Methods(http.MethodPost)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type resultEnvelope struct {
	TaskID   string        `json:"task_id"`
	LeasedBy string        `json:"leased_by"`
	Ok       bool          `json:"ok"`
	Result   task.Document `json:"result,omitempty"`
	Error    *string       `json:"error,omitempty"`
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "cannot read body"})
		return
	}

	sig := r.Header.Get(sigHeader)
	if !verify(s.secret, body, sig) {
		s.log.Warn("callback signature mismatch", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "bad signature"})
		return
	}

	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed envelope"})
		return
	}

	taskID, err := uuid.Parse(env.TaskID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed task_id"})
		return
	}

	ctx := r.Context()
	var status string
	var finalizeErr error
	if env.Ok {
		result := env.Result
		if result == nil {
			result = task.Document{"ok": true}
		}
		finalizeErr = s.store.MarkDone(ctx, taskID, env.LeasedBy, result)
		status = "done"
	} else {
		msg := "unknown error"
		if env.Error != nil && *env.Error != "" {
			msg = *env.Error
		}
		finalizeErr = s.store.MarkFailed(ctx, taskID, env.LeasedBy, msg, false)
		status = "failed"
	}

	if finalizeErr != nil {
		// A stale or unknown leaseholder is not a signature problem:
		// the request is authentic, the store simply declined to
		// apply it, the same "silently unaffected" behavior the
		// queue protocol documents for every leased-precondition op.
		if errors.Is(finalizeErr, taskq.ErrLockLost) || errors.Is(finalizeErr, taskq.ErrTaskLost) || errors.Is(finalizeErr, taskq.ErrConflict) {
			s.log.Info("callback ignored", "task_id", taskID, "leased_by", env.LeasedBy, "reason", finalizeErr)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ignored"})
			return
		}
		s.log.Error("callback finalize failed", "task_id", taskID, "err", finalizeErr)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "store error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
