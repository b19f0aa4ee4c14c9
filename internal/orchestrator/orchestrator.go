// Package orchestrator is the HTTP intake of the compile service: it queues
// compile jobs, reports their status and runs them on the worker side.
package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/metrics"
	"github.com/local/reportcompiler/internal/queue"
	"github.com/local/reportcompiler/internal/statuscheck"
	"github.com/local/reportcompiler/internal/store"
)

type Queue interface {
	Enqueue(ctx context.Context, job queue.CompileJob) error
	CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type HealthChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
	Queue  Queue
	Status StatusStore
	Health HealthChecker // optional
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", o.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/compile", o.handleCompile)
	mux.HandleFunc("/status/", o.handleStatus)
	mux.HandleFunc("/cancel/", o.handleCancel)
}

type compileReq struct {
	Input          string `json:"input"`
	Output         string `json:"output"`
	Encrypt        bool   `json:"encrypt"`
	IdempotencyKey string `json:"idempotency_key"`
}

type compileResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (o *Orchestrator) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req compileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.Input = strings.TrimSpace(req.Input)
	if req.Input == "" {
		http.Error(w, "missing input", http.StatusBadRequest)
		return
	}
	if !strings.HasSuffix(strings.ToLower(refPath(req.Input)), ".docx") {
		http.Error(w, "input must be a .docx report", http.StatusBadRequest)
		return
	}

	job := queue.CompileJob{
		ID:             uuid.NewString(),
		Input:          req.Input,
		Output:         strings.TrimSpace(req.Output),
		Encrypt:        req.Encrypt,
		IdempotencyKey: req.IdempotencyKey,
		EnqueuedAt:     time.Now(),
	}
	start := time.Now()
	_ = o.deps.Status.Set(r.Context(), job.ID, store.Status{Status: store.StateQueued, Message: "queued", Start: &start,
		Metadata: map[string]any{"input": job.Input}})

	if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("enqueue failed")
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	log.Info().Str("job_id", job.ID).Str("input", job.Input).Msg("job created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(compileResp{Status: "ok", JobID: job.ID, Message: "compile job created"})
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/status/")
	if id == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    st.Status == store.StateDone,
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"error_kind": st.Kind,
		"output":     st.Output,
		"start_time": st.Start,
		"end_time":   st.End,
	})
}

type cancelReq struct {
	Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/cancel/")
	if id == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	var req cancelReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if st.Final() {
		http.Error(w, "job already "+st.Status, http.StatusConflict)
		return
	}
	if err := o.deps.Queue.CancelJob(r.Context(), id); err != nil {
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	st.Status = store.StateCanceled
	st.Message = "Cancelled"
	if req.Reason != "" {
		st.Message = "Cancelled: " + req.Reason
	}
	now := time.Now()
	st.End = &now
	_ = o.deps.Status.Set(r.Context(), id, st)
	log.Info().Str("job_id", id).Str("reason", req.Reason).Msg("job cancelled")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": id, "status": store.StateCanceled})
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
	if o.deps.Health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	sum := o.deps.Health.Summary(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if !sum.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(sum)
}

// refPath strips the scheme and query of a source reference.
func refPath(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 && strings.Contains(ref, "://") {
		ref = ref[:i]
	}
	return ref
}
