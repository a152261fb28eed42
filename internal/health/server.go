package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage"
)

// Pipeline is the processing surface the server exposes. Satisfied by
// *pipeline.Pipeline.
type Pipeline interface {
	Advance(ctx context.Context, contentID string) error
	Resume(ctx context.Context, contentID string, fromStage *domain.Stage) error
}

// Jobs exposes the scheduler jobs for manual triggering.
type Jobs interface {
	RunAutoResume(ctx context.Context) error
	RunQuotaWatch(ctx context.Context) error
	RunCleanup(ctx context.Context) error
}

// Server provides the HTTP surface: health probes, metrics, content
// intake, and the operational endpoints for resuming content and
// kicking jobs.
type Server struct {
	monitor   *Monitor
	repo      storage.ContentRepository
	artifacts storage.ArtifactRepository
	pipe      Pipeline
	jobs      Jobs
	server    *http.Server
	log       *slog.Logger
}

func NewServer(
	monitor *Monitor,
	repo storage.ContentRepository,
	artifacts storage.ArtifactRepository,
	pipe Pipeline,
	jobs Jobs,
	port int,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:   monitor,
		repo:      repo,
		artifacts: artifacts,
		pipe:      pipe,
		jobs:      jobs,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: slog.Default().With("component", "http"),
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /content", s.handleSubmit)
	mux.HandleFunc("GET /content/{id}", s.handleContentStatus)
	mux.HandleFunc("POST /content/{id}/resume", s.handleResume)
	mux.HandleFunc("DELETE /content/{id}", s.handleDelete)
	mux.HandleFunc("POST /jobs/{name}", s.handleRunJob)

	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

type submitRequest struct {
	ContentID string `json:"content_id,omitempty"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
}

// handleSubmit registers content for processing and starts the pipeline
// in the background. The response returns immediately with the new ID;
// progress is polled via GET /content/{id}.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.UserID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("user_id and text are required"))
		return
	}
	if req.ContentID == "" {
		req.ContentID = uuid.New().String()
	}

	if err := s.artifacts.SaveArtifact(r.Context(), req.ContentID, storage.ArtifactSource, req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	state := domain.NewContentProcessingState(req.ContentID, req.UserID)
	if err := s.repo.Create(r.Context(), state); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	s.log.Info("content submitted", "content", req.ContentID, "user", req.UserID)

	go func() {
		ctx := context.WithoutCancel(r.Context())
		if err := s.pipe.Advance(ctx, req.ContentID); err != nil {
			s.log.Error("processing failed", "content", req.ContentID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"content_id": req.ContentID,
		"status":     string(state.Status),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	contentID := r.PathValue("id")
	if err := s.repo.SoftDelete(r.Context(), contentID); err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content_id": contentID, "status": "deleted"})
}

func (s *Server) handleContentStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.repo.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrContentNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type resumeRequest struct {
	FromStage string `json:"from_stage,omitempty"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	contentID := r.PathValue("id")

	var req resumeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}

	var fromStage *domain.Stage
	if req.FromStage != "" {
		stage := domain.Stage(req.FromStage)
		if !stage.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown stage %q", req.FromStage))
			return
		}
		fromStage = &stage
	}

	s.log.Info("manual resume requested", "content", contentID, "from_stage", req.FromStage)

	if err := s.pipe.Resume(r.Context(), contentID, fromStage); err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusConflict, err)
		return
	}

	state, err := s.repo.Get(r.Context(), contentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content_id": contentID,
		"status":     state.Status,
	})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var job func(context.Context) error
	switch name {
	case "auto-resume":
		job = s.jobs.RunAutoResume
	case "quota-watch":
		job = s.jobs.RunQuotaWatch
	case "cleanup":
		job = s.jobs.RunCleanup
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown job %q", name))
		return
	}

	s.log.Info("manual job run requested", "job", name)
	if err := job(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job": name, "result": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
