// Package api exposes the HTTP interface for the clip service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/clip"
	"github.com/clipvault/clipvault/internal/config"
	"github.com/clipvault/clipvault/internal/metrics"
	"github.com/clipvault/clipvault/internal/pipeline"
)

// Clipper runs one URL through the ingestion pipeline.
type Clipper interface {
	Clip(ctx context.Context, url string) (clip.ClipResult, error)
}

// Pinger reports downstream document-store health for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the pipeline and vault.
type Server struct {
	router  chi.Router
	clipper Clipper
	writer  clip.VaultWriter
	pinger  Pinger
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	clipper Clipper,
	writer clip.VaultWriter,
	pinger Pinger,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		clipper: clipper,
		writer:  writer,
		pinger:  pinger,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/clip", s.submitClip)
		r.Delete("/note", s.deleteNote)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "document store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type clipRequest struct {
	URL string `json:"url"`
}

func (s *Server) submitClip(w http.ResponseWriter, r *http.Request) {
	var req clipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateClipURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.clipper.Clip(r.Context(), req.URL)
	if err != nil {
		status, msg := clipErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type deleteRequest struct {
	Path string `json:"path"`
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing note path")
		return
	}
	if err := s.writer.Delete(r.Context(), req.Path); err != nil {
		status, msg := clipErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path, "status": "deleted"})
}

func validateClipURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return errors.New("url is not absolute")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	return nil
}

// clipErrorStatus maps pipeline failures onto HTTP statuses: upstream
// fetch problems surface as gateway errors, storage problems as 503,
// except a missing note, which is the caller's error and maps to 404.
func clipErrorStatus(err error) (int, string) {
	var fetchErr *clip.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case clip.FetchTimeout:
			return http.StatusGatewayTimeout, fetchErr.Error()
		default:
			return http.StatusBadGateway, fetchErr.Error()
		}
	}
	var storageErr *clip.StorageError
	if errors.As(err, &storageErr) {
		if storageErr.Kind == clip.StorageNotFound {
			return http.StatusNotFound, storageErr.Error()
		}
		return http.StatusServiceUnavailable, storageErr.Error()
	}
	var stageErr *pipeline.Error
	if errors.As(err, &stageErr) {
		return http.StatusInternalServerError, stageErr.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
