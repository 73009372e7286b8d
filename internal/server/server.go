// Package server exposes the continuous-sync operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"db-ferry/internal/mirror"
)

// SyncService is the part of mirror.Service the handlers drive.
type SyncService interface {
	SyncSchema(ctx context.Context, dryRun bool) (*mirror.SchemaResult, error)
	SyncData(ctx context.Context, dryRun bool) (*mirror.DataResult, error)
	SyncFull(ctx context.Context, dryRun bool) (*mirror.FullResult, error)
	Status(ctx context.Context, n int) ([]mirror.SyncLogEntry, error)
}

const defaultStatusLimit = 20

type Server struct {
	svc    SyncService
	probes map[string]Probe
	logger *slog.Logger
	mux    *http.ServeMux
}

// New wires the routes. probes is keyed by store name (source, target, mirror).
func New(svc SyncService, probes map[string]Probe, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, probes: probes, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /sync/schema", s.handleSchema)
	s.mux.HandleFunc("POST /sync/data", s.handleData)
	s.mux.HandleFunc("POST /sync/full", s.handleFull)
	s.mux.HandleFunc("GET /sync/status", s.handleStatus)
	s.mux.HandleFunc("GET /admin/{store}/ping", s.handlePing)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := s.dryRun(w, r)
	if !ok {
		return
	}
	res, err := s.svc.SyncSchema(r.Context(), dryRun)
	if err != nil {
		s.fail(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := s.dryRun(w, r)
	if !ok {
		return
	}
	res, err := s.svc.SyncData(r.Context(), dryRun)
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFull(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := s.dryRun(w, r)
	if !ok {
		return
	}
	res, err := s.svc.SyncFull(r.Context(), dryRun)
	if err != nil {
		var schemaRes *mirror.SchemaResult
		if res != nil {
			schemaRes = res.Schema
		}
		s.fail(w, err, schemaRes)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultStatusLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}
	entries, err := s.svc.Status(r.Context(), limit)
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("store")
	probe, ok := s.probes[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("unknown store %q", name)})
		return
	}
	// An unreachable store is reported, not failed: the others keep working.
	writeJSON(w, http.StatusOK, probe(r.Context()))
}

func (s *Server) dryRun(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("dryRun")
	if raw == "" {
		return false, true
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid dryRun %q", raw)})
		return false, false
	}
	return v, true
}

type errorBody struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Preview string `json:"preview,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, err error, schemaRes *mirror.SchemaResult) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mirror.ErrDestructive):
		status = http.StatusConflict
		if schemaRes != nil {
			body.Preview = schemaRes.Preview
		}
	case errors.Is(err, mirror.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, mirror.ErrDirection):
		status = http.StatusForbidden
	default:
		s.logger.Error("sync failed", "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
