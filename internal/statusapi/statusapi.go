// Package statusapi serves per-pump idle/running/queued status, a
// Prometheus scrape endpoint, and the manual run/stop/force-unlock
// job-control operations. It never exposes configuration CRUD.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/manual"
	"github.com/thatsimonsguy/irrigation-controller/internal/metrics"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

const shutdownTimeout = 5 * time.Second

// StatusSource reports the live status of a pump executor. Satisfied by
// *pumpexecutor.PumpExecutor.
type StatusSource interface {
	Status() model.PumpStatus
}

type Server struct {
	addr       string
	collector  *metrics.Collector
	executors  map[string]StatusSource
	manual     *manual.Controller
	httpServer *http.Server
}

// New builds a status/control server. manualCtl may be nil, in which
// case the manual-control endpoints respond 503 — used by callers that
// only want the read-only status/metrics surface.
func New(addr string, collector *metrics.Collector, executors map[string]StatusSource, manualCtl *manual.Controller) *Server {
	return &Server{addr: addr, collector: collector, executors: executors, manual: manualCtl}
}

// Start builds the router and begins listening in the background. It
// returns immediately; Close shuts the listener down gracefully.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status api server error")
		}
	}()

	log.Info().Str("addr", s.addr).Msg("status api listening")
	return nil
}

func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/status/pumps", s.handleListPumps)
	r.Get("/status/pumps/{id}", s.handleGetPump)
	if s.collector != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Post("/manual/run-zone", s.handleRunZone)
	r.Post("/manual/stop-pump/{id}", s.handleStopPump)
	r.Post("/manual/force-unlock/{id}", s.handleForceUnlock)

	return r
}

type runZoneRequest struct {
	ZoneID      string `json:"zone_id"`
	DurationSec int    `json:"duration_sec"`
}

type runZoneResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleRunZone(w http.ResponseWriter, r *http.Request) {
	if s.manual == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "manual control unavailable"})
		return
	}

	var req runZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	jobID, err := s.manual.RunZone(req.ZoneID, req.DurationSec)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, runZoneResponse{JobID: jobID})
}

func (s *Server) handleStopPump(w http.ResponseWriter, r *http.Request) {
	if s.manual == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "manual control unavailable"})
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.manual.StopPump(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleForceUnlock(w http.ResponseWriter, r *http.Request) {
	if s.manual == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "manual control unavailable"})
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.manual.ForceUnlock(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (s *Server) handleListPumps(w http.ResponseWriter, r *http.Request) {
	statuses := make([]model.PumpStatus, 0, len(s.executors))
	for _, exec := range s.executors {
		statuses = append(statuses, exec.Status())
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleGetPump(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exec, ok := s.executors[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("pump %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, exec.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode status api response")
	}
}
