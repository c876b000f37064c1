// Package server exposes the HTTP API: pipeline enumeration and selection,
// the processed MJPEG stream and the latest frame metrics.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"pathoassist/internal/capture"
	"pathoassist/internal/overlay"
)

// Server wires the HTTP handlers around the registry and the capture.
type Server struct {
	registry *overlay.Registry
	capture  *capture.Capture
	log      zerolog.Logger

	mu     sync.RWMutex
	active overlay.Config
}

// New creates the server with the given initial active pipeline.
func New(registry *overlay.Registry, cap *capture.Capture, active overlay.Config, log zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		capture:  cap,
		active:   active,
		log:      log.With().Str("component", "server").Logger(),
	}
}

// Handler returns the routed handler with permissive CORS for the frontend.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pipelines", s.handleListPipelines)
	mux.HandleFunc("GET /api/pipelines/active", s.handleGetActive)
	mux.HandleFunc("POST /api/pipelines/active", s.handleSetActive)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	return cors.AllowAll().Handler(mux)
}

// ActiveConfig returns the currently selected pipeline configuration.
func (s *Server) ActiveConfig() overlay.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

type pipelineList struct {
	Pipelines []overlay.Descriptor `json:"pipelines"`
}

func (s *Server) handleListPipelines(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, pipelineList{Pipelines: s.registry.List()})
}

func (s *Server) handleGetActive(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ActiveConfig())
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var cfg overlay.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, ok := s.registry.Get(cfg.Name); !ok {
		http.Error(w, "pipeline '"+cfg.Name+"' not found", http.StatusNotFound)
		return
	}
	if cfg.Params == nil {
		cfg.Params = overlay.Params{}
	}

	s.mu.Lock()
	s.active = cfg
	s.mu.Unlock()

	s.log.Info().Str("pipeline", cfg.Name).Interface("params", cfg.Params).
		Msg("active pipeline updated")
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.capture.LatestMetrics()
	if snapshot.Metrics == nil {
		snapshot.Metrics = overlay.Metrics{}
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}
