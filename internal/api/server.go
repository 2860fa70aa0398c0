// Package api exposes the HTTP interface for the discovery service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/pipeline"
)

// Runner starts one discovery run as the producer of the given bridge.
type Runner interface {
	Start(ctx context.Context, bridge *pipeline.StreamBridge, projectID, userID uuid.UUID, userText string)
}

// Config controls the HTTP surface.
type Config struct {
	APIKey string
	// RequestTimeout bounds the blocking discovery endpoint. Zero disables
	// the bound. The streaming endpoint is never time-limited here.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the pipeline.
type Server struct {
	router chi.Router
	runner Runner
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The Prometheus
// gatherer backs /metrics.
func NewServer(runner Runner, cfg Config, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if cfg.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/projects/{project_id}", func(r chi.Router) {
			if cfg.RequestTimeout > 0 {
				r.With(timeoutMiddleware(cfg.RequestTimeout)).Post("/discovery", s.runDiscovery)
			} else {
				r.Post("/discovery", s.runDiscovery)
			}
			r.Post("/discovery/stream", s.streamDiscovery)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type discoveryRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// parseDiscoveryRequest reads the route and body of both discovery endpoints.
// On failure the error response has been written and ok is false.
func (s *Server) parseDiscoveryRequest(w http.ResponseWriter, r *http.Request) (projectID, userID uuid.UUID, message string, ok bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, uuid.Nil, "", false
	}

	var req discoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return uuid.Nil, uuid.Nil, "", false
	}
	userID = uuid.Nil
	if req.UserID != "" {
		userID, err = uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return uuid.Nil, uuid.Nil, "", false
		}
	}
	return projectID, userID, req.Message, true
}

// runDiscovery executes a pipeline run and answers with the terminal
// RunResult as JSON. The run is detached from the request context, so a
// timeout here abandons the wait, not the run.
func (s *Server) runDiscovery(w http.ResponseWriter, r *http.Request) {
	projectID, userID, message, ok := s.parseDiscoveryRequest(w, r)
	if !ok {
		return
	}

	bridge := pipeline.NewStreamBridge()
	s.runner.Start(context.WithoutCancel(r.Context()), bridge, projectID, userID, message)

	var result *discovery.RunResult
	for {
		select {
		case <-r.Context().Done():
			s.logger.Warn("blocking discovery request gave up waiting",
				zap.String("project_id", projectID.String()),
			)
			go drain(bridge)
			writeError(w, http.StatusGatewayTimeout, "run did not finish in time")
			return
		case evt, open := <-bridge.Events():
			if !open {
				if result == nil {
					writeError(w, http.StatusInternalServerError, "run produced no result")
					return
				}
				writeJSON(w, http.StatusOK, result)
				return
			}
			// Both terminal shapes carry the payload: final_result on
			// success, step_error on failure.
			if evt.Result != nil {
				result = evt.Result
			}
		}
	}
}

// streamDiscovery kicks off a pipeline run and streams its events as SSE. The
// run itself is detached from the request context: a consumer disconnect
// stops the stream but lets the run finish and import.
func (s *Server) streamDiscovery(w http.ResponseWriter, r *http.Request) {
	projectID, userID, message, ok := s.parseDiscoveryRequest(w, r)
	if !ok {
		return
	}

	bridge := pipeline.NewStreamBridge()
	s.runner.Start(context.WithoutCancel(r.Context()), bridge, projectID, userID, message)
	s.streamEvents(w, r, bridge)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
