// Package api provides the HTTP REST surface for submitting and tracking
// due-diligence runs.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/events"
)

// JobService is the queue surface the API depends on.
type JobService interface {
	core.JobQueue
	CountActive(ctx context.Context, apiKey string) (int, error)
	Depth(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Server provides HTTP endpoints for run management.
type Server struct {
	router        chi.Router
	jobs          JobService
	bus           *events.Bus
	logger        *slog.Logger
	apiKeys       map[string]bool
	maxJobsPerKey int
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAPIKeys enables authentication with the given keys. With no keys the
// API runs open, intended for local use only.
func WithAPIKeys(keys []string) ServerOption {
	return func(s *Server) {
		for _, k := range keys {
			if k != "" {
				s.apiKeys[k] = true
			}
		}
	}
}

// WithMaxJobsPerKey caps concurrent jobs per API key.
func WithMaxJobsPerKey(n int) ServerOption {
	return func(s *Server) {
		s.maxJobsPerKey = n
	}
}

// NewServer creates a new API server.
func NewServer(jobs JobService, bus *events.Bus, opts ...ServerOption) *Server {
	s := &Server{
		jobs:          jobs,
		bus:           bus,
		logger:        slog.Default(),
		apiKeys:       make(map[string]bool),
		maxJobsPerKey: 5,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", s.handleSubmitAnalysis)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.handleGetAnalysis)
				r.Delete("/", s.handleCancelAnalysis)
			})
		})

		r.Get("/events", s.handleSSE)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"code": code, "error": message})
}

// respondDomainError maps a domain error onto an HTTP status.
func respondDomainError(w http.ResponseWriter, err error) {
	code := "INTERNAL"
	if derr, ok := err.(*core.DomainError); ok {
		code = derr.Code
	}
	switch core.GetCategory(err) {
	case core.ErrCatNotFound:
		respondError(w, http.StatusNotFound, code, err.Error())
	case core.ErrCatValidation:
		respondError(w, http.StatusBadRequest, code, err.Error())
	case core.ErrCatState:
		respondError(w, http.StatusConflict, code, err.Error())
	case core.ErrCatCollaborator:
		respondError(w, http.StatusServiceUnavailable, code, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, code, err.Error())
	}
}

// handleHealth returns server and queue health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.jobs.Ping(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["queue_error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if depth, err := s.jobs.Depth(r.Context()); err == nil {
		resp["queue_depth"] = depth
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListenAndServe starts the HTTP server with graceful shutdown on ctx.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	return srv.ListenAndServe()
}
