// Package api provides the HTTP server for MediaForge.
// It exposes job submission, job status and account endpoints per owner.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// Version is reported by /api/version.
const Version = "0.3.0"

// Server is the MediaForge HTTP API server.
type Server struct {
	jobs           *JobsAPI
	blobDir        string
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(jobs *JobsAPI) *Server {
	return &Server{jobs: jobs}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// ServeBlobs exposes archived assets in dir under /blobs.
func (s *Server) ServeBlobs(dir string) { s.blobDir = dir }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	if s.jobs != nil {
		r.Get("/api/status", s.jobs.HandleStatus)

		r.Route("/v1/owners/{ownerID}", func(r chi.Router) {
			r.Post("/transcriptions", s.jobs.HandleSubmitTranscription)
			r.Post("/videos", s.jobs.HandleSubmitVideo)
			r.Get("/jobs", s.jobs.HandleListJobs)
			r.Get("/jobs/{jobID}", s.jobs.HandleGetJob)
			r.Delete("/jobs/{jobID}", s.jobs.HandleDeleteJob)
			r.Get("/balance", s.jobs.HandleBalance)
			r.Get("/ledger", s.jobs.HandleLedger)
		})
	}

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Archived assets are content-addressed and never change.
	if s.blobDir != "" {
		fileServer := http.StripPrefix("/blobs/", http.FileServer(http.Dir(s.blobDir)))
		r.Get("/blobs/*", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			fileServer.ServeHTTP(w, req)
		})
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeDomainError maps a domain error onto its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	status, errType := classify(err)
	writeError(w, status, errType, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrUnknownKind):
		return http.StatusBadRequest, "unknown_kind"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrJobActive), errors.Is(err, domain.ErrJobTerminal):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrAtCapacity):
		return http.StatusServiceUnavailable, "at_capacity"
	default:
		return http.StatusInternalServerError, "error"
	}
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
