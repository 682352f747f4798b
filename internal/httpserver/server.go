// Package httpserver exposes the latest window aggregate and ingest
// counters to the presentation layer as JSON.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/streampulse/internal/config"
	"github.com/blackmichael/streampulse/internal/domain"
)

// Server is the HTTP server that serves aggregate and stats endpoints.
type Server struct {
	cfg        *config.Config
	aggregator *domain.Aggregator
	ingestor   *domain.Ingestor
	repo       domain.PostRepository
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates an HTTP server over the given aggregator and ingestor.
func NewServer(cfg *config.Config, aggregator *domain.Aggregator, ingestor *domain.Ingestor, repo domain.PostRepository, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		aggregator: aggregator,
		ingestor:   ingestor,
		repo:       repo,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the server's root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAggregate returns the most recently computed window aggregate.
func (s *Server) handleAggregate(w http.ResponseWriter, _ *http.Request) {
	agg := s.aggregator.Latest()
	if agg == nil {
		writeError(w, http.StatusServiceUnavailable, "NotReady", "no aggregate has been computed yet")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// handleStats reports ingest counters and store-level volume totals.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.repo.CountAll(ctx)
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to query store")
		return
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	today, err := s.repo.CountSince(ctx, startOfDay)
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to query store")
		return
	}

	skipped, failures := s.aggregator.CycleCounters()
	writeJSON(w, http.StatusOK, map[string]any{
		"ingest":         s.ingestor.Counters(),
		"total_stored":   total,
		"stored_today":   today,
		"cycles_skipped": skipped,
		"cycles_failed":  failures,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
