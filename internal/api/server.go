// Package api exposes the reconciliation engine over HTTP: ingestion,
// matching runs, the review queue, consistency checks, and statistics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgermatch/reconcile-backend/internal/api/handlers"
	"github.com/ledgermatch/reconcile-backend/internal/api/middleware"
	"github.com/ledgermatch/reconcile-backend/internal/application/engine"
	"github.com/ledgermatch/reconcile-backend/internal/application/review"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	engine     *engine.Engine
	review     *review.Service
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, eng *engine.Engine, rev *review.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		repo:   repo,
		engine: eng,
		review: rev,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Ingestion
		transactionsHandler := handlers.NewTransactionsHandler(s.repo)
		r.Post("/transactions", transactionsHandler.Ingest)

		// Matching runs
		runsHandler := handlers.NewRunsHandler(s.repo, s.engine)
		r.Post("/runs", runsHandler.Start)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)

		// Review queue
		reviewHandler := handlers.NewReviewHandler(s.repo, s.review)
		r.Get("/review", reviewHandler.List)
		r.Post("/review/batch-accept", reviewHandler.BatchAccept)
		r.Post("/review/{id}/accept", reviewHandler.Accept)
		r.Post("/review/{id}/reject", reviewHandler.Reject)

		// Matches
		matchesHandler := handlers.NewMatchesHandler(s.repo, s.review)
		r.Get("/matches/{id}", matchesHandler.Get)
		r.Post("/matches/{id}/unmatch", matchesHandler.Unmatch)

		// Consistency checks
		checksHandler := handlers.NewChecksHandler(s.repo)
		r.Get("/checks", checksHandler.List)
		r.Post("/checks/{id}/resolve", checksHandler.Resolve)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
