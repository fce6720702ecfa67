// Package server provides the HTTP API for Precedex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/config"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/search"
)

// Server is the HTTP server for the Precedex API.
type Server struct {
	service *search.Service
	repo    *repository.Repository
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	service *search.Service,
	repo *repository.Repository,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		service: service,
		repo:    repo,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/cases", s.handleIngestCase)
	r.Get("/api/v1/cases/{id}", s.handleGetCase)
	r.Get("/api/v1/cases/{id}/file", s.handleCaseFile)
	r.Delete("/api/v1/cases/{id}", s.handleDeleteCase)
	r.Patch("/api/v1/cases/{id}/visibility", s.handleSetVisibility)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
