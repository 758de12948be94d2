// Package server provides the HTTP API for schemalign.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/schemalign/internal/canon"
	"github.com/hyperjump/schemalign/internal/config"
	"github.com/hyperjump/schemalign/internal/ingest"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/vector"
	"github.com/hyperjump/schemalign/internal/watcher"
)

// RecordStore is the read side of record persistence used by the API.
type RecordStore interface {
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	ListRecords(ctx context.Context, offset, limit int) ([]*models.Record, error)
	DeleteRecord(ctx context.Context, id string) error
	CountRecords(ctx context.Context) (int64, error)
	ListDecisions(ctx context.Context, filter models.DecisionFilter) ([]models.Decision, error)
	CountDecisions(ctx context.Context) (int64, error)
}

// WatchService manages watched inbox directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
	Stats() watcher.Stats
}

// Deps are the components the server exposes.
type Deps struct {
	Canon    *canon.Canonicalizer
	Catalog  *vector.Catalog
	Pipeline *ingest.Pipeline
	Records  RecordStore
	// Watch is optional; watch endpoints answer 501 without it.
	Watch WatchService
}

// Server is the HTTP server for the schemalign API.
type Server struct {
	deps       Deps
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. configPath, when set, is where watch
// directory changes are persisted.
func NewServer(deps Deps, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:       deps,
		config:     cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/registries/{registry}", func(r chi.Router) {
			r.Post("/classify", s.handleClassify)
			r.Get("/features", s.handleFeatures)
			r.Get("/features/count", s.handleFeatureCount)
			r.Get("/features/search", s.handleFeatureSearch)
			r.Get("/count", s.handleFeatureCount)
		})
		r.Post("/ingest", s.handleIngest)
		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Delete("/records/{id}", s.handleDeleteRecord)
		r.Get("/decisions", s.handleDecisions)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config != nil && s.config.Server.RequestTimeout > 0 {
		return s.config.Server.RequestTimeout
	}
	return 120 * time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	host, port := "localhost", 8080
	if s.config != nil {
		host, port = s.config.Server.Host, s.config.Server.Port
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
