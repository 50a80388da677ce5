// Package server provides the HTTP API for docsage.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/ingest"
	"github.com/docsage/docsage/internal/query"
	"github.com/docsage/docsage/internal/registry"
	"github.com/docsage/docsage/internal/vectorstore"
)

// Version is the API version reported by GET /.
const Version = "1.0.0"

// Server is the HTTP server for the docsage API.
type Server struct {
	ingestor *ingest.Ingestor
	querier  *query.Querier
	store    vectorstore.Store
	catalog  *registry.Catalog // optional
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// New creates a server with the given dependencies. catalog may be nil.
func New(
	ingestor *ingest.Ingestor,
	querier *query.Querier,
	store vectorstore.Store,
	catalog *registry.Catalog,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor: ingestor,
		querier:  querier,
		store:    store,
		catalog:  catalog,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/ingest", s.handleIngest)
	r.Post("/query", s.handleQuery)
	r.Get("/query/stats", s.handleStats)
	r.Get("/documents", s.handleListDocuments)
	r.Delete("/documents/{doc_id}", s.handleDeleteDocument)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
