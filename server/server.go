// Package server exposes the trigger surface over HTTP: ingestion runs,
// previews, source management and the admin listing with derived health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/atomwire/ingest/pkg/domain"
	"github.com/atomwire/ingest/pkg/ingest"
)

//go:generate moq -out mocks/ingester.go -pkg mocks -skip-ensure -fmt goimports . Ingester
//go:generate moq -out mocks/source_manager.go -pkg mocks -skip-ensure -fmt goimports . SourceManager
//go:generate moq -out mocks/runlog_reader.go -pkg mocks -skip-ensure -fmt goimports . RunLogReader

// Server represents HTTP server instance
type Server struct {
	ingester Ingester
	sources  SourceManager
	runLogs  RunLogReader
	listen   string
	timeout  time.Duration
	version  string
	debug    bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Ingester runs ingestion and previews on demand
type Ingester interface {
	IngestSource(ctx context.Context, id int64) (*ingest.Result, error)
	IngestAll(ctx context.Context) ([]ingest.Result, error)
	Preview(ctx context.Context, sourceID int64, req ingest.PreviewRequest) (*ingest.PreviewResult, error)
}

// SourceManager provides source operations for the admin surface
type SourceManager interface {
	Get(ctx context.Context, id int64) (*domain.Source, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Source, error)
	Create(ctx context.Context, src *domain.Source) error
	Update(ctx context.Context, src *domain.Source) error
}

// RunLogReader provides the recent-run window for health derivation
type RunLogReader interface {
	Recent(ctx context.Context, sourceID int64, since time.Time, limit int) ([]domain.RunLog, error)
}

// New initializes a new server instance
func New(ingester Ingester, sources SourceManager, runLogs RunLogReader, listen string, timeout time.Duration, version string, debug bool) *Server {
	s := &Server{
		ingester: ingester,
		sources:  sources,
		runLogs:  runLogs,
		listen:   listen,
		timeout:  timeout,
		version:  version,
		debug:    debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.listen,
		Handler:      s.router,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("atomwire-ingest", "atomwire", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /ingest", s.ingestAllHandler)
		r.HandleFunc("POST /sources/{id}/ingest", s.ingestSourceHandler)
		r.HandleFunc("POST /sources/{id}/preview", s.previewHandler)

		r.HandleFunc("GET /sources", s.listSourcesHandler)
		r.HandleFunc("GET /sources/due", s.dueSourcesHandler)
		r.HandleFunc("POST /sources", s.createSourceHandler)
		r.HandleFunc("PUT /sources/{id}", s.updateSourceHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
