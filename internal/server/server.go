// Package server implements the pipeline's ops and job-management HTTP
// surface.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/quartzlabs/wikiexport/internal/errors"
	"github.com/quartzlabs/wikiexport/internal/server/middleware"
	"github.com/quartzlabs/wikiexport/pkg/jobstore"
)

// VersionInfo is reported by GET /version.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Deps are the collaborators the API handlers need.
type Deps struct {
	Store *jobstore.Store

	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler

	// PDFEnabled gates acceptance of pdf-format jobs. Set when a
	// conversion service is configured; without one the export stage
	// could never finish a pdf job, so creation rejects the format.
	PDFEnabled bool

	Version VersionInfo
	Logger  *zap.Logger
}

// Server is the ops HTTP server.
type Server struct {
	host   string
	port   int
	router chi.Router
	http   *http.Server
}

// New builds a server with its routes registered.
func New(host string, port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(deps.Logger))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound,
			"resource not found", middleware.RequestIDFrom(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteError(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
			"method not allowed", middleware.RequestIDFrom(r.Context()))
	})

	h := &handler{deps: deps}
	r.Get("/healthz", h.health)
	r.Get("/version", h.version)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Post("/", h.createJob)
		r.Get("/{id}", h.getJob)
		r.Post("/{id}/restart", h.restartJob)
	})

	return &Server{host: host, port: port, router: r}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{Addr: s.Addr(), Handler: s.router}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
