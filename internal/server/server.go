// Package server exposes the dashboard API over HTTP.
//
// Handlers validate their parameters, call exactly one core operation and
// map the result or error onto a JSON response.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/hydrahub/internal/asset"
	"github.com/koustreak/hydrahub/internal/dataset"
	"github.com/koustreak/hydrahub/internal/files"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/koustreak/hydrahub/internal/logger"
	"github.com/koustreak/hydrahub/internal/meta"
	"github.com/koustreak/hydrahub/internal/metrics"
)

// AssetCatalog is the subset of asset.Store the API serves.
type AssetCatalog interface {
	List(ctx context.Context) ([]asset.Asset, error)
	Get(ctx context.Context, id string) (*asset.Asset, error)
	Create(ctx context.Context, in asset.CreateInput) (*asset.Asset, error)
	Update(ctx context.Context, id string, in asset.UpdateInput) (*asset.Asset, error)
	Delete(ctx context.Context, id string) (*asset.Asset, error)
}

// Deps wires the core services into the router.
type Deps struct {
	Gateway  *filestore.Gateway
	Files    *files.Service
	Meta     *meta.Resolver
	Datasets *dataset.Repository

	// Assets is optional; without it the data-asset routes are not mounted.
	Assets AssetCatalog

	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.Metrics

	// StreamTimeout replaces the server write timeout for proxied
	// downloads. Zero lifts the deadline entirely.
	StreamTimeout time.Duration

	Logger *logger.Logger
}

// Server is the HTTP front of hydrahub.
type Server struct {
	deps   Deps
	log    *logger.Logger
	router chi.Router
	now    func() time.Time
}

// New builds the router over d.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		deps: d,
		log:  log.Component("http"),
		now:  func() time.Time { return time.Now().UTC() },
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5, "application/json", "text/plain"))

			r.Get("/files", s.handleListFiles)
			r.Get("/files/preview", s.handlePreview)
			r.Get("/files/url", s.handleSignedURL)
			r.Get("/stats", s.handleStats)
			r.Get("/meta/*", s.handleMeta)

			r.Get("/datasets", s.handleGetDatasets)
			r.Post("/datasets", s.handleCreateDataset)
			r.Put("/datasets", s.handleAddQuery)

			if s.deps.Assets != nil {
				r.Get("/data-assets", s.handleListAssets)
				r.Post("/data-assets", s.handleCreateAsset)
				r.Get("/data-assets/{id}", s.handleGetAsset)
				r.Put("/data-assets/{id}", s.handleUpdateAsset)
				r.Delete("/data-assets/{id}", s.handleDeleteAsset)
			}
		})

		// Objects are streamed as stored.
		r.Get("/files/proxy/*", s.handleProxy)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Gateway.Ping(r.Context()); err != nil {
		s.log.WarnWith("health check failed", err, nil)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "bucket": s.deps.Gateway.Bucket()})
}
