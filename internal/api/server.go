// SPDX-License-Identifier: MIT

// Package api exposes the inspection daemon over HTTP/JSON: product and
// ROI configuration, sessions, inspections, the golden sample library
// and operational surfaces (health, schema, recent results, stats).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visualaoi/aoid/internal/analyzer"
	"github.com/visualaoi/aoid/internal/api/middleware"
	"github.com/visualaoi/aoid/internal/audit"
	"github.com/visualaoi/aoid/internal/config"
	"github.com/visualaoi/aoid/internal/golden"
	"github.com/visualaoi/aoid/internal/health"
	"github.com/visualaoi/aoid/internal/inspect"
	"github.com/visualaoi/aoid/internal/product"
	"github.com/visualaoi/aoid/internal/session"
	"github.com/visualaoi/aoid/internal/stats"
)

// Server bundles the HTTP handlers over the domain services.
type Server struct {
	cfg      config.AppConfig
	store    *product.Store
	library  *golden.Library
	sessions *session.Manager
	orch     *inspect.Orchestrator
	registry *analyzer.Registry
	checks   *health.Manager

	// Optional operational stores; nil disables their endpoints.
	archive *audit.Archive
	stats   *stats.Store
}

// Deps carries the service dependencies for NewServer.
type Deps struct {
	Config   config.AppConfig
	Store    *product.Store
	Library  *golden.Library
	Sessions *session.Manager
	Orch     *inspect.Orchestrator
	Registry *analyzer.Registry
	Health   *health.Manager
	Archive  *audit.Archive
	Stats    *stats.Store
}

// NewServer wires the handler set.
func NewServer(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		store:    d.Store,
		library:  d.Library,
		sessions: d.Sessions,
		orch:     d.Orch,
		registry: d.Registry,
		checks:   d.Health,
		archive:  d.Archive,
		stats:    d.Stats,
	}
}

// Routes builds the chi router with the canonical middleware stack.
func (s *Server) Routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:      true,
		TracingService:     "aoid",
		EnableLogging:      true,
		RateLimitPerMinute: s.cfg.API.RateLimitPerMinute,
	})

	if s.cfg.API.MaxBodyBytes > 0 {
		r.Use(maxBody(s.cfg.API.MaxBodyBytes))
	}

	// Probes live outside /api so orchestrators can hit them unversioned.
	if s.checks != nil {
		r.Get("/healthz", s.checks.ServeHealth)
		r.Get("/readyz", s.checks.ServeReady)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/initialize", s.handleInitialize)

		r.Get("/products", s.handleListProducts)
		r.Post("/products/create", s.handleCreateProduct)
		r.Get("/products/{name}/rois", s.handleGetROIs)
		r.Post("/products/{name}/rois", s.handleSaveROIs)
		r.Get("/products/{name}/colors", s.handleGetColors)
		r.Post("/products/{name}/colors", s.handleSaveColors)

		r.Post("/session/create", s.handleCreateSession)
		r.Get("/session/{id}/close", s.handleCloseSession)
		r.Post("/session/{id}/close", s.handleCloseSession)
		r.Post("/session/{id}/inspect", s.handleInspect)
		r.Post("/session/{id}/grouped_inspect", s.handleGroupedInspect)

		r.Get("/golden-sample/{product}/{roi}", s.handleGoldenList)
		r.Get("/golden-sample/{product}/{roi}/metadata", s.handleGoldenMetadata)
		r.Get("/golden-sample/{product}/{roi}/download/{file}", s.handleGoldenDownload)
		r.Post("/golden-sample/save", s.handleGoldenSave)
		r.Post("/golden-sample/promote", s.handleGoldenPromote)
		r.Post("/golden-sample/restore", s.handleGoldenRestore)
		r.Delete("/golden-sample/delete", s.handleGoldenDelete)
		r.Post("/golden-sample/rename-folders", s.handleGoldenRename)

		r.Get("/schema/roi", s.handleSchemaROI)
		r.Get("/schema/result", s.handleSchemaResult)
		r.Get("/schema/version", s.handleSchemaVersion)

		r.Get("/results/recent", s.handleRecentResults)
		r.Get("/stats/{product}", s.handleStats)
	})

	// Legacy entry points kept at the root for old clients.
	r.Post("/process_grouped_inspection", s.handleLegacyGroupedInspection)
	r.Get("/get_roi_groups/{product}", s.handleROIGroups)

	return r
}

// maxBody caps request body sizes; oversized grouped payloads fail
// during decode instead of exhausting memory.
func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
