package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/registry"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(reg *registry.Registry, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(reg)
	adminH := NewAdminHandler(reg, cfg)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated administrative routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.Server.APIKey))

		r.Get("/state", adminH.GetState)
		r.Get("/config", adminH.GetConfig)
		r.Post("/search", adminH.Search)
		r.Get("/archive/stats", adminH.GetArchiveStats)
		r.Get("/topics", adminH.GetTopics)
		r.Get("/agents", adminH.ListAgents)
	})

	return r
}
