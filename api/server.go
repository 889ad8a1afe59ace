/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/entities/*       Hierarchy, pricing, capacity, cascade
  /api/sheets/*         Override sheet lifecycle
  /api/surge-configs/*  Surge pricing workflow
  /api/scenarios/*      Demo scenarios
  /api/health           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Hierarchy and resolution routes
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Post("/", h.CreateEntity)
			r.Get("/{id}", h.GetEntity)
			r.Get("/{id}/price", h.GetPrice)
			r.Get("/{id}/capacity", h.GetCapacity)
			r.Get("/{id}/allocation", h.GetAllocation)
			r.Get("/{id}/history", h.GetRateHistory)
			r.Post("/{id}/default-rate", h.ChangeDefaultRate)
			r.Post("/{id}/cascade", h.ExecuteCascade)
			r.Post("/{id}/rollback", h.RollbackRate)
		})

		// Override sheet lifecycle routes
		r.Route("/sheets", func(r chi.Router) {
			r.Get("/", h.ListSheets)
			r.Post("/", h.CreateSheet)
			r.Get("/{id}", h.GetSheet)
			r.Post("/{id}/submit", h.SubmitSheet)
			r.Post("/{id}/approve", h.ApproveSheet)
			r.Post("/{id}/reject", h.RejectSheet)
			r.Post("/{id}/archive", h.ArchiveSheet)
			r.Post("/{id}/activate", h.ActivateSheet)
			r.Post("/{id}/deactivate", h.DeactivateSheet)
		})

		// Surge pricing routes
		r.Route("/surge-configs", func(r chi.Router) {
			r.Get("/", h.ListSurgeConfigs)
			r.Post("/", h.CreateSurgeConfig)
			r.Get("/{id}", h.GetSurgeConfig)
			r.Get("/{id}/multiplier", h.PreviewMultiplier)
			r.Put("/{id}/demand", h.UpdateDemand)
			r.Post("/{id}/materialize", h.MaterializeSurge)
			r.Post("/{id}/recalculate", h.RecalculateSurge)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
