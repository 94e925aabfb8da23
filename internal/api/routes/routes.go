// Package routes assembles the query service router.
package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"wolfgang/internal/api/handlers"
	"wolfgang/internal/api/middleware"
)

// Handlers collects the endpoint implementations the router mounts.
type Handlers struct {
	Interactions *handlers.InteractionsHandler
	Circles      *handlers.CirclesHandler
	DynamicData  *handlers.DynamicDataHandler
	Stats        *handlers.StatsHandler
}

// New builds the router with the standard middleware stack. apiKey
// empty means the service is open.
func New(h Handlers, apiKey string) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.NewAPIKey(apiKey).Middleware)

	r.Get("/", handlers.Health)
	r.Post("/interactions", h.Interactions.HandlePost)
	r.Get("/interactions", h.Interactions.HandleGet)
	r.Get("/circles", h.Circles.HandleGet)
	r.Get("/dd/{name}", h.DynamicData.HandleGet)
	r.Get("/collStats", h.Stats.HandleGet)

	return r
}
