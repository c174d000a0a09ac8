/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  deployment sits behind the landlord dashboard's reverse proxy.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Property routes
		r.Route("/properties", func(r chi.Router) {
			r.Get("/", h.ListProperties)
			r.Post("/", h.CreateProperty)
			r.Route("/{id}/expenses", func(r chi.Router) {
				r.Get("/periods", h.ListExpensePeriods)
				r.Get("/{period}", h.ListExpenses)
				r.Post("/{period}", h.CreateExpense)
				r.Post("/{period}/{item}/recurring", h.ToggleRecurring)
			})
		})

		// Reporting routes
		r.Get("/summary/{period}", h.GetSummary)

		// Generation routes
		r.Route("/generation", func(r chi.Router) {
			r.Post("/validate", h.ValidateGeneration)
			r.Post("/run", h.RunGeneration)
		})
	})

	return r
}
