/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. httplog:    Structured request logging over slog (JSON)
  4. CORS:       Cross-origin requests for the frontend

SECURITY NOTE:
  No authentication middleware; authorization mechanics are out of scope
  and belong to a gateway in front of this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, env string) *chi.Mux {
	r := chi.NewRouter()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "attendance-engine"),
		slog.String("env", env),
	)

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level: slog.LevelInfo,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Heartbeat("/healthz"))

	r.Route("/api", func(r chi.Router) {
		// Employee-facing transitions and views
		r.Route("/attendance/{employeeID}", func(r chi.Router) {
			r.Post("/check-in", h.CheckIn)
			r.Post("/break/start", h.StartBreak)
			r.Post("/break/end", h.EndBreak)
			r.Post("/check-out", h.CheckOut)
			r.Get("/today", h.Today)
			r.Get("/records", h.Records)
		})

		// Employee directory
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Route("/attendance", func(r chi.Router) {
				r.Get("/", h.DayOverview)
				r.Post("/{employeeID}/force-check-in", h.ForceCheckIn)
				r.Post("/{employeeID}/force-check-out", h.ForceCheckOut)
				r.Post("/{employeeID}/force-end-breaks", h.ForceEndAllBreaks)
			})
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.ListSettings)
				r.Put("/{key}", h.UpdateSetting)
			})
			r.Get("/audit", h.AuditTrail)
		})
	})

	return r
}
