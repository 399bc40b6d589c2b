/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (logrus)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Secure:     Security headers (unrolled/secure)
  5. CORS:       Cross-origin requests for frontend
  6. Rate limit: Per-IP request budget on /api (httprate)

ROUTE GROUPS:
  /api/schedules/*      Schedule management, edits, payments
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Refresh job operations
  /health               Liveness probe

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/secure"
)

// RouterConfig carries the HTTP-level settings from config.Config.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      int // requests per minute per IP; 0 disables limiting
	Production     bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "same-origin",
		IsDevelopment:      !cfg.Production,
	}).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(cfg.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}

		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSchedule)
				r.Delete("/", h.DeleteSchedule)
				r.Get("/plan", h.GetPlan)
				r.Get("/validation", h.GetValidation)
				r.Post("/distribute", h.Distribute)
				r.Post("/payments", h.ApplyPayment)
				r.Post("/refresh", h.Refresh)

				// Item routes
				r.Post("/items", h.AddItem)
				r.Delete("/items/last", h.RemoveLastItem)
				r.Route("/items/{n}", func(r chi.Router) {
					r.Put("/amount", h.EditAmount)
					r.Put("/date", h.EditDate)
					r.Put("/lock", h.SetLocked)
					r.Post("/cancel", h.CancelItem)
					r.Post("/write-off", h.WriteOffItem)
				})
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/refresh", h.TriggerRefresh)
			r.Get("/refresh-runs", h.ListRefreshRuns)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
				}).Info("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
