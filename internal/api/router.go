package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/studypath/studypath/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Login  http.HandlerFunc
	Logout http.HandlerFunc

	// Dashboard handlers
	Progress          http.HandlerFunc
	CurrentCourses    http.HandlerFunc
	Predictions       http.HandlerFunc
	Insights          http.HandlerFunc
	CourseSuggestions http.HandlerFunc
	Remediation       http.HandlerFunc
	Roadmap           http.HandlerFunc

	// Recommendation log handlers
	ListActivity http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// HealthCheck is a named readiness probe. Optional probes report their
// state without failing readiness.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
	HealthChecks       []HealthCheck
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, ErrNotFound)
	})

	// Liveness probe, always 200
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		checks := append([]HealthCheck(nil), cfg.HealthChecks...)
		sort.SliceStable(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				if c.Optional {
					health[c.Name] = err.Error()
					continue
				}
				health[c.Name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[c.Name] = "healthy"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes, optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/progress", h.Progress)
			r.Get("/insights", h.Insights)
			r.Get("/predictions", h.Predictions)

			r.Route("/courses", func(r chi.Router) {
				r.Get("/current", h.CurrentCourses)
				r.Get("/{course}/roadmap", h.Roadmap)
			})

			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/courses", h.CourseSuggestions)
				r.Get("/remediation", h.Remediation)
			})

			r.Get("/activity", h.ListActivity)
		})
	})

	return r
}
