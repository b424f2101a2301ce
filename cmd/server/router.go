package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiMiddleware "github.com/phrazzld/docstream/internal/api/middleware"
)

// apiPrefix is where the analysis endpoints are mounted. Artifact URLs in
// result payloads point below it.
const apiPrefix = "/api/pdf-analyzer"

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	var protect []func(http.Handler) http.Handler
	if app.jwtService != nil {
		protect = append(protect, apiMiddleware.NewAuthMiddleware(app.jwtService).Authenticate)
	}
	// Rate limiting runs after authentication so it can key on the token subject.
	protect = append(protect, apiMiddleware.RateLimitMiddleware(apiMiddleware.RateLimitConfig{
		RequestsPerMinute: app.config.RateLimit.RequestsPerMinute,
		Burst:             app.config.RateLimit.Burst,
	}))

	r.Route(apiPrefix, func(r chi.Router) {
		app.handler.RegisterRoutes(r, protect...)
	})

	r.Handle("/metrics", promhttp.HandlerFor(app.metrics, promhttp.HandlerOpts{}))
	r.Get("/health", app.handler.Health)

	return r
}
