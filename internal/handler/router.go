package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// RouterConfig collects what the HTTP surface needs.
type RouterConfig struct {
	Health    *HealthHandler
	Templates *TemplateHandler
	Documents *DocumentHandler
	Chat      *ChatHandler

	CORSOrigins []string

	// AuthSecret enables JWT authentication on /api/v1 when non-empty.
	AuthSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	Logger *logger.Logger
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		writeScope := func(next http.Handler) http.Handler { return next }
		if cfg.AuthSecret != "" {
			r.Use(middleware.Auth(cfg.AuthSecret))
			writeScope = middleware.RequireScope(middleware.ScopeTemplatesWrite)
		}
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", cfg.Documents.Upload)
			r.Get("/{id}", cfg.Documents.Get)
			r.Post("/{id}/extract", cfg.Documents.Extract)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", cfg.Templates.List)
			r.Post("/match", cfg.Templates.Match)
			r.With(writeScope).Post("/", cfg.Templates.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Templates.Get)
				r.Get("/export", cfg.Templates.Export)
				r.Get("/variables", cfg.Templates.Variables)
				r.With(writeScope).Put("/", cfg.Templates.Update)
				r.With(writeScope).Delete("/", cfg.Templates.Delete)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", cfg.Chat.Send)
			r.Get("/conversations/{id}", cfg.Chat.Conversation)
			r.Get("/conversations/{id}/stream", cfg.Chat.Stream)
		})
	})

	return r
}
