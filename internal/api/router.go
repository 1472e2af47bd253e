package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/api/middleware"
	"github.com/manyajain27/dating-app-sub000/internal/chat"
	"github.com/manyajain27/dating-app-sub000/internal/config"
	"github.com/manyajain27/dating-app-sub000/internal/handlers"
	"github.com/manyajain27/dating-app-sub000/internal/store"
)

// NewRouter creates and configures the HTTP router.
// redisStore may be nil, in which case rate limiting is off.
func NewRouter(logger zerolog.Logger, cfg *config.Config, sync *chat.Synchronizer, ds store.DataStore, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore, logger, middleware.RateLimiterConfig{
			Whitelist: cfg.RateLimitWhitelist,
			SendLimit: cfg.SendRateLimit,
		})
		r.Use(limiter.Middleware)
	}

	// The UI runs on localhost under a dev server port of its own.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(sync, ds, redisStore, logger)
	auth := middleware.NewAuthMiddleware(cfg.APITokenHash)

	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Command surface
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/matches", h.ListMatches)
		r.Get("/events", h.Events)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Post("/", h.CreateConversation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", h.ListMessages)
				r.Post("/messages", h.SendMessage)
				r.Post("/read", h.MarkRead)
				r.Post("/open", h.OpenConversation)
				r.Post("/close", h.CloseConversation)
			})
		})
	})

	return r
}
