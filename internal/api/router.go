package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/api/handlers"
	"github.com/scripta/scripta-api/internal/api/middleware"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/service"
	"github.com/scripta/scripta-api/internal/websocket"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	validate := handlers.NewValidator()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, validate, logger)
	sessionHandler := handlers.NewSessionHandler(services.Session, logger)
	draftHandler := handlers.NewDraftHandler(services.Draft, validate, logger)
	aiHandler := handlers.NewAIHandler(services.Job, validate, logger)
	usageHandler := handlers.NewUsageHandler(services.Usage, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, cfg.AllowedOrigins(), logger)

	requireAuth := middleware.Auth(services.Auth, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/verify-login", authHandler.VerifyLogin)
			r.Post("/request-reset", authHandler.RequestReset)
			r.Post("/reset-password", authHandler.ResetPassword)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/change-password", authHandler.ChangePassword)
				r.Get("/me", authHandler.Me)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Get("/{id}", sessionHandler.Get)
				r.Delete("/{id}", sessionHandler.Revoke)
			})

			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", draftHandler.Create)
				r.Get("/", draftHandler.List)
				r.Get("/{id}", draftHandler.Get)
				r.Patch("/{id}", draftHandler.Update)
				r.Delete("/{id}", draftHandler.Delete)
			})

			r.Route("/ai", func(r chi.Router) {
				r.Post("/generate", aiHandler.Generate)
				r.Post("/regenerate", aiHandler.Regenerate)
				r.Get("/jobs/{jobId}", aiHandler.JobStatus)
				r.Get("/usage/me", usageHandler.Me)
				r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/usage/all", usageHandler.All)
			})
		})

		// WebSocket endpoint
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
