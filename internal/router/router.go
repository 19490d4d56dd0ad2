package router

import (
	"context"
	"net/http"
	"time"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/dto"
	"github.com/fazamuttaqien/eventcal/internal/presenter"
	"github.com/fazamuttaqien/eventcal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func New(p presenter.Presenter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   p.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMiddleware := middleware.AuthMiddleware(p.Signer)
	optionalAuth := middleware.OptionalAuthMiddleware(p.Signer)
	c := p.Controllers

	// Global middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(p.Logger, p.Metrics))
	r.Use(middleware.ErrorMiddleware(p.Logger))
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(securityHeadersMiddleware)

	r.Route("/api", func(r chi.Router) {
		// --- Auth Routes (Public) ---
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.WithValidation[dto.RegisterDto]()).Post("/register", c.Register)
			r.With(middleware.WithValidation[dto.LoginDto]()).Post("/login", c.Login)
		})

		// --- Calendar Routes ---
		r.Route("/calendar", func(r chi.Router) {
			r.With(optionalAuth).Get("/", c.GetCalendar)

			// Google redirects here without our bearer token.
			r.Get("/integrations/google/callback", c.GoogleOAuthCallback)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)

				r.Get("/feed.ics", c.CalendarFeed)

				r.Get("/integrations", c.ListIntegrations)
				r.Get("/integrations/google/connect", c.ConnectGoogle)
				r.Delete("/integrations/{integrationId}", c.DisconnectIntegration)

				r.With(middleware.WithValidation[dto.SyncRequestDto]()).Post("/sync/google", c.SyncGoogle)
				r.Get("/sync/google", c.SyncStatus)

				r.With(middleware.WithValidation[dto.ResolveConflictDto]()).
					Post("/conflicts/{conflictId}/resolve", c.ResolveConflict)
			})
		})

		// --- Event Routes ---
		r.Route("/events", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/", c.ListEvents)
				r.Get("/{eventId}", c.GetEvent)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)

				r.With(middleware.WithValidation[dto.CreateEventDto]()).Post("/", c.CreateEvent)

				r.With(middleware.WithValidation[dto.UpdateEventDto]()).Put("/{eventId}", c.UpdateEvent)
				r.Delete("/{eventId}", c.DeleteEvent)
				r.Post("/{eventId}/registrations", c.RegisterForEvent)
				r.Delete("/{eventId}/registrations", c.CancelRegistration)
			})
		})
	})

	r.Get("/health", healthHandler(p.Ping))
	r.Handle("/metrics", p.Metrics.Handler())

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				helper.ResponseJson(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		helper.ResponseJson(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Enhanced security headers middleware
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
