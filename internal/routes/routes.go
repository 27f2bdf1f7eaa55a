package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/handlers"
	"github.com/nakamastream/accounts/internal/middleware"
	"github.com/nakamastream/accounts/internal/session"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	passwordHandler *handlers.PasswordHandler,
	profileHandler *handlers.ProfileHandler,
	adminHandler *handlers.AdminHandler,
	sessionStore *session.Store,
	cookieConfig auth.CookieConfig,
	sessionTTLSeconds int,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Every route runs under the session middleware so anonymous
	// visitors can hold a captcha phrase before they authenticate.
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessionStore, cookieConfig, sessionTTLSeconds))

		// Public routes, shaped by the coarse per-IP limiter. The login
		// controller's failed-attempt window applies on top.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimitConfig))

			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Get("/auth/captcha", authHandler.NewCaptcha)
			r.Post("/auth/forgot-password", passwordHandler.Forgot)
			r.Get("/auth/reset-password", passwordHandler.ResetForm)
			r.Post("/auth/reset-password", passwordHandler.Reset)
		})

		r.Post("/auth/logout", authHandler.Logout)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin)

			r.Get("/users/me", profileHandler.Me)
			r.Put("/users/me", profileHandler.UpdateInfo)
			r.Put("/users/me/bio", profileHandler.UpdateBio)
			r.Post("/users/me/password", passwordHandler.Change)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/admin/users", adminHandler.ListUsers)
				r.Post("/admin/users/{id}/demote", adminHandler.DemoteUser)
				r.Post("/admin/users/{id}/ban", adminHandler.BanUser)
				r.Post("/admin/users/{id}/unban", adminHandler.UnbanUser)
			})
		})
	})
}
