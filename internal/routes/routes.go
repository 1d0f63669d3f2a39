package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/handlers"
	"github.com/cicalumni/alumni-api/internal/middleware"
)

// Dependencies are the handlers and guards mounted by RegisterRoutes.
type Dependencies struct {
	AuthHandler  *handlers.AuthHandler
	AdminHandler *handlers.AdminHandler
	Tokens       auth.AccessTokenValidator
	Accounts     auth.AccountFetcher
	RateLimit    middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes under router, which main
// mounts at /api.
func RegisterRoutes(router chi.Router, deps Dependencies) {
	limited := middleware.RateLimitByIP(deps.RateLimit)
	accessGuard := auth.AccessGuard(deps.Tokens, deps.Accounts)

	router.Route("/auth", func(r chi.Router) {
		// Public routes - credential endpoints are rate limited per client IP
		r.With(limited).Post("/register", deps.AuthHandler.Register)
		r.With(limited).Post("/login", deps.AuthHandler.Login)
		r.With(limited).Post("/email/request", deps.AuthHandler.RequestEmailVerification)
		r.Get("/email/verify", deps.AuthHandler.VerifyEmail)
		r.With(limited).Post("/refresh-token", deps.AuthHandler.RefreshToken)
		r.With(limited).Post("/password/forgot", deps.AuthHandler.ForgotPassword)
		r.With(limited).Post("/password/reset", deps.AuthHandler.ResetPassword)

		// Protected routes - authentication required
		r.Group(func(r chi.Router) {
			r.Use(accessGuard)
			r.Put("/change-password", deps.AuthHandler.ChangePassword)
			r.Get("/user/verify", deps.AuthHandler.CurrentUser)
		})
	})

	// Admin-only routes
	router.Route("/admin", func(r chi.Router) {
		r.Use(accessGuard)
		r.Use(auth.AdminGuard(deps.Accounts))

		r.Get("/users", deps.AdminHandler.ListUsers)
		r.Get("/user/{userId}", deps.AdminHandler.GetUser)
		r.Post("/user/{userId}", deps.AdminHandler.VerifyUser)
		r.Post("/user/{userId}/{action}", deps.AdminHandler.ApplyAction)
	})
}
