package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weathermate/server/internal/auth"
	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/service"
	"github.com/weathermate/server/pkg/health"
	"github.com/weathermate/server/pkg/middleware"
)

// RateLimits holds the per-IP buckets applied to route groups. Auth and
// email endpoints get tight limits; the global bucket backstops everything.
type RateLimits struct {
	Global *middleware.RateLimiter
	Auth   *middleware.RateLimiter
	Email  *middleware.RateLimiter
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	authHandler *AuthHandler,
	weatherHandler *WeatherHandler,
	adminHandler *AdminHandler,
	authService *service.AuthService,
	tokens *auth.TokenManager,
	healthHandler *health.Handler,
	limits RateLimits,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("server"))
	if limits.Global != nil {
		r.Use(limits.Global.Middleware)
	}

	// Health and metrics
	r.Get("/api/health", healthHandler.ReadinessHandler())
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authenticated := Authenticate(authService, tokens)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		if limits.Auth != nil {
			r.Use(limits.Auth.Middleware)
		}

		r.Get("/csrf", authHandler.CSRF)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Cookie-driven endpoints carry the double-submit check.
		r.With(RequireCSRF).Post("/refresh", authHandler.Refresh)
		r.With(RequireCSRF).Post("/logout", authHandler.Logout)
		r.With(RequireCSRF, authenticated).Post("/logout-all", authHandler.LogoutAll)

		r.With(authenticated).Get("/me", authHandler.Me)
		r.Post("/password/reset", authHandler.ResetPassword)

		r.Get("/google", authHandler.GoogleStart)
		r.Get("/google/callback", authHandler.GoogleCallback)

		// Confirm shares the send limiter so token guessing is throttled too.
		email := r
		if limits.Email != nil {
			email = r.With(limits.Email.Middleware)
		}
		email.With(authenticated).Post("/verify-email/request", authHandler.RequestVerifyEmail)
		email.Post("/verify-email/confirm", authHandler.ConfirmVerifyEmail)
		email.Post("/password/forgot", authHandler.ForgotPassword)
	})

	r.Route("/api/weather", func(r chi.Router) {
		// The public snapshot is the same for everyone; let clients and
		// intermediaries cache it for the service-side TTL.
		r.With(middleware.CacheControl(120)).Get("/public/default", weatherHandler.PublicDefault)
		r.With(authenticated, RequireVerified).Get("/city", weatherHandler.CityForecast)
		r.With(authenticated, RequireVerified).Get("/region", weatherHandler.RegionToday)
		r.With(authenticated, RequireVerified).Get("/country", weatherHandler.CountryToday)
	})

	r.Route("/api/history", func(r chi.Router) {
		r.Use(authenticated, RequireVerified)
		r.Get("/monthly", weatherHandler.MonthlyHistory)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(authenticated, RequireRole(domain.RoleAdmin))

		r.Post("/sessions/revoke", adminHandler.RevokeSession)
		r.Post("/users/revoke-sessions", adminHandler.RevokeUserSessions)
		r.Get("/users/{id}/sessions", adminHandler.ListUserSessions)
	})

	return r
}
