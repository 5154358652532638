package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/handlers"
	"github.com/alteris-io/guardian/internal/middleware"
	"github.com/alteris-io/guardian/internal/models"
	"github.com/alteris-io/guardian/internal/security"
	pkghttp "github.com/alteris-io/guardian/pkg/http"
)

// Deps bundles everything route registration needs.
type Deps struct {
	AuthHandler  *handlers.AuthHandler
	AdminHandler *handlers.AdminHandler
	TokenManager *auth.TokenManager
	Trail        *audit.Trail
	Limiter      *security.RateLimiter
	AuthLimiter  *security.RateLimiter
	LimiterCap   int
	AuthCap      int
	IPConfig     *pkghttp.IPConfig
}

// Register wires all application routes.
func Register(router chi.Router, deps Deps) {
	// General limiter covers the whole surface; auth endpoints get the
	// stricter instance on top.
	router.Use(middleware.RateLimit(deps.Limiter, deps.LimiterCap, deps.Trail, deps.IPConfig))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authLimit := middleware.RateLimit(deps.AuthLimiter, deps.AuthCap, deps.Trail, deps.IPConfig)
	router.With(authLimit).Post("/auth/login", deps.AuthHandler.Login)
	router.With(authLimit).Post("/auth/refresh", deps.AuthHandler.Refresh)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.TokenManager, deps.Trail))

		r.Post("/auth/logout", deps.AuthHandler.Logout)
		r.Post("/auth/logout-all", deps.AuthHandler.LogoutAll)
		r.Get("/auth/sessions", deps.AuthHandler.Sessions)

		// Operator surface
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(deps.Trail, models.RoleAdmin))

			r.Post("/auth/register", deps.AuthHandler.Register)

			r.Get("/admin/lockouts/accounts", deps.AdminHandler.LockedAccounts)
			r.Get("/admin/lockouts/ips", deps.AdminHandler.LockedIPs)
			r.Delete("/admin/lockouts/accounts/{email}", deps.AdminHandler.UnlockAccount)
			r.Delete("/admin/lockouts/ips/{ip}", deps.AdminHandler.UnlockIP)

			r.Get("/admin/audit/events", deps.AdminHandler.AuditEvents)
			r.Get("/admin/audit/security", deps.AdminHandler.SecurityEvents)
			r.Get("/admin/audit/users/{id}", deps.AdminHandler.UserActivity)

			r.Get("/admin/tokens/stats", deps.AdminHandler.TokenStats)
		})
	})
}
