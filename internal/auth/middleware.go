package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/models"
	pkghttp "github.com/alteris-io/guardian/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// UserContextKey is the key for storing verified token data in context
const UserContextKey contextKey = "user"

// GetTokenData extracts the verified token data from a request context.
func GetTokenData(ctx context.Context) (*models.TokenData, bool) {
	data, ok := ctx.Value(UserContextKey).(*models.TokenData)
	return data, ok
}

// RequireAuth validates Bearer access tokens and injects the verified
// token data into the request context. Refresh tokens are rejected for
// API access; invalid tokens are recorded in the audit trail.
func RequireAuth(tm *TokenManager, trail *audit.Trail) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			// VerifyToken covers signature, expiry, class, and revocation;
			// the rejection is deliberately uniform.
			data, err := tm.VerifyToken(parts[1], models.TokenClassAccess)
			if err != nil {
				if trail != nil {
					trail.LogSecurityEvent(audit.EventInvalidToken, clientIP(r), "", map[string]interface{}{
						"endpoint": r.URL.Path,
						"method":   r.Method,
					})
				}
				pkghttp.WriteUnauthorized(w, models.ErrInvalidToken.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts a route to the given roles. Must run after
// RequireAuth. Denials are audited as permission_denied.
func RequireRole(trail *audit.Trail, roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, ok := GetTokenData(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}
			if !allowed[data.Role] {
				if trail != nil {
					trail.LogSecurityEvent(audit.EventPermissionDenied, clientIP(r), data.UserID, map[string]interface{}{
						"endpoint":      r.URL.Path,
						"method":        r.Method,
						"role":          data.Role,
						"required_role": strings.Join(roles, ","),
					})
				}
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	return pkghttp.ExtractClientIP(r, nil)
}
