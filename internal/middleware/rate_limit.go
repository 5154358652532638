package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/security"
	pkghttp "github.com/alteris-io/guardian/pkg/http"
)

// RequestThrottle is a coarse per-IP throttle fronting the whole
// router. The sliding-window limiter below owns the precise semantics;
// this one just sheds floods before they reach it.
func RequestThrottle(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
		}),
	)
}

// RateLimit enforces the sliding-window limiter per client IP and
// decorates responses with X-RateLimit headers. Rejections carry a
// Retry-After hint and are recorded in the audit trail.
func RateLimit(limiter *security.RateLimiter, limit int, trail *audit.Trail, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipConfig)
			key := ip + ":" + r.URL.Path

			limited, remaining := limiter.Check(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if limited {
				retryAfter := limiter.ResetTime(key)
				if trail != nil {
					trail.LogSecurityEvent(audit.EventRateLimitExceeded, ip, "", map[string]interface{}{
						"endpoint":    r.URL.Path,
						"method":      r.Method,
						"retry_after": retryAfter,
					})
				}
				pkghttp.WriteRateLimited(w, "rate limit exceeded, slow down", retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
