package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/handlers"
	"github.com/alteris-io/guardian/internal/models"
	"github.com/alteris-io/guardian/internal/routes"
	"github.com/alteris-io/guardian/internal/security"
	"github.com/alteris-io/guardian/internal/services"
)

type app struct {
	router chi.Router
	users  *services.UserDirectory
}

func newApp(t *testing.T) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := audit.NewTrail(100, nil)
	guard := security.NewGuard(security.GuardConfig{
		MaxAttempts:          5,
		LockoutDuration:      30 * time.Minute,
		AttemptWindow:        15 * time.Minute,
		ProgressiveLockout:   true,
		DistributedThreshold: 10,
	}, trail)
	limiter := security.NewRateLimiter(100, time.Minute)
	authLimiter := security.NewRateLimiter(10, 5*time.Minute)
	tm := auth.NewTokenManager("route-test-signing-secret-01234", 15*time.Minute, 24*time.Hour, 5)
	users := services.NewUserDirectory()

	authService := services.NewAuthService(users, guard, authLimiter, tm, trail, logger)
	adminService := services.NewAdminService(guard, tm, trail, logger)

	router := chi.NewRouter()
	routes.Register(router, routes.Deps{
		AuthHandler:  handlers.NewAuthHandler(authService, nil),
		AdminHandler: handlers.NewAdminHandler(adminService),
		TokenManager: tm,
		Trail:        trail,
		Limiter:      limiter,
		AuthLimiter:  authLimiter,
		LimiterCap:   100,
		AuthCap:      10,
	})

	return &app{router: router, users: users}
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *app) login(t *testing.T, email, password string) map[string]interface{} {
	t.Helper()
	rec := a.do(t, "POST", "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFlow(t *testing.T) {
	a := newApp(t)
	_, err := a.users.Seed("alice@example.com", "Str0ng!Passw0rd", models.RoleTutor)
	require.NoError(t, err)

	resp := a.login(t, "alice@example.com", "Str0ng!Passw0rd")
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
	assert.Equal(t, "bearer", resp["token_type"])

	rec := a.do(t, "POST", "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, "POST", "/auth/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, "POST", "/auth/login", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshFlow(t *testing.T) {
	a := newApp(t)
	_, err := a.users.Seed("alice@example.com", "Str0ng!Passw0rd", models.RoleTutor)
	require.NoError(t, err)

	resp := a.login(t, "alice@example.com", "Str0ng!Passw0rd")
	refresh := resp["refresh_token"].(string)

	rec := a.do(t, "POST", "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The consumed token cannot be replayed.
	rec = a.do(t, "POST", "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsAndLogout(t *testing.T) {
	a := newApp(t)
	_, err := a.users.Seed("alice@example.com", "Str0ng!Passw0rd", models.RoleTutor)
	require.NoError(t, err)

	first := a.login(t, "alice@example.com", "Str0ng!Passw0rd")
	second := a.login(t, "alice@example.com", "Str0ng!Passw0rd")
	access := second["access_token"].(string)

	rec := a.do(t, "GET", "/auth/sessions", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Equal(t, float64(2), sessions["active_sessions"])

	rec = a.do(t, "POST", "/auth/logout-all", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, float64(2), out["sessions_revoked"])

	// Neither refresh token survives.
	rec = a.do(t, "POST", "/auth/refresh", "", map[string]string{
		"refresh_token": first["refresh_token"].(string),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	a := newApp(t)

	for _, path := range []string{"/auth/sessions", "/admin/lockouts/accounts", "/admin/tokens/stats"} {
		rec := a.do(t, "GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	a := newApp(t)
	_, err := a.users.Seed("alice@example.com", "Str0ng!Passw0rd", models.RoleTutor)
	require.NoError(t, err)
	_, err = a.users.Seed("root@example.com", "Str0ng!Passw0rd", models.RoleAdmin)
	require.NoError(t, err)

	tutor := a.login(t, "alice@example.com", "Str0ng!Passw0rd")["access_token"].(string)
	admin := a.login(t, "root@example.com", "Str0ng!Passw0rd")["access_token"].(string)

	rec := a.do(t, "GET", "/admin/tokens/stats", tutor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, "GET", "/admin/tokens/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(5), stats["max_sessions_per_user"])
}

func TestAdminLockoutSurface(t *testing.T) {
	a := newApp(t)
	_, err := a.users.Seed("root@example.com", "Str0ng!Passw0rd", models.RoleAdmin)
	require.NoError(t, err)
	admin := a.login(t, "root@example.com", "Str0ng!Passw0rd")["access_token"].(string)

	// Five bad passwords lock the victim account.
	for i := 0; i < 5; i++ {
		a.do(t, "POST", "/auth/login", "", map[string]string{
			"email":    "victim@example.com",
			"password": fmt.Sprintf("bad-%d", i),
		})
	}

	rec := a.do(t, "GET", "/admin/lockouts/accounts", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		LockedAccounts []map[string]interface{} `json:"locked_accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.LockedAccounts, 1)
	assert.Equal(t, "victim@example.com", out.LockedAccounts[0]["email"])

	rec = a.do(t, "DELETE", "/admin/lockouts/accounts/victim@example.com", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, "GET", "/admin/lockouts/accounts", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out.LockedAccounts = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.LockedAccounts)

	// Unlocking a missing lockout reports not found.
	rec = a.do(t, "DELETE", "/admin/lockouts/accounts/victim@example.com", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAuditSurface(t *testing.T) {
	a := newApp(t)
	_, err := a.users.Seed("root@example.com", "Str0ng!Passw0rd", models.RoleAdmin)
	require.NoError(t, err)
	admin := a.login(t, "root@example.com", "Str0ng!Passw0rd")["access_token"].(string)

	a.do(t, "POST", "/auth/login", "", map[string]string{
		"email":    "victim@example.com",
		"password": "bad-password",
	})

	rec := a.do(t, "GET", "/admin/audit/security", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Events []map[string]interface{} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Events)
	assert.Equal(t, string(audit.EventLoginFailure), out.Events[0]["event_type"])

	rec = a.do(t, "GET", "/admin/audit/events?event_type=auth.login.success&limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out.Events = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Events, 1)
}

func TestAuthEndpointRateLimited(t *testing.T) {
	a := newApp(t)

	// The auth limiter allows 10 requests per window per IP and path.
	var last int
	for i := 0; i < 11; i++ {
		rec := a.do(t, "POST", "/auth/login", "", map[string]string{
			"email":    "nobody@example.com",
			"password": "whatever",
		})
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
