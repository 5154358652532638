package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/models"
)

func okHandler(t *testing.T, sawUser *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if data, ok := auth.GetTokenData(r.Context()); ok && sawUser != nil {
			*sawUser = data.UserID
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAcceptsValidAccessToken(t *testing.T) {
	tm, _ := newTestManager(5)
	token, _, err := tm.IssueAccessToken("user-1", "a@b.com", "tuteur", nil)
	require.NoError(t, err)

	var sawUser string
	handler := auth.RequireAuth(tm, nil)(okHandler(t, &sawUser))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", sawUser)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	tm, _ := newTestManager(5)
	handler := auth.RequireAuth(tm, nil)(okHandler(t, nil))

	req := httptest.NewRequest("GET", "/protected", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsMalformedHeader(t *testing.T) {
	tm, _ := newTestManager(5)
	handler := auth.RequireAuth(tm, nil)(okHandler(t, nil))

	for _, value := range []string{"Bearer", "Basic abc123", "bearer token"} {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", value)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", value)
	}
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	tm, _ := newTestManager(5)
	refresh, _, err := tm.IssueRefreshToken("user-1", "a@b.com", "tuteur")
	require.NoError(t, err)

	trail := audit.NewTrail(10, nil)
	handler := auth.RequireAuth(tm, trail)(okHandler(t, nil))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	events := trail.Recent(10, audit.Filter{Type: audit.EventInvalidToken})
	require.Len(t, events, 1)
	assert.Equal(t, "/protected", events[0]["details"].(map[string]interface{})["endpoint"])
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	tm, clock := newTestManager(5)
	token, _, err := tm.IssueAccessToken("user-1", "a@b.com", "tuteur", nil)
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	handler := auth.RequireAuth(tm, nil)(okHandler(t, nil))
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsRevokedToken(t *testing.T) {
	tm, _ := newTestManager(5)
	token, _, err := tm.IssueAccessToken("user-1", "a@b.com", "tuteur", nil)
	require.NoError(t, err)
	require.True(t, tm.Revoke(token))

	handler := auth.RequireAuth(tm, nil)(okHandler(t, nil))
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	tm, _ := newTestManager(5)
	adminToken, _, err := tm.IssueAccessToken("admin-1", "admin@b.com", models.RoleAdmin, nil)
	require.NoError(t, err)
	tutorToken, _, err := tm.IssueAccessToken("user-1", "a@b.com", models.RoleTutor, nil)
	require.NoError(t, err)

	trail := audit.NewTrail(10, nil)
	handler := auth.RequireAuth(tm, nil)(
		auth.RequireRole(trail, models.RoleAdmin)(okHandler(t, nil)))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tutorToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	events := trail.Recent(10, audit.Filter{Type: audit.EventPermissionDenied})
	require.Len(t, events, 1)
	assert.Equal(t, "user-1", events[0]["user_id"])
}

func TestRequireRoleWithoutAuthContext(t *testing.T) {
	handler := auth.RequireRole(nil, models.RoleAdmin)(okHandler(t, nil))

	req := httptest.NewRequest("GET", "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
