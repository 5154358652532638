package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alteris-io/guardian/internal/models"
)

const (
	// revocationMargin keeps a revocation entry alive past the token's
	// own expiry so clock skew cannot resurrect it.
	revocationMargin = time.Hour
	// unknownExpiryRetention is used when a token's expiry cannot be read.
	unknownExpiryRetention = 24 * time.Hour
)

// TokenManager issues, verifies, rotates, and revokes JWT credential
// pairs. Access tokens are stateless aside from the revocation check;
// refresh tokens are additionally tracked by content hash so each one
// is single-use, and per-user sessions are capped FIFO.
type TokenManager struct {
	secret         []byte
	accessExpiry   time.Duration
	refreshExpiry  time.Duration
	maxSessions    int

	mu            sync.Mutex
	revoked       map[string]time.Time // jti -> retain revocation until
	sessions      map[string][]string  // userID -> active refresh jtis, oldest first
	activeRefresh map[string]string    // sha256(refresh token) -> userID
	now           func() time.Time
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithTokenClock overrides the wall clock, for deterministic tests
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// NewTokenManager creates a TokenManager signing with HS256.
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration, maxSessions int, opts ...TokenManagerOption) *TokenManager {
	tm := &TokenManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		maxSessions:   maxSessions,
		revoked:       make(map[string]time.Time),
		sessions:      make(map[string][]string),
		activeRefresh: make(map[string]string),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (tm *TokenManager) sign(userID, email, role, class string, expiry time.Duration, extra map[string]interface{}) (token, jti string, err error) {
	jti = uuid.New().String()
	now := tm.now()

	claims := &models.TokenClaims{
		Type:  class,
		Email: email,
		Role:  role,
		Extra: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", "", err
	}
	return token, jti, nil
}

// IssueAccessToken creates a short-lived access token.
// Returns (token, jti).
func (tm *TokenManager) IssueAccessToken(userID, email, role string, extra map[string]interface{}) (string, string, error) {
	return tm.sign(userID, email, role, models.TokenClassAccess, tm.accessExpiry, extra)
}

// IssueRefreshToken creates a long-lived refresh token.
// Returns (token, jti). Session registration happens in IssuePair.
func (tm *TokenManager) IssueRefreshToken(userID, email, role string) (string, string, error) {
	return tm.sign(userID, email, role, models.TokenClassRefresh, tm.refreshExpiry, nil)
}

// IssuePair issues an access + refresh pair, registers the refresh
// token in the active set, and appends its jti to the user's session
// list, evicting (and revoking) the oldest session beyond the cap.
func (tm *TokenManager) IssuePair(userID, email, role string, extra map[string]interface{}) (*models.TokenPair, error) {
	accessToken, _, err := tm.IssueAccessToken(userID, email, role, extra)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshJTI, err := tm.IssueRefreshToken(userID, email, role)
	if err != nil {
		return nil, err
	}

	tm.mu.Lock()
	tm.activeRefresh[hashToken(refreshToken)] = userID

	sessions := append(tm.sessions[userID], refreshJTI)
	for tm.maxSessions > 0 && len(sessions) > tm.maxSessions {
		oldest := sessions[0]
		sessions = sessions[1:]
		// The evicted token's exact expiry is unknown here; a refresh
		// token cannot outlive refreshExpiry, so that bounds retention.
		tm.revoked[oldest] = tm.now().Add(tm.refreshExpiry + revocationMargin)
	}
	tm.sessions[userID] = sessions
	tm.mu.Unlock()

	return &models.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "bearer",
		ExpiresIn:        int(tm.accessExpiry.Seconds()),
		RefreshExpiresIn: int(tm.refreshExpiry.Seconds()),
	}, nil
}

// parse verifies signature and expiry and returns the claims.
func (tm *TokenManager) parse(token string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.ErrInvalidToken
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil || !parsed.Valid {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// VerifyToken checks signature, expiry, token class, and revocation.
// Every failure maps to the same ErrInvalidToken so callers cannot
// distinguish which check rejected the token.
func (tm *TokenManager) VerifyToken(token, expectedClass string) (*models.TokenData, error) {
	claims, err := tm.parse(token)
	if err != nil {
		return nil, models.ErrInvalidToken
	}
	if claims.Type != expectedClass {
		return nil, models.ErrInvalidToken
	}
	if tm.isRevoked(claims.ID) {
		return nil, models.ErrInvalidToken
	}

	data := &models.TokenData{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenType: claims.Type,
		JTI:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		data.IssuedAt = claims.IssuedAt.Time
	}
	return data, nil
}

// isRevoked reports whether a jti is revoked, lazily pruning entries
// whose retention has passed.
func (tm *TokenManager) isRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()

	until, ok := tm.revoked[jti]
	if !ok {
		return false
	}
	if until.Before(tm.now()) {
		delete(tm.revoked, jti)
		return false
	}
	return true
}

// Rotate exchanges a refresh token for a brand-new pair. The presented
// token must still be in the active set: a refresh token that was
// already rotated away is rejected even though its signature and
// expiry remain valid.
func (tm *TokenManager) Rotate(refreshToken string, extra map[string]interface{}) (*models.TokenPair, error) {
	data, err := tm.VerifyToken(refreshToken, models.TokenClassRefresh)
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	tm.mu.Lock()
	_, active := tm.activeRefresh[hashToken(refreshToken)]
	tm.mu.Unlock()
	if !active {
		return nil, models.ErrInvalidToken
	}

	pair, err := tm.IssuePair(data.UserID, data.Email, data.Role, extra)
	if err != nil {
		return nil, err
	}

	// Consume the old token: revoke its jti, drop its hash and session.
	tm.Revoke(refreshToken)

	return pair, nil
}

// Revoke invalidates a token of either class. Reports whether the
// token could be decoded and revoked.
func (tm *TokenManager) Revoke(token string) bool {
	claims, err := tm.parse(token)
	if err != nil {
		return false
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if claims.ID != "" {
		until := tm.now().Add(unknownExpiryRetention)
		if claims.ExpiresAt != nil {
			until = claims.ExpiresAt.Time.Add(revocationMargin)
		}
		tm.revoked[claims.ID] = until
	}

	if claims.Type == models.TokenClassRefresh {
		delete(tm.activeRefresh, hashToken(token))
		sessions := tm.sessions[claims.Subject]
		for i, jti := range sessions {
			if jti == claims.ID {
				tm.sessions[claims.Subject] = append(sessions[:i], sessions[i+1:]...)
				break
			}
		}
	}
	return true
}

// RevokeAllForUser terminates every session a user holds ("log out
// everywhere"). Returns the number of sessions revoked.
func (tm *TokenManager) RevokeAllForUser(userID string) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	until := tm.now().Add(unknownExpiryRetention)
	sessions := tm.sessions[userID]
	for _, jti := range sessions {
		tm.revoked[jti] = until
	}
	count := len(sessions)
	delete(tm.sessions, userID)

	for hash, uid := range tm.activeRefresh {
		if uid == userID {
			delete(tm.activeRefresh, hash)
		}
	}
	return count
}

// CleanupExpired purges revocation entries whose retention has passed.
// Returns how many entries were removed. Idempotent.
func (tm *TokenManager) CleanupExpired() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := tm.now()
	removed := 0
	for jti, until := range tm.revoked {
		if until.Before(now) {
			delete(tm.revoked, jti)
			removed++
		}
	}
	return removed
}

// SessionCount returns the number of active sessions for a user.
func (tm *TokenManager) SessionCount(userID string) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.sessions[userID])
}

// Stats reports token manager counters for the admin surface.
func (tm *TokenManager) Stats() map[string]interface{} {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return map[string]interface{}{
		"revoked_tokens_count":  len(tm.revoked),
		"active_refresh_tokens": len(tm.activeRefresh),
		"users_with_sessions":   len(tm.sessions),
		"max_sessions_per_user": tm.maxSessions,
	}
}
