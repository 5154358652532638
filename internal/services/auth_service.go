package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/models"
	"github.com/alteris-io/guardian/internal/security"
	pkgauth "github.com/alteris-io/guardian/pkg/auth"
	pkglogger "github.com/alteris-io/guardian/pkg/logger"
)

// AuthService orchestrates the security plane for authentication:
// an inbound attempt passes the auth rate limiter, then the brute-force
// guard, then the credential check; on success the token manager mints
// a pair and the attempt history is forgiven.
type AuthService struct {
	users       UserRepository
	guard       *security.Guard
	authLimiter *security.RateLimiter
	tm          *auth.TokenManager
	trail       *audit.Trail
	logger      *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users UserRepository,
	guard *security.Guard,
	authLimiter *security.RateLimiter,
	tm *auth.TokenManager,
	trail *audit.Trail,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		guard:       guard,
		authLimiter: authLimiter,
		tm:          tm,
		trail:       trail,
		logger:      logger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse is the outcome of a successful login or refresh
type AuthResponse struct {
	*models.TokenPair
	User *UserResponse `json:"user,omitempty"`
}

// Login authenticates a user and returns a token pair. Expected
// negative outcomes are sentinel errors wrapped with a human-readable
// message; they never panic past this boundary.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrInvalidCredentials
	}

	// Fast rejection on abusive callers before any credential work.
	if limited, _ := s.authLimiter.Check("login:" + ip); limited {
		retryAfter := s.authLimiter.ResetTime("login:" + ip)
		s.trail.LogSecurityEvent(audit.EventRateLimitExceeded, ip, "", map[string]interface{}{
			"endpoint":    "/auth/login",
			"retry_after": retryAfter,
		})
		return nil, fmt.Errorf("%w: retry in %d seconds", models.ErrRateLimitExceeded, retryAfter)
	}

	// Locked identities skip the bcrypt cost entirely.
	if locked, remaining := s.guard.IsAccountLocked(email); locked {
		return nil, fmt.Errorf("%w: try again in %d seconds", models.ErrAccountLocked, remaining)
	}
	if locked, remaining := s.guard.IsIPLocked(ip); locked {
		return nil, fmt.Errorf("%w: try again in %d seconds", models.ErrIPLocked, remaining)
	}

	user, err := s.users.GetByEmail(ctx, email)
	success := false
	if err == nil {
		success = pkgauth.ComparePassword(user.PasswordHash, password) == nil
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("user lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	allowed, reason := s.guard.RecordAttempt(email, ip, success, userAgent)
	if !allowed {
		s.trail.LogAuthFailure(email, ip, reason, userAgent, requestID(ctx))
		if locked, _ := s.guard.IsIPLocked(ip); locked {
			return nil, fmt.Errorf("%w: %s", models.ErrIPLocked, reason)
		}
		return nil, fmt.Errorf("%w: %s", models.ErrAccountLocked, reason)
	}

	if !success {
		s.logger.Info("login failed", slog.String("email", pkglogger.SanitizedEmail(email)))
		s.trail.LogAuthFailure(email, ip, "invalid_credentials", userAgent, requestID(ctx))
		return nil, models.ErrInvalidCredentials
	}

	// A genuine success forgives prior near-misses.
	s.guard.ResetAttempts(email)

	pair, err := s.tm.IssuePair(user.ID, user.Email, user.Role, nil)
	if err != nil {
		s.logger.Error("failed to issue token pair", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.trail.LogAuthSuccess(user.ID, user.Email, ip, userAgent, requestID(ctx))

	return &AuthResponse{
		TokenPair: pair,
		User: &UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			Role:      user.Role,
			CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// Refresh rotates a refresh token into a new pair. The old token is
// single-use: any replay after rotation is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip string) (*AuthResponse, error) {
	pair, err := s.tm.Rotate(refreshToken, nil)
	if err != nil {
		s.trail.LogSecurityEvent(audit.EventInvalidToken, ip, "", map[string]interface{}{
			"endpoint": "/auth/refresh",
		})
		return nil, models.ErrInvalidToken
	}

	if data, err := s.tm.VerifyToken(pair.AccessToken, models.TokenClassAccess); err == nil {
		s.trail.LogTokenRefresh(data.UserID, ip)
	}

	return &AuthResponse{TokenPair: pair}, nil
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, token, userID, ip string) {
	s.tm.Revoke(token)
	s.trail.LogLogout(userID, ip)
}

// LogoutAll terminates every session the user holds and returns the count.
func (s *AuthService) LogoutAll(ctx context.Context, userID, ip string) int {
	count := s.tm.RevokeAllForUser(userID)
	s.trail.LogLogout(userID, ip)
	s.logger.Info("all sessions revoked", slog.String("user_id", userID), slog.Int("count", count))
	return count
}

// SessionCount reports the active sessions for a user.
func (s *AuthService) SessionCount(userID string) int {
	return s.tm.SessionCount(userID)
}

// Register creates a credential record. Password strength is enforced
// before hashing.
func (s *AuthService) Register(ctx context.Context, email, password, role, actorID string) (*UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: user already exists", models.ErrBadRequest)
	}

	s.trail.LogUserAction(audit.EventUserCreate, actorID, user.ID, "create",
		map[string]interface{}{"role": role})

	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

type requestIDKey struct{}

// WithRequestID attaches a correlation ID to the context for audit events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
