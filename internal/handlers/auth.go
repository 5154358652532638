package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/models"
	"github.com/alteris-io/guardian/internal/services"
	pkghttp "github.com/alteris-io/guardian/pkg/http"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service  *services.AuthService
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service *services.AuthService, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin tuteur apprenti entreprise professeur"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login authenticates a user and returns a token pair
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")
	ctx := services.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))

	resp, err := h.service.Login(ctx, req.Email, req.Password, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			pkghttp.WriteRateLimited(w, err.Error(), 0)
		case errors.Is(err, models.ErrAccountLocked), errors.Is(err, models.ErrIPLocked):
			// The message carries the remaining-time estimate.
			pkghttp.WriteLocked(w, err.Error())
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, models.ErrInvalidCredentials.Error())
		default:
			pkghttp.WriteInternalError(w, "internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Refresh rotates a refresh token into a new pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, ip)
	if err != nil {
		// Deliberately uniform: no hint about which check failed.
		pkghttp.WriteUnauthorized(w, models.ErrInvalidToken.Error())
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented access token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	data, ok := auth.GetTokenData(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	token := bearerToken(r)
	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	h.service.Logout(r.Context(), token, data.UserID, ip)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll revokes every session of the authenticated user
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	data, ok := auth.GetTokenData(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	count := h.service.LogoutAll(r.Context(), data.UserID, ip)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "logged out everywhere",
		"sessions_revoked": count,
	})
}

// Sessions reports the active session count for the authenticated user
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	data, ok := auth.GetTokenData(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         data.UserID,
		"active_sessions": h.service.SessionCount(data.UserID),
	})
}

// Register creates a new credential record (admin only)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actorID := ""
	if data, ok := auth.GetTokenData(r.Context()); ok {
		actorID = data.UserID
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.Role, actorID)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
