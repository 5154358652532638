package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/services"
	pkghttp "github.com/alteris-io/guardian/pkg/http"
)

// AdminHandler exposes the operator surface: lockout management, audit
// queries, and token statistics. Routes are admin-gated in the router.
type AdminHandler struct {
	service *services.AdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service *services.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// LockedAccounts lists currently locked accounts
func (h *AdminHandler) LockedAccounts(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"locked_accounts": h.service.LockedAccounts(),
	})
}

// LockedIPs lists currently locked IPs
func (h *AdminHandler) LockedIPs(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"locked_ips": h.service.LockedIPs(),
	})
}

// UnlockAccount removes an account lockout
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		pkghttp.WriteBadRequest(w, "email is required")
		return
	}

	if !h.service.UnlockAccount(email, actorID(r)) {
		pkghttp.WriteNotFound(w, "no active lockout for this account")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "account unlocked"})
}

// UnlockIP removes an IP lockout
func (h *AdminHandler) UnlockIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		pkghttp.WriteBadRequest(w, "ip is required")
		return
	}

	if !h.service.UnlockIP(ip, actorID(r)) {
		pkghttp.WriteNotFound(w, "no active lockout for this ip")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "ip unlocked"})
}

// AuditEvents queries recent audit events with optional filters
func (h *AdminHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events := h.service.RecentEvents(
		queryLimit(r, 100),
		q.Get("event_type"),
		q.Get("user_id"),
		q.Get("severity"),
	)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// SecurityEvents returns the security-relevant audit subset
func (h *AdminHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	events := h.service.SecurityEvents(queryLimit(r, 50))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// UserActivity returns the recent audit events for one user
func (h *AdminHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "user id is required")
		return
	}
	events := h.service.UserActivity(userID, queryLimit(r, 50))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// TokenStats reports token manager counters
func (h *AdminHandler) TokenStats(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.TokenStats())
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			return limit
		}
	}
	return fallback
}

func actorID(r *http.Request) string {
	if data, ok := auth.GetTokenData(r.Context()); ok {
		return data.UserID
	}
	return ""
}
