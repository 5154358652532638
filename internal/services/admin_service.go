package services

import (
	"log/slog"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/models"
	"github.com/alteris-io/guardian/internal/security"
)

// AdminService exposes the operator surface of the security plane:
// lockout inspection and removal, audit queries, and token statistics.
type AdminService struct {
	guard  *security.Guard
	tm     *auth.TokenManager
	trail  *audit.Trail
	logger *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(guard *security.Guard, tm *auth.TokenManager, trail *audit.Trail, logger *slog.Logger) *AdminService {
	return &AdminService{
		guard:  guard,
		tm:     tm,
		trail:  trail,
		logger: logger,
	}
}

// LockedAccounts lists the currently locked accounts.
func (s *AdminService) LockedAccounts() []models.LockedAccountInfo {
	return s.guard.LockedAccounts()
}

// LockedIPs lists the currently locked IPs.
func (s *AdminService) LockedIPs() []models.LockedIPInfo {
	return s.guard.LockedIPs()
}

// UnlockAccount removes an account lockout on behalf of an operator.
func (s *AdminService) UnlockAccount(email, adminID string) bool {
	unlocked := s.guard.UnlockAccount(email, adminID)
	if unlocked {
		s.logger.Info("account unlocked by admin",
			slog.String("admin_id", adminID))
	}
	return unlocked
}

// UnlockIP removes an IP lockout on behalf of an operator.
func (s *AdminService) UnlockIP(ip, adminID string) bool {
	unlocked := s.guard.UnlockIP(ip, adminID)
	if unlocked {
		s.logger.Info("ip unlocked by admin",
			slog.String("admin_id", adminID), slog.String("ip", ip))
	}
	return unlocked
}

// RecentEvents queries the audit trail, newest first.
func (s *AdminService) RecentEvents(limit int, eventType, userID, severity string) []map[string]interface{} {
	return s.trail.Recent(limit, audit.Filter{
		Type:     audit.EventType(eventType),
		UserID:   userID,
		Severity: audit.Severity(severity),
	})
}

// SecurityEvents returns the security-relevant subset of the trail.
func (s *AdminService) SecurityEvents(limit int) []map[string]interface{} {
	return s.trail.SecurityEvents(limit)
}

// UserActivity returns the recent audit events for one user.
func (s *AdminService) UserActivity(userID string, limit int) []map[string]interface{} {
	return s.trail.UserActivity(userID, limit)
}

// TokenStats reports token manager counters.
func (s *AdminService) TokenStats() map[string]interface{} {
	return s.tm.Stats()
}
