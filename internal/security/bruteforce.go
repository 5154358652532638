package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/models"
)

// Progressive lockout never exceeds this ceiling
const maxLockoutDuration = 24 * time.Hour

// GuardConfig holds brute-force protection thresholds
type GuardConfig struct {
	MaxAttempts          int           // failed attempts before account lockout
	LockoutDuration      time.Duration // base lockout duration
	AttemptWindow        time.Duration // window for counting attempts
	ProgressiveLockout   bool          // double lockout duration per consecutive lockout
	DistributedThreshold int           // distinct accounts targeted from one IP before IP lockout
}

// Guard protects accounts against brute-force and credential-stuffing
// attacks. It tracks login attempts per account and per IP, locks
// accounts after repeated failures with progressive backoff, and locks
// IPs that sweep many distinct accounts.
//
// Absence of state means OPEN: the guard never errors on unknown
// identities.
type Guard struct {
	config GuardConfig
	trail  *audit.Trail

	mu              sync.Mutex
	attemptsByEmail map[string][]models.LoginAttempt
	attemptsByIP    map[string][]models.LoginAttempt
	lockedAccounts  map[string]*models.AccountLockout
	lockedIPs       map[string]*models.IPLockout
	lockoutHistory  map[string]int // consecutive lockouts per email
	now             func() time.Time
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardClock overrides the wall clock, for deterministic tests
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard creates a brute-force guard. The audit trail may be nil,
// in which case lockout events are not recorded.
func NewGuard(config GuardConfig, trail *audit.Trail, opts ...GuardOption) *Guard {
	g := &Guard{
		config:          config,
		trail:           trail,
		attemptsByEmail: make(map[string][]models.LoginAttempt),
		attemptsByIP:    make(map[string][]models.LoginAttempt),
		lockedAccounts:  make(map[string]*models.AccountLockout),
		lockedIPs:       make(map[string]*models.IPLockout),
		lockoutHistory:  make(map[string]int),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordAttempt registers a login attempt and reports whether the
// caller is allowed to proceed. Rejections carry a human-readable
// reason with a remaining-time estimate.
func (g *Guard) RecordAttempt(email, ip string, success bool, userAgent string) (allowed bool, reason string) {
	allowed, reason, event := g.recordAttempt(email, ip, success, userAgent)
	// Audit outside the guard mutex so no two locks are ever held at once.
	if event != nil && g.trail != nil {
		g.trail.Log(event)
	}
	return allowed, reason
}

func (g *Guard) recordAttempt(email, ip string, success bool, userAgent string) (bool, string, *audit.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	// Locked account: reject without recording. Expired locks reopen.
	if lockout, ok := g.lockedAccounts[email]; ok {
		if now.Before(lockout.UnlockAt) {
			remaining := lockout.UnlockAt.Sub(now)
			return false, fmt.Sprintf("account locked, try again in %s", formatRemaining(remaining)), nil
		}
		delete(g.lockedAccounts, email)
	}

	// Same discipline for the IP lockout.
	if lockout, ok := g.lockedIPs[ip]; ok {
		if now.Before(lockout.UnlockAt) {
			remaining := lockout.UnlockAt.Sub(now)
			return false, fmt.Sprintf("too many attempts from this address, try again in %s", formatRemaining(remaining)), nil
		}
		delete(g.lockedIPs, ip)
	}

	attempt := models.LoginAttempt{
		Timestamp: now,
		Email:     email,
		IPAddress: ip,
		Success:   success,
		UserAgent: userAgent,
	}
	g.attemptsByEmail[email] = append(g.attemptsByEmail[email], attempt)
	g.attemptsByIP[ip] = append(g.attemptsByIP[ip], attempt)

	g.pruneAttempts(email, ip, now)

	if success {
		return true, "", nil
	}

	// Account lockout on too many recent failures.
	failures := g.recentFailures(email, now)
	if len(failures) >= g.config.MaxAttempts {
		g.lockAccount(email, models.LockoutReasonTooManyAttempts, len(failures), now)
		event := &audit.Event{
			Type:      audit.EventBruteForceDetected,
			Severity:  audit.SeverityWarning,
			IPAddress: ip,
			Success:   false,
			Details: map[string]interface{}{
				"email":         email,
				"attempt_count": len(failures),
				"reason":        models.LockoutReasonTooManyAttempts,
			},
		}
		return false, "account locked after too many failed attempts", event
	}

	// IP lockout when one origin sweeps many distinct accounts, even if
	// no single account crossed its own threshold.
	targeted := g.targetedAccounts(ip, now)
	if len(targeted) >= g.config.DistributedThreshold {
		g.lockIP(ip, targeted, now)
		sample := targeted
		if len(sample) > 10 {
			sample = sample[:10]
		}
		event := &audit.Event{
			Type:      audit.EventBruteForceDetected,
			Severity:  audit.SeverityWarning,
			IPAddress: ip,
			Success:   false,
			Details: map[string]interface{}{
				"type":              "distributed_attack",
				"targeted_accounts": sample,
				"account_count":     len(targeted),
			},
		}
		return false, "suspicious activity detected, access temporarily blocked", event
	}

	return true, "", nil
}

// pruneAttempts drops attempts older than the window for one email/IP pair.
func (g *Guard) pruneAttempts(email, ip string, now time.Time) {
	cutoff := now.Add(-g.config.AttemptWindow)
	g.attemptsByEmail[email] = pruneAttemptsBefore(g.attemptsByEmail[email], cutoff)
	g.attemptsByIP[ip] = pruneAttemptsBefore(g.attemptsByIP[ip], cutoff)
}

func pruneAttemptsBefore(attempts []models.LoginAttempt, cutoff time.Time) []models.LoginAttempt {
	valid := attempts[:0]
	for _, a := range attempts {
		if a.Timestamp.After(cutoff) {
			valid = append(valid, a)
		}
	}
	return valid
}

// recentFailures returns failed attempts for an email inside the window.
func (g *Guard) recentFailures(email string, now time.Time) []models.LoginAttempt {
	cutoff := now.Add(-g.config.AttemptWindow)
	var failures []models.LoginAttempt
	for _, a := range g.attemptsByEmail[email] {
		if a.Timestamp.After(cutoff) && !a.Success {
			failures = append(failures, a)
		}
	}
	return failures
}

// targetedAccounts returns the distinct emails that failed from one IP
// inside the window.
func (g *Guard) targetedAccounts(ip string, now time.Time) []string {
	cutoff := now.Add(-g.config.AttemptWindow)
	seen := make(map[string]bool)
	var targeted []string
	for _, a := range g.attemptsByIP[ip] {
		if a.Timestamp.After(cutoff) && !a.Success && !seen[a.Email] {
			seen[a.Email] = true
			targeted = append(targeted, a.Email)
		}
	}
	return targeted
}

// lockAccount transitions an account to LOCKED with progressive backoff.
func (g *Guard) lockAccount(email, reason string, attemptCount int, now time.Time) {
	lockoutCount := g.lockoutHistory[email] + 1
	g.lockoutHistory[email] = lockoutCount

	duration := g.config.LockoutDuration
	if g.config.ProgressiveLockout {
		for i := 1; i < lockoutCount && duration < maxLockoutDuration; i++ {
			duration *= 2
		}
		if duration > maxLockoutDuration {
			duration = maxLockoutDuration
		}
	}

	g.lockedAccounts[email] = &models.AccountLockout{
		Email:        email,
		LockedAt:     now,
		UnlockAt:     now.Add(duration),
		Reason:       reason,
		AttemptCount: attemptCount,
		LockoutCount: lockoutCount,
	}
}

// lockIP transitions an IP to LOCKED for the base duration.
func (g *Guard) lockIP(ip string, targeted []string, now time.Time) {
	g.lockedIPs[ip] = &models.IPLockout{
		IPAddress:        ip,
		LockedAt:         now,
		UnlockAt:         now.Add(g.config.LockoutDuration),
		Reason:           models.LockoutReasonDistributedAttack,
		TargetedAccounts: targeted,
	}
}

// ResetAttempts clears the failure history and the consecutive-lockout
// counter for an email. Call after a genuine successful login.
func (g *Guard) ResetAttempts(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attemptsByEmail, email)
	delete(g.lockoutHistory, email)
}

// UnlockAccount removes an account lockout unconditionally and resets
// the consecutive-lockout counter. Reports whether a lockout existed.
// A non-empty adminID attributes the unlock in the audit trail.
func (g *Guard) UnlockAccount(email, adminID string) bool {
	g.mu.Lock()
	_, existed := g.lockedAccounts[email]
	delete(g.lockedAccounts, email)
	delete(g.lockoutHistory, email)
	g.mu.Unlock()

	if existed && adminID != "" && g.trail != nil {
		g.trail.LogUserAction(audit.EventUserUnlock, adminID, email, "manual_unlock",
			map[string]interface{}{"unlocked_by": "admin"})
	}
	return existed
}

// UnlockIP removes an IP lockout unconditionally, independent of any
// account unlock. Reports whether a lockout existed.
func (g *Guard) UnlockIP(ip, adminID string) bool {
	g.mu.Lock()
	_, existed := g.lockedIPs[ip]
	delete(g.lockedIPs, ip)
	g.mu.Unlock()

	if existed && adminID != "" && g.trail != nil {
		g.trail.LogUserAction(audit.EventUserUnlock, adminID, ip, "manual_ip_unlock",
			map[string]interface{}{"unlocked_by": "admin"})
	}
	return existed
}

// IsAccountLocked reports whether an account is locked and the seconds
// remaining until it unlocks.
func (g *Guard) IsAccountLocked(email string) (bool, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lockout, ok := g.lockedAccounts[email]
	if !ok {
		return false, 0
	}
	remaining := lockout.UnlockAt.Sub(g.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, int(remaining.Seconds())
}

// IsIPLocked reports whether an IP is locked and the seconds remaining.
func (g *Guard) IsIPLocked(ip string) (bool, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lockout, ok := g.lockedIPs[ip]
	if !ok {
		return false, 0
	}
	remaining := lockout.UnlockAt.Sub(g.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, int(remaining.Seconds())
}

// AttemptCount returns the number of recent failed attempts for an email.
func (g *Guard) AttemptCount(email string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.recentFailures(email, g.now()))
}

// LockedAccounts returns the currently locked accounts as serializable
// records for the admin surface.
func (g *Guard) LockedAccounts() []models.LockedAccountInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	infos := make([]models.LockedAccountInfo, 0, len(g.lockedAccounts))
	for _, lockout := range g.lockedAccounts {
		if !lockout.UnlockAt.After(now) {
			continue
		}
		infos = append(infos, models.LockedAccountInfo{
			Email:            lockout.Email,
			LockedAt:         lockout.LockedAt.UTC().Format(time.RFC3339),
			UnlockAt:         lockout.UnlockAt.UTC().Format(time.RFC3339),
			RemainingSeconds: int(lockout.UnlockAt.Sub(now).Seconds()),
			Reason:           lockout.Reason,
			AttemptCount:     lockout.AttemptCount,
			LockoutCount:     lockout.LockoutCount,
		})
	}
	return infos
}

// LockedIPs returns the currently locked IPs as serializable records.
func (g *Guard) LockedIPs() []models.LockedIPInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	infos := make([]models.LockedIPInfo, 0, len(g.lockedIPs))
	for _, lockout := range g.lockedIPs {
		if !lockout.UnlockAt.After(now) {
			continue
		}
		infos = append(infos, models.LockedIPInfo{
			IPAddress:             lockout.IPAddress,
			LockedAt:              lockout.LockedAt.UTC().Format(time.RFC3339),
			UnlockAt:              lockout.UnlockAt.UTC().Format(time.RFC3339),
			RemainingSeconds:      int(lockout.UnlockAt.Sub(now).Seconds()),
			Reason:                lockout.Reason,
			TargetedAccountsCount: len(lockout.TargetedAccounts),
		})
	}
	return infos
}

// Prune drops aged-out attempts and expired lockouts across all keys.
// Running it twice in a row is a no-op the second time. Driven by the
// background cleanup loop.
func (g *Guard) Prune() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.config.AttemptWindow)

	for email, attempts := range g.attemptsByEmail {
		valid := pruneAttemptsBefore(attempts, cutoff)
		if len(valid) == 0 {
			delete(g.attemptsByEmail, email)
		} else {
			g.attemptsByEmail[email] = valid
		}
	}
	for ip, attempts := range g.attemptsByIP {
		valid := pruneAttemptsBefore(attempts, cutoff)
		if len(valid) == 0 {
			delete(g.attemptsByIP, ip)
		} else {
			g.attemptsByIP[ip] = valid
		}
	}
	for email, lockout := range g.lockedAccounts {
		if !lockout.UnlockAt.After(now) {
			delete(g.lockedAccounts, email)
		}
	}
	for ip, lockout := range g.lockedIPs {
		if !lockout.UnlockAt.After(now) {
			delete(g.lockedIPs, ip)
		}
	}
}

// formatRemaining renders a duration as a coarse human-readable estimate.
func formatRemaining(d time.Duration) string {
	if d < time.Minute {
		seconds := int(d.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := int(d.Round(time.Minute).Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
