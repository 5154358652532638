package models

import "time"

// Lockout reasons attached to account and IP lockouts
const (
	LockoutReasonTooManyAttempts   = "too_many_login_attempts"
	LockoutReasonSuspicious        = "suspicious_activity"
	LockoutReasonAdminLock         = "admin_locked"
	LockoutReasonDistributedAttack = "distributed_attack_detected"
)

// LoginAttempt is a single observed login attempt. Records are immutable
// once appended; the guard prunes them as they age out of the window.
type LoginAttempt struct {
	Timestamp time.Time
	Email     string
	IPAddress string
	Success   bool
	UserAgent string
}

// AccountLockout tracks a temporarily locked account
type AccountLockout struct {
	Email        string
	LockedAt     time.Time
	UnlockAt     time.Time
	Reason       string
	AttemptCount int
	LockoutCount int // consecutive lockouts, drives progressive backoff
}

// IPLockout tracks an IP blocked for distributed-attack behavior
type IPLockout struct {
	IPAddress        string
	LockedAt         time.Time
	UnlockAt         time.Time
	Reason           string
	TargetedAccounts []string
}

// LockedAccountInfo is the serializable admin view of an account lockout
type LockedAccountInfo struct {
	Email            string `json:"email"`
	LockedAt         string `json:"locked_at"`
	UnlockAt         string `json:"unlock_at"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Reason           string `json:"reason"`
	AttemptCount     int    `json:"attempt_count"`
	LockoutCount     int    `json:"lockout_count"`
}

// LockedIPInfo is the serializable admin view of an IP lockout
type LockedIPInfo struct {
	IPAddress             string `json:"ip_address"`
	LockedAt              string `json:"locked_at"`
	UnlockAt              string `json:"unlock_at"`
	RemainingSeconds      int    `json:"remaining_seconds"`
	Reason                string `json:"reason"`
	TargetedAccountsCount int    `json:"targeted_accounts_count"`
}
