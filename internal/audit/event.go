package audit

import "time"

// EventType identifies an audit event in the taxonomy. The set is
// extensible: engines may log types not listed here.
type EventType string

const (
	// Authentication
	EventLoginSuccess         EventType = "auth.login.success"
	EventLoginFailure         EventType = "auth.login.failure"
	EventLogout               EventType = "auth.logout"
	EventTokenRefresh         EventType = "auth.token.refresh"
	EventPasswordChange       EventType = "auth.password.change"
	EventPasswordResetRequest EventType = "auth.password.reset_request"

	// User management
	EventUserCreate     EventType = "user.create"
	EventUserUpdate     EventType = "user.update"
	EventUserDelete     EventType = "user.delete"
	EventUserRoleChange EventType = "user.role.change"
	EventUserLock       EventType = "user.lock"
	EventUserUnlock     EventType = "user.unlock"

	// Data access
	EventDataAccess EventType = "data.access"
	EventDataExport EventType = "data.export"
	EventDataCreate EventType = "data.create"
	EventDataUpdate EventType = "data.update"
	EventDataDelete EventType = "data.delete"

	// Security
	EventRateLimitExceeded  EventType = "security.rate_limit"
	EventSuspiciousActivity EventType = "security.suspicious"
	EventInvalidToken       EventType = "security.invalid_token"
	EventPermissionDenied   EventType = "security.permission_denied"
	EventBruteForceDetected EventType = "security.brute_force"

	// System
	EventConfigChange EventType = "system.config.change"
	EventServiceStart EventType = "system.service.start"
	EventServiceStop  EventType = "system.service.stop"
	EventError        EventType = "system.error"
)

// Severity levels for audit events
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// securityEventTypes is the subset surfaced by SecurityEvents
var securityEventTypes = map[EventType]bool{
	EventRateLimitExceeded:  true,
	EventSuspiciousActivity: true,
	EventInvalidToken:       true,
	EventPermissionDenied:   true,
	EventBruteForceDetected: true,
	EventLoginFailure:       true,
}

// Event is one audit record. Events are never mutated after being
// logged; queries hand out copies converted to primitive fields.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Severity  Severity

	// Actor context
	UserID    string
	UserEmail string
	UserRole  string

	// Request context
	RequestID string
	IPAddress string
	UserAgent string
	Endpoint  string
	Method    string

	// Target and details
	ResourceType string
	ResourceID   string
	Action       string
	Details      map[string]interface{}

	// Outcome
	Success      bool
	ErrorMessage string
}

// Map converts the event to a serializable map with primitive values
// only, so it can cross a process boundary untouched.
func (e *Event) Map() map[string]interface{} {
	m := map[string]interface{}{
		"event_type": string(e.Type),
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"severity":   string(e.Severity),
		"success":    e.Success,
	}
	put := func(key, val string) {
		if val != "" {
			m[key] = val
		}
	}
	put("user_id", e.UserID)
	put("user_email", e.UserEmail)
	put("user_role", e.UserRole)
	put("request_id", e.RequestID)
	put("ip_address", e.IPAddress)
	put("user_agent", e.UserAgent)
	put("endpoint", e.Endpoint)
	put("method", e.Method)
	put("resource_type", e.ResourceType)
	put("resource_id", e.ResourceID)
	put("action", e.Action)
	put("error_message", e.ErrorMessage)
	if len(e.Details) > 0 {
		details := make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		m["details"] = details
	}
	return m
}
