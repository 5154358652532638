package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRingSize bounds in-memory retention when no size is configured
const DefaultRingSize = 1000

// Trail is the append-only audit log. Events are retained in a bounded
// in-memory ring (oldest dropped on overflow) and mirrored to a durable
// slog sink. Logging is fire-and-forget: sink failures never propagate
// to the operation being described.
type Trail struct {
	mu     sync.Mutex
	events []*Event // ring buffer
	head   int      // next write position once the ring is full
	full   bool
	sink   *slog.Logger
	now    func() time.Time
}

// Option configures a Trail
type Option func(*Trail)

// WithClock overrides the wall clock, for deterministic tests
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		t.now = now
	}
}

// NewTrail creates an audit trail with the given ring capacity and
// durable sink. A nil sink disables the durable mirror.
func NewTrail(ringSize int, sink *slog.Logger, opts ...Option) *Trail {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	t := &Trail{
		events: make([]*Event, 0, ringSize),
		sink:   sink,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Log appends an event to the ring and forwards it to the durable sink.
// The event's timestamp is stamped here if unset.
func (t *Trail) Log(event *Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	t.mu.Lock()
	if t.full {
		t.events[t.head] = event
		t.head = (t.head + 1) % cap(t.events)
	} else {
		t.events = append(t.events, event)
		if len(t.events) == cap(t.events) {
			t.full = true
		}
	}
	t.mu.Unlock()

	t.forward(event)
}

// forward mirrors the event to the durable sink at the event's own
// severity. Must never panic past this point.
func (t *Trail) forward(event *Event) {
	if t.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audit sink write failed", slog.Any("panic", r))
		}
	}()

	attrs := []slog.Attr{
		slog.String("event_type", string(event.Type)),
		slog.String("severity", string(event.Severity)),
		slog.Bool("success", event.Success),
		slog.String("timestamp", event.Timestamp.UTC().Format(time.RFC3339Nano)),
	}
	appendStr := func(key, val string) {
		if val != "" {
			attrs = append(attrs, slog.String(key, val))
		}
	}
	appendStr("user_id", event.UserID)
	appendStr("user_email", event.UserEmail)
	appendStr("ip_address", event.IPAddress)
	appendStr("user_agent", event.UserAgent)
	appendStr("endpoint", event.Endpoint)
	appendStr("method", event.Method)
	appendStr("request_id", event.RequestID)
	appendStr("resource_type", event.ResourceType)
	appendStr("resource_id", event.ResourceID)
	appendStr("action", event.Action)
	appendStr("error_message", event.ErrorMessage)
	if len(event.Details) > 0 {
		attrs = append(attrs, slog.Any("details", event.Details))
	}

	t.sink.LogAttrs(context.Background(), severityLevel(event.Severity), "audit", attrs...)
}

func severityLevel(s Severity) slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError, SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Filter narrows Recent results. Zero values match everything.
type Filter struct {
	Type     EventType
	UserID   string
	Severity Severity
}

// snapshot returns the ring contents oldest-first. Caller must hold no lock.
func (t *Trail) snapshot() []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Event, 0, len(t.events))
	if t.full {
		out = append(out, t.events[t.head:]...)
		out = append(out, t.events[:t.head]...)
	} else {
		out = append(out, t.events...)
	}
	return out
}

// Recent returns up to limit events matching the filter, newest first.
func (t *Trail) Recent(limit int, filter Filter) []map[string]interface{} {
	if limit <= 0 {
		limit = 100
	}
	events := t.snapshot()

	results := make([]map[string]interface{}, 0, limit)
	for i := len(events) - 1; i >= 0 && len(results) < limit; i-- {
		e := events[i]
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		results = append(results, e.Map())
	}
	return results
}

// SecurityEvents returns up to limit security-relevant events, newest first.
func (t *Trail) SecurityEvents(limit int) []map[string]interface{} {
	if limit <= 0 {
		limit = 50
	}
	events := t.snapshot()

	results := make([]map[string]interface{}, 0, limit)
	for i := len(events) - 1; i >= 0 && len(results) < limit; i-- {
		if securityEventTypes[events[i].Type] {
			results = append(results, events[i].Map())
		}
	}
	return results
}

// UserActivity returns the recent events attributed to one user.
func (t *Trail) UserActivity(userID string, limit int) []map[string]interface{} {
	return t.Recent(limit, Filter{UserID: userID})
}

// Len reports how many events the ring currently holds.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Convenience constructors. These keep taxonomy and severity consistent
// across call sites.

// LogAuthSuccess records a successful login.
func (t *Trail) LogAuthSuccess(userID, email, ip, userAgent, requestID string) {
	t.Log(&Event{
		Type:      EventLoginSuccess,
		Severity:  SeverityInfo,
		UserID:    userID,
		UserEmail: email,
		IPAddress: ip,
		UserAgent: userAgent,
		RequestID: requestID,
		Success:   true,
	})
}

// LogAuthFailure records a failed login attempt.
func (t *Trail) LogAuthFailure(email, ip, reason, userAgent, requestID string) {
	t.Log(&Event{
		Type:         EventLoginFailure,
		Severity:     SeverityWarning,
		UserEmail:    email,
		IPAddress:    ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Success:      false,
		ErrorMessage: reason,
		Details:      map[string]interface{}{"attempted_email": email},
	})
}

// LogLogout records a session termination.
func (t *Trail) LogLogout(userID, ip string) {
	t.Log(&Event{
		Type:      EventLogout,
		Severity:  SeverityInfo,
		UserID:    userID,
		IPAddress: ip,
		Success:   true,
	})
}

// LogTokenRefresh records a refresh-token rotation.
func (t *Trail) LogTokenRefresh(userID, ip string) {
	t.Log(&Event{
		Type:      EventTokenRefresh,
		Severity:  SeverityInfo,
		UserID:    userID,
		IPAddress: ip,
		Success:   true,
	})
}

// LogDataAccess records access to a business resource.
func (t *Trail) LogDataAccess(userID, resourceType, resourceID, action, ip string) {
	if action == "" {
		action = "read"
	}
	t.Log(&Event{
		Type:         EventDataAccess,
		Severity:     SeverityInfo,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		IPAddress:    ip,
		Success:      true,
	})
}

// LogSecurityEvent records a security violation (rate limit, brute
// force, invalid token, permission denied).
func (t *Trail) LogSecurityEvent(eventType EventType, ip, userID string, details map[string]interface{}) {
	t.Log(&Event{
		Type:      eventType,
		Severity:  SeverityWarning,
		UserID:    userID,
		IPAddress: ip,
		Details:   details,
		Success:   false,
	})
}

// LogUserAction records an administrative action performed on a user.
func (t *Trail) LogUserAction(eventType EventType, actorID, targetUserID, action string, details map[string]interface{}) {
	t.Log(&Event{
		Type:         eventType,
		Severity:     SeverityInfo,
		UserID:       actorID,
		ResourceType: "user",
		ResourceID:   targetUserID,
		Action:       action,
		Details:      details,
		Success:      true,
	})
}
