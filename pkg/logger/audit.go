package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Audit event types
const (
	EventLoginSuccess  = "login_success"
	EventLoginFailure  = "login_failure"
	EventAccountLocked = "account_locked"
	EventLogout        = "logout"
	EventOwnerCreated  = "owner_created"
	EventRateLimited   = "rate_limited"
)

// AuditEvent represents a security audit event.
// Session tokens and passwords are never part of an event.
type AuditEvent struct {
	EventType     string
	UserID        int64
	Username      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	attrs = append(attrs, event.attrs()...)

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAccountAction logs general account actions
func (al *AuditLogger) LogAccountAction(eventType string, userID int64, ipAddress string, metadata map[string]string) {
	event := AuditEvent{UserID: userID, IPAddress: ipAddress, Metadata: metadata}
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	attrs = append(attrs, event.attrs()...)

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogRateLimited logs a request rejected by a rate limit policy
func (al *AuditLogger) LogRateLimited(policy, identity, path string) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", EventRateLimited),
		slog.String("policy", policy),
		slog.String("ip_address", identity),
		slog.String("path", path),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	)
}

func (e AuditEvent) attrs() []slog.Attr {
	var attrs []slog.Attr
	if e.UserID != 0 {
		attrs = append(attrs, slog.String("user_id", strconv.FormatInt(e.UserID, 10)))
	}
	if e.Username != "" {
		attrs = append(attrs, slog.String("username", e.Username))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", e.IPAddress))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}
	if e.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", e.FailureReason))
	}
	for key, val := range e.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}
	return attrs
}
