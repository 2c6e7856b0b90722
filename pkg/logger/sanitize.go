package logger

import (
	"log/slog"
	"strings"
)

// TokenFingerprint returns a short non-reversible prefix of a session token
// suitable for correlating log lines, e.g. "a1b2c3d4…".
func TokenFingerprint(token string) string {
	if len(token) <= 8 {
		return "[redacted]"
	}
	return token[:8] + "…"
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"session",
		"key",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
