package models

import "time"

// Session is an authenticated client session. ExpiresAt is fixed at creation.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	IPAddress string // audit only
	UserAgent string // audit only
	CreatedAt time.Time
}

// Active reports whether the session is usable at now
func (s *Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
