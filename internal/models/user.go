package models

import (
	"time"
)

type User struct {
	ID                  int64
	Username            string
	PasswordHash        string
	FailedLoginAttempts int
	LockedUntil         *time.Time // Temporary lock expiration
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicUser is the identity exposed outside the authentication core
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{ID: u.ID, Username: u.Username}
}

// IsLocked reports whether the lockout window is still open at now
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// LoginState is the partial update applied after every login attempt.
// A nil LastLogin leaves the stored value unchanged.
type LoginState struct {
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
}
