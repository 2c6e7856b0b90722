package auth

import (
	"fmt"
	"regexp"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 255
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateUsername checks length and the allowed character set
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return fmt.Errorf("must be between %d and %d characters", MinUsernameLen, MaxUsernameLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}
