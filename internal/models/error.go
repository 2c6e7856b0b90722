package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	// Kind markers for the typed errors below
	ErrValidation   = errors.New("validation failed")
	ErrStoreFailure = errors.New("store failure")
	ErrDecryption   = errors.New("note content could not be decrypted")
)

// AccountLockedError carries the remaining lockout time, rounded up to whole minutes.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked for %d more minute(s)", e.RemainingMinutes)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// ValidationError reports malformed input for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a failure of the credential, session or note store.
// The wrapped error is for server-side logs only.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// NewStoreError wraps err unless it is already one of the domain kinds
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreFailure) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
