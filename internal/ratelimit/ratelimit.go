// Package ratelimit implements fixed-window request counting keyed by
// policy and client identity.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one counted request
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts requests per key in fixed windows.
//
// A missing or elapsed window starts fresh with count 1. Once the count
// reaches max further calls are rejected without being counted until the
// window resets.
type Store interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (Result, error)
}

// Policy is a named budget. Policies with different names never share counters.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Key scopes identity to the policy's bucket
func (p Policy) Key(identity string) string {
	return p.Name + ":" + identity
}

// Allow counts one request for identity against p
func (p Policy) Allow(ctx context.Context, store Store, identity string) (Result, error) {
	return store.Allow(ctx, p.Key(identity), p.Max, p.Window)
}

const (
	PolicyGeneral = "general"
	PolicyAuth    = "auth"
)

// General is the budget applied to every API request
func General(max int, window time.Duration) Policy {
	return Policy{Name: PolicyGeneral, Max: max, Window: window}
}

// Auth is the stricter budget for credential endpoints
func Auth(max int, window time.Duration) Policy {
	return Policy{Name: PolicyAuth, Max: max, Window: window}
}
