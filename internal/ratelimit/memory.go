package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxKeys is the tracked-key count above which elapsed windows are purged
const DefaultMaxKeys = 10000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local Store. State is lost on restart, so it is
// best-effort protection for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	maxKeys int
	now     func() time.Time
}

func NewMemoryStore(maxKeys int) *MemoryStore {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &MemoryStore{
		windows: make(map[string]*window),
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, max int, d time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(d)}
		s.windows[key] = w
		if !ok && len(s.windows) > s.maxKeys {
			s.compact(now)
		}
		return Result{Allowed: true, Limit: max, Remaining: max - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= max {
		return Result{Allowed: false, Limit: max, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Result{Allowed: true, Limit: max, Remaining: max - w.count, ResetAt: w.resetAt}, nil
}

// compact drops every window that has already elapsed. Caller holds mu.
func (s *MemoryStore) compact(now time.Time) {
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Len reports the number of tracked keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
