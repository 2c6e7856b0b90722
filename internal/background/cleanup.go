package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionCleaner deletes expired sessions and reports how many were removed
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// CleanupManager periodically sweeps expired sessions from the session store.
// Expired sessions are already rejected on lookup; the sweep only reclaims rows.
type CleanupManager struct {
	cleaner  SessionCleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(cleaner SessionCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		cleaner:  cleaner,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately, then every interval until Stop or ctx ends.
// It blocks; run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup removes expired sessions
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.cleaner.CleanupExpiredSessions(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired sessions", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("expired session cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
