package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/nakamastream/accounts/internal/repositories"
)

// CleanupManager periodically removes expired reset tokens and aged-out
// login attempts from the database
type CleanupManager struct {
	resetRepo   *repositories.PasswordResetRepository
	attemptRepo *repositories.LoginAttemptRepository
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	resetRepo *repositories.PasswordResetRepository,
	attemptRepo *repositories.LoginAttemptRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		resetRepo:   resetRepo,
		attemptRepo: attemptRepo,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
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

// runCleanup sweeps both expiring tables. Expiry is enforced at read
// time everywhere; this only reclaims the rows.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tokens, err := cm.resetRepo.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired reset tokens", slog.Any("error", err))
	} else if tokens > 0 {
		cm.logger.Info("expired reset tokens removed", slog.Int64("rows_deleted", tokens))
	}

	attempts, err := cm.attemptRepo.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup login attempts", slog.Any("error", err))
	} else if attempts > 0 {
		cm.logger.Info("aged-out login attempts removed", slog.Int64("rows_deleted", attempts))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
