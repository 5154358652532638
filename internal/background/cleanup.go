package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/security"
)

// CleanupManager runs the periodic pruning for the in-memory security
// engines. The fast interval sweeps rate-limiter windows and expired
// revocation entries; the deep interval prunes login attempts and
// expired lockouts. All sweeps are idempotent, so overlapping or
// repeated runs are harmless.
type CleanupManager struct {
	limiters     []*security.RateLimiter
	guard        *security.Guard
	tokenManager *auth.TokenManager
	logger       *slog.Logger
	interval     time.Duration
	deepInterval time.Duration
	stopCh       chan struct{}
}

// NewCleanupManager creates a cleanup manager over the given engines.
func NewCleanupManager(
	limiters []*security.RateLimiter,
	guard *security.Guard,
	tokenManager *auth.TokenManager,
	logger *slog.Logger,
	interval, deepInterval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		limiters:     limiters,
		guard:        guard,
		tokenManager: tokenManager,
		logger:       logger,
		interval:     interval,
		deepInterval: deepInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic sweeps and blocks until the context is
// cancelled or Stop is called. Run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	deepTicker := time.NewTicker(cm.deepInterval)
	defer ticker.Stop()
	defer deepTicker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.runSweep()
		case <-deepTicker.C:
			cm.runDeepSweep()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runSweep drops empty rate-limit windows and aged revocation entries.
func (cm *CleanupManager) runSweep() {
	for _, limiter := range cm.limiters {
		limiter.Sweep()
	}

	if cm.tokenManager != nil {
		if removed := cm.tokenManager.CleanupExpired(); removed > 0 {
			cm.logger.Info("revocation entries pruned", slog.Int("removed", removed))
		}
	}
}

// runDeepSweep prunes login attempts and expired lockouts.
func (cm *CleanupManager) runDeepSweep() {
	if cm.guard != nil {
		cm.guard.Prune()
	}
	cm.logger.Debug("deep cleanup completed")
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
