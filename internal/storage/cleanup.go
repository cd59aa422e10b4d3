package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/metrics"
)

// sweepTimeout bounds a single CleanupExpiredSessions call
const sweepTimeout = 30 * time.Second

// CleanupManager sweeps expired session records on a fixed interval: once
// on Start, then every interval, then a last time on Stop.
type CleanupManager struct {
	store    Store
	interval time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a manager for store; it does nothing until Start
func NewCleanupManager(store Store, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is
// called.
func (cm *CleanupManager) Start(ctx context.Context) {
	ctx, cm.cancel = context.WithCancel(ctx)
	log.LogInfoWithFields("cleanup", "Starting session cleanup manager", map[string]any{
		"interval": cm.interval.String(),
	})
	go cm.loop(ctx)
}

// Stop ends the loop, waits for it, and runs a final sweep. Calling it more
// than once is harmless.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cancel == nil {
			return
		}
		cm.cancel()
		<-cm.done
		cm.Sweep(context.Background())
		log.LogInfo("Session cleanup manager stopped")
	})
}

func (cm *CleanupManager) loop(ctx context.Context) {
	defer close(cm.done)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		cm.Sweep(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Sweep removes expired records once and returns how many went away
func (cm *CleanupManager) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	count, err := cm.store.CleanupExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.LogErrorWithFields("cleanup", "Failed to remove expired sessions", map[string]any{
				"error": err.Error(),
			})
		}
		return 0
	}
	if count > 0 {
		metrics.ExpiredSessionsRemoved.Add(float64(count))
		log.LogDebugWithFields("cleanup", "Removed expired sessions", map[string]any{
			"count": count,
		})
	}
	return count
}
