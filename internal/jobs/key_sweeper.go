// key_sweeper.go implements the KeySweeper background job, which periodically deletes
// API keys that are invalid or past their expiry. Authentication already rejects such
// keys; sweeping only keeps the api_keys table from growing without bound.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes invalid and expired keys and returns how many were removed
type Sweeper interface {
	SweepKeys(ctx context.Context) (int64, error)
}

// KeySweeper periodically runs a Sweeper
type KeySweeper struct {
	sweeper  Sweeper
	interval time.Duration
	stopChan chan struct{}
}

// NewKeySweeper creates a KeySweeper. A non-positive interval leaves the job disabled.
func NewKeySweeper(sweeper Sweeper, interval time.Duration) *KeySweeper {
	return &KeySweeper{
		sweeper:  sweeper,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval, until ctx is cancelled or
// Stop is called.
func (s *KeySweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("key sweeper disabled (auth.api_keys.sweep_interval=0)")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("key sweeper started", "interval", s.interval)
	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			slog.Info("key sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("key sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit
func (s *KeySweeper) Stop() {
	close(s.stopChan)
}

// RunOnce performs a single sweep. The key manager logs what was deleted; only
// failures are logged here, and the next tick tries again.
func (s *KeySweeper) RunOnce(ctx context.Context) {
	if _, err := s.sweeper.SweepKeys(ctx); err != nil {
		slog.Error("key sweep failed", "error", err)
	}
}
