// ABOUTME: Periodic refresher for the active workflow session's state snapshot
// ABOUTME: Ticks at the refresh interval; the service throttles fetches per session

package playground

import (
	"context"
	"log/slog"
	"time"
)

// Refresher keeps the workflow session-state snapshot current while a
// workflow session is active.
type Refresher struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a refresher ticking every interval.
func NewRefresher(svc *Service, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = svc.refreshInterval
	}
	return &Refresher{
		svc:      svc,
		interval: interval,
		logger:   logger.With("component", "refresher"),
	}
}

// Run refreshes until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("refresher started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("refresher stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one refresh attempt.
func (r *Refresher) Tick(ctx context.Context) {
	fetched, err := r.svc.RefreshSessionState(ctx)
	if err != nil {
		r.logger.Warn("session state refresh failed", "error", err)
		return
	}
	if fetched {
		r.logger.Debug("session state refreshed", "session_id", r.svc.conv.SessionID())
	}
}
