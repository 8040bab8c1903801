package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabletap/payqr/internal/payqr/store"
)

// HousekeepingService periodically prunes audit entries past their
// retention window so the audit table does not grow without bound, and
// reports how many credentials expired unredeemed as an operational
// signal for tuning the token TTL.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. If interval is 0
// or negative it defaults to 1 hour; if retention is 0 or negative it
// defaults to 90 days.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (s *HousekeepingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Start begins the background worker. Non-blocking; call Stop to shut it
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		"interval", s.Interval,
		"retention", s.Retention,
	)
}

// Stop shuts the worker down and blocks until any in-progress cleanup
// has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run once immediately on startup.
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one housekeeping pass. Failures are logged and do not
// stop later passes. Exported so tests and operators can trigger a pass
// directly.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.Retention)

	deleted, err := s.Store.Audit().DeleteAuditBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to prune audit entries", "error", err)
	} else if deleted > 0 {
		s.Logger.Info("pruned audit entries",
			"deleted", deleted,
			"cutoff", cutoff,
		)
	}

	expired, err := s.Store.Credentials().CountExpiredUnused(ctx, now)
	if err != nil {
		s.Logger.Error("failed to count expired credentials", "error", err)
	} else {
		s.Logger.Debug("expired unredeemed credentials", "count", expired)
	}
}
