package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

// HousekeepingService periodically deletes invites that expired longer ago
// than the retention period, so the invites table does not grow unbounded.
type HousekeepingService struct {
	Invites   *InviteService
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Observe, when set, is called after every run.
	Observe func(deleted int64, err error)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour and a negative retention to zero.
func NewHousekeepingService(invites *InviteService, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention < 0 {
		retention = 0
	}

	return &HousekeepingService{
		Invites:   invites,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		slog.Duration("interval", s.Interval),
		slog.Duration("retention", s.Retention),
	)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

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

// Cleanup runs one purge and returns how many invites were removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	deleted, err := s.Invites.PurgeExpired(ctx, s.Retention)
	if s.Observe != nil {
		s.Observe(deleted, err)
	}
	if err != nil {
		s.Logger.Error("housekeeping cleanup failed", slogx.Err(err))
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed", slog.Int64("deleted_invites", deleted))
	return deleted
}
