package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/store"
)

// ExpiredTokenGrace is how long an expired credential token is retained
// before housekeeping deletes it. The grace window keeps recently expired
// tokens visible to administrators.
const ExpiredTokenGrace = 30 * 24 * time.Hour

// HousekeepingService periodically removes expired credential tokens and
// stale step-up challenges.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given sweep
// interval, defaulting to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *HousekeepingService) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the loop to exit and waits for the in-flight sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HousekeepingService) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once at startup so restarts don't defer cleanup a full interval.
	s.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.cleanup(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanup runs every sweep independently so one failure doesn't block the
// others.
func (s *HousekeepingService) cleanup(ctx context.Context) {
	if n, err := s.Store.Tokens().DeleteExpiredTokens(ctx, ExpiredTokenGrace); err != nil {
		s.Logger.Error("failed to delete expired credential tokens", "err", err)
	} else if n > 0 {
		s.Logger.Info("deleted expired credential tokens", "count", n)
	}

	if n, err := s.Store.Challenges().DeleteExpiredChallenges(ctx); err != nil {
		s.Logger.Error("failed to delete expired step-up challenges", "err", err)
	} else if n > 0 {
		s.Logger.Info("deleted expired step-up challenges", "count", n)
	}
}
