package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultFeatureCleanupInterval = 24 * time.Hour
)

// FeatureCleanupService periodically clears expired featured-artisan windows
// so stale profiles drop out of the featured listing.
type FeatureCleanupService struct {
	users    *UserRepository
	interval time.Duration
}

func NewFeatureCleanupService(users *UserRepository) *FeatureCleanupService {
	return &FeatureCleanupService{
		users:    users,
		interval: DefaultFeatureCleanupInterval,
	}
}

func (s *FeatureCleanupService) Start(ctx context.Context) {
	slog.Info("starting feature cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping feature cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *FeatureCleanupService) runCleanup(ctx context.Context) {
	cleared, err := s.users.ClearExpiredFeatures(ctx, time.Now())
	if err != nil {
		slog.Error("error clearing expired featured artisans", "component", "cleanup", "error", err)
	} else if cleared > 0 {
		slog.Info("cleared expired featured artisans", "component", "cleanup", "count", cleared)
	}
}
