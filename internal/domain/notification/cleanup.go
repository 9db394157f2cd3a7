package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CleanupJob deletes old notifications on an interval
type CleanupJob struct {
	repo      Repository
	retention time.Duration
}

// NewCleanupJob creates a cleanup job
func NewCleanupJob(repo Repository, retention time.Duration) *CleanupJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &CleanupJob{repo: repo, retention: retention}
}

// Start runs the cleanup loop until ctx is cancelled (call in goroutine)
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notification cleanup job stopped")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *CleanupJob) run(ctx context.Context) {
	deleted, err := j.repo.DeleteOlderThan(ctx, j.retention)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup old notifications")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("cleaned up old notifications")
	}
}
