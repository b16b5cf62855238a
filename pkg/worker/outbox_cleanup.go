package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// OutboxCleanupWorker purges processed events older than the retention window
type OutboxCleanupWorker struct {
	repo      OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

func NewOutboxCleanupWorker(repo OutboxRepository, retention, interval time.Duration, logger zerolog.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("component", "outbox_cleanup").Logger(),
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *OutboxCleanupWorker) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)
	n, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to purge processed events")
		return
	}
	if n > 0 {
		w.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Purged processed events")
	}
}
