package events

import (
	"context"
	"propbook/pkg/clock"
	"propbook/pkg/logger"
	"time"
)

const (
	DefaultRelayBatchSize = 100
	DefaultRelayInterval  = 2 * time.Second
)

// Relay moves staged outbox batches to the broker. Batches go out in the
// order they were staged and the relay stops at the first failure, so a
// later event for an entity never overtakes an earlier one.
type Relay struct {
	repo      OutboxRepository
	publisher Publisher
	clock     clock.Clock
	log       *logger.Logger
	batchSize int
	interval  time.Duration
}

func NewRelay(repo OutboxRepository, publisher Publisher, clk clock.Clock, log *logger.Logger, batchSize int, interval time.Duration) *Relay {
	if batchSize <= 0 {
		batchSize = DefaultRelayBatchSize
	}
	if interval <= 0 {
		interval = DefaultRelayInterval
	}
	return &Relay{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		log:       log,
		batchSize: batchSize,
		interval:  interval,
	}
}

// RunOnce publishes pending batches and reports how many went out.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.FindPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, batch := range pending {
		if err := r.publisher.PublishBatch(ctx, fromOutboxMessages(batch.Messages)); err != nil {
			r.log.Warn("Outbox batch publish failed",
				"batch_id", batch.ID,
				"attempts", batch.Attempts+1,
				"error", err,
			)
			if recErr := r.repo.RecordFailure(ctx, batch.ID, err.Error()); recErr != nil {
				r.log.Error("Failed to record outbox failure", "batch_id", batch.ID, "error", recErr)
			}
			return published, err
		}

		if err := r.repo.MarkPublished(ctx, batch.ID, r.clock.Now()); err != nil {
			// The batch will be sent again; consumers dedup by event id.
			r.log.Error("Failed to mark outbox batch published", "batch_id", batch.ID, "error", err)
			return published, err
		}
		published++
	}

	if published > 0 {
		r.log.Info("Relayed outbox batches", "count", published)
	}
	return published, nil
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Outbox relay started", "interval", r.interval, "batch_size", r.batchSize)
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("Outbox relay pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}
