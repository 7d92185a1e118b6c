package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Relay moves pending outbox rows to the publisher. Delivery is at least once:
// a crash between Publish and MarkPublished sends the batch again.
type Relay struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	batch     int
	now       func() time.Time
}

// NewRelay constructs a relay publishing up to batch events per run.
func NewRelay(store Store, publisher Publisher, batch int, logger *slog.Logger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{store: store, publisher: publisher, logger: logger, batch: batch, now: time.Now}
}

// RunOnce publishes one batch and returns how many events were delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.Pending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if err := r.publisher.Publish(ctx, pending...); err != nil {
		r.logger.Warn("outbox publish failed", slog.Int("pending", len(pending)), slog.Any("error", err))
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(pending))
	for _, ev := range pending {
		ids = append(ids, ev.ID)
	}
	if err := r.store.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, err
	}
	return len(pending), nil
}
