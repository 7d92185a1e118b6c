package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox is the PostgreSQL outbox store.
type Outbox struct {
	pool *pgxpool.Pool
}

// NewOutbox constructs the store.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Insert writes ev within tx so it commits with the business change.
func Insert(ctx context.Context, tx pgx.Tx, ev Event) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox_events (id, topic, key, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`, ev.ID, ev.Topic, ev.Key, []byte(ev.Payload), ev.CreatedAt)
	return err
}

// Pending returns unpublished events in creation order.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]Event, error) {
	if o.pool == nil {
		return nil, errors.New("platform/events: pool not initialised")
	}
	rows, err := o.pool.Query(ctx, `SELECT id, topic, key, payload, created_at
FROM outbox_events WHERE published_at IS NULL ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.Key, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkPublished stamps delivered events.
func (o *Outbox) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := o.pool.Exec(ctx, `UPDATE outbox_events SET published_at = $2 WHERE id = ANY($1)`, ids, at)
	return err
}
