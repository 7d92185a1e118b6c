// Package events carries committed domain events from the transactional
// outbox to the message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one outbox row.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// New encodes payload into an event for topic.
func New(topic, key string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("platform/events: encode %s: %w", topic, err)
	}
	return Event{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Payload:   raw,
		CreatedAt: at,
	}, nil
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
	Close() error
}

// Store reads and acknowledges pending outbox rows.
type Store interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
