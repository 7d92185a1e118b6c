package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	events    []Event
	published map[uuid.UUID]time.Time
}

func (s *fakeStore) Pending(_ context.Context, limit int) ([]Event, error) {
	var out []Event
	for _, ev := range s.events {
		if _, ok := s.published[ev.ID]; ok {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	for _, id := range ids {
		s.published[id] = at
	}
	return nil
}

type fakePublisher struct {
	sent []Event
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, evs ...Event) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, evs...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestRelayPublishesInBatches(t *testing.T) {
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{published: map[uuid.UUID]time.Time{}}
	for i := 0; i < 3; i++ {
		ev, err := New("invoice.posted", "SI-1-00000"+string(rune('1'+i)), map[string]int{"n": i}, at)
		require.NoError(t, err)
		store.events = append(store.events, ev)
	}
	pub := &fakePublisher{}
	relay := NewRelay(store, pub, 2, nil)

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, pub.sent, 3)
	require.JSONEq(t, `{"n":0}`, string(pub.sent[0].Payload))
}

func TestRelayKeepsEventsWhenPublishFails(t *testing.T) {
	ev, err := New("inventory.stock.moved", "TRF-000001", struct{}{}, time.Now())
	require.NoError(t, err)
	store := &fakeStore{events: []Event{ev}, published: map[uuid.UUID]time.Time{}}
	relay := NewRelay(store, &fakePublisher{err: errors.New("broker down")}, 10, nil)

	_, err = relay.RunOnce(context.Background())
	require.Error(t, err)
	require.Empty(t, store.published)

	pending, err := store.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
