package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

// ErrPublisherUnavailable is returned while the breaker is open.
var ErrPublisherUnavailable = errors.New("platform/events: publisher unavailable")

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher writes events to one Kafka topic behind a circuit breaker.
// The event topic travels as a header and the event key as the message key.
type KafkaPublisher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewKafkaPublisher builds the publisher.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "outbox-kafka",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &KafkaPublisher{writer: writer, breaker: breaker, logger: logger}
}

// Publish writes evs in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Key),
			Value: ev.Payload,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(ev.ID.String())},
				{Key: "event-topic", Value: []byte(ev.Topic)},
			},
			Time: ev.CreatedAt,
		})
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, msgs...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("platform/events: publish: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher builds a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs each event.
func (p *LogPublisher) Publish(ctx context.Context, evs ...Event) error {
	for _, ev := range evs {
		p.logger.InfoContext(ctx, "event published",
			slog.String("topic", ev.Topic),
			slog.String("key", ev.Key),
			slog.String("id", ev.ID.String()))
	}
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
