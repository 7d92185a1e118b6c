package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
)

// OutboxRelayJob drains the outbox through the relay, batch by batch.
type OutboxRelayJob struct {
	Relay      *events.Relay
	MaxBatches int
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewOutboxRelayJob wires the relay handler.
func NewOutboxRelayJob(relay *events.Relay, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutboxRelayJob {
	return &OutboxRelayJob{Relay: relay, MaxBatches: 10, Logger: logger, Metrics: metrics}
}

// Handle publishes pending events until the outbox is empty or MaxBatches
// batches were sent.
func (j *OutboxRelayJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Relay == nil {
		return errors.New("outbox relay: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	run := metrics.Start(TaskOutboxRelay)

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskOutboxRelay))

	total := 0
	for i := 0; j.MaxBatches <= 0 || i < j.MaxBatches; i++ {
		n, err := j.Relay.RunOnce(ctx)
		if err != nil {
			logger.Warn("outbox relay stopped", slog.Int("published", total), slog.Any("error", err))
			metrics.AddRelayed(total)
			return run.Finish(err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total > 0 {
		logger.Info("outbox relayed", slog.Int("published", total))
	}
	metrics.AddRelayed(total)
	return run.Finish(nil)
}
