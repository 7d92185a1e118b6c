package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity replays ledgers and stock against stored balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskOutboxRelay publishes committed outbox events.
	TaskOutboxRelay = "outbox:relay"
	// TaskReportWarmup rebuilds cached reports after they were invalidated.
	TaskReportWarmup = "reports:warmup"
)

// IntegrityPayload scopes an integrity run. Zero checks every branch.
type IntegrityPayload struct {
	BranchID int64 `json:"branch_id,omitempty"`
}

// ReportWarmupPayload scopes a warmup. Zero values warm every branch with an
// open journal book.
type ReportWarmupPayload struct {
	BranchID        int64 `json:"branch_id,omitempty"`
	FinancialYearID int64 `json:"financial_year_id,omitempty"`
}

// NewIntegrityTask constructs an Asynq task for the integrity check.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// NewOutboxRelayTask constructs the relay task. It never retries; the next
// scheduled run picks up whatever is still pending.
func NewOutboxRelayTask() *asynq.Task {
	return asynq.NewTask(TaskOutboxRelay, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, body, asynq.Queue(QueueDefault)), nil
}
