package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
)

// ReportWarmer builds and caches the reports of one branch and year.
type ReportWarmer interface {
	Warm(ctx context.Context, branchID, financialYearID int64) error
}

// ReportWarmupJob pre-populates report caches for open journal books.
type ReportWarmupJob struct {
	Reports ReportWarmer
	Ledgers LedgerLister
	Books   BookLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reports ReportWarmer, ledgers LedgerLister, books BookLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Reports: reports, Ledgers: ledgers, Books: books, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	run := metrics.Start(TaskReportWarmup)

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskReportWarmup))

	scopes := []reportScope{{BranchID: payload.BranchID, FinancialYearID: payload.FinancialYearID}}
	if payload.BranchID <= 0 || payload.FinancialYearID <= 0 {
		var err error
		scopes, err = openScopes(ctx, j.Ledgers, j.Books, payload.BranchID)
		if err != nil {
			logger.Error("load warmup scopes", slog.Any("error", err))
			return run.Finish(err)
		}
	}

	start := time.Now()
	for _, sc := range scopes {
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Reports.Warm(scopeCtx, sc.BranchID, sc.FinancialYearID)
		cancel()
		if err != nil {
			logger.Error("warm scope", slog.Int64("branch_id", sc.BranchID), slog.Int64("financial_year_id", sc.FinancialYearID), slog.Any("error", err))
			return run.Finish(err)
		}
	}
	logger.Info("completed report warmup", slog.Int("scopes", len(scopes)), slog.Duration("duration", time.Since(start)))
	return run.Finish(nil)
}
