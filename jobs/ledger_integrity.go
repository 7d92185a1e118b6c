package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Integrity check names.
const (
	CheckLedgerReplay  = "ledger_replay"
	CheckTrialBalance  = "trial_balance"
	CheckStockReplay   = "stock_replay"
	CheckProductTotals = "product_totals"
)

// ReportReader is the part of the reporter the integrity job replays through.
type ReportReader interface {
	LedgerBook(ctx context.Context, ledgerID int64, from, to time.Time) (reports.LedgerBook, error)
	TrialBalance(ctx context.Context, branchID, financialYearID int64) (reports.TrialBalance, error)
}

// StockReader is the part of the stock service the integrity job reads.
type StockReader interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
	StockByGodown(ctx context.Context, productID int64) (inventory.ProductStock, error)
	ReplayLocation(ctx context.Context, productID, godownID int64) (inventory.ReplayResult, error)
}

// Anomaly is one integrity violation.
type Anomaly struct {
	Check    string `json:"check"`
	BranchID int64  `json:"branch_id,omitempty"`
	Subject  string `json:"subject"`
	Detail   string `json:"detail"`
}

// IntegrityReport is the outcome of one run.
type IntegrityReport struct {
	CheckedLedgers   int       `json:"checked_ledgers"`
	CheckedBooks     int       `json:"checked_books"`
	CheckedLocations int       `json:"checked_locations"`
	Anomalies        []Anomaly `json:"anomalies"`
}

// IntegrityJob verifies the stored balances against a replay of history:
// every ledger balance against its entries, every trial balance difference,
// every stock location against its item ledger and every product total
// against its locations. Anomalies are logged and counted; they never fail
// the job.
type IntegrityJob struct {
	Ledgers     LedgerLister
	Books       BookLister
	Reports     ReportReader
	Stock       StockReader
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
}

// integrityRun collects the report of one Run. Runs never share one.
type integrityRun struct {
	mu     sync.Mutex
	report IntegrityReport
}

func (r *integrityRun) add(a Anomaly) {
	r.report.Anomalies = append(r.report.Anomalies, a)
}

// NewIntegrityJob wires the integrity handler.
func NewIntegrityJob(ledgers LedgerLister, books BookLister, reader ReportReader, stock StockReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Ledgers: ledgers, Books: books, Reports: reader, Stock: stock, Logger: logger, Metrics: metrics, Concurrency: 4}
}

// Handle processes integrity tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	run := j.metrics().Start(TaskLedgerIntegrity)
	report, err := j.Run(ctx, payload.BranchID)
	if err != nil {
		j.logger().Error("integrity check failed", slog.Any("error", err))
		return run.Finish(err)
	}
	for _, a := range report.Anomalies {
		j.logger().Warn("integrity anomaly",
			slog.String("check", a.Check),
			slog.Int64("branch_id", a.BranchID),
			slog.String("subject", a.Subject),
			slog.String("detail", a.Detail))
		j.metrics().RecordAnomaly(a.Check, a.BranchID)
	}
	j.logger().Info("integrity check completed",
		slog.Int("ledgers", report.CheckedLedgers),
		slog.Int("books", report.CheckedBooks),
		slog.Int("locations", report.CheckedLocations),
		slog.Int("anomalies", len(report.Anomalies)))
	j.metrics().ObserveSweep(report.CheckedLedgers, report.CheckedBooks, report.CheckedLocations)
	return run.Finish(nil)
}

// Run executes every check. branchID > 0 narrows the ledger checks to one
// branch; stock is not branch scoped and is always checked.
func (j *IntegrityJob) Run(ctx context.Context, branchID int64) (IntegrityReport, error) {
	run := &integrityRun{report: IntegrityReport{Anomalies: []Anomaly{}}}

	limit := j.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	ledgers, err := j.Ledgers.ListLedgers(ctx, chart.LedgerFilter{BranchID: branchID})
	if err != nil {
		return IntegrityReport{}, err
	}
	for _, l := range ledgers {
		l := l
		g.Go(func() error { return j.checkLedger(gctx, run, l) })
	}

	scopes, err := openScopes(ctx, j.Ledgers, j.Books, branchID)
	if err != nil {
		return IntegrityReport{}, err
	}
	for _, sc := range scopes {
		sc := sc
		g.Go(func() error { return j.checkTrialBalance(gctx, run, sc) })
	}

	if j.Stock != nil {
		products, err := j.Stock.ListProducts(ctx)
		if err != nil {
			return IntegrityReport{}, err
		}
		for _, p := range products {
			p := p
			g.Go(func() error { return j.checkProduct(gctx, run, p.ID) })
		}
	}

	if err := g.Wait(); err != nil {
		return IntegrityReport{}, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.report, nil
}

func (j *IntegrityJob) checkLedger(ctx context.Context, run *integrityRun, l chart.Ledger) error {
	book, err := j.Reports.LedgerBook(ctx, l.ID, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("ledger %d: %w", l.ID, err)
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	run.report.CheckedLedgers++
	if !book.Drift.IsZero() {
		run.add(Anomaly{
			Check:    CheckLedgerReplay,
			BranchID: l.BranchID,
			Subject:  fmt.Sprintf("ledger %d (%s)", l.ID, l.Code),
			Detail:   fmt.Sprintf("stored %s replayed %s", l.Balance.StringFixed(2), book.ReplayedBalance.StringFixed(2)),
		})
	}
	return nil
}

func (j *IntegrityJob) checkTrialBalance(ctx context.Context, run *integrityRun, sc reportScope) error {
	tb, err := j.Reports.TrialBalance(ctx, sc.BranchID, sc.FinancialYearID)
	if err != nil {
		return fmt.Errorf("trial balance %d/%d: %w", sc.BranchID, sc.FinancialYearID, err)
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	run.report.CheckedBooks++
	if !tb.Difference.IsZero() {
		run.add(Anomaly{
			Check:    CheckTrialBalance,
			BranchID: sc.BranchID,
			Subject:  fmt.Sprintf("financial year %d", sc.FinancialYearID),
			Detail:   "difference " + tb.Difference.StringFixed(2),
		})
	}
	return nil
}

func (j *IntegrityJob) checkProduct(ctx context.Context, run *integrityRun, productID int64) error {
	stock, err := j.Stock.StockByGodown(ctx, productID)
	if err != nil {
		return fmt.Errorf("product %d: %w", productID, err)
	}
	qty, thaan := decimal.Zero, decimal.Zero
	var broken []inventory.ReplayResult
	for _, loc := range stock.Locations {
		qty = qty.Add(loc.Quantity)
		thaan = thaan.Add(loc.Thaan)
		res, err := j.Stock.ReplayLocation(ctx, productID, loc.GodownID)
		if err != nil {
			return fmt.Errorf("product %d godown %d: %w", productID, loc.GodownID, err)
		}
		if !res.Consistent {
			broken = append(broken, res)
		}
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	run.report.CheckedLocations += len(stock.Locations)
	for _, res := range broken {
		detail := fmt.Sprintf("stored %s replayed %s", res.StoredQuantity.String(), res.ReplayedQuantity.String())
		if res.BrokenAt > 0 {
			detail += fmt.Sprintf(", chain broken at entry %d", res.BrokenAt)
		}
		run.add(Anomaly{
			Check:   CheckStockReplay,
			Subject: fmt.Sprintf("product %d godown %d", res.ProductID, res.GodownID),
			Detail:  detail,
		})
	}
	if !qty.Equal(stock.Product.Quantity) || !thaan.Equal(stock.Product.Thaan) {
		run.add(Anomaly{
			Check:   CheckProductTotals,
			Subject: fmt.Sprintf("product %d", productID),
			Detail:  fmt.Sprintf("product %s locations %s", stock.Product.Quantity.String(), qty.String()),
		})
	}
	return nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
