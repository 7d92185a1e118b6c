package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/posting"
	"github.com/odyssey-erp/ledger-core/internal/store/memory"
	"github.com/odyssey-erp/ledger-core/jobs"
)

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

type world struct {
	store     *memory.Store
	chart     *chart.Service
	books     *journal.Service
	reports   *reports.Service
	stock     *inventory.Service
	cash      chart.Ledger
	sales     chart.Ledger
	product   inventory.Product
	godown    inventory.Godown
	integrity *jobs.IntegrityJob
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{store: memory.New()}
	w.chart = chart.NewService(w.store.Chart(), nil)
	w.books = journal.NewService(w.store.Journal(), nil)
	w.reports = reports.NewService(w.store.Reports(), nil, nil)
	w.stock = inventory.NewService(w.store.Inventory(), nil)

	_, err := w.books.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 2024, Name: "FY2024",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assets, err := w.chart.CreateGroup(ctx, chart.GroupInput{Name: "Assets", Nature: chart.NatureAssets})
	require.NoError(t, err)
	income, err := w.chart.CreateGroup(ctx, chart.GroupInput{Name: "Income", Nature: chart.NatureIncome})
	require.NoError(t, err)
	w.cash, err = w.chart.CreateLedger(ctx, chart.LedgerInput{Name: "Cash", Type: chart.LedgerCash, GroupID: assets.ID, BranchID: 1})
	require.NoError(t, err)
	w.sales, err = w.chart.CreateLedger(ctx, chart.LedgerInput{Name: "Sales", Type: chart.LedgerSales, GroupID: income.ID, BranchID: 1})
	require.NoError(t, err)

	err = w.store.Journal().WithTx(ctx, func(ctx context.Context, tx journal.TxRepository) error {
		_, err := journal.Post(ctx, tx, journal.PostingInput{BranchID: 1, Date: day, Reference: "CS-1", Lines: []journal.Line{
			{LedgerID: w.cash.ID, Type: journal.Debit, Amount: decimal.NewFromInt(250)},
			{LedgerID: w.sales.ID, Type: journal.Credit, Amount: decimal.NewFromInt(250)},
		}}, day)
		return err
	})
	require.NoError(t, err)

	w.product, err = w.stock.CreateProduct(ctx, inventory.ProductInput{Name: "Lawn Print"})
	require.NoError(t, err)
	w.godown, err = w.stock.CreateGodown(ctx, inventory.GodownInput{Name: "Main"})
	require.NoError(t, err)
	_, err = w.stock.RecordOpening(ctx, inventory.OpeningInput{ProductID: w.product.ID, GodownID: w.godown.ID,
		Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(5), Date: day})
	require.NoError(t, err)

	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	w.integrity = jobs.NewIntegrityJob(w.chart, w.books, w.reports, w.stock, nil, metrics)
	return w
}

func checks(report jobs.IntegrityReport) map[string]int {
	out := map[string]int{}
	for _, a := range report.Anomalies {
		out[a.Check]++
	}
	return out
}

func TestIntegrityCleanBooks(t *testing.T) {
	w := newWorld(t)
	report, err := w.integrity.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, report.Anomalies)
	require.Equal(t, 2, report.CheckedLedgers)
	require.Equal(t, 1, report.CheckedBooks)
	require.Equal(t, 1, report.CheckedLocations)

	require.NoError(t, w.integrity.Handle(context.Background(), asynq.NewTask(jobs.TaskLedgerIntegrity, nil)))
}

func TestIntegrityFindsDrift(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	err := w.store.Journal().WithTx(ctx, func(ctx context.Context, tx journal.TxRepository) error {
		_, err := tx.UpdateLedgerBalance(ctx, w.cash.ID, decimal.NewFromInt(5), day)
		return err
	})
	require.NoError(t, err)
	err = w.store.Inventory().WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		return tx.UpsertLocation(ctx, inventory.Location{ProductID: w.product.ID, GodownID: w.godown.ID, Quantity: decimal.NewFromInt(12), Thaan: decimal.Zero})
	})
	require.NoError(t, err)

	report, err := w.integrity.Run(ctx, 1)
	require.NoError(t, err)
	found := checks(report)
	require.Equal(t, 1, found[jobs.CheckLedgerReplay])
	require.Equal(t, 1, found[jobs.CheckStockReplay])
	require.Equal(t, 1, found[jobs.CheckProductTotals])
	require.Zero(t, found[jobs.CheckTrialBalance])
}

func TestIntegrityConcurrentRunsKeepSeparateReports(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	err := w.store.Journal().WithTx(ctx, func(ctx context.Context, tx journal.TxRepository) error {
		_, err := tx.UpdateLedgerBalance(ctx, w.cash.ID, decimal.NewFromInt(5), day)
		return err
	})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		var (
			wg      sync.WaitGroup
			results [2]jobs.IntegrityReport
			errs    [2]error
		)
		for k := range results {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				results[k], errs[k] = w.integrity.Run(ctx, 1)
			}(k)
		}
		wg.Wait()
		for k, report := range results {
			require.NoError(t, errs[k])
			require.Equal(t, 2, report.CheckedLedgers, "iteration %d run %d", i, k)
			require.Equal(t, 1, report.CheckedLocations, "iteration %d run %d", i, k)
			require.Len(t, report.Anomalies, 1, "iteration %d run %d", i, k)
			require.Equal(t, jobs.CheckLedgerReplay, report.Anomalies[0].Check)
		}
	}
}

func TestIntegrityTaskRejectsBadPayload(t *testing.T) {
	w := newWorld(t)
	err := w.integrity.Handle(context.Background(), asynq.NewTask(jobs.TaskLedgerIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	if p.err != nil {
		return p.err
	}
	for _, ev := range evs {
		p.topics = append(p.topics, ev.Topic)
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestOutboxRelayDrainsInBatches(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	err := store.Posting().WithTx(ctx, func(ctx context.Context, tx posting.TxRepository) error {
		for i := 0; i < 5; i++ {
			ev, err := events.New("voucher.posted", "PV-1", map[string]int{"n": i}, day)
			if err != nil {
				return err
			}
			if err := tx.InsertOutboxEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	job := jobs.NewOutboxRelayJob(events.NewRelay(store, pub, 2, nil), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(ctx, jobs.NewOutboxRelayTask()))
	require.Len(t, pub.topics, 5)

	pending, err := store.Pending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	err = store.Posting().WithTx(ctx, func(ctx context.Context, tx posting.TxRepository) error {
		ev, err := events.New("invoice.posted", "SI-1-000001", struct{}{}, day)
		if err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, ev)
	})
	require.NoError(t, err)
	failing := jobs.NewOutboxRelayJob(events.NewRelay(store, &recordingPublisher{err: errors.New("down")}, 2, nil), nil, nil)
	require.Error(t, failing.Handle(ctx, jobs.NewOutboxRelayTask()))
	pending, err = store.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

type warmCalls struct {
	scopes [][2]int64
}

func (w *warmCalls) Warm(_ context.Context, branchID, financialYearID int64) error {
	w.scopes = append(w.scopes, [2]int64{branchID, financialYearID})
	return nil
}

func TestReportWarmupDiscoversOpenBooks(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	calls := &warmCalls{}
	job := jobs.NewReportWarmupJob(calls, w.chart, w.books, nil, nil)

	task, err := jobs.NewReportWarmupTask(jobs.ReportWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	require.Equal(t, [][2]int64{{1, 2024}}, calls.scopes)

	body, err := json.Marshal(jobs.ReportWarmupPayload{BranchID: 7, FinancialYearID: 2023})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, asynq.NewTask(jobs.TaskReportWarmup, body)))
	require.Equal(t, [2]int64{7, 2023}, calls.scopes[1])

	// The real reporter warms from the memory store.
	real := jobs.NewReportWarmupJob(w.reports, w.chart, w.books, nil, nil)
	require.NoError(t, real.Handle(ctx, task))
}
