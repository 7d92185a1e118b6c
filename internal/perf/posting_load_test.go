package perf

import (
	"context"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/observability"
	"github.com/odyssey-erp/ledger-core/internal/posting"
	"github.com/odyssey-erp/ledger-core/internal/store/memory"
)

// TestPostingThroughputAndIntegrity drives concurrent sales into one godown
// until stock runs out and checks the counters, latency and books afterwards.
func TestPostingThroughputAndIntegrity(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	metrics := observability.NewMetrics()
	books := journal.NewService(store.Journal(), nil)
	charts := chart.NewService(store.Chart(), nil)
	stock := inventory.NewService(store.Inventory(), nil)
	svc := posting.NewService(store.Posting(), posting.Config{Metrics: metrics})
	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	if _, err := books.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 2024, Name: "FY2024",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("open book: %v", err)
	}
	for _, n := range []chart.Nature{chart.NatureAssets, chart.NatureLiabilities, chart.NatureCapital, chart.NatureIncome, chart.NatureExpenses} {
		if _, err := charts.CreateGroup(ctx, chart.GroupInput{Name: string(n), Nature: n}); err != nil {
			t.Fatalf("group %s: %v", n, err)
		}
	}
	customer, err := charts.CreateLedger(ctx, chart.LedgerInput{Name: "Customer", Type: chart.LedgerAccountsReceivable, GroupID: 1, BranchID: 1})
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	product, err := stock.CreateProduct(ctx, inventory.ProductInput{Name: "Cotton"})
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	godown, err := stock.CreateGodown(ctx, inventory.GodownInput{Name: "Main"})
	if err != nil {
		t.Fatalf("godown: %v", err)
	}
	if _, err := stock.RecordOpening(ctx, inventory.OpeningInput{ProductID: product.ID, GodownID: godown.ID,
		Quantity: decimal.NewFromInt(300), UnitPrice: decimal.NewFromInt(4), Date: day}); err != nil {
		t.Fatalf("opening: %v", err)
	}

	const attempts = 120
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CreateInvoice(ctx, posting.InvoiceInput{BranchID: 1, Type: posting.InvoiceSale, Date: day, LedgerID: customer.ID,
				Items: []posting.ItemInput{{ProductID: product.ID, GodownID: godown.ID, Quantity: decimal.NewFromInt(3), Rate: decimal.NewFromInt(9)}}})
		}()
	}
	wg.Wait()

	families, err := metrics.Gatherer().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	committed := metricValue(t, families, "odyssey_ledger_postings_total", map[string]string{"kind": "invoice", "outcome": "committed"})
	rejected := metricValue(t, families, "odyssey_ledger_postings_total", map[string]string{"kind": "invoice", "outcome": "rejected"})
	if committed != 100 || rejected != 20 {
		t.Fatalf("expected 100 committed and 20 rejected, got %v and %v", committed, rejected)
	}
	if mean := histogramMean(t, families, "odyssey_ledger_posting_duration_seconds", map[string]string{"kind": "invoice"}); mean > 0.25 {
		t.Fatalf("posting latency above budget: %f", mean)
	}

	replay, err := stock.ReplayLocation(ctx, product.ID, godown.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.Consistent || !replay.StoredQuantity.IsZero() {
		t.Fatalf("stock drifted: %+v", replay)
	}
	tb, err := reports.NewService(store.Reports(), nil, nil).TrialBalance(ctx, 1, 2024)
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if !tb.Difference.IsZero() {
		t.Fatalf("trial balance off by %s", tb.Difference)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		want, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != want {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
