package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/app"
	"github.com/odyssey-erp/ledger-core/jobs"
)

func TestReportLatencyTargets(t *testing.T) {
	ctx := context.Background()
	cfg := &app.Config{AppEnv: "test", StoreDriver: app.StoreMemory, RateLimitPerMinute: 100000}
	c, err := app.NewContainer(ctx, cfg, nil, nil)
	if err != nil {
		t.Fatalf("container: %v", err)
	}
	defer c.Close()

	if _, err := c.Journal.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 2024, Name: "FY2024",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("open book: %v", err)
	}
	group, err := c.Chart.CreateGroup(ctx, chart.GroupInput{Name: "Assets", Nature: chart.NatureAssets})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	for i := 0; i < 40; i++ {
		if _, err := c.Chart.CreateLedger(ctx, chart.LedgerInput{Name: "Ledger " + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Type: chart.LedgerCash, GroupID: group.ID, BranchID: 1}); err != nil {
			t.Fatalf("ledger %d: %v", i, err)
		}
	}
	router := app.NewRouter(app.RouterParamsFromContainer(c, jobs.NewHandler(nil, c.Logger)))

	scenarios := []struct {
		name      string
		path      string
		threshold time.Duration
	}{
		{name: "trial balance", path: "/api/v1/branches/1/trial-balance?financial_year=2024", threshold: 500 * time.Millisecond},
		{name: "chart", path: "/api/v1/chart", threshold: 250 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 30)
		for i := 0; i < 30; i++ {
			rec := httptest.NewRecorder()
			start := time.Now()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, scenario.path, nil))
			samples = append(samples, time.Since(start))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status %d: %s", scenario.name, rec.Code, rec.Body.String())
			}
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
