//go:build integration

package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/app"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/posting"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

type pgWorld struct {
	c        *app.Container
	customer chart.Ledger
	cash     chart.Ledger
	product  inventory.Product
	godown   inventory.Godown
	day      time.Time
}

func newPGWorld(t *testing.T) *pgWorld {
	t.Helper()
	ctx := context.Background()
	cfg := &app.Config{
		AppEnv:             "test",
		StoreDriver:        app.StorePostgres,
		PGDSN:              startPostgres(t),
		PGMaxConns:         8,
		MigrateOnStart:     true,
		RateLimitPerMinute: 1,
	}
	c, err := app.NewContainer(ctx, cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	w := &pgWorld{c: c, day: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}
	_, err = c.Journal.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 2024, Name: "FY2024",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assets, err := c.Chart.CreateGroup(ctx, chart.GroupInput{Name: "Assets", Nature: chart.NatureAssets})
	require.NoError(t, err)
	for _, n := range []chart.Nature{chart.NatureLiabilities, chart.NatureCapital, chart.NatureIncome, chart.NatureExpenses} {
		_, err := c.Chart.CreateGroup(ctx, chart.GroupInput{Name: string(n), Nature: n})
		require.NoError(t, err)
	}
	cash, err := c.Posting.CreateLedgerAccount(ctx, posting.LedgerAccountInput{Name: "Cash", Type: chart.LedgerCash,
		GroupID: assets.ID, BranchID: 1, OpeningBalance: decimal.NewFromInt(1000), Date: w.day})
	require.NoError(t, err)
	w.cash = cash.Ledger
	customer, err := c.Posting.CreateLedgerAccount(ctx, posting.LedgerAccountInput{Name: "Customer", Type: chart.LedgerAccountsReceivable,
		GroupID: assets.ID, BranchID: 1})
	require.NoError(t, err)
	w.customer = customer.Ledger

	w.product, err = c.Inventory.CreateProduct(ctx, inventory.ProductInput{Name: "Cotton"})
	require.NoError(t, err)
	w.godown, err = c.Inventory.CreateGodown(ctx, inventory.GodownInput{Name: "Main"})
	require.NoError(t, err)
	_, err = c.Inventory.RecordOpening(ctx, inventory.OpeningInput{ProductID: w.product.ID, GodownID: w.godown.ID,
		Quantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10), Date: w.day})
	require.NoError(t, err)
	return w
}

func (w *pgWorld) sale(qty int64) posting.InvoiceInput {
	return posting.InvoiceInput{BranchID: 1, Type: posting.InvoiceSale, Date: w.day, LedgerID: w.customer.ID,
		Items: []posting.ItemInput{{ProductID: w.product.ID, GodownID: w.godown.ID, Quantity: decimal.NewFromInt(qty), Rate: decimal.NewFromInt(25)}}}
}

func TestPostgresInvoicesAndReversal(t *testing.T) {
	w := newPGWorld(t)
	ctx := context.Background()

	res, err := w.c.Posting.CreateInvoice(ctx, w.sale(4))
	require.NoError(t, err)
	require.Equal(t, "SI-1-000001", res.Invoice.Number)
	require.True(t, res.GrandTotal.Equal(decimal.NewFromInt(100)))

	_, err = w.c.Posting.CreateInvoice(ctx, w.sale(500))
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	stock, err := w.c.Inventory.StockByGodown(ctx, w.product.ID)
	require.NoError(t, err)
	require.True(t, stock.Locations[0].Quantity.Equal(decimal.NewFromInt(96)))

	v, err := w.c.Posting.CreateVoucher(ctx, posting.VoucherInput{BranchID: 1, Type: posting.VoucherReceipt, Date: w.day,
		Entries: []posting.VoucherLine{
			{LedgerID: w.cash.ID, Type: journal.Debit, Amount: decimal.NewFromInt(60)},
			{LedgerID: w.customer.ID, Type: journal.Credit, Amount: decimal.NewFromInt(60)},
		}})
	require.NoError(t, err)
	_, err = w.c.Posting.ReverseVoucher(ctx, v.Voucher.Number, w.day)
	require.NoError(t, err)
	_, err = w.c.Posting.ReverseVoucher(ctx, v.Voucher.Number, w.day)
	require.Error(t, err)

	cash, err := w.c.Chart.GetLedger(ctx, w.cash.ID)
	require.NoError(t, err)
	require.True(t, cash.Balance.Equal(decimal.NewFromInt(1000)), cash.Balance.String())

	tb, err := w.c.Reports.TrialBalance(ctx, 1, 2024)
	require.NoError(t, err)
	require.True(t, tb.Difference.IsZero(), tb.Difference.String())

	book, err := w.c.Reports.LedgerBook(ctx, w.customer.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, book.Drift.IsZero())
	require.True(t, book.ClosingBalance.Equal(decimal.NewFromInt(100)))

	pending, err := w.c.Outbox.Pending(ctx, 50)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	relay := events.NewRelay(w.c.Outbox, events.NewLogPublisher(nil), 10, nil)
	for {
		n, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}
	pending, err = w.c.Outbox.Pending(ctx, 50)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPostgresConcurrentInvoicesNumberAndStock(t *testing.T) {
	w := newPGWorld(t)
	ctx := context.Background()

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := w.c.Posting.CreateInvoice(ctx, w.sale(10))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[res.Invoice.Number] = true
		}()
	}
	wg.Wait()

	require.Len(t, numbers, 10)
	require.Len(t, errs, 2)
	for _, err := range errs {
		require.ErrorIs(t, err, shared.ErrInsufficientStock)
	}
	for i := 1; i <= 10; i++ {
		require.True(t, numbers[fmt.Sprintf("SI-1-%06d", i)])
	}

	replay, err := w.c.Inventory.ReplayLocation(ctx, w.product.ID, w.godown.ID)
	require.NoError(t, err)
	require.True(t, replay.Consistent)
	require.True(t, replay.StoredQuantity.IsZero())

	tb, err := w.c.Reports.TrialBalance(ctx, 1, 2024)
	require.NoError(t, err)
	require.True(t, tb.Difference.IsZero())
}

func TestPostgresStockViewIsOneSnapshot(t *testing.T) {
	w := newPGWorld(t)
	ctx := context.Background()

	done := make(chan struct{})
	var saleErr error
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			if _, err := w.c.Posting.CreateInvoice(ctx, w.sale(2)); err != nil {
				saleErr = err
				return
			}
		}
	}()

	reads := 0
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		stock, err := w.c.Inventory.StockByGodown(ctx, w.product.ID)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, loc := range stock.Locations {
			sum = sum.Add(loc.Quantity)
		}
		require.True(t, sum.Equal(stock.Product.Quantity), "product %s locations %s", stock.Product.Quantity, sum)
		replay, err := w.c.Inventory.ReplayLocation(ctx, w.product.ID, w.godown.ID)
		require.NoError(t, err)
		require.True(t, replay.Consistent)
		reads++
	}
	require.NoError(t, saleErr)
	require.Positive(t, reads)
}
