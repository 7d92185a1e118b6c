package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/app"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/posting"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo chart, book, stock and one sale for a branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			_, err = seedDemo(ctx, c, opts.branch, opts.year, cmd.OutOrStdout())
			return err
		},
	}
}

type seedResult struct {
	Book    journal.Book
	Ledgers map[chart.LedgerType]chart.Ledger
	Product inventory.Product
	Godown  inventory.Godown
	Invoice string
}

type seedLedger struct {
	name    string
	typ     chart.LedgerType
	group   chart.Nature
	opening int64
}

var demoLedgers = []seedLedger{
	{"Cash in Hand", chart.LedgerCash, chart.NatureAssets, 50000},
	{"Meezan Bank", chart.LedgerBank, chart.NatureAssets, 250000},
	{"Walk-in Customer", chart.LedgerAccountsReceivable, chart.NatureAssets, 0},
	{"Textile Mills Ltd", chart.LedgerAccountsPayable, chart.NatureLiabilities, 40000},
	{"Shop Rent", chart.LedgerIndirectExpense, chart.NatureExpenses, 0},
}

// seedDemo builds a small, balanced data set through the public services.
func seedDemo(ctx context.Context, c *app.Container, branch, year int64, out io.Writer) (seedResult, error) {
	start := time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(int(year), time.December, 31, 0, 0, 0, 0, time.UTC)
	res := seedResult{Ledgers: map[chart.LedgerType]chart.Ledger{}}

	book, err := c.Journal.OpenBook(ctx, journal.BookInput{
		BranchID: branch, FinancialYearID: year, Name: fmt.Sprintf("FY%d", year), StartDate: start, EndDate: end,
	})
	if err != nil {
		return res, fmt.Errorf("open book: %w", err)
	}
	res.Book = book
	fmt.Fprintf(out, "→ opened book %s (%s .. %s)\n", book.Name, start.Format(time.DateOnly), end.Format(time.DateOnly))

	groups := map[chart.Nature]chart.AccountGroup{}
	for _, n := range []chart.Nature{chart.NatureAssets, chart.NatureLiabilities, chart.NatureCapital, chart.NatureIncome, chart.NatureExpenses} {
		g, err := c.Chart.CreateGroup(ctx, chart.GroupInput{Name: natureTitle(n), Nature: n})
		if err != nil {
			return res, fmt.Errorf("group %s: %w", n, err)
		}
		groups[n] = g
	}
	fmt.Fprintf(out, "→ created %d root groups\n", len(groups))

	for _, l := range demoLedgers {
		created, err := c.Posting.CreateLedgerAccount(ctx, posting.LedgerAccountInput{
			Name:           l.name,
			Type:           l.typ,
			GroupID:        groups[l.group].ID,
			BranchID:       branch,
			OpeningBalance: decimal.NewFromInt(l.opening),
			Date:           start,
		})
		if err != nil {
			return res, fmt.Errorf("ledger %s: %w", l.name, err)
		}
		res.Ledgers[l.typ] = created.Ledger
		fmt.Fprintf(out, "→ ledger %-18s %s\n", created.Ledger.Code, created.Ledger.Name)
	}

	res.Product, err = c.Inventory.CreateProduct(ctx, inventory.ProductInput{
		Name: "Lawn Print", Category: "Fabric", Unit: "m", Price: decimal.NewFromInt(450), CostPrice: decimal.NewFromInt(300),
	})
	if err != nil {
		return res, fmt.Errorf("product: %w", err)
	}
	res.Godown, err = c.Inventory.CreateGodown(ctx, inventory.GodownInput{Name: "Main Godown"})
	if err != nil {
		return res, fmt.Errorf("godown: %w", err)
	}
	if _, err := c.Inventory.RecordOpening(ctx, inventory.OpeningInput{
		ProductID: res.Product.ID, GodownID: res.Godown.ID,
		Quantity: decimal.NewFromInt(200), Thaan: decimal.NewFromInt(8), UnitPrice: decimal.NewFromInt(300), Date: start,
	}); err != nil {
		return res, fmt.Errorf("opening stock: %w", err)
	}
	fmt.Fprintf(out, "→ stocked %s in %s\n", res.Product.Name, res.Godown.Name)

	sale, err := c.Posting.CreateInvoice(ctx, posting.InvoiceInput{
		BranchID:  branch,
		Type:      posting.InvoiceSale,
		Date:      start.AddDate(0, 0, 14),
		LedgerID:  res.Ledgers[chart.LedgerAccountsReceivable].ID,
		Narration: "Demo sale",
		Items: []posting.ItemInput{{
			ProductID: res.Product.ID, GodownID: res.Godown.ID,
			Quantity: decimal.NewFromInt(20), Thaan: decimal.NewFromInt(1), Rate: decimal.NewFromInt(450),
		}},
	})
	if err != nil {
		return res, fmt.Errorf("sale: %w", err)
	}
	res.Invoice = sale.Invoice.Number
	fmt.Fprintf(out, "→ posted %s for %s\n", sale.Invoice.Number, sale.GrandTotal.StringFixed(2))
	return res, nil
}

func natureTitle(n chart.Nature) string {
	switch n {
	case chart.NatureAssets:
		return "Assets"
	case chart.NatureLiabilities:
		return "Liabilities"
	case chart.NatureCapital:
		return "Capital"
	case chart.NatureIncome:
		return "Income"
	default:
		return "Expenses"
	}
}
