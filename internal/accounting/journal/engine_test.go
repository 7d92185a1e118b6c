package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/shared"
	"github.com/odyssey-erp/ledger-core/internal/store/memory"
)

var (
	jan1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dec31 = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	now   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type ledgers struct {
	cash, sales, rent, payable chart.Ledger
}

func setup(t *testing.T) (*memory.Store, *journal.Service, ledgers) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := journal.NewService(store.Journal(), nil)
	svc.WithNow(func() time.Time { return now })
	for _, branch := range []int64{1, 2} {
		_, err := svc.OpenBook(ctx, journal.BookInput{BranchID: branch, FinancialYearID: 24, Name: "FY24", StartDate: jan1, EndDate: dec31})
		require.NoError(t, err)
	}

	chartSvc := chart.NewService(store.Chart(), nil)
	groups := map[chart.Nature]chart.AccountGroup{}
	for _, n := range chart.Natures {
		g, err := chartSvc.CreateGroup(ctx, chart.GroupInput{Name: string(n), Nature: n})
		require.NoError(t, err)
		groups[n] = g
	}
	add := func(name string, lt chart.LedgerType) chart.Ledger {
		nature, _ := lt.Nature()
		l, err := chartSvc.CreateLedger(ctx, chart.LedgerInput{Name: name, Type: lt, GroupID: groups[nature].ID, BranchID: 1})
		require.NoError(t, err)
		return l
	}
	return store, svc, ledgers{
		cash:    add("Cash", chart.LedgerCash),
		sales:   add("Sales", chart.LedgerSales),
		rent:    add("Rent", chart.LedgerIndirectExpense),
		payable: add("Landlord", chart.LedgerAccountsPayable),
	}
}

func post(store *memory.Store, in journal.PostingInput) (journal.PostingResult, error) {
	var res journal.PostingResult
	err := store.Journal().WithTx(context.Background(), func(ctx context.Context, tx journal.TxRepository) error {
		var err error
		res, err = journal.Post(ctx, tx, in, now)
		return err
	})
	return res, err
}

func ledgerBalance(t *testing.T, store *memory.Store, id int64) decimal.Decimal {
	t.Helper()
	var l chart.Ledger
	err := store.Chart().WithTx(context.Background(), func(ctx context.Context, tx chart.TxRepository) error {
		var err error
		l, err = tx.GetLedger(ctx, id)
		return err
	})
	require.NoError(t, err)
	return l.Balance
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		nature chart.Nature
		side   journal.EntryType
		want   string
	}{
		{chart.NatureAssets, journal.Debit, "5"},
		{chart.NatureAssets, journal.Credit, "-5"},
		{chart.NatureExpenses, journal.Debit, "5"},
		{chart.NatureLiabilities, journal.Credit, "5"},
		{chart.NatureLiabilities, journal.Debit, "-5"},
		{chart.NatureCapital, journal.Credit, "5"},
		{chart.NatureIncome, journal.Credit, "5"},
		{chart.NatureIncome, journal.Debit, "-5"},
	}
	for _, tc := range cases {
		got := journal.SignedAmount(tc.nature, tc.side, amount("5"))
		require.True(t, got.Equal(amount(tc.want)), "%s %s", tc.nature, tc.side)
	}
}

func TestPostMovesBalancesBySignRule(t *testing.T) {
	store, _, l := setup(t)
	res, err := post(store, journal.PostingInput{
		BranchID:     1,
		Date:         now,
		Reference:    "CS-1",
		SourceModule: "test",
		SourceID:     journal.SourceID("test", "CS-1"),
		Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("150.004")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("150")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	require.True(t, res.Entries[0].Amount.Equal(amount("150")))
	require.Equal(t, "CS-1", res.Entries[1].Reference)
	require.Equal(t, jan1.Year(), res.Entries[0].Date.Year())

	require.True(t, ledgerBalance(t, store, l.cash.ID).Equal(amount("150")))
	require.True(t, ledgerBalance(t, store, l.sales.ID).Equal(amount("150")))

	_, err = post(store, journal.PostingInput{
		BranchID: 1, Date: now, Reference: "RENT-1",
		Lines: []journal.Line{
			{LedgerID: l.rent.ID, Type: journal.Debit, Amount: amount("40")},
			{LedgerID: l.cash.ID, Type: journal.Credit, Amount: amount("25")},
			{LedgerID: l.payable.ID, Type: journal.Credit, Amount: amount("15")},
		},
	})
	require.NoError(t, err)
	require.True(t, ledgerBalance(t, store, l.cash.ID).Equal(amount("125")))
	require.True(t, ledgerBalance(t, store, l.rent.ID).Equal(amount("40")))
	require.True(t, ledgerBalance(t, store, l.payable.ID).Equal(amount("15")))
}

func TestPostRejectsBadInput(t *testing.T) {
	store, _, l := setup(t)
	cases := map[string]struct {
		in   journal.PostingInput
		want error
	}{
		"unbalanced": {journal.PostingInput{BranchID: 1, Date: now, Reference: "X", Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("10")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("9.99")},
		}}, shared.ErrUnbalancedPosting},
		"single line": {journal.PostingInput{BranchID: 1, Date: now, Reference: "X", Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("10")},
		}}, journal.ErrTooFewLines},
		"zero amount": {journal.PostingInput{BranchID: 1, Date: now, Reference: "X", Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("0.001")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("0.001")},
		}}, shared.ErrValidation},
		"no open book": {journal.PostingInput{BranchID: 1, Date: dec31.AddDate(0, 0, 1), Reference: "X", Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("10")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("10")},
		}}, journal.ErrJournalBookNotFound},
		"unknown ledger": {journal.PostingInput{BranchID: 1, Date: now, Reference: "X", Lines: []journal.Line{
			{LedgerID: 999, Type: journal.Debit, Amount: amount("10")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("10")},
		}}, shared.ErrNotFound},
		"other branch": {journal.PostingInput{BranchID: 2, Date: now, Reference: "X", Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("10")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("10")},
		}}, journal.ErrBranchMismatch},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := post(store, tc.in)
			require.ErrorIs(t, err, tc.want)
			require.True(t, ledgerBalance(t, store, l.cash.ID).IsZero())
		})
	}
}

func TestPostOnClosedBookFails(t *testing.T) {
	store, svc, l := setup(t)
	books, err := svc.ListBooks(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.SetBookStatus(context.Background(), books[0].ID, shared.BookStatusClosed, false)
	require.NoError(t, err)

	_, err = post(store, journal.PostingInput{BranchID: 1, Date: now, Reference: "X", Lines: []journal.Line{
		{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("10")},
		{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("10")},
	}})
	require.ErrorIs(t, err, journal.ErrJournalBookNotFound)
}

func TestSourceCanBePostedOnce(t *testing.T) {
	store, _, l := setup(t)
	in := journal.PostingInput{
		BranchID: 1, Date: now, Reference: "SI-1-000001",
		SourceModule: "invoice", SourceID: journal.SourceID("invoice", "SI-1-000001"),
		Lines: []journal.Line{
			{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("10")},
			{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("10")},
		},
	}
	_, err := post(store, in)
	require.NoError(t, err)
	_, err = post(store, in)
	require.ErrorIs(t, err, journal.ErrSourceAlreadyLinked)
	require.True(t, ledgerBalance(t, store, l.cash.ID).Equal(amount("10")))
}

func TestReverseMirrorsPostingOnce(t *testing.T) {
	store, _, l := setup(t)
	_, err := post(store, journal.PostingInput{BranchID: 1, Date: now, Reference: "RV-1", Lines: []journal.Line{
		{LedgerID: l.cash.ID, Type: journal.Debit, Amount: amount("70")},
		{LedgerID: l.sales.ID, Type: journal.Credit, Amount: amount("70")},
	}})
	require.NoError(t, err)

	reverse := func() (journal.PostingResult, error) {
		var res journal.PostingResult
		err := store.Journal().WithTx(context.Background(), func(ctx context.Context, tx journal.TxRepository) error {
			var err error
			res, err = journal.Reverse(ctx, tx, "RV-1", "JV-9", now, now)
			return err
		})
		return res, err
	}
	res, err := reverse()
	require.NoError(t, err)
	require.Equal(t, journal.Credit, res.Entries[0].Type)
	require.True(t, ledgerBalance(t, store, l.cash.ID).IsZero())
	require.True(t, ledgerBalance(t, store, l.sales.ID).IsZero())

	_, err = reverse()
	require.ErrorIs(t, err, journal.ErrSourceAlreadyLinked)

	err = store.Journal().WithTx(context.Background(), func(ctx context.Context, tx journal.TxRepository) error {
		_, err := journal.Reverse(ctx, tx, "NOPE", "JV-10", now, now)
		return err
	})
	require.ErrorIs(t, err, journal.ErrPostingNotFound)
}

func TestOpeningBalanceIsNotReversible(t *testing.T) {
	store, _, l := setup(t)
	err := store.Journal().WithTx(context.Background(), func(ctx context.Context, tx journal.TxRepository) error {
		ledger, err := tx.GetLedger(ctx, l.payable.ID)
		if err != nil {
			return err
		}
		ledger.OpeningBalance = amount("300")
		res, err := journal.PostOpeningBalance(ctx, tx, ledger, jan1, now)
		if err != nil {
			return err
		}
		require.Equal(t, journal.Credit, res.Entries[0].Type)
		require.True(t, res.Entries[0].IsOpening)
		require.Equal(t, journal.Debit, res.Entries[1].Type)
		_, err = journal.Reverse(ctx, tx, res.Reference, "JV-1", now, now)
		return err
	})
	require.ErrorIs(t, err, journal.ErrOpeningNotReversible)
}

func TestEnsureSystemLedgerCreatesOnce(t *testing.T) {
	store := memory.New()
	var first, second chart.Ledger
	err := store.Chart().WithTx(context.Background(), func(ctx context.Context, tx chart.TxRepository) error {
		var err error
		if first, err = journal.EnsureSystemLedger(ctx, tx, 3, chart.LedgerCartage, now); err != nil {
			return err
		}
		second, err = journal.EnsureSystemLedger(ctx, tx, 3, chart.LedgerCartage, now)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Cartage", first.Name)
	require.Equal(t, chart.NatureExpenses, first.Nature)
	require.Equal(t, "1.1", first.Code)
}

func TestBookLifecycle(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 24, Name: "dup", StartDate: jan1, EndDate: dec31})
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 25, Name: "overlap", StartDate: dec31, EndDate: dec31.AddDate(1, 0, 0)})
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.OpenBook(ctx, journal.BookInput{BranchID: 1, FinancialYearID: 25, Name: "FY25", StartDate: dec31.AddDate(0, 0, 1), EndDate: dec31.AddDate(1, 0, 0)})
	require.NoError(t, err)

	books, err := svc.ListBooks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, books, 2)
	id := books[0].ID

	book, err := svc.SetBookStatus(ctx, id, "locked", false)
	require.NoError(t, err)
	require.Equal(t, shared.BookStatusLocked, book.Status)
	_, err = svc.SetBookStatus(ctx, id, shared.BookStatusOpen, true)
	require.ErrorIs(t, err, shared.ErrInvalidBookTransition)
	_, err = svc.SetBookStatus(ctx, id, shared.BookStatusClosed, false)
	require.ErrorIs(t, err, shared.ErrInvalidBookTransition)
	book, err = svc.SetBookStatus(ctx, id, shared.BookStatusClosed, true)
	require.NoError(t, err)
	require.Equal(t, shared.BookStatusClosed, book.Status)
	book, err = svc.SetBookStatus(ctx, id, shared.BookStatusOpen, false)
	require.NoError(t, err)
	require.Equal(t, shared.BookStatusOpen, book.Status)

	_, err = svc.SetBookStatus(ctx, 999, shared.BookStatusClosed, false)
	require.ErrorIs(t, err, journal.ErrBookNotFound)
}
