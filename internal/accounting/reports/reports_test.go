package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildTrialBalance(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1.2", Name: "Bank", Nature: chart.NatureAssets, Opening: d("500"), Debit: d("100"), Credit: d("50")},
		{Code: "1.1", Name: "Cash", Nature: chart.NatureAssets, Opening: d("1000"), Debit: d("200"), Credit: d("150")},
		{Code: "2.1", Name: "Accounts Payable", Nature: chart.NatureLiabilities, Debit: d("10"), Credit: d("400")},
		{Code: "3.1", Name: "Owner's Capital", Nature: chart.NatureCapital, Opening: d("1500")},
		{Code: "1.10", Name: "Petty Cash", Nature: chart.NatureAssets, Opening: d("0"), Credit: d("20")},
	}

	tb := BuildTrialBalance(accounts, map[string]string{"1": "Assets", "2": "Liabilities"})
	if len(tb.Groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(tb.Groups))
	}
	if tb.Groups[0].Name != "Assets" || tb.Groups[2].Name != "" {
		t.Fatalf("unexpected group names: %q %q", tb.Groups[0].Name, tb.Groups[2].Name)
	}
	codes := []string{tb.Groups[0].Accounts[0].Code, tb.Groups[0].Accounts[1].Code, tb.Groups[0].Accounts[2].Code}
	if codes[0] != "1.1" || codes[1] != "1.2" || codes[2] != "1.10" {
		t.Fatalf("unexpected account order: %v", codes)
	}
	if !tb.TotalDebit.Equal(d("310")) || !tb.TotalCredit.Equal(d("620")) {
		t.Fatalf("unexpected movement totals: %s %s", tb.TotalDebit, tb.TotalCredit)
	}
	// A negative asset lands in the credit column.
	petty := tb.Groups[0].Accounts[2]
	if !petty.ClosingCredit.Equal(d("20")) || !petty.ClosingDebit.IsZero() {
		t.Fatalf("unexpected petty cash columns: %s %s", petty.ClosingDebit, petty.ClosingCredit)
	}
	// Dr 1050 + 550 = 1600, Cr 20 + 390 + 1500 = 1910.
	if !tb.ClosingDebit.Equal(d("1600")) || !tb.ClosingCredit.Equal(d("1910")) {
		t.Fatalf("unexpected closing columns: %s %s", tb.ClosingDebit, tb.ClosingCredit)
	}
	if !tb.Difference.Equal(d("-310")) {
		t.Fatalf("unexpected difference: %s", tb.Difference)
	}
}

func TestNewAccountBalanceFoldsPriorActivity(t *testing.T) {
	ledger := chart.Ledger{ID: 4, Code: "2.1", Nature: chart.NatureLiabilities, OpeningBalance: d("100")}
	acc := NewAccountBalance(ledger, Activity{LedgerID: 4, PriorDebit: d("30"), PriorCredit: d("50"), Debit: d("5"), Credit: d("25")})
	if !acc.Opening.Equal(d("120")) {
		t.Fatalf("expected opening 120 got %s", acc.Opening)
	}
	if !acc.Closing().Equal(d("140")) {
		t.Fatalf("expected closing 140 got %s", acc.Closing())
	}
}

func TestBuildProfitAndLoss(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "4.1", Name: "Sales", Nature: chart.NatureIncome, Opening: d("300"), Credit: d("1200")},
		{Code: "5.1", Name: "Purchase", Nature: chart.NatureExpenses, Debit: d("300")},
		{Code: "5.2", Name: "Cartage", Nature: chart.NatureExpenses, Debit: d("250"), Credit: d("50")},
		{Code: "1.1", Name: "Cash", Nature: chart.NatureAssets, Debit: d("900")},
	}

	pl := BuildProfitAndLoss(accounts)
	if !pl.Income.Total.Equal(d("1200")) {
		t.Fatalf("expected income total 1200 got %s", pl.Income.Total)
	}
	if !pl.Expenses.Total.Equal(d("500")) {
		t.Fatalf("expected expense total 500 got %s", pl.Expenses.Total)
	}
	if !pl.NetIncome.Equal(d("700")) {
		t.Fatalf("expected net income 700 got %s", pl.NetIncome)
	}
	if len(pl.Income.Accounts) != 1 || len(pl.Expenses.Accounts) != 2 {
		t.Fatalf("unexpected sections: %d %d", len(pl.Income.Accounts), len(pl.Expenses.Accounts))
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1.1", Name: "Cash", Nature: chart.NatureAssets, Debit: d("600"), Credit: d("20")},
		{Code: "2.1", Name: "AP", Nature: chart.NatureLiabilities, Debit: d("10"), Credit: d("40")},
		{Code: "3.1", Name: "Owner's Capital", Nature: chart.NatureCapital, Opening: d("500")},
		{Code: "4.1", Name: "Sales", Nature: chart.NatureIncome, Credit: d("100")},
		{Code: "5.1", Name: "Rent", Nature: chart.NatureExpenses, Debit: d("50")},
	}

	bs := BuildBalanceSheet(accounts)
	if !bs.Assets.Total.Equal(d("580")) {
		t.Fatalf("expected assets 580 got %s", bs.Assets.Total)
	}
	if !bs.Liabilities.Total.Equal(d("30")) {
		t.Fatalf("expected liabilities 30 got %s", bs.Liabilities.Total)
	}
	if !bs.RetainedEarnings.Equal(d("50")) {
		t.Fatalf("expected retained earnings 50 got %s", bs.RetainedEarnings)
	}
	if !bs.TotalLiabilitiesAndCapital.Equal(d("580")) {
		t.Fatalf("expected total L+C 580 got %s", bs.TotalLiabilitiesAndCapital)
	}
	if !bs.Difference.IsZero() {
		t.Fatalf("expected balanced sheet, difference %s", bs.Difference)
	}
}

func TestBuildLedgerBook(t *testing.T) {
	day := func(m time.Month, dd int) time.Time { return time.Date(2024, m, dd, 0, 0, 0, 0, time.UTC) }
	ledger := chart.Ledger{ID: 7, Nature: chart.NatureAssets, OpeningBalance: d("100"), Balance: d("160")}
	entries := []journal.Entry{
		{ID: 4, LedgerID: 7, Type: journal.Credit, Amount: d("40"), Date: day(3, 1), IsActive: true},
		{ID: 1, LedgerID: 7, Type: journal.Debit, Amount: d("100"), Date: day(1, 1), IsActive: true, IsOpening: true},
		{ID: 2, LedgerID: 7, Type: journal.Debit, Amount: d("50"), Date: day(1, 10), IsActive: true},
		{ID: 3, LedgerID: 7, Type: journal.Debit, Amount: d("30"), Date: day(2, 1), IsActive: true},
		{ID: 5, LedgerID: 7, Type: journal.Debit, Amount: d("999"), Date: day(2, 2), IsActive: false},
		{ID: 6, LedgerID: 7, Type: journal.Debit, Amount: d("20"), Date: day(4, 1), IsActive: true},
	}

	full := BuildLedgerBook(ledger, entries, time.Time{}, time.Time{})
	if len(full.Rows) != 4 {
		t.Fatalf("expected 4 rows got %d", len(full.Rows))
	}
	if full.Rows[0].EntryID != 2 || full.Rows[2].EntryID != 4 {
		t.Fatalf("rows not ordered by date: %d %d", full.Rows[0].EntryID, full.Rows[2].EntryID)
	}
	if !full.Rows[2].BalanceBefore.Equal(d("180")) || !full.Rows[2].BalanceAfter.Equal(d("140")) {
		t.Fatalf("unexpected running balance: %s %s", full.Rows[2].BalanceBefore, full.Rows[2].BalanceAfter)
	}
	if !full.ClosingBalance.Equal(d("160")) || !full.Drift.IsZero() {
		t.Fatalf("unexpected closing %s drift %s", full.ClosingBalance, full.Drift)
	}

	window := BuildLedgerBook(ledger, entries, day(2, 1), day(3, 31))
	if len(window.Rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(window.Rows))
	}
	if !window.OpeningBalance.Equal(d("150")) || !window.ClosingBalance.Equal(d("140")) {
		t.Fatalf("unexpected window balances: %s %s", window.OpeningBalance, window.ClosingBalance)
	}
	if !window.ReplayedBalance.Equal(d("160")) {
		t.Fatalf("expected replayed 160 got %s", window.ReplayedBalance)
	}

	ledger.Balance = d("170")
	drifted := BuildLedgerBook(ledger, entries, time.Time{}, time.Time{})
	if !drifted.Drift.Equal(d("10")) {
		t.Fatalf("expected drift 10 got %s", drifted.Drift)
	}
}
