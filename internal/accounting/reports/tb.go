package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
)

// Activity is the journal movement of one ledger around a period. Own opening
// legs are excluded because the ledger's opening balance already carries them.
type Activity struct {
	LedgerID    int64
	PriorDebit  decimal.Decimal
	PriorCredit decimal.Decimal
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// AccountBalance is one ledger's trial balance input.
type AccountBalance struct {
	LedgerID int64
	Code     string
	Name     string
	Type     chart.LedgerType
	Nature   chart.Nature
	// Opening is the balance at the start of the period, positive on the
	// nature's normal side.
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// NewAccountBalance folds a ledger's activity into its trial balance input.
func NewAccountBalance(l chart.Ledger, a Activity) AccountBalance {
	opening := l.OpeningBalance.
		Add(journal.SignedAmount(l.Nature, journal.Debit, a.PriorDebit)).
		Add(journal.SignedAmount(l.Nature, journal.Credit, a.PriorCredit))
	return AccountBalance{
		LedgerID: l.ID,
		Code:     l.Code,
		Name:     l.Name,
		Type:     l.Type,
		Nature:   l.Nature,
		Opening:  opening,
		Debit:    a.Debit,
		Credit:   a.Credit,
	}
}

// Closing computes the closing balance for the account.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.Opening.
		Add(journal.SignedAmount(a.Nature, journal.Debit, a.Debit)).
		Add(journal.SignedAmount(a.Nature, journal.Credit, a.Credit))
}

// Columns places the closing balance in the debit or the credit column.
func (a AccountBalance) Columns() (dr, cr decimal.Decimal) {
	closing := a.Closing()
	debitSide := a.Nature.DebitNormal()
	if closing.IsNegative() {
		debitSide = !debitSide
		closing = closing.Neg()
	}
	if debitSide {
		return closing, decimal.Zero
	}
	return decimal.Zero, closing
}

// GroupKey returns the top-level group code of the account.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	return a.Code
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	LedgerID      int64            `json:"ledger_id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Type          chart.LedgerType `json:"type"`
	Nature        chart.Nature     `json:"nature"`
	Opening       decimal.Decimal  `json:"opening"`
	Debit         decimal.Decimal  `json:"debit"`
	Credit        decimal.Decimal  `json:"credit"`
	Closing       decimal.Decimal  `json:"closing"`
	ClosingDebit  decimal.Decimal  `json:"closing_debit"`
	ClosingCredit decimal.Decimal  `json:"closing_credit"`
}

// TrialBalanceGroup aggregates accounts under one top-level group.
type TrialBalanceGroup struct {
	Key           string                `json:"key"`
	Name          string                `json:"name"`
	Accounts      []TrialBalanceAccount `json:"accounts"`
	Debit         decimal.Decimal       `json:"debit"`
	Credit        decimal.Decimal       `json:"credit"`
	ClosingDebit  decimal.Decimal       `json:"closing_debit"`
	ClosingCredit decimal.Decimal       `json:"closing_credit"`
}

// TrialBalance lists every ledger of a branch for one journal book.
// Difference is ΣDr − ΣCr of the closing columns; a non-zero value signals
// drift and is reported, never raised.
//
// TotalDebit and TotalCredit sum the period movement columns. A ledger's own
// opening leg lives in its Opening column, while the Owner's Capital contra of
// that opening is period movement, so the two totals differ by the openings
// posted inside the period even when Difference is zero.
type TrialBalance struct {
	BranchID        int64               `json:"branch_id"`
	FinancialYearID int64               `json:"financial_year_id"`
	From            time.Time           `json:"from"`
	To              time.Time           `json:"to"`
	Groups          []TrialBalanceGroup `json:"groups"`
	TotalDebit      decimal.Decimal     `json:"total_debit"`
	TotalCredit     decimal.Decimal     `json:"total_credit"`
	ClosingDebit    decimal.Decimal     `json:"closing_debit"`
	ClosingCredit   decimal.Decimal     `json:"closing_credit"`
	Difference      decimal.Decimal     `json:"difference"`
}

// BuildTrialBalance converts account balances into grouped trial balance
// data. groupNames maps a top-level group code to its name.
func BuildTrialBalance(accounts []AccountBalance, groupNames map[string]string) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range accounts {
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Name: groupNames[key]}
			groups[key] = grp
			keys = append(keys, key)
		}
		dr, cr := acc.Columns()
		row := TrialBalanceAccount{
			LedgerID:      acc.LedgerID,
			Code:          acc.Code,
			Name:          acc.Name,
			Type:          acc.Type,
			Nature:        acc.Nature,
			Opening:       acc.Opening,
			Debit:         acc.Debit,
			Credit:        acc.Credit,
			Closing:       acc.Closing(),
			ClosingDebit:  dr,
			ClosingCredit: cr,
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.ClosingDebit = grp.ClosingDebit.Add(dr)
		grp.ClosingCredit = grp.ClosingCredit.Add(cr)
	}

	sort.Slice(keys, func(i, j int) bool { return codeLess(keys[i], keys[j]) })
	result := TrialBalance{}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return codeLess(grp.Accounts[i].Code, grp.Accounts[j].Code)
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
		result.ClosingDebit = result.ClosingDebit.Add(grp.ClosingDebit)
		result.ClosingCredit = result.ClosingCredit.Add(grp.ClosingCredit)
	}
	result.Difference = result.ClosingDebit.Sub(result.ClosingCredit)
	return result
}

// codeLess orders dotted codes segment by segment so "1.10" follows "1.9".
func codeLess(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		if len(as[i]) != len(bs[i]) {
			return len(as[i]) < len(bs[i])
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
