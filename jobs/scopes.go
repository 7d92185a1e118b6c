package jobs

import (
	"context"
	"sort"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// LedgerLister lists ledgers of the chart.
type LedgerLister interface {
	ListLedgers(ctx context.Context, filter chart.LedgerFilter) ([]chart.Ledger, error)
}

// BookLister lists a branch's journal books.
type BookLister interface {
	ListBooks(ctx context.Context, branchID int64) ([]journal.Book, error)
}

type reportScope struct {
	BranchID        int64
	FinancialYearID int64
}

// openScopes returns (branch, financial year) pairs of every OPEN book of the
// branches that own ledgers. branchID > 0 narrows to one branch.
func openScopes(ctx context.Context, ledgers LedgerLister, books BookLister, branchID int64) ([]reportScope, error) {
	branches := []int64{branchID}
	if branchID <= 0 {
		all, err := ledgers.ListLedgers(ctx, chart.LedgerFilter{})
		if err != nil {
			return nil, err
		}
		branches = distinctBranches(all)
	}
	var scopes []reportScope
	for _, b := range branches {
		list, err := books.ListBooks(ctx, b)
		if err != nil {
			return nil, err
		}
		for _, book := range list {
			if book.Status == shared.BookStatusOpen {
				scopes = append(scopes, reportScope{BranchID: b, FinancialYearID: book.FinancialYearID})
			}
		}
	}
	return scopes, nil
}

func distinctBranches(ledgers []chart.Ledger) []int64 {
	seen := make(map[int64]struct{})
	out := make([]int64, 0)
	for _, l := range ledgers {
		if _, ok := seen[l.BranchID]; ok {
			continue
		}
		seen[l.BranchID] = struct{}{}
		out = append(out, l.BranchID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
