// Package reports derives ledger books, trial balances and financial
// statements by replaying the journal. It never mutates.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// TxRepository exposes the reads the reporter replays.
type TxRepository interface {
	GetLedger(ctx context.Context, id int64) (chart.Ledger, error)
	ListLedgers(ctx context.Context, filter chart.LedgerFilter) ([]chart.Ledger, error)
	ListGroups(ctx context.Context) ([]chart.AccountGroup, error)
	ListBooks(ctx context.Context, branchID int64) ([]journal.Book, error)
	ListLedgerEntries(ctx context.Context, ledgerID int64) ([]journal.Entry, error)
	LedgerActivity(ctx context.Context, branchID int64, from, to time.Time) ([]Activity, error)
}

// RepositoryPort opens read transactions.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service builds reports.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs the reporter. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger.With(slog.String("component", "reports"))}
}

// LedgerBook replays one ledger. It is always built fresh.
func (s *Service) LedgerBook(ctx context.Context, ledgerID int64, from, to time.Time) (LedgerBook, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return LedgerBook{}, shared.NewValidationError("to", "must not be before from")
	}
	var book LedgerBook
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ledger, err := tx.GetLedger(ctx, ledgerID)
		if err != nil {
			return err
		}
		entries, err := tx.ListLedgerEntries(ctx, ledgerID)
		if err != nil {
			return err
		}
		book = BuildLedgerBook(ledger, entries, from, to)
		return nil
	})
	return book, err
}

// TrialBalance lists a branch's ledgers over its journal book for the
// financial year.
func (s *Service) TrialBalance(ctx context.Context, branchID, financialYearID int64) (TrialBalance, error) {
	var tb TrialBalance
	err := s.cached(ctx, keyTrialBalance("tb", branchID, financialYearID), &tb, func(ctx context.Context) (any, error) {
		return s.buildTrialBalance(ctx, branchID, financialYearID)
	})
	return tb, err
}

// ProfitAndLoss reports the period's income and expenses.
func (s *Service) ProfitAndLoss(ctx context.Context, branchID, financialYearID int64) (ProfitAndLoss, error) {
	var pl ProfitAndLoss
	err := s.cached(ctx, keyTrialBalance("pl", branchID, financialYearID), &pl, func(ctx context.Context) (any, error) {
		accounts, _, err := s.accounts(ctx, branchID, financialYearID)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(accounts), nil
	})
	return pl, err
}

// BalanceSheet reports closing positions at the end of the book.
func (s *Service) BalanceSheet(ctx context.Context, branchID, financialYearID int64) (BalanceSheet, error) {
	var bs BalanceSheet
	err := s.cached(ctx, keyTrialBalance("bs", branchID, financialYearID), &bs, func(ctx context.Context) (any, error) {
		accounts, _, err := s.accounts(ctx, branchID, financialYearID)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(accounts), nil
	})
	return bs, err
}

// Warm builds the cached reports of a branch and year.
func (s *Service) Warm(ctx context.Context, branchID, financialYearID int64) error {
	if _, err := s.TrialBalance(ctx, branchID, financialYearID); err != nil {
		return err
	}
	if _, err := s.ProfitAndLoss(ctx, branchID, financialYearID); err != nil {
		return err
	}
	_, err := s.BalanceSheet(ctx, branchID, financialYearID)
	return err
}

// Bump invalidates cached reports.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) buildTrialBalance(ctx context.Context, branchID, financialYearID int64) (TrialBalance, error) {
	accounts, book, err := s.accounts(ctx, branchID, financialYearID)
	if err != nil {
		return TrialBalance{}, err
	}
	var names map[string]string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		groups, err := tx.ListGroups(ctx)
		if err != nil {
			return err
		}
		names = make(map[string]string, len(groups))
		for _, g := range groups {
			if g.ParentID == nil {
				names[g.Code] = g.Name
			}
		}
		return nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(accounts, names)
	tb.BranchID = branchID
	tb.FinancialYearID = financialYearID
	tb.From, tb.To = book.StartDate, book.EndDate
	if !tb.Difference.IsZero() {
		s.logger.Warn("trial balance does not balance",
			slog.Int64("branch_id", branchID),
			slog.Int64("financial_year_id", financialYearID),
			slog.String("difference", tb.Difference.String()))
	}
	return tb, nil
}

func (s *Service) accounts(ctx context.Context, branchID, financialYearID int64) ([]AccountBalance, journal.Book, error) {
	if branchID <= 0 {
		return nil, journal.Book{}, shared.NewValidationError("branch_id", "is required")
	}
	if financialYearID <= 0 {
		return nil, journal.Book{}, shared.NewValidationError("financial_year", "is required")
	}
	var (
		accounts []AccountBalance
		book     journal.Book
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		books, err := tx.ListBooks(ctx, branchID)
		if err != nil {
			return err
		}
		found := false
		for _, b := range books {
			if b.FinancialYearID == financialYearID {
				book, found = b, true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: branch %d, financial year %d", journal.ErrBookNotFound, branchID, financialYearID)
		}
		ledgers, err := tx.ListLedgers(ctx, chart.LedgerFilter{BranchID: branchID})
		if err != nil {
			return err
		}
		activity, err := tx.LedgerActivity(ctx, branchID, book.StartDate, book.EndDate)
		if err != nil {
			return err
		}
		byLedger := make(map[int64]Activity, len(activity))
		for _, a := range activity {
			byLedger[a.LedgerID] = a
		}
		accounts = make([]AccountBalance, 0, len(ledgers))
		for _, l := range ledgers {
			accounts = append(accounts, NewAccountBalance(l, byLedger[l.ID]))
		}
		return nil
	})
	return accounts, book, err
}

// cached serves key from Redis, collapsing concurrent identical builds. The
// flight key carries the cache version so a build started before a bump is
// never stored under the new version.
func (s *Service) cached(ctx context.Context, parts []string, dest any, build func(context.Context) (any, error)) error {
	cache := s.cache
	key, err := cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		cache, key = nil, strings.Join(parts, ":")
	}
	return cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (any, error) {
		v, err, _ := s.group.Do(key, func() (any, error) {
			return build(ctx)
		})
		return v, err
	})
}
