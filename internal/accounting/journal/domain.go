// Package journal appends balanced debit/credit entries to ledgers and keeps
// each ledger's stored balance in step with them.
package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// EntryType is the side of a journal entry.
type EntryType string

const (
	Debit  EntryType = "DEBIT"
	Credit EntryType = "CREDIT"
)

// Opposite returns the other side.
func (t EntryType) Opposite() EntryType {
	if t == Debit {
		return Credit
	}
	return Debit
}

// Valid reports whether t is DEBIT or CREDIT.
func (t EntryType) Valid() bool {
	return t == Debit || t == Credit
}

// Entry is one immutable journal row.
type Entry struct {
	ID        int64           `json:"id"`
	BookID    int64           `json:"book_id"`
	LedgerID  int64           `json:"ledger_id"`
	Type      EntryType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Narration string          `json:"narration"`
	Date      time.Time       `json:"date"`
	Reference string          `json:"reference"`
	SourceID  uuid.UUID       `json:"source_id"`
	IsOpening bool            `json:"is_opening"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

// Book is the journal of one branch for one financial year.
type Book struct {
	ID              int64     `json:"id"`
	BranchID        int64     `json:"branch_id"`
	FinancialYearID int64     `json:"financial_year_id"`
	Name            string    `json:"name"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Covers reports whether date falls inside the book's window.
func (b Book) Covers(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(b.StartDate)) && !d.After(truncateDay(b.EndDate))
}

// BookInput describes a book to open.
type BookInput struct {
	BranchID        int64
	FinancialYearID int64
	Name            string
	StartDate       time.Time
	EndDate         time.Time
}

// Validate checks the book request.
func (in BookInput) Validate() error {
	switch {
	case in.BranchID <= 0:
		return shared.NewValidationError("branch_id", "is required")
	case in.FinancialYearID <= 0:
		return shared.NewValidationError("financial_year_id", "is required")
	case strings.TrimSpace(in.Name) == "":
		return shared.NewValidationError("name", "is required")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return shared.NewValidationError("start_date", "start and end dates are required")
	case truncateDay(in.EndDate).Before(truncateDay(in.StartDate)):
		return shared.NewValidationError("end_date", "must not precede start_date")
	}
	return nil
}

// Line is one requested entry of a posting.
type Line struct {
	LedgerID  int64
	Type      EntryType
	Amount    decimal.Decimal
	Narration string
	// IsOpening marks a ledger's own opening leg. Its amount is already
	// carried by the ledger's opening balance.
	IsOpening bool
}

// PostingInput is one atomic, balanced set of lines.
type PostingInput struct {
	BranchID     int64
	Date         time.Time
	Reference    string
	SourceModule string
	SourceID     uuid.UUID
	Lines        []Line
}

// Validate checks required fields and that debits equal credits.
func (in PostingInput) Validate() error {
	if in.BranchID <= 0 {
		return shared.NewValidationError("branch_id", "is required")
	}
	if in.Date.IsZero() {
		return shared.NewValidationError("date", "is required")
	}
	if strings.TrimSpace(in.Reference) == "" {
		return shared.NewValidationError("reference", "is required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	for i, line := range in.Lines {
		if line.LedgerID <= 0 {
			return shared.NewValidationError(fmt.Sprintf("lines[%d].ledger_id", i), "is required")
		}
		if !line.Type.Valid() {
			return shared.NewValidationError(fmt.Sprintf("lines[%d].type", i), "must be DEBIT or CREDIT")
		}
		if !shared.Money(line.Amount).IsPositive() {
			return shared.NewValidationError(fmt.Sprintf("lines[%d].amount", i), "must be positive")
		}
	}
	debit, credit := Totals(in.Lines)
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalanced, debit.StringFixed(shared.MoneyPlaces), credit.StringFixed(shared.MoneyPlaces))
	}
	return nil
}

// Totals sums both sides of a set of lines after rounding each amount.
func Totals(lines []Line) (debit, credit decimal.Decimal) {
	for _, line := range lines {
		amount := shared.Money(line.Amount)
		if line.Type == Debit {
			debit = debit.Add(amount)
		} else {
			credit = credit.Add(amount)
		}
	}
	return debit, credit
}

// PostingResult is what a posting appended and the balances it left behind.
type PostingResult struct {
	BookID    int64          `json:"book_id"`
	Reference string         `json:"reference"`
	Entries   []Entry        `json:"entries"`
	Ledgers   []chart.Ledger `json:"ledgers"`
}

// SignedAmount is the change amount causes to a balance of the given nature:
// positive when the entry side matches the nature's normal side.
func SignedAmount(nature chart.Nature, t EntryType, amount decimal.Decimal) decimal.Decimal {
	if nature.DebitNormal() == (t == Debit) {
		return amount
	}
	return amount.Neg()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	// ErrLedgerNotFound indicates a missing or inactive ledger.
	ErrLedgerNotFound = chart.ErrLedgerNotFound
	// ErrJournalBookNotFound indicates no OPEN book covers the branch and date.
	ErrJournalBookNotFound = fmt.Errorf("journal: open journal book not found: %w", shared.ErrNotFound)
	// ErrBookNotFound indicates a missing book id.
	ErrBookNotFound = fmt.Errorf("journal: journal book not found: %w", shared.ErrNotFound)
	// ErrUnbalanced indicates debits differ from credits.
	ErrUnbalanced = fmt.Errorf("journal: unbalanced posting: %w", shared.ErrUnbalancedPosting)
	// ErrTooFewLines indicates a posting with fewer than two lines.
	ErrTooFewLines = fmt.Errorf("journal: posting needs at least two lines: %w", shared.ErrValidation)
	// ErrSourceAlreadyLinked indicates the source document was already posted.
	ErrSourceAlreadyLinked = fmt.Errorf("journal: source already posted: %w", shared.ErrConflict)
	// ErrBranchMismatch indicates a line against another branch's ledger.
	ErrBranchMismatch = fmt.Errorf("journal: ledger belongs to another branch: %w", shared.ErrValidation)
	// ErrPostingNotFound indicates no active entries carry the reference.
	ErrPostingNotFound = fmt.Errorf("journal: posting not found: %w", shared.ErrNotFound)
	// ErrOpeningNotReversible indicates an attempt to reverse an opening balance.
	ErrOpeningNotReversible = fmt.Errorf("journal: opening balances cannot be reversed: %w", shared.ErrValidation)
	// ErrCapitalOpening indicates an opening balance on Owner's Capital itself.
	ErrCapitalOpening = fmt.Errorf("journal: owner's capital cannot carry an opening balance: %w", shared.ErrValidation)
	// ErrSourceConflict is returned by repositories on a duplicate source link.
	ErrSourceConflict = errors.New("journal: source link conflict")
)
