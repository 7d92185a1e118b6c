package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// TxRepository exposes the transactional journal operations on top of the chart.
type TxRepository interface {
	chart.TxRepository

	FindOpenBook(ctx context.Context, branchID int64, date time.Time) (Book, error)
	InsertBook(ctx context.Context, b Book) (Book, error)
	GetBookForUpdate(ctx context.Context, id int64) (Book, error)
	UpdateBookStatus(ctx context.Context, id int64, status string, at time.Time) error
	ListBooks(ctx context.Context, branchID int64) ([]Book, error)

	InsertEntries(ctx context.Context, entries []Entry) ([]Entry, error)
	UpdateLedgerBalance(ctx context.Context, ledgerID int64, delta decimal.Decimal, at time.Time) (decimal.Decimal, error)
	LinkSource(ctx context.Context, module string, ref uuid.UUID, reference string) error
	ListEntriesByReference(ctx context.Context, reference string) ([]Entry, error)
}

// Post appends a balanced set of entries and moves each touched ledger's
// balance by the sign rule. Ledgers are locked in ascending id order.
func Post(ctx context.Context, tx TxRepository, in PostingInput, now time.Time) (PostingResult, error) {
	if err := in.Validate(); err != nil {
		return PostingResult{}, err
	}
	book, err := tx.FindOpenBook(ctx, in.BranchID, in.Date)
	if err != nil {
		return PostingResult{}, err
	}

	ids := ledgerIDs(in.Lines)
	ledgers := make(map[int64]chart.Ledger, len(ids))
	for _, id := range ids {
		ledger, err := tx.GetLedgerForUpdate(ctx, id)
		if err != nil {
			return PostingResult{}, err
		}
		if ledger.BranchID != in.BranchID {
			return PostingResult{}, fmt.Errorf("%w: ledger %d", ErrBranchMismatch, id)
		}
		ledgers[id] = ledger
	}

	entries := make([]Entry, 0, len(in.Lines))
	deltas := make(map[int64]decimal.Decimal, len(ids))
	for _, line := range in.Lines {
		amount := shared.Money(line.Amount)
		entries = append(entries, Entry{
			BookID:    book.ID,
			LedgerID:  line.LedgerID,
			Type:      line.Type,
			Amount:    amount,
			Narration: strings.TrimSpace(line.Narration),
			Date:      in.Date,
			Reference: in.Reference,
			SourceID:  in.SourceID,
			IsOpening: line.IsOpening,
			IsActive:  true,
			CreatedAt: now,
		})
		if line.IsOpening {
			continue
		}
		nature := ledgers[line.LedgerID].Nature
		deltas[line.LedgerID] = deltas[line.LedgerID].Add(SignedAmount(nature, line.Type, amount))
	}
	inserted, err := tx.InsertEntries(ctx, entries)
	if err != nil {
		return PostingResult{}, err
	}

	result := PostingResult{BookID: book.ID, Reference: in.Reference, Entries: inserted}
	for _, id := range ids {
		ledger := ledgers[id]
		if delta := deltas[id]; !delta.IsZero() {
			balance, err := tx.UpdateLedgerBalance(ctx, id, delta, now)
			if err != nil {
				return PostingResult{}, err
			}
			ledger.Balance = balance
			ledger.UpdatedAt = now
		}
		result.Ledgers = append(result.Ledgers, ledger)
	}

	if in.SourceModule != "" {
		if err := tx.LinkSource(ctx, in.SourceModule, in.SourceID, in.Reference); err != nil {
			if errors.Is(err, ErrSourceConflict) {
				return PostingResult{}, ErrSourceAlreadyLinked
			}
			return PostingResult{}, err
		}
	}
	return result, nil
}

// Reverse posts the mirror image of an earlier posting under a new reference.
// A posting can be reversed once.
func Reverse(ctx context.Context, tx TxRepository, reference, newReference string, date time.Time, now time.Time) (PostingResult, error) {
	entries, err := tx.ListEntriesByReference(ctx, reference)
	if err != nil {
		return PostingResult{}, err
	}
	if len(entries) == 0 {
		return PostingResult{}, ErrPostingNotFound
	}
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		if e.IsOpening {
			return PostingResult{}, ErrOpeningNotReversible
		}
		lines = append(lines, Line{
			LedgerID:  e.LedgerID,
			Type:      e.Type.Opposite(),
			Amount:    e.Amount,
			Narration: "Reversal of " + reference,
		})
	}
	ledger, err := tx.GetLedger(ctx, entries[0].LedgerID)
	if err != nil {
		return PostingResult{}, err
	}
	return Post(ctx, tx, PostingInput{
		BranchID:     ledger.BranchID,
		Date:         date,
		Reference:    newReference,
		SourceModule: "reversal",
		SourceID:     SourceID("reversal", reference),
		Lines:        lines,
	}, now)
}

// SourceID derives the stable source id of a document so re-posting it can be detected.
func SourceID(module, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(module+":"+key))
}

func ledgerIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.LedgerID]; ok {
			continue
		}
		seen[line.LedgerID] = struct{}{}
		ids = append(ids, line.LedgerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
