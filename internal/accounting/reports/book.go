package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
)

// LedgerBookRow is one replayed journal entry.
type LedgerBookRow struct {
	EntryID       int64             `json:"entry_id"`
	Date          time.Time         `json:"date"`
	Reference     string            `json:"reference"`
	Narration     string            `json:"narration"`
	Type          journal.EntryType `json:"type"`
	Debit         decimal.Decimal   `json:"debit"`
	Credit        decimal.Decimal   `json:"credit"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
}

// LedgerBook is the running balance of one ledger over a date range.
// Drift is the stored balance less the balance replayed from every entry.
type LedgerBook struct {
	Ledger          chart.Ledger    `json:"ledger"`
	From            time.Time       `json:"from,omitempty"`
	To              time.Time       `json:"to,omitempty"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	Rows            []LedgerBookRow `json:"rows"`
	ClosingBalance  decimal.Decimal `json:"closing_balance"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	Drift           decimal.Decimal `json:"drift"`
}

// BuildLedgerBook replays entries ordered by (date, id) from the ledger's
// opening balance. Entries before from fold into the starting balance and
// entries after to only count toward the drift check. Zero bounds are open.
func BuildLedgerBook(ledger chart.Ledger, entries []journal.Entry, from, to time.Time) LedgerBook {
	sorted := make([]journal.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	book := LedgerBook{Ledger: ledger, From: from, To: to, Rows: []LedgerBookRow{}}
	running := ledger.OpeningBalance
	replayed := ledger.OpeningBalance
	start := ledger.OpeningBalance
	for _, e := range sorted {
		if !e.IsActive || e.IsOpening {
			continue
		}
		delta := journal.SignedAmount(ledger.Nature, e.Type, e.Amount)
		replayed = replayed.Add(delta)
		day := truncateDay(e.Date)
		switch {
		case !from.IsZero() && day.Before(truncateDay(from)):
			start = start.Add(delta)
			running = running.Add(delta)
			continue
		case !to.IsZero() && day.After(truncateDay(to)):
			continue
		}
		row := LedgerBookRow{
			EntryID:       e.ID,
			Date:          e.Date,
			Reference:     e.Reference,
			Narration:     e.Narration,
			Type:          e.Type,
			Debit:         decimal.Zero,
			Credit:        decimal.Zero,
			BalanceBefore: running,
		}
		if e.Type == journal.Debit {
			row.Debit = e.Amount
		} else {
			row.Credit = e.Amount
		}
		running = running.Add(delta)
		row.BalanceAfter = running
		book.Rows = append(book.Rows, row)
	}
	book.OpeningBalance = start
	book.ClosingBalance = running
	book.ReplayedBalance = replayed
	book.Drift = ledger.Balance.Sub(replayed)
	return book
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
