package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// Repository reads reporting data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	*chart.ChartTx
	*journal.JournalTx
	*readTx
}

// WithTx runs fn on a RepeatableRead snapshot.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("reports repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepository{ChartTx: chart.NewChartTx(tx), JournalTx: journal.NewJournalTx(tx), readTx: &readTx{tx: tx}})
	})
}

type readTx struct {
	tx pgx.Tx
}

func (r *readTx) ListLedgerEntries(ctx context.Context, ledgerID int64) ([]journal.Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+journal.EntryColumns+` FROM journal_entries
WHERE ledger_id=$1 AND is_active ORDER BY date, id`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []journal.Entry
	for rows.Next() {
		e, err := journal.ScanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *readTx) LedgerActivity(ctx context.Context, branchID int64, from, to time.Time) ([]Activity, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.ledger_id,
  COALESCE(SUM(e.amount) FILTER (WHERE e.type='DEBIT'  AND e.date <  $2::DATE), 0),
  COALESCE(SUM(e.amount) FILTER (WHERE e.type='CREDIT' AND e.date <  $2::DATE), 0),
  COALESCE(SUM(e.amount) FILTER (WHERE e.type='DEBIT'  AND e.date >= $2::DATE), 0),
  COALESCE(SUM(e.amount) FILTER (WHERE e.type='CREDIT' AND e.date >= $2::DATE), 0)
FROM journal_entries e JOIN ledgers l ON l.id = e.ledger_id
WHERE l.branch_id=$1 AND e.is_active AND NOT e.is_opening AND e.date <= $3::DATE
GROUP BY e.ledger_id`, branchID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.LedgerID, &a.PriorDebit, &a.PriorCredit, &a.Debit, &a.Credit); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
