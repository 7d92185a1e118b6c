package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// Repository persists journal books and entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	*chart.ChartTx
	*JournalTx
}

// WithTx executes fn within a locking transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journal repository not initialised")
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepository{ChartTx: chart.NewChartTx(tx), JournalTx: NewJournalTx(tx)})
	})
}

// JournalTx implements the journal half of TxRepository on a pgx transaction.
type JournalTx struct {
	tx pgx.Tx
}

// NewJournalTx wraps tx.
func NewJournalTx(tx pgx.Tx) *JournalTx {
	return &JournalTx{tx: tx}
}

const bookColumns = `id, branch_id, financial_year_id, name, start_date, end_date, status, created_at, updated_at`

func scanBook(row pgx.Row, notFound error) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.BranchID, &b.FinancialYearID, &b.Name, &b.StartDate, &b.EndDate, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, notFound
		}
		return Book{}, err
	}
	return b, nil
}

// FindOpenBook holds a share lock so the book cannot close under a posting.
func (r *JournalTx) FindOpenBook(ctx context.Context, branchID int64, date time.Time) (Book, error) {
	return scanBook(r.tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM journal_books
WHERE branch_id=$1 AND status='OPEN' AND $2::DATE BETWEEN start_date AND end_date
ORDER BY start_date LIMIT 1 FOR SHARE`, branchID, date), ErrJournalBookNotFound)
}

func (r *JournalTx) InsertBook(ctx context.Context, b Book) (Book, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_books (branch_id, financial_year_id, name, start_date, end_date, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING id`, b.BranchID, b.FinancialYearID, b.Name, b.StartDate, b.EndDate, b.Status, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return Book{}, err
	}
	return b, nil
}

func (r *JournalTx) GetBookForUpdate(ctx context.Context, id int64) (Book, error) {
	return scanBook(r.tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM journal_books WHERE id=$1 FOR UPDATE`, id), ErrBookNotFound)
}

func (r *JournalTx) UpdateBookStatus(ctx context.Context, id int64, status string, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_books SET status=$2, updated_at=$3 WHERE id=$1`, id, status, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (r *JournalTx) ListBooks(ctx context.Context, branchID int64) ([]Book, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+bookColumns+` FROM journal_books WHERE branch_id=$1 ORDER BY start_date`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []Book
	for rows.Next() {
		b, err := scanBook(rows, ErrBookNotFound)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (r *JournalTx) InsertEntries(ctx context.Context, entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (book_id, ledger_id, type, amount, narration, date, reference, source_id, is_opening, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,$10) RETURNING id`,
			e.BookID, e.LedgerID, e.Type, e.Amount, e.Narration, e.Date, e.Reference, e.SourceID, e.IsOpening, e.CreatedAt).Scan(&e.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *JournalTx) UpdateLedgerBalance(ctx context.Context, ledgerID int64, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `UPDATE ledgers SET balance = balance + $2, updated_at=$3 WHERE id=$1 RETURNING balance`, ledgerID, delta, at).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, ErrLedgerNotFound
		}
		return decimal.Decimal{}, err
	}
	return balance, nil
}

func (r *JournalTx) LinkSource(ctx context.Context, module string, ref uuid.UUID, reference string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, reference) VALUES ($1,$2,$3)`, module, ref, reference)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_source_links") {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

// EntryColumns is the column list ScanEntry expects.
const EntryColumns = `id, book_id, ledger_id, type, amount, narration, date, reference, source_id, is_opening, is_active, created_at`

// ScanEntry reads one journal_entries row selected with EntryColumns.
func ScanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.BookID, &e.LedgerID, &e.Type, &e.Amount, &e.Narration, &e.Date, &e.Reference, &e.SourceID, &e.IsOpening, &e.IsActive, &e.CreatedAt)
	return e, err
}

func (r *JournalTx) ListEntriesByReference(ctx context.Context, reference string) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+EntryColumns+` FROM journal_entries WHERE reference=$1 AND is_active ORDER BY id`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := ScanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
