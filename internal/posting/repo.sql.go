package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// Repository opens posting transactions on PostgreSQL.
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
	*inventory.StockTx
	*DocumentTx
}

// WithTx executes fn within one locking transaction spanning chart, journal,
// stock and documents.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("posting repository not initialised")
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepository{
			ChartTx:    chart.NewChartTx(tx),
			JournalTx:  journal.NewJournalTx(tx),
			StockTx:    inventory.NewStockTx(tx),
			DocumentTx: &DocumentTx{tx: tx},
		})
	})
}

// DocumentTx persists invoices, vouchers, counters and outbox rows.
type DocumentTx struct {
	tx pgx.Tx
}

// NextDocumentNumber increments and returns the (branch, type) counter. The
// upsert holds the counter row lock until commit.
func (r *DocumentTx) NextDocumentNumber(ctx context.Context, branchID int64, docType string) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO document_sequences (branch_id, doc_type, seq) VALUES ($1, $2, 1)
ON CONFLICT (branch_id, doc_type) DO UPDATE SET seq = document_sequences.seq + 1
RETURNING seq`, branchID, docType).Scan(&seq)
	return seq, err
}

func (r *DocumentTx) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (number, branch_id, type, ledger_id, date, subtotal, discount, cartage, tax, grand_total, narration, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		inv.Number, inv.BranchID, inv.Type, inv.LedgerID, inv.Date, inv.Subtotal, inv.Discount, inv.Cartage, inv.Tax,
		inv.GrandTotal, inv.Narration, inv.CreatedAt).Scan(&inv.ID)
	if db.IsUniqueViolation(err, "uq_invoices_number") {
		return Invoice{}, fmt.Errorf("invoice %s already exists: %w", inv.Number, shared.ErrConflict)
	}
	return inv, err
}

func (r *DocumentTx) InsertInvoiceItems(ctx context.Context, items []InvoiceItem) ([]InvoiceItem, error) {
	out := make([]InvoiceItem, 0, len(items))
	for _, item := range items {
		err := r.tx.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, product_id, godown_id, quantity, thaan, rate, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			item.InvoiceID, item.ProductID, item.GodownID, item.Quantity, item.Thaan, item.Rate, item.Amount).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *DocumentTx) InsertVoucher(ctx context.Context, v Voucher) (Voucher, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO vouchers (number, branch_id, type, date, narration, amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		v.Number, v.BranchID, v.Type, v.Date, v.Narration, v.Amount, v.CreatedAt).Scan(&v.ID)
	if db.IsUniqueViolation(err, "uq_vouchers_number") {
		return Voucher{}, fmt.Errorf("voucher %s already exists: %w", v.Number, shared.ErrConflict)
	}
	return v, err
}

func (r *DocumentTx) GetVoucherByNumber(ctx context.Context, number string) (Voucher, error) {
	var v Voucher
	err := r.tx.QueryRow(ctx, `SELECT id, number, branch_id, type, date, narration, amount, created_at
FROM vouchers WHERE number = $1`, number).
		Scan(&v.ID, &v.Number, &v.BranchID, &v.Type, &v.Date, &v.Narration, &v.Amount, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrVoucherNotFound
	}
	return v, err
}

func (r *DocumentTx) InsertOutboxEvent(ctx context.Context, ev events.Event) error {
	return events.Insert(ctx, r.tx, ev)
}
