package inventory

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a locking transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStockTx(tx))
	})
}

// WithReadTx runs fn on a RepeatableRead snapshot so multi-statement reads
// see one committed state.
func (r *Repository) WithReadTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStockTx(tx))
	})
}

// StockTx implements TxRepository on a pgx transaction.
type StockTx struct {
	tx pgx.Tx
}

// NewStockTx wraps tx.
func NewStockTx(tx pgx.Tx) *StockTx {
	return &StockTx{tx: tx}
}

const productColumns = `id, name, brand, category, unit, price, cost_price, quantity, thaan, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Unit, &p.Price, &p.CostPrice, &p.Quantity, &p.Thaan, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *StockTx) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND is_active`, id))
}

func (r *StockTx) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND is_active FOR UPDATE`, id))
}

func (r *StockTx) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *StockTx) InsertProduct(ctx context.Context, p Product) (Product, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO products (name, brand, category, unit, price, cost_price, quantity, thaan, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		p.Name, p.Brand, p.Category, p.Unit, p.Price, p.CostPrice, p.Quantity, p.Thaan, p.IsActive, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *StockTx) UpdateProductTotals(ctx context.Context, id int64, quantity, thaan decimal.Decimal, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE products SET quantity=$2, thaan=$3, updated_at=$4 WHERE id=$1`, id, quantity, thaan, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

const godownColumns = `id, name, address, is_active, created_at`

func scanGodown(row pgx.Row) (Godown, error) {
	var g Godown
	if err := row.Scan(&g.ID, &g.Name, &g.Address, &g.IsActive, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Godown{}, ErrGodownNotFound
		}
		return Godown{}, err
	}
	return g, nil
}

func (r *StockTx) GetGodown(ctx context.Context, id int64) (Godown, error) {
	return scanGodown(r.tx.QueryRow(ctx, `SELECT `+godownColumns+` FROM godowns WHERE id=$1 AND is_active`, id))
}

func (r *StockTx) ListGodowns(ctx context.Context) ([]Godown, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+godownColumns+` FROM godowns WHERE is_active ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var godowns []Godown
	for rows.Next() {
		g, err := scanGodown(rows)
		if err != nil {
			return nil, err
		}
		godowns = append(godowns, g)
	}
	return godowns, rows.Err()
}

func (r *StockTx) InsertGodown(ctx context.Context, g Godown) (Godown, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO godowns (name, address, is_active, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		g.Name, g.Address, g.IsActive, g.CreatedAt).Scan(&g.ID)
	if err != nil {
		return Godown{}, err
	}
	return g, nil
}

func (r *StockTx) GetLocationForUpdate(ctx context.Context, productID, godownID int64) (Location, error) {
	var loc Location
	err := r.tx.QueryRow(ctx, `SELECT product_id, godown_id, quantity, thaan, updated_at FROM product_locations
WHERE product_id=$1 AND godown_id=$2 FOR UPDATE`, productID, godownID).
		Scan(&loc.ProductID, &loc.GodownID, &loc.Quantity, &loc.Thaan, &loc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrLocationNotFound
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *StockTx) UpsertLocation(ctx context.Context, loc Location) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO product_locations (product_id, godown_id, quantity, thaan, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (product_id, godown_id) DO UPDATE SET quantity=EXCLUDED.quantity, thaan=EXCLUDED.thaan, updated_at=EXCLUDED.updated_at`,
		loc.ProductID, loc.GodownID, loc.Quantity, loc.Thaan, loc.UpdatedAt)
	return err
}

func (r *StockTx) ListLocations(ctx context.Context, productID int64) ([]Location, error) {
	rows, err := r.tx.Query(ctx, `SELECT pl.product_id, pl.godown_id, g.name, pl.quantity, pl.thaan, pl.updated_at
FROM product_locations pl JOIN godowns g ON g.id = pl.godown_id
WHERE pl.product_id=$1 ORDER BY pl.godown_id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locations []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ProductID, &loc.GodownID, &loc.GodownName, &loc.Quantity, &loc.Thaan, &loc.UpdatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (r *StockTx) SumLocations(ctx context.Context, productID int64) (decimal.Decimal, decimal.Decimal, error) {
	var qty, thaan decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0), COALESCE(SUM(thaan),0) FROM product_locations WHERE product_id=$1`, productID).
		Scan(&qty, &thaan)
	return qty, thaan, err
}

const itemEntryColumns = `id, product_id, godown_id, type, quantity_in, quantity_out, thaan_in, thaan_out, unit_price, total_amount,
previous_quantity, previous_thaan, reference, invoice_id, description, date, created_at`

func (r *StockTx) InsertItemEntry(ctx context.Context, e ItemLedgerEntry) (ItemLedgerEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO item_ledger_entries (product_id, godown_id, type, quantity_in, quantity_out, thaan_in, thaan_out,
unit_price, total_amount, previous_quantity, previous_thaan, reference, invoice_id, description, date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		e.ProductID, e.GodownID, e.Type, e.QuantityIn, e.QuantityOut, e.ThaanIn, e.ThaanOut, e.UnitPrice, e.TotalAmount,
		e.PreviousQuantity, e.PreviousThaan, e.Reference, e.InvoiceID, e.Description, e.Date, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return ItemLedgerEntry{}, err
	}
	return e, nil
}

func (r *StockTx) ListItemEntries(ctx context.Context, filter ItemLedgerFilter) ([]ItemLedgerEntry, error) {
	where := []string{"product_id=$1"}
	args := []any{filter.ProductID}
	if filter.GodownID > 0 {
		args = append(args, filter.GodownID)
		where = append(where, "godown_id=$"+strconv.Itoa(len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, "date >= $"+strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, "date <= $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + itemEntryColumns + ` FROM item_ledger_entries WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []ItemLedgerEntry
	for rows.Next() {
		var e ItemLedgerEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.GodownID, &e.Type, &e.QuantityIn, &e.QuantityOut, &e.ThaanIn, &e.ThaanOut,
			&e.UnitPrice, &e.TotalAmount, &e.PreviousQuantity, &e.PreviousThaan, &e.Reference, &e.InvoiceID,
			&e.Description, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
