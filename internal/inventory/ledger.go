package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// TxRepository exposes the transactional stock operations.
type TxRepository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	UpdateProductTotals(ctx context.Context, id int64, quantity, thaan decimal.Decimal, at time.Time) error

	GetGodown(ctx context.Context, id int64) (Godown, error)
	ListGodowns(ctx context.Context) ([]Godown, error)
	InsertGodown(ctx context.Context, g Godown) (Godown, error)

	GetLocationForUpdate(ctx context.Context, productID, godownID int64) (Location, error)
	UpsertLocation(ctx context.Context, loc Location) error
	ListLocations(ctx context.Context, productID int64) ([]Location, error)
	SumLocations(ctx context.Context, productID int64) (decimal.Decimal, decimal.Decimal, error)

	InsertItemEntry(ctx context.Context, e ItemLedgerEntry) (ItemLedgerEntry, error)
	ListItemEntries(ctx context.Context, filter ItemLedgerFilter) ([]ItemLedgerEntry, error)
}

// Record applies one movement: it snapshots the location, rejects a negative
// result, persists the new location and the entry, and refreshes the product
// totals from every location. The product row lock serializes all movements
// of a product.
func Record(ctx context.Context, tx TxRepository, in RecordInput, now time.Time) (ItemLedgerEntry, error) {
	if err := in.Validate(); err != nil {
		return ItemLedgerEntry{}, err
	}
	in = in.normalized()
	product, err := tx.GetProductForUpdate(ctx, in.ProductID)
	if err != nil {
		return ItemLedgerEntry{}, err
	}
	godown, err := tx.GetGodown(ctx, in.GodownID)
	if err != nil {
		return ItemLedgerEntry{}, err
	}
	loc, err := tx.GetLocationForUpdate(ctx, product.ID, godown.ID)
	switch {
	case errors.Is(err, ErrLocationNotFound):
		loc = Location{ProductID: product.ID, GodownID: godown.ID, Quantity: decimal.Zero, Thaan: decimal.Zero}
	case err != nil:
		return ItemLedgerEntry{}, err
	}

	entry := ItemLedgerEntry{
		ProductID:        product.ID,
		GodownID:         godown.ID,
		Type:             in.Type,
		QuantityIn:       in.QuantityIn,
		QuantityOut:      in.QuantityOut,
		ThaanIn:          in.ThaanIn,
		ThaanOut:         in.ThaanOut,
		UnitPrice:        in.UnitPrice,
		TotalAmount:      shared.Money(in.UnitPrice.Mul(in.QuantityIn.Add(in.QuantityOut))),
		PreviousQuantity: loc.Quantity,
		PreviousThaan:    loc.Thaan,
		Reference:        in.Reference,
		InvoiceID:        in.InvoiceID,
		Description:      in.Description,
		Date:             in.Date,
		CreatedAt:        now,
	}
	if entry.Date.IsZero() {
		entry.Date = now
	}
	qty, thaan := entry.Quantity(), entry.Thaan()
	if qty.IsNegative() || thaan.IsNegative() {
		return ItemLedgerEntry{}, fmt.Errorf("%w: product %q at godown %q holds %s (thaan %s), requested %s (thaan %s)",
			ErrInsufficientStock, product.Name, godown.Name, loc.Quantity, loc.Thaan, in.QuantityOut, in.ThaanOut)
	}

	loc.Quantity, loc.Thaan, loc.UpdatedAt = qty, thaan, now
	if err := tx.UpsertLocation(ctx, loc); err != nil {
		return ItemLedgerEntry{}, err
	}
	entry, err = tx.InsertItemEntry(ctx, entry)
	if err != nil {
		return ItemLedgerEntry{}, err
	}
	totalQty, totalThaan, err := tx.SumLocations(ctx, product.ID)
	if err != nil {
		return ItemLedgerEntry{}, err
	}
	if err := tx.UpdateProductTotals(ctx, product.ID, totalQty, totalThaan, now); err != nil {
		return ItemLedgerEntry{}, err
	}
	return entry, nil
}

// Transfer moves stock between godowns as a TRANSFER out followed by a
// TRANSFER in sharing one reference and date. Product totals are unchanged.
func Transfer(ctx context.Context, tx TxRepository, in TransferInput, now time.Time) (ItemLedgerEntry, ItemLedgerEntry, error) {
	if err := in.Validate(); err != nil {
		return ItemLedgerEntry{}, ItemLedgerEntry{}, err
	}
	from, err := tx.GetGodown(ctx, in.FromGodownID)
	if err != nil {
		return ItemLedgerEntry{}, ItemLedgerEntry{}, err
	}
	to, err := tx.GetGodown(ctx, in.ToGodownID)
	if err != nil {
		return ItemLedgerEntry{}, ItemLedgerEntry{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = now
	}
	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Transfer from %s to %s", from.Name, to.Name)
	}
	out, err := Record(ctx, tx, RecordInput{
		ProductID:   in.ProductID,
		GodownID:    from.ID,
		Type:        TransactionTransfer,
		QuantityOut: in.Quantity,
		ThaanOut:    in.Thaan,
		Reference:   in.Reference,
		Description: description,
		Date:        date,
	}, now)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return ItemLedgerEntry{}, ItemLedgerEntry{}, fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
		}
		return ItemLedgerEntry{}, ItemLedgerEntry{}, err
	}
	inward, err := Record(ctx, tx, RecordInput{
		ProductID:   in.ProductID,
		GodownID:    to.ID,
		Type:        TransactionTransfer,
		QuantityIn:  in.Quantity,
		ThaanIn:     in.Thaan,
		Reference:   in.Reference,
		Description: description,
		Date:        date,
	}, now)
	if err != nil {
		return ItemLedgerEntry{}, ItemLedgerEntry{}, err
	}
	return out, inward, nil
}

// ReplayResult compares a location's stored stock with its entry history.
type ReplayResult struct {
	ProductID        int64           `json:"product_id"`
	GodownID         int64           `json:"godown_id"`
	StoredQuantity   decimal.Decimal `json:"stored_quantity"`
	StoredThaan      decimal.Decimal `json:"stored_thaan"`
	ReplayedQuantity decimal.Decimal `json:"replayed_quantity"`
	ReplayedThaan    decimal.Decimal `json:"replayed_thaan"`
	Entries          int             `json:"entries"`
	BrokenAt         int64           `json:"broken_at,omitempty"`
	Consistent       bool            `json:"consistent"`
}

// Replay folds entries (in id order) from zero. BrokenAt names the first
// entry whose previous snapshot disagrees with the running total.
func Replay(entries []ItemLedgerEntry) (qty, thaan decimal.Decimal, brokenAt int64) {
	qty, thaan = decimal.Zero, decimal.Zero
	for _, e := range entries {
		if brokenAt == 0 && (!e.PreviousQuantity.Equal(qty) || !e.PreviousThaan.Equal(thaan)) {
			brokenAt = e.ID
		}
		qty = qty.Add(e.QuantityIn).Sub(e.QuantityOut)
		thaan = thaan.Add(e.ThaanIn).Sub(e.ThaanOut)
	}
	return qty, thaan, brokenAt
}

// CheckLocation replays the history of one location against its stored row.
func CheckLocation(ctx context.Context, tx TxRepository, productID, godownID int64) (ReplayResult, error) {
	entries, err := tx.ListItemEntries(ctx, ItemLedgerFilter{ProductID: productID, GodownID: godownID})
	if err != nil {
		return ReplayResult{}, err
	}
	locations, err := tx.ListLocations(ctx, productID)
	if err != nil {
		return ReplayResult{}, err
	}
	res := ReplayResult{ProductID: productID, GodownID: godownID, StoredQuantity: decimal.Zero, StoredThaan: decimal.Zero, Entries: len(entries)}
	for _, loc := range locations {
		if loc.GodownID == godownID {
			res.StoredQuantity, res.StoredThaan = loc.Quantity, loc.Thaan
		}
	}
	res.ReplayedQuantity, res.ReplayedThaan, res.BrokenAt = Replay(entries)
	res.Consistent = res.BrokenAt == 0 &&
		res.ReplayedQuantity.Equal(res.StoredQuantity) &&
		res.ReplayedThaan.Equal(res.StoredThaan)
	return res, nil
}
