package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/posting"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

func (t *Tx) GetProduct(_ context.Context, id int64) (inventory.Product, error) {
	p, ok := t.st.products[id]
	if !ok || !p.IsActive {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (t *Tx) GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *Tx) ListProducts(_ context.Context) ([]inventory.Product, error) {
	var out []inventory.Product
	for _, p := range t.st.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) InsertProduct(_ context.Context, p inventory.Product) (inventory.Product, error) {
	p.ID = t.st.nextID("products")
	t.st.products[p.ID] = p
	return p, nil
}

func (t *Tx) UpdateProductTotals(_ context.Context, id int64, quantity, thaan decimal.Decimal, at time.Time) error {
	p, ok := t.st.products[id]
	if !ok {
		return inventory.ErrProductNotFound
	}
	p.Quantity, p.Thaan, p.UpdatedAt = quantity, thaan, at
	t.st.products[id] = p
	return nil
}

func (t *Tx) GetGodown(_ context.Context, id int64) (inventory.Godown, error) {
	g, ok := t.st.godowns[id]
	if !ok || !g.IsActive {
		return inventory.Godown{}, inventory.ErrGodownNotFound
	}
	return g, nil
}

func (t *Tx) ListGodowns(_ context.Context) ([]inventory.Godown, error) {
	var out []inventory.Godown
	for _, g := range t.st.godowns {
		if g.IsActive {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) InsertGodown(_ context.Context, g inventory.Godown) (inventory.Godown, error) {
	g.ID = t.st.nextID("godowns")
	t.st.godowns[g.ID] = g
	return g, nil
}

func (t *Tx) GetLocationForUpdate(_ context.Context, productID, godownID int64) (inventory.Location, error) {
	loc, ok := t.st.locations[locationKey{productID, godownID}]
	if !ok {
		return inventory.Location{}, inventory.ErrLocationNotFound
	}
	return loc, nil
}

func (t *Tx) UpsertLocation(_ context.Context, loc inventory.Location) error {
	loc.GodownName = ""
	t.st.locations[locationKey{loc.ProductID, loc.GodownID}] = loc
	return nil
}

func (t *Tx) ListLocations(_ context.Context, productID int64) ([]inventory.Location, error) {
	var out []inventory.Location
	for key, loc := range t.st.locations {
		if key.productID != productID {
			continue
		}
		g, ok := t.st.godowns[key.godownID]
		if !ok {
			continue
		}
		loc.GodownName = g.Name
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GodownID < out[j].GodownID })
	return out, nil
}

func (t *Tx) SumLocations(_ context.Context, productID int64) (decimal.Decimal, decimal.Decimal, error) {
	var qty, thaan decimal.Decimal
	for key, loc := range t.st.locations {
		if key.productID == productID {
			qty = qty.Add(loc.Quantity)
			thaan = thaan.Add(loc.Thaan)
		}
	}
	return qty, thaan, nil
}

func (t *Tx) InsertItemEntry(_ context.Context, e inventory.ItemLedgerEntry) (inventory.ItemLedgerEntry, error) {
	e.ID = t.st.nextID("item_ledger_entries")
	if e.InvoiceID != nil {
		id := *e.InvoiceID
		e.InvoiceID = &id
	}
	t.st.items = append(t.st.items, e)
	return e, nil
}

func (t *Tx) ListItemEntries(_ context.Context, filter inventory.ItemLedgerFilter) ([]inventory.ItemLedgerEntry, error) {
	var out []inventory.ItemLedgerEntry
	for _, e := range t.st.items {
		day := truncateDay(e.Date)
		switch {
		case e.ProductID != filter.ProductID:
		case filter.GodownID > 0 && e.GodownID != filter.GodownID:
		case !filter.From.IsZero() && day.Before(truncateDay(filter.From)):
		case !filter.To.IsZero() && day.After(truncateDay(filter.To)):
		default:
			out = append(out, e)
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Documents

func (t *Tx) NextDocumentNumber(_ context.Context, branchID int64, docType string) (int64, error) {
	key := documentKey{branchID, docType}
	t.st.documents[key]++
	return t.st.documents[key], nil
}

func (t *Tx) InsertInvoice(_ context.Context, inv posting.Invoice) (posting.Invoice, error) {
	for _, existing := range t.st.invoices {
		if existing.Number == inv.Number {
			return posting.Invoice{}, fmt.Errorf("invoice %s already exists: %w", inv.Number, shared.ErrConflict)
		}
	}
	inv.ID = t.st.nextID("invoices")
	t.st.invoices[inv.ID] = inv
	return inv, nil
}

func (t *Tx) InsertInvoiceItems(_ context.Context, items []posting.InvoiceItem) ([]posting.InvoiceItem, error) {
	out := make([]posting.InvoiceItem, 0, len(items))
	for _, item := range items {
		item.ID = t.st.nextID("invoice_items")
		t.st.invoiceItems = append(t.st.invoiceItems, item)
		out = append(out, item)
	}
	return out, nil
}

func (t *Tx) InsertVoucher(_ context.Context, v posting.Voucher) (posting.Voucher, error) {
	for _, existing := range t.st.vouchers {
		if existing.Number == v.Number {
			return posting.Voucher{}, fmt.Errorf("voucher %s already exists: %w", v.Number, shared.ErrConflict)
		}
	}
	v.ID = t.st.nextID("vouchers")
	t.st.vouchers[v.ID] = v
	return v, nil
}

func (t *Tx) GetVoucherByNumber(_ context.Context, number string) (posting.Voucher, error) {
	for _, v := range t.st.vouchers {
		if v.Number == number {
			return v, nil
		}
	}
	return posting.Voucher{}, posting.ErrVoucherNotFound
}

func (t *Tx) InsertOutboxEvent(_ context.Context, ev events.Event) error {
	t.st.outbox = append(t.st.outbox, ev)
	return nil
}
