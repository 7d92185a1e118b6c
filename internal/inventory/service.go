package inventory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithReadTx runs fn on one consistent snapshot; fn must not write.
	WithReadTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock master data, openings and adjustments. Invoice
// and transfer movements run through the posting orchestrator.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateProduct registers a product with zero stock.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	var product Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.now()
		var err error
		product, err = tx.InsertProduct(ctx, Product{
			Name:      in.Name,
			Brand:     strings.TrimSpace(in.Brand),
			Category:  strings.TrimSpace(in.Category),
			Unit:      strings.TrimSpace(in.Unit),
			Price:     shared.Money(in.Price),
			CostPrice: shared.Money(in.CostPrice),
			Quantity:  decimal.Zero,
			Thaan:     decimal.Zero,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "inventory.product.create", "product", product.ID, map[string]any{"name": product.Name})
	return product, nil
}

// CreateGodown registers a godown. Names are unique.
func (s *Service) CreateGodown(ctx context.Context, in GodownInput) (Godown, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := shared.ValidateStruct(in); err != nil {
		return Godown{}, err
	}
	var godown Godown
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		godown, err = tx.InsertGodown(ctx, Godown{
			Name:      in.Name,
			Address:   strings.TrimSpace(in.Address),
			IsActive:  true,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return Godown{}, err
	}
	s.record(ctx, "inventory.godown.create", "godown", godown.ID, map[string]any{"name": godown.Name})
	return godown, nil
}

// RecordOpening adds opening stock at a godown.
func (s *Service) RecordOpening(ctx context.Context, in OpeningInput) (ItemLedgerEntry, error) {
	return s.post(ctx, "inventory.opening", RecordInput{
		ProductID:   in.ProductID,
		GodownID:    in.GodownID,
		Type:        TransactionOpening,
		QuantityIn:  in.Quantity,
		ThaanIn:     in.Thaan,
		UnitPrice:   in.UnitPrice,
		Reference:   "OPENING",
		Description: "Opening stock",
		Date:        in.Date,
	})
}

// Adjust corrects stock by a signed delta. A decrease below zero is refused
// like any other outward movement.
func (s *Service) Adjust(ctx context.Context, in AdjustmentInput) (ItemLedgerEntry, error) {
	if in.Quantity.Sign()*in.Thaan.Sign() < 0 {
		return ItemLedgerEntry{}, ErrTwoSidedMovement
	}
	rec := RecordInput{
		ProductID:   in.ProductID,
		GodownID:    in.GodownID,
		Type:        TransactionAdjustment,
		Reference:   "ADJ-" + strings.ToUpper(uuid.NewString()[:8]),
		Description: strings.TrimSpace(in.Reason),
		Date:        in.Date,
	}
	if in.Quantity.IsNegative() || in.Thaan.IsNegative() {
		rec.QuantityOut, rec.ThaanOut = in.Quantity.Abs(), in.Thaan.Abs()
	} else {
		rec.QuantityIn, rec.ThaanIn = in.Quantity, in.Thaan
	}
	if rec.Description == "" {
		rec.Description = "Stock adjustment"
	}
	return s.post(ctx, "inventory.adjust", rec)
}

func (s *Service) post(ctx context.Context, action string, in RecordInput) (ItemLedgerEntry, error) {
	var entry ItemLedgerEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = Record(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return ItemLedgerEntry{}, err
	}
	s.record(ctx, action, "item_ledger_entry", entry.ID, map[string]any{
		"product_id":   entry.ProductID,
		"godown_id":    entry.GodownID,
		"quantity_in":  entry.QuantityIn.String(),
		"quantity_out": entry.QuantityOut.String(),
		"reference":    entry.Reference,
	})
	return entry, nil
}

// GetProduct returns one product with its denormalized totals.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		product, err = tx.GetProduct(ctx, id)
		return err
	})
	return product, err
}

// ListProducts returns active products.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		products, err = tx.ListProducts(ctx)
		return err
	})
	return products, err
}

// ListGodowns returns active godowns.
func (s *Service) ListGodowns(ctx context.Context) ([]Godown, error) {
	var godowns []Godown
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		godowns, err = tx.ListGodowns(ctx)
		return err
	})
	return godowns, err
}

// StockByGodown returns a product with its stock at every godown.
func (s *Service) StockByGodown(ctx context.Context, productID int64) (ProductStock, error) {
	var out ProductStock
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		locations, err := tx.ListLocations(ctx, productID)
		if err != nil {
			return err
		}
		out = ProductStock{Product: product, Locations: locations}
		return nil
	})
	return out, err
}

// ItemLedger lists stock movements of a product.
func (s *Service) ItemLedger(ctx context.Context, filter ItemLedgerFilter) ([]ItemLedgerEntry, error) {
	if filter.ProductID <= 0 {
		return nil, shared.NewValidationError("product_id", "is required")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.NewValidationError("to", "must not be before from")
	}
	var entries []ItemLedgerEntry
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListItemEntries(ctx, filter)
		return err
	})
	return entries, err
}

// ReplayLocation rebuilds a location's stock from its history and compares
// it with the stored row.
func (s *Service) ReplayLocation(ctx context.Context, productID, godownID int64) (ReplayResult, error) {
	var res ReplayResult
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		if _, err := tx.GetGodown(ctx, godownID); err != nil {
			return err
		}
		var err error
		res, err = CheckLocation(ctx, tx, productID, godownID)
		return err
	})
	return res, err
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
