// Package inventory keeps the per-product, per-godown stock ledger. Every
// movement appends an item ledger entry and updates the location and product
// totals in the same transaction.
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// TransactionType enumerates stock movement kinds.
type TransactionType string

const (
	TransactionOpening        TransactionType = "OPENING"
	TransactionPurchase       TransactionType = "PURCHASE"
	TransactionSale           TransactionType = "SALE"
	TransactionPurchaseReturn TransactionType = "PURCHASE_RETURN"
	TransactionSaleReturn     TransactionType = "SALE_RETURN"
	TransactionAdjustment     TransactionType = "ADJUSTMENT"
	TransactionTransfer       TransactionType = "TRANSFER"
)

// Direction is the side a movement kind may post on.
type Direction int

const (
	DirectionEither Direction = iota
	DirectionIn
	DirectionOut
)

// Direction returns the side the kind is restricted to.
func (t TransactionType) Direction() (Direction, bool) {
	switch t {
	case TransactionOpening, TransactionPurchase, TransactionSaleReturn:
		return DirectionIn, true
	case TransactionSale, TransactionPurchaseReturn:
		return DirectionOut, true
	case TransactionAdjustment, TransactionTransfer:
		return DirectionEither, true
	}
	return DirectionEither, false
}

// Product is a stock item with denormalized totals over all godowns.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Thaan     decimal.Decimal `json:"thaan"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Godown is a storage location.
type Godown struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is the stock of one product at one godown.
type Location struct {
	ProductID  int64           `json:"product_id"`
	GodownID   int64           `json:"godown_id"`
	GodownName string          `json:"godown_name,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Thaan      decimal.Decimal `json:"thaan"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ItemLedgerEntry is one immutable stock movement.
type ItemLedgerEntry struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	GodownID         int64           `json:"godown_id"`
	Type             TransactionType `json:"type"`
	QuantityIn       decimal.Decimal `json:"quantity_in"`
	QuantityOut      decimal.Decimal `json:"quantity_out"`
	ThaanIn          decimal.Decimal `json:"thaan_in"`
	ThaanOut         decimal.Decimal `json:"thaan_out"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	PreviousThaan    decimal.Decimal `json:"previous_thaan"`
	Reference        string          `json:"reference"`
	InvoiceID        *int64          `json:"invoice_id,omitempty"`
	Description      string          `json:"description"`
	Date             time.Time       `json:"date"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Quantity returns the location quantity after this entry.
func (e ItemLedgerEntry) Quantity() decimal.Decimal {
	return e.PreviousQuantity.Add(e.QuantityIn).Sub(e.QuantityOut)
}

// Thaan returns the location thaan after this entry.
func (e ItemLedgerEntry) Thaan() decimal.Decimal {
	return e.PreviousThaan.Add(e.ThaanIn).Sub(e.ThaanOut)
}

// RecordInput describes one movement at one godown.
type RecordInput struct {
	ProductID   int64
	GodownID    int64
	Type        TransactionType
	QuantityIn  decimal.Decimal
	QuantityOut decimal.Decimal
	ThaanIn     decimal.Decimal
	ThaanOut    decimal.Decimal
	UnitPrice   decimal.Decimal
	Reference   string
	InvoiceID   *int64
	Description string
	Date        time.Time
}

func (in RecordInput) normalized() RecordInput {
	in.QuantityIn = shared.Quantity(in.QuantityIn)
	in.QuantityOut = shared.Quantity(in.QuantityOut)
	in.ThaanIn = shared.Quantity(in.ThaanIn)
	in.ThaanOut = shared.Quantity(in.ThaanOut)
	in.UnitPrice = shared.Money(in.UnitPrice)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Validate checks one-sidedness and that the side matches the kind.
func (in RecordInput) Validate() error {
	if in.ProductID <= 0 {
		return shared.NewValidationError("product_id", "is required")
	}
	if in.GodownID <= 0 {
		return shared.NewValidationError("godown_id", "is required")
	}
	dir, ok := in.Type.Direction()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransactionType, in.Type)
	}
	for field, v := range map[string]decimal.Decimal{
		"quantity_in": in.QuantityIn, "quantity_out": in.QuantityOut,
		"thaan_in": in.ThaanIn, "thaan_out": in.ThaanOut, "unit_price": in.UnitPrice,
	} {
		if v.IsNegative() {
			return shared.NewValidationError(field, "must not be negative")
		}
	}
	in = in.normalized()
	inward := in.QuantityIn.IsPositive() || in.ThaanIn.IsPositive()
	outward := in.QuantityOut.IsPositive() || in.ThaanOut.IsPositive()
	switch {
	case !inward && !outward:
		return ErrInvalidQuantity
	case inward && outward:
		return ErrTwoSidedMovement
	case dir == DirectionIn && outward, dir == DirectionOut && inward:
		return fmt.Errorf("%w: %s", ErrWrongDirection, in.Type)
	}
	return nil
}

// TransferInput moves stock between two godowns.
type TransferInput struct {
	ProductID    int64
	FromGodownID int64
	ToGodownID   int64
	Quantity     decimal.Decimal
	Thaan        decimal.Decimal
	Reference    string
	Description  string
	Date         time.Time
}

// Validate rejects same-godown and non-positive transfers.
func (in TransferInput) Validate() error {
	if in.ProductID <= 0 {
		return shared.NewValidationError("product_id", "is required")
	}
	if in.FromGodownID <= 0 || in.ToGodownID <= 0 {
		return shared.NewValidationError("godown_id", "source and destination are required")
	}
	if in.FromGodownID == in.ToGodownID {
		return fmt.Errorf("%w: source and destination godown are the same", ErrInvalidTransfer)
	}
	qty, thaan := shared.Quantity(in.Quantity), shared.Quantity(in.Thaan)
	if qty.IsNegative() || thaan.IsNegative() || (qty.IsZero() && thaan.IsZero()) {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidTransfer)
	}
	return nil
}

// ProductInput describes a product to create.
type ProductInput struct {
	Name      string          `validate:"required"`
	Brand     string          `validate:"omitempty,max=120"`
	Category  string          `validate:"omitempty,max=120"`
	Unit      string          `validate:"omitempty,max=32"`
	Price     decimal.Decimal `validate:"-"`
	CostPrice decimal.Decimal `validate:"-"`
}

// Validate checks the product request.
func (in ProductInput) Validate() error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return shared.NewValidationError("price", "must not be negative")
	}
	if in.CostPrice.IsNegative() {
		return shared.NewValidationError("cost_price", "must not be negative")
	}
	return nil
}

// GodownInput describes a godown to create.
type GodownInput struct {
	Name    string `validate:"required,max=120"`
	Address string `validate:"omitempty,max=255"`
}

// OpeningInput records stock a godown already holds.
type OpeningInput struct {
	ProductID int64
	GodownID  int64
	Quantity  decimal.Decimal
	Thaan     decimal.Decimal
	UnitPrice decimal.Decimal
	Date      time.Time
}

// AdjustmentInput corrects stock by a signed delta.
type AdjustmentInput struct {
	ProductID int64
	GodownID  int64
	Quantity  decimal.Decimal
	Thaan     decimal.Decimal
	Reason    string
	Date      time.Time
}

// ItemLedgerFilter narrows an item ledger listing.
type ItemLedgerFilter struct {
	ProductID int64
	GodownID  int64
	From      time.Time
	To        time.Time
	Limit     int
}

// ProductStock is a product with its stock per godown.
type ProductStock struct {
	Product   Product    `json:"product"`
	Locations []Location `json:"locations"`
}

var (
	// ErrProductNotFound indicates a missing or inactive product.
	ErrProductNotFound = fmt.Errorf("inventory: product not found: %w", shared.ErrNotFound)
	// ErrGodownNotFound indicates a missing or inactive godown.
	ErrGodownNotFound = fmt.Errorf("inventory: godown not found: %w", shared.ErrNotFound)
	// ErrLocationNotFound indicates no stock row exists yet for the pair.
	ErrLocationNotFound = fmt.Errorf("inventory: product location not found: %w", shared.ErrNotFound)
	// ErrInsufficientStock indicates a movement would drive a location negative.
	ErrInsufficientStock = fmt.Errorf("inventory: %w", shared.ErrInsufficientStock)
	// ErrInvalidTransfer indicates a transfer that cannot be honoured.
	ErrInvalidTransfer = fmt.Errorf("inventory: %w", shared.ErrInvalidTransfer)
	// ErrInvalidQuantity indicates a movement with nothing to move.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity or thaan must be positive: %w", shared.ErrValidation)
	// ErrTwoSidedMovement indicates in and out amounts on one entry.
	ErrTwoSidedMovement = fmt.Errorf("inventory: a movement is either inward or outward: %w", shared.ErrValidation)
	// ErrWrongDirection indicates a side the movement kind does not allow.
	ErrWrongDirection = fmt.Errorf("inventory: direction not allowed for transaction type: %w", shared.ErrValidation)
	// ErrUnknownTransactionType indicates a kind outside the closed set.
	ErrUnknownTransactionType = fmt.Errorf("inventory: unknown transaction type: %w", shared.ErrValidation)
)
