// Package posting orchestrates the multi-ledger documents of the core:
// invoices, vouchers, stock transfers and ledger accounts with an opening
// balance. Each request runs as one transaction across the chart, journal and
// stock ledger.
package posting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// InvoiceType enumerates invoice kinds.
type InvoiceType string

const (
	InvoiceSale           InvoiceType = "SALE"
	InvoicePurchase       InvoiceType = "PURCHASE"
	InvoiceSaleReturn     InvoiceType = "SALE_RETURN"
	InvoicePurchaseReturn InvoiceType = "PURCHASE_RETURN"
)

var invoicePrefixes = map[InvoiceType]string{
	InvoiceSale:           "SI",
	InvoicePurchase:       "PI",
	InvoiceSaleReturn:     "SR",
	InvoicePurchaseReturn: "PR",
}

// Valid reports whether t is a known invoice kind.
func (t InvoiceType) Valid() bool {
	_, ok := invoicePrefixes[t]
	return ok
}

// Prefix is the document number prefix of the kind.
func (t InvoiceType) Prefix() string {
	return invoicePrefixes[t]
}

// Outward reports whether goods leave the godown.
func (t InvoiceType) Outward() bool {
	return t == InvoiceSale || t == InvoicePurchaseReturn
}

// StockType is the item ledger kind an invoice line posts as.
func (t InvoiceType) StockType() inventory.TransactionType {
	switch t {
	case InvoiceSale:
		return inventory.TransactionSale
	case InvoicePurchase:
		return inventory.TransactionPurchase
	case InvoiceSaleReturn:
		return inventory.TransactionSaleReturn
	default:
		return inventory.TransactionPurchaseReturn
	}
}

// CounterpartySide is the side the party ledger takes for the grand total.
// The customer owes on a sale, the supplier is owed on a purchase, and
// returns mirror them.
func (t InvoiceType) CounterpartySide() journal.EntryType {
	if t == InvoiceSale || t == InvoicePurchaseReturn {
		return journal.Debit
	}
	return journal.Credit
}

func (t InvoiceType) salesSide() bool {
	return t == InvoiceSale || t == InvoiceSaleReturn
}

// TradeLedger is the Sales or Purchase ledger carrying the subtotal.
func (t InvoiceType) TradeLedger() chart.LedgerType {
	if t.salesSide() {
		return chart.LedgerSales
	}
	return chart.LedgerPurchase
}

// DiscountLedger is the ledger carrying the invoice discount.
func (t InvoiceType) DiscountLedger() chart.LedgerType {
	if t.salesSide() {
		return chart.LedgerDiscountAllowed
	}
	return chart.LedgerDiscountReceived
}

// Invoice is a posted trade document.
type Invoice struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	BranchID   int64           `json:"branch_id"`
	Type       InvoiceType     `json:"type"`
	LedgerID   int64           `json:"ledger_id"`
	Date       time.Time       `json:"date"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Cartage    decimal.Decimal `json:"cartage"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Narration  string          `json:"narration"`
	CreatedAt  time.Time       `json:"created_at"`
}

// InvoiceItem is one product line of an invoice.
type InvoiceItem struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	ProductID int64           `json:"product_id"`
	GodownID  int64           `json:"godown_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Thaan     decimal.Decimal `json:"thaan"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
}

// ItemInput is a requested invoice line.
type ItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	GodownID  int64           `json:"godown_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"-"`
	Thaan     decimal.Decimal `json:"thaan" validate:"-"`
	Rate      decimal.Decimal `json:"rate" validate:"-"`
}

// InvoiceInput is a request to post an invoice.
type InvoiceInput struct {
	BranchID       int64           `json:"branch_id" validate:"required,gt=0"`
	Type           InvoiceType     `json:"type" validate:"required"`
	Date           time.Time       `json:"date" validate:"required"`
	LedgerID       int64           `json:"ledger_id" validate:"required,gt=0"`
	Narration      string          `json:"narration" validate:"max=500"`
	Items          []ItemInput     `json:"items" validate:"required,min=1,dive"`
	Discount       decimal.Decimal `json:"discount" validate:"-"`
	Cartage        decimal.Decimal `json:"cartage" validate:"-"`
	Tax            decimal.Decimal `json:"tax" validate:"-"`
	IdempotencyKey string          `json:"-" validate:"-"`
}

// Validate checks the header and items before anything is read.
func (in InvoiceInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownInvoiceType, in.Type)
	}
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	for i, item := range in.Items {
		if !shared.Quantity(item.Quantity).IsPositive() {
			return shared.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		if item.Thaan.IsNegative() {
			return shared.NewValidationError(fmt.Sprintf("items[%d].thaan", i), "must not be negative")
		}
		if item.Rate.IsNegative() {
			return shared.NewValidationError(fmt.Sprintf("items[%d].rate", i), "must not be negative")
		}
	}
	for field, v := range map[string]decimal.Decimal{"discount": in.Discount, "cartage": in.Cartage, "tax": in.Tax} {
		if v.IsNegative() {
			return shared.NewValidationError(field, "must not be negative")
		}
	}
	return nil
}

// Totals is the arithmetic of an invoice.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Cartage    decimal.Decimal
	Tax        decimal.Decimal
	GrandTotal decimal.Decimal
}

// ComputeTotals rounds every line amount and charge to two places and derives
// the grand total.
func ComputeTotals(in InvoiceInput) Totals {
	subtotal := decimal.Zero
	for _, item := range in.Items {
		subtotal = subtotal.Add(LineAmount(item))
	}
	t := Totals{
		Subtotal: subtotal,
		Discount: shared.Money(in.Discount),
		Cartage:  shared.Money(in.Cartage),
		Tax:      shared.Money(in.Tax),
	}
	t.GrandTotal = t.Subtotal.Sub(t.Discount).Add(t.Cartage).Add(t.Tax)
	return t
}

// LineAmount is quantity × rate rounded to two places.
func LineAmount(item ItemInput) decimal.Decimal {
	return shared.Money(shared.Quantity(item.Quantity).Mul(shared.Money(item.Rate)))
}

// InvoiceResult is the composed outcome of a posted invoice.
type InvoiceResult struct {
	Invoice     Invoice         `json:"invoice"`
	Items       []InvoiceItem   `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// VoucherType enumerates voucher kinds.
type VoucherType string

const (
	VoucherPayment VoucherType = "PAYMENT"
	VoucherReceipt VoucherType = "RECEIPT"
	VoucherJournal VoucherType = "JOURNAL"
	VoucherContra  VoucherType = "CONTRA"
)

var voucherPrefixes = map[VoucherType]string{
	VoucherPayment: "PV",
	VoucherReceipt: "RV",
	VoucherJournal: "JV",
	VoucherContra:  "CV",
}

// Valid reports whether t is a known voucher kind.
func (t VoucherType) Valid() bool {
	_, ok := voucherPrefixes[t]
	return ok
}

// Prefix is the document number prefix of the kind.
func (t VoucherType) Prefix() string {
	return voucherPrefixes[t]
}

// Voucher is a posted cash, bank or journal document.
type Voucher struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	BranchID  int64           `json:"branch_id"`
	Type      VoucherType     `json:"type"`
	Date      time.Time       `json:"date"`
	Narration string          `json:"narration"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// VoucherLine is one requested voucher entry.
type VoucherLine struct {
	LedgerID  int64             `json:"ledger_id" validate:"required,gt=0"`
	Type      journal.EntryType `json:"type" validate:"required,oneof=DEBIT CREDIT"`
	Amount    decimal.Decimal   `json:"amount" validate:"-"`
	Narration string            `json:"narration" validate:"max=500"`
}

// VoucherInput is a request to post a voucher.
type VoucherInput struct {
	BranchID       int64         `json:"branch_id" validate:"required,gt=0"`
	Type           VoucherType   `json:"type" validate:"required"`
	Date           time.Time     `json:"date" validate:"required"`
	Narration      string        `json:"narration" validate:"max=500"`
	Entries        []VoucherLine `json:"entries" validate:"required,min=2,dive"`
	IdempotencyKey string        `json:"-" validate:"-"`
}

// Validate checks shape and balance. Cash and bank rules need the ledgers and
// run inside the transaction.
func (in VoucherInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownVoucherType, in.Type)
	}
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for i, e := range in.Entries {
		amount := shared.Money(e.Amount)
		if !amount.IsPositive() {
			return shared.NewValidationError(fmt.Sprintf("entries[%d].amount", i), "must be positive")
		}
		if e.Type == journal.Debit {
			debit = debit.Add(amount)
		} else {
			credit = credit.Add(amount)
		}
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s, credit %s", ErrUnbalancedVoucher, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// VoucherResult is the composed outcome of a posted voucher.
type VoucherResult struct {
	Voucher Voucher         `json:"voucher"`
	Entries []journal.Entry `json:"entries"`
}

// LedgerAccountInput creates a ledger and posts its opening balance.
type LedgerAccountInput struct {
	Name           string           `json:"name" validate:"required,max=120"`
	Type           chart.LedgerType `json:"type" validate:"required"`
	GroupID        int64            `json:"group_id" validate:"required,gt=0"`
	BranchID       int64            `json:"branch_id" validate:"required,gt=0"`
	OpeningBalance decimal.Decimal  `json:"opening_balance" validate:"-"`
	Date           time.Time        `json:"date" validate:"-"`
}

// LedgerAccountResult is the created ledger plus its opening posting, if any.
type LedgerAccountResult struct {
	Ledger  chart.Ledger            `json:"ledger"`
	Opening *journal.PostingResult `json:"opening,omitempty"`
}

// TransferRequest moves stock between godowns.
type TransferRequest struct {
	inventory.TransferInput
	IdempotencyKey string
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	Reference string                    `json:"reference"`
	Out       inventory.ItemLedgerEntry `json:"out"`
	In        inventory.ItemLedgerEntry `json:"in"`
}

// ReversalResult is a voucher reversal posting.
type ReversalResult struct {
	Voucher Voucher               `json:"voucher"`
	Posting journal.PostingResult `json:"posting"`
}

// DocumentNumber renders "<prefix>-<branch>-<seq>" with a six digit sequence.
func DocumentNumber(prefix string, branchID, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", strings.ToUpper(prefix), branchID, seq)
}

var (
	// ErrUnknownInvoiceType indicates an invoice kind outside the closed set.
	ErrUnknownInvoiceType = fmt.Errorf("posting: unknown invoice type: %w", shared.ErrValidation)
	// ErrUnknownVoucherType indicates a voucher kind outside the closed set.
	ErrUnknownVoucherType = fmt.Errorf("posting: unknown voucher type: %w", shared.ErrValidation)
	// ErrNonPositiveTotal indicates an invoice whose grand total is zero or less.
	ErrNonPositiveTotal = fmt.Errorf("posting: grand total must be positive: %w", shared.ErrValidation)
	// ErrUnbalancedVoucher indicates voucher debits differ from credits.
	ErrUnbalancedVoucher = fmt.Errorf("posting: voucher debits and credits differ: %w", shared.ErrValidation)
	// ErrCashBankRequired indicates a payment or receipt without cash or bank on the required side.
	ErrCashBankRequired = fmt.Errorf("posting: voucher needs a cash or bank ledger: %w", shared.ErrValidation)
	// ErrContraNonCash indicates a contra voucher touching a non cash or bank ledger.
	ErrContraNonCash = fmt.Errorf("posting: contra vouchers move funds between cash and bank only: %w", shared.ErrValidation)
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = fmt.Errorf("posting: voucher not found: %w", shared.ErrNotFound)
)
