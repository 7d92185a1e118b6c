package posting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outbox topics of the orchestrator.
const (
	TopicInvoicePosted = "posting.invoice.posted"
	TopicVoucherPosted = "posting.voucher.posted"
)

// InvoicePostedEvent announces a committed invoice.
type InvoicePostedEvent struct {
	InvoiceID  int64           `json:"invoice_id"`
	Number     string          `json:"number"`
	Type       InvoiceType     `json:"type"`
	BranchID   int64           `json:"branch_id"`
	LedgerID   int64           `json:"ledger_id"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	PostedAt   time.Time       `json:"posted_at"`
}

// VoucherPostedEvent announces a committed voucher.
type VoucherPostedEvent struct {
	VoucherID int64           `json:"voucher_id"`
	Number    string          `json:"number"`
	Type      VoucherType     `json:"type"`
	BranchID  int64           `json:"branch_id"`
	Amount    decimal.Decimal `json:"amount"`
	PostedAt  time.Time       `json:"posted_at"`
}
