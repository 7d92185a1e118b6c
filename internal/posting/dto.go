package posting

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

type invoiceRequest struct {
	BranchID  int64           `json:"branch_id"`
	Type      string          `json:"type"`
	Date      string          `json:"date"`
	LedgerID  int64           `json:"ledger_id"`
	Narration string          `json:"narration"`
	Items     []ItemInput     `json:"items"`
	Discount  decimal.Decimal `json:"discount"`
	Cartage   decimal.Decimal `json:"cartage"`
	Tax       decimal.Decimal `json:"tax"`
}

func (req invoiceRequest) input(key string) (InvoiceInput, error) {
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		return InvoiceInput{}, err
	}
	return InvoiceInput{
		BranchID:       req.BranchID,
		Type:           InvoiceType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Date:           date,
		LedgerID:       req.LedgerID,
		Narration:      strings.TrimSpace(req.Narration),
		Items:          req.Items,
		Discount:       req.Discount,
		Cartage:        req.Cartage,
		Tax:            req.Tax,
		IdempotencyKey: key,
	}, nil
}

type voucherLineRequest struct {
	LedgerID  int64           `json:"ledger_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Narration string          `json:"narration"`
}

type voucherRequest struct {
	BranchID  int64                `json:"branch_id"`
	Type      string               `json:"type"`
	Date      string               `json:"date"`
	Narration string               `json:"narration"`
	Entries   []voucherLineRequest `json:"entries"`
}

func (req voucherRequest) input(key string) (VoucherInput, error) {
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		return VoucherInput{}, err
	}
	in := VoucherInput{
		BranchID:       req.BranchID,
		Type:           VoucherType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Date:           date,
		Narration:      strings.TrimSpace(req.Narration),
		IdempotencyKey: key,
	}
	for _, e := range req.Entries {
		in.Entries = append(in.Entries, VoucherLine{
			LedgerID:  e.LedgerID,
			Type:      journal.EntryType(strings.ToUpper(strings.TrimSpace(e.Type))),
			Amount:    e.Amount,
			Narration: strings.TrimSpace(e.Narration),
		})
	}
	return in, nil
}

type reverseRequest struct {
	Date string `json:"date"`
}

type transferRequest struct {
	ProductID    int64           `json:"product_id"`
	FromGodownID int64           `json:"from_godown_id"`
	ToGodownID   int64           `json:"to_godown_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Thaan        decimal.Decimal `json:"thaan"`
	Reference    string          `json:"reference"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
}

func (req transferRequest) input(key string) (TransferRequest, error) {
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		return TransferRequest{}, err
	}
	return TransferRequest{
		TransferInput: inventory.TransferInput{
			ProductID:    req.ProductID,
			FromGodownID: req.FromGodownID,
			ToGodownID:   req.ToGodownID,
			Quantity:     req.Quantity,
			Thaan:        req.Thaan,
			Reference:    strings.TrimSpace(req.Reference),
			Description:  strings.TrimSpace(req.Description),
			Date:         date,
		},
		IdempotencyKey: key,
	}, nil
}

type ledgerAccountRequest struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	GroupID        int64           `json:"group_id"`
	BranchID       int64           `json:"branch_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Date           string          `json:"date"`
}

func (req ledgerAccountRequest) input() (LedgerAccountInput, error) {
	lt, err := chart.ParseLedgerType(req.Type)
	if err != nil {
		return LedgerAccountInput{}, err
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		return LedgerAccountInput{}, err
	}
	return LedgerAccountInput{
		Name:           strings.TrimSpace(req.Name),
		Type:           lt,
		GroupID:        req.GroupID,
		BranchID:       req.BranchID,
		OpeningBalance: req.OpeningBalance,
		Date:           date,
	}, nil
}
