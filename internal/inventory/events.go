package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicStockMoved is the outbox topic of committed stock movements.
const TopicStockMoved = "inventory.stock.moved"

// StockMovedEvent represents a committed movement ready for downstream consumers.
type StockMovedEvent struct {
	ProductID  int64           `json:"product_id"`
	GodownID   int64           `json:"godown_id"`
	Type       TransactionType `json:"type"`
	Delta      decimal.Decimal `json:"delta"`
	ThaanDelta decimal.Decimal `json:"thaan_delta"`
	Quantity   decimal.Decimal `json:"quantity"`
	Thaan      decimal.Decimal `json:"thaan"`
	Reference  string          `json:"reference"`
	InvoiceID  *int64          `json:"invoice_id,omitempty"`
	PostedAt   time.Time       `json:"posted_at"`
}

// NewStockMovedEvent derives the event of an entry.
func NewStockMovedEvent(e ItemLedgerEntry) StockMovedEvent {
	return StockMovedEvent{
		ProductID:  e.ProductID,
		GodownID:   e.GodownID,
		Type:       e.Type,
		Delta:      e.QuantityIn.Sub(e.QuantityOut),
		ThaanDelta: e.ThaanIn.Sub(e.ThaanOut),
		Quantity:   e.Quantity(),
		Thaan:      e.Thaan(),
		Reference:  e.Reference,
		InvoiceID:  e.InvoiceID,
		PostedAt:   e.CreatedAt,
	}
}
