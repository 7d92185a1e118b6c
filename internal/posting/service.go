package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// TxRepository is everything one posting touches inside its transaction.
type TxRepository interface {
	journal.TxRepository
	inventory.TxRepository

	NextDocumentNumber(ctx context.Context, branchID int64, docType string) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertInvoiceItems(ctx context.Context, items []InvoiceItem) ([]InvoiceItem, error)
	InsertVoucher(ctx context.Context, v Voucher) (Voucher, error)
	GetVoucherByNumber(ctx context.Context, number string) (Voucher, error)
	InsertOutboxEvent(ctx context.Context, ev events.Event) error
}

// RepositoryPort opens posting transactions.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records committed postings.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort remembers request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module, fingerprint string) error
	Delete(ctx context.Context, key, module string) error
}

// CachePort invalidates cached reports after a commit.
type CachePort interface {
	Bump(ctx context.Context) error
}

// MetricsPort counts postings by kind and outcome.
type MetricsPort interface {
	ObservePosting(kind, outcome string, elapsed time.Duration)
}

// Service is the posting orchestrator.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	idem    IdempotencyPort
	cache   CachePort
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// Config groups optional collaborators.
type Config struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Cache       CachePort
	Metrics     MetricsPort
	Logger      *slog.Logger
}

// NewService builds the orchestrator.
func NewService(repo RepositoryPort, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		audit:   cfg.Audit,
		idem:    cfg.Idempotency,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  logger.With(slog.String("component", "posting")),
		now:     time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoice posts an invoice: its stock movements, its balanced journal
// and the document itself, all or nothing.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (InvoiceResult, error) {
	u := s.begin("invoice", string(in.Type))
	if err := in.Validate(); err != nil {
		return InvoiceResult{}, u.fail(err)
	}
	totals := ComputeTotals(in)
	if !totals.GrandTotal.IsPositive() {
		return InvoiceResult{}, u.fail(fmt.Errorf("%w: %s", ErrNonPositiveTotal, totals.GrandTotal.StringFixed(shared.MoneyPlaces)))
	}
	release, err := s.claim(ctx, "posting.invoice", in.IdempotencyKey, in)
	if err != nil {
		return InvoiceResult{}, u.fail(err)
	}

	var result InvoiceResult
	var outbox []events.Event
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u.restart()
		now := s.now()
		seq, err := tx.NextDocumentNumber(ctx, in.BranchID, in.Type.Prefix())
		if err != nil {
			return err
		}
		party, err := tx.GetLedger(ctx, in.LedgerID)
		if err != nil {
			return err
		}
		if party.BranchID != in.BranchID {
			return fmt.Errorf("%w: counterparty ledger %d", journal.ErrBranchMismatch, party.ID)
		}
		legs, err := invoiceLegs(ctx, tx, in, totals, now)
		if err != nil {
			return err
		}
		invoice, err := tx.InsertInvoice(ctx, Invoice{
			Number:     DocumentNumber(in.Type.Prefix(), in.BranchID, seq),
			BranchID:   in.BranchID,
			Type:       in.Type,
			LedgerID:   party.ID,
			Date:       in.Date,
			Subtotal:   totals.Subtotal,
			Discount:   totals.Discount,
			Cartage:    totals.Cartage,
			Tax:        totals.Tax,
			GrandTotal: totals.GrandTotal,
			Narration:  in.Narration,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		u.advance(StateValidated)

		for _, id := range productIDs(in.Items) {
			if _, err := tx.GetProductForUpdate(ctx, id); err != nil {
				return err
			}
		}
		items := make([]InvoiceItem, 0, len(in.Items))
		outbox = outbox[:0]
		for _, item := range in.Items {
			rec := inventory.RecordInput{
				ProductID:   item.ProductID,
				GodownID:    item.GodownID,
				Type:        in.Type.StockType(),
				UnitPrice:   item.Rate,
				Reference:   invoice.Number,
				InvoiceID:   &invoice.ID,
				Description: fmt.Sprintf("%s %s", in.Type, invoice.Number),
				Date:        in.Date,
			}
			if in.Type.Outward() {
				rec.QuantityOut, rec.ThaanOut = item.Quantity, item.Thaan
			} else {
				rec.QuantityIn, rec.ThaanIn = item.Quantity, item.Thaan
			}
			entry, err := inventory.Record(ctx, tx, rec, now)
			if err != nil {
				return err
			}
			if err := appendEvent(&outbox, inventory.TopicStockMoved, invoice.Number, inventory.NewStockMovedEvent(entry), now); err != nil {
				return err
			}
			items = append(items, InvoiceItem{
				InvoiceID: invoice.ID,
				ProductID: item.ProductID,
				GodownID:  item.GodownID,
				Quantity:  shared.Quantity(item.Quantity),
				Thaan:     shared.Quantity(item.Thaan),
				Rate:      shared.Money(item.Rate),
				Amount:    LineAmount(item),
			})
		}
		u.advance(StateStockPosted)

		lines := invoiceLines(in, party, totals, legs, invoice.Number)
		u.advance(StateAccountPosted)

		if _, err := journal.Post(ctx, tx, journal.PostingInput{
			BranchID:     in.BranchID,
			Date:         in.Date,
			Reference:    invoice.Number,
			SourceModule: "invoice",
			SourceID:     journal.SourceID("invoice", invoice.Number),
			Lines:        lines,
		}, now); err != nil {
			return err
		}
		u.advance(StateJournalPosted)

		if items, err = tx.InsertInvoiceItems(ctx, items); err != nil {
			return err
		}
		if err := appendEvent(&outbox, TopicInvoicePosted, invoice.Number, InvoicePostedEvent{
			InvoiceID:  invoice.ID,
			Number:     invoice.Number,
			Type:       invoice.Type,
			BranchID:   invoice.BranchID,
			LedgerID:   invoice.LedgerID,
			GrandTotal: invoice.GrandTotal,
			PostedAt:   now,
		}, now); err != nil {
			return err
		}
		if err := insertOutbox(ctx, tx, outbox); err != nil {
			return err
		}
		result = InvoiceResult{Invoice: invoice, Items: items, TotalAmount: totals.Subtotal, GrandTotal: totals.GrandTotal}
		return nil
	})
	if err != nil {
		release()
		return InvoiceResult{}, u.fail(err)
	}
	u.commit()
	s.afterCommit(ctx, "posting.invoice.create", "invoice", result.Invoice.ID, map[string]any{
		"number":      result.Invoice.Number,
		"type":        result.Invoice.Type,
		"grand_total": result.GrandTotal.StringFixed(shared.MoneyPlaces),
	})
	return result, nil
}

// invoiceLeg is one contra leg of an invoice journal.
type invoiceLeg struct {
	ledgerID int64
	side     journal.EntryType
	amount   decimal.Decimal
}

// invoiceLegs resolves the trade, discount, cartage and tax ledgers of an
// invoice. Creating a missing system ledger locks chart rows, so this runs
// before any product is locked.
func invoiceLegs(ctx context.Context, tx TxRepository, in InvoiceInput, totals Totals, now time.Time) ([]invoiceLeg, error) {
	side := in.Type.CounterpartySide()
	wanted := []struct {
		ledger chart.LedgerType
		side   journal.EntryType
		amount decimal.Decimal
	}{
		{in.Type.TradeLedger(), side.Opposite(), totals.Subtotal},
		{in.Type.DiscountLedger(), side, totals.Discount},
		{chart.LedgerCartage, side.Opposite(), totals.Cartage},
		{chart.LedgerDutiesAndTaxes, side.Opposite(), totals.Tax},
	}
	legs := make([]invoiceLeg, 0, len(wanted))
	for _, w := range wanted {
		if w.amount.IsZero() {
			continue
		}
		ledger, err := journal.EnsureSystemLedger(ctx, tx, in.BranchID, w.ledger, now)
		if err != nil {
			return nil, err
		}
		legs = append(legs, invoiceLeg{ledgerID: ledger.ID, side: w.side, amount: w.amount})
	}
	return legs, nil
}

// invoiceLines builds the balanced journal of an invoice. The counterparty
// takes the grand total, the discount sits on the same side, and the trade,
// cartage and tax ledgers take the other side.
func invoiceLines(in InvoiceInput, party chart.Ledger, totals Totals, legs []invoiceLeg, number string) []journal.Line {
	narration := fmt.Sprintf("%s %s", in.Type, number)
	lines := []journal.Line{{LedgerID: party.ID, Type: in.Type.CounterpartySide(), Amount: totals.GrandTotal, Narration: narration}}
	for _, leg := range legs {
		lines = append(lines, journal.Line{LedgerID: leg.ledgerID, Type: leg.side, Amount: leg.amount, Narration: narration})
	}
	return lines
}

// CreateVoucher posts a payment, receipt, journal or contra voucher.
func (s *Service) CreateVoucher(ctx context.Context, in VoucherInput) (VoucherResult, error) {
	u := s.begin("voucher", string(in.Type))
	if err := in.Validate(); err != nil {
		return VoucherResult{}, u.fail(err)
	}
	release, err := s.claim(ctx, "posting.voucher", in.IdempotencyKey, in)
	if err != nil {
		return VoucherResult{}, u.fail(err)
	}

	var result VoucherResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u.restart()
		now := s.now()
		ledgers := make(map[int64]chart.Ledger, len(in.Entries))
		for _, e := range in.Entries {
			if _, ok := ledgers[e.LedgerID]; ok {
				continue
			}
			ledger, err := tx.GetLedger(ctx, e.LedgerID)
			if err != nil {
				return err
			}
			ledgers[e.LedgerID] = ledger
		}
		if err := checkCashRules(in, ledgers); err != nil {
			return err
		}
		u.advance(StateValidated)

		seq, err := tx.NextDocumentNumber(ctx, in.BranchID, in.Type.Prefix())
		if err != nil {
			return err
		}
		number := DocumentNumber(in.Type.Prefix(), in.BranchID, seq)
		lines := make([]journal.Line, 0, len(in.Entries))
		for _, e := range in.Entries {
			narration := e.Narration
			if narration == "" {
				narration = in.Narration
			}
			lines = append(lines, journal.Line{LedgerID: e.LedgerID, Type: e.Type, Amount: e.Amount, Narration: narration})
		}
		posting, err := journal.Post(ctx, tx, journal.PostingInput{
			BranchID:     in.BranchID,
			Date:         in.Date,
			Reference:    number,
			SourceModule: "voucher",
			SourceID:     journal.SourceID("voucher", number),
			Lines:        lines,
		}, now)
		if err != nil {
			return err
		}
		u.advance(StateJournalPosted)

		debit, _ := journal.Totals(lines)
		voucher, err := tx.InsertVoucher(ctx, Voucher{
			Number:    number,
			BranchID:  in.BranchID,
			Type:      in.Type,
			Date:      in.Date,
			Narration: in.Narration,
			Amount:    debit,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		var outbox []events.Event
		if err := appendEvent(&outbox, TopicVoucherPosted, number, VoucherPostedEvent{
			VoucherID: voucher.ID,
			Number:    number,
			Type:      voucher.Type,
			BranchID:  voucher.BranchID,
			Amount:    voucher.Amount,
			PostedAt:  now,
		}, now); err != nil {
			return err
		}
		if err := insertOutbox(ctx, tx, outbox); err != nil {
			return err
		}
		result = VoucherResult{Voucher: voucher, Entries: posting.Entries}
		return nil
	})
	if err != nil {
		release()
		return VoucherResult{}, u.fail(err)
	}
	u.commit()
	s.afterCommit(ctx, "posting.voucher.create", "voucher", result.Voucher.ID, map[string]any{
		"number": result.Voucher.Number,
		"type":   result.Voucher.Type,
		"amount": result.Voucher.Amount.StringFixed(shared.MoneyPlaces),
	})
	return result, nil
}

func checkCashRules(in VoucherInput, ledgers map[int64]chart.Ledger) error {
	switch in.Type {
	case VoucherPayment, VoucherReceipt:
		want := journal.Credit
		if in.Type == VoucherReceipt {
			want = journal.Debit
		}
		for _, e := range in.Entries {
			if e.Type == want && ledgers[e.LedgerID].Type.IsCashOrBank() {
				return nil
			}
		}
		return fmt.Errorf("%w: %s needs one on the %s side", ErrCashBankRequired, in.Type, want)
	case VoucherContra:
		for _, e := range in.Entries {
			if l := ledgers[e.LedgerID]; !l.Type.IsCashOrBank() {
				return fmt.Errorf("%w: %q is %s", ErrContraNonCash, l.Name, l.Type)
			}
		}
	}
	return nil
}

// ReverseVoucher posts the mirror image of a voucher as a new journal
// voucher. A voucher can be reversed once.
func (s *Service) ReverseVoucher(ctx context.Context, number string, date time.Time) (ReversalResult, error) {
	u := s.begin("voucher", "REVERSAL")
	var result ReversalResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u.restart()
		now := s.now()
		original, err := tx.GetVoucherByNumber(ctx, number)
		if err != nil {
			return err
		}
		if date.IsZero() {
			date = now
		}
		u.advance(StateValidated)
		seq, err := tx.NextDocumentNumber(ctx, original.BranchID, VoucherJournal.Prefix())
		if err != nil {
			return err
		}
		reversal := DocumentNumber(VoucherJournal.Prefix(), original.BranchID, seq)
		posting, err := journal.Reverse(ctx, tx, original.Number, reversal, date, now)
		if err != nil {
			return err
		}
		u.advance(StateJournalPosted)
		voucher, err := tx.InsertVoucher(ctx, Voucher{
			Number:    reversal,
			BranchID:  original.BranchID,
			Type:      VoucherJournal,
			Date:      date,
			Narration: "Reversal of " + original.Number,
			Amount:    original.Amount,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		result = ReversalResult{Voucher: voucher, Posting: posting}
		return nil
	})
	if err != nil {
		return ReversalResult{}, u.fail(err)
	}
	u.commit()
	s.afterCommit(ctx, "posting.voucher.reverse", "voucher", result.Voucher.ID, map[string]any{"reverses": number})
	return result, nil
}

// TransferStock moves stock between godowns in one transaction.
func (s *Service) TransferStock(ctx context.Context, req TransferRequest) (TransferResult, error) {
	u := s.begin("transfer", string(inventory.TransactionTransfer))
	if err := req.Validate(); err != nil {
		return TransferResult{}, u.fail(err)
	}
	release, err := s.claim(ctx, "posting.transfer", req.IdempotencyKey, req.TransferInput)
	if err != nil {
		return TransferResult{}, u.fail(err)
	}
	var result TransferResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u.restart()
		now := s.now()
		in := req.TransferInput
		if in.Reference == "" {
			seq, err := tx.NextDocumentNumber(ctx, 0, "TRF")
			if err != nil {
				return err
			}
			in.Reference = fmt.Sprintf("TRF-%06d", seq)
		}
		out, inward, err := inventory.Transfer(ctx, tx, in, now)
		if err != nil {
			return err
		}
		u.advance(StateStockPosted)
		var outbox []events.Event
		for _, e := range []inventory.ItemLedgerEntry{out, inward} {
			if err := appendEvent(&outbox, inventory.TopicStockMoved, in.Reference, inventory.NewStockMovedEvent(e), now); err != nil {
				return err
			}
		}
		if err := insertOutbox(ctx, tx, outbox); err != nil {
			return err
		}
		result = TransferResult{Reference: in.Reference, Out: out, In: inward}
		return nil
	})
	if err != nil {
		release()
		return TransferResult{}, u.fail(err)
	}
	u.commit()
	s.afterCommit(ctx, "posting.stock.transfer", "item_ledger_entry", result.Out.ID, map[string]any{
		"reference":  result.Reference,
		"product_id": result.Out.ProductID,
		"from":       result.Out.GodownID,
		"to":         result.In.GodownID,
		"quantity":   result.Out.QuantityOut.String(),
	})
	return result, nil
}

// CreateLedgerAccount creates a ledger and posts its opening balance against
// Owner's Capital in the same transaction.
func (s *Service) CreateLedgerAccount(ctx context.Context, in LedgerAccountInput) (LedgerAccountResult, error) {
	u := s.begin("ledger", string(in.Type))
	if err := shared.ValidateStruct(in); err != nil {
		return LedgerAccountResult{}, u.fail(err)
	}
	if in.Type == chart.LedgerOwnerCapital && !shared.Money(in.OpeningBalance).IsZero() {
		return LedgerAccountResult{}, u.fail(journal.ErrCapitalOpening)
	}
	var result LedgerAccountResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u.restart()
		now := s.now()
		ledger, err := chart.AddLedger(ctx, tx, chart.LedgerInput{
			Name:           in.Name,
			Type:           in.Type,
			GroupID:        in.GroupID,
			BranchID:       in.BranchID,
			OpeningBalance: in.OpeningBalance,
		}, now)
		if err != nil {
			return err
		}
		u.advance(StateAccountPosted)
		result = LedgerAccountResult{Ledger: ledger}
		if ledger.OpeningBalance.IsZero() {
			return nil
		}
		date := in.Date
		if date.IsZero() {
			date = now
		}
		opening, err := journal.PostOpeningBalance(ctx, tx, ledger, date, now)
		if err != nil {
			return err
		}
		u.advance(StateJournalPosted)
		result.Opening = &opening
		return nil
	})
	if err != nil {
		return LedgerAccountResult{}, u.fail(err)
	}
	u.commit()
	s.afterCommit(ctx, "posting.ledger.create", "ledger", result.Ledger.ID, map[string]any{
		"code":            result.Ledger.Code,
		"type":            result.Ledger.Type,
		"opening_balance": result.Ledger.OpeningBalance.StringFixed(shared.MoneyPlaces),
	})
	return result, nil
}

// claim registers an idempotency key. The returned func forgets it again when
// the transaction fails so the request can be retried.
func (s *Service) claim(ctx context.Context, module, key string, payload any) (func(), error) {
	if key == "" || s.idem == nil {
		return func() {}, nil
	}
	fingerprint, err := shared.Fingerprint(payload)
	if err != nil {
		return nil, err
	}
	if err := s.idem.CheckAndInsert(ctx, key, module, fingerprint); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idem.Delete(context.WithoutCancel(ctx), key, module); err != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) afterCommit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   action,
			Entity:   entity,
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
			At:       s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump failed", slog.Any("error", err))
		}
	}
}

func productIDs(items []ItemInput) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func appendEvent(out *[]events.Event, topic, key string, payload any, at time.Time) error {
	ev, err := events.New(topic, key, payload, at)
	if err != nil {
		return err
	}
	*out = append(*out, ev)
	return nil
}

func insertOutbox(ctx context.Context, tx TxRepository, evs []events.Event) error {
	for _, ev := range evs {
		if err := tx.InsertOutboxEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// IsBusinessError reports whether err is a caller error rather than a fault.
func IsBusinessError(err error) bool {
	return errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrConflict) ||
		errors.Is(err, shared.ErrInsufficientStock) ||
		errors.Is(err, shared.ErrInvalidTransfer)
}
