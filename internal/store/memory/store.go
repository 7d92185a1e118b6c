// Package memory is an in-process store for the whole ledger core. Each
// transaction works on a copy of the state under one mutex and replaces the
// committed state only when it succeeds, so a failed unit of work leaves
// nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/posting"
)

type locationKey struct {
	productID int64
	godownID  int64
}

type documentKey struct {
	branchID int64
	docType  string
}

type state struct {
	seq map[string]int64

	groups  map[int64]chart.AccountGroup
	ledgers map[int64]chart.Ledger
	codes   map[string]int

	books   map[int64]journal.Book
	entries []journal.Entry
	links   map[string]string

	products  map[int64]inventory.Product
	godowns   map[int64]inventory.Godown
	locations map[locationKey]inventory.Location
	items     []inventory.ItemLedgerEntry

	documents    map[documentKey]int64
	invoices     map[int64]posting.Invoice
	invoiceItems []posting.InvoiceItem
	vouchers     map[int64]posting.Voucher
	outbox       []events.Event
}

func newState() *state {
	return &state{
		seq:       map[string]int64{},
		groups:    map[int64]chart.AccountGroup{},
		ledgers:   map[int64]chart.Ledger{},
		codes:     map[string]int{},
		books:     map[int64]journal.Book{},
		links:     map[string]string{},
		products:  map[int64]inventory.Product{},
		godowns:   map[int64]inventory.Godown{},
		locations: map[locationKey]inventory.Location{},
		documents: map[documentKey]int64{},
		invoices:  map[int64]posting.Invoice{},
		vouchers:  map[int64]posting.Voucher{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:          cloneMap(s.seq),
		groups:       cloneMap(s.groups),
		ledgers:      cloneMap(s.ledgers),
		codes:        cloneMap(s.codes),
		books:        cloneMap(s.books),
		entries:      append([]journal.Entry(nil), s.entries...),
		links:        cloneMap(s.links),
		products:     cloneMap(s.products),
		godowns:      cloneMap(s.godowns),
		locations:    cloneMap(s.locations),
		items:        append([]inventory.ItemLedgerEntry(nil), s.items...),
		documents:    cloneMap(s.documents),
		invoices:     cloneMap(s.invoices),
		invoiceItems: append([]posting.InvoiceItem(nil), s.invoiceItems...),
		vouchers:     cloneMap(s.vouchers),
		outbox:       append([]events.Event(nil), s.outbox...),
	}
}

func (s *state) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store holds the committed state.
type Store struct {
	mu sync.Mutex
	st *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// WithTx runs fn against a private copy of the state and commits it when fn
// succeeds. Transactions are serialized.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(ctx, &Tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Chart adapts the store to chart.RepositoryPort.
func (s *Store) Chart() chart.RepositoryPort { return chartRepo{s} }

// Journal adapts the store to journal.RepositoryPort.
func (s *Store) Journal() journal.RepositoryPort { return journalRepo{s} }

// Inventory adapts the store to inventory.RepositoryPort.
func (s *Store) Inventory() inventory.RepositoryPort { return inventoryRepo{s} }

// Posting adapts the store to posting.RepositoryPort.
func (s *Store) Posting() posting.RepositoryPort { return postingRepo{s} }

// Reports adapts the store to reports.RepositoryPort.
func (s *Store) Reports() reports.RepositoryPort { return reportsRepo{s} }

type chartRepo struct{ s *Store }

func (r chartRepo) WithTx(ctx context.Context, fn func(context.Context, chart.TxRepository) error) error {
	return r.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

type journalRepo struct{ s *Store }

func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journal.TxRepository) error) error {
	return r.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

type inventoryRepo struct{ s *Store }

func (r inventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r inventoryRepo) WithReadTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.WithTx(ctx, fn)
}

type postingRepo struct{ s *Store }

func (r postingRepo) WithTx(ctx context.Context, fn func(context.Context, posting.TxRepository) error) error {
	return r.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

type reportsRepo struct{ s *Store }

func (r reportsRepo) WithTx(ctx context.Context, fn func(context.Context, reports.TxRepository) error) error {
	return r.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

// Pending implements events.Store.
func (s *Store) Pending(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, ev := range s.st.outbox {
		if ev.PublishedAt != nil {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished implements events.Store.
func (s *Store) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i, ev := range s.st.outbox {
		if _, ok := want[ev.ID]; ok {
			stamp := at
			s.st.outbox[i].PublishedAt = &stamp
		}
	}
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
