package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// Tx is one unit of work. It implements the transactional repository of every
// package so a posting sees a single consistent state.
type Tx struct {
	st *state
}

// Chart

func (t *Tx) GetGroup(_ context.Context, id int64) (chart.AccountGroup, error) {
	g, ok := t.st.groups[id]
	if !ok || !g.IsActive {
		return chart.AccountGroup{}, chart.ErrGroupNotFound
	}
	return g, nil
}

func (t *Tx) GetGroupForUpdate(ctx context.Context, id int64) (chart.AccountGroup, error) {
	return t.GetGroup(ctx, id)
}

func (t *Tx) ListGroups(_ context.Context) ([]chart.AccountGroup, error) {
	var out []chart.AccountGroup
	for _, id := range sortedKeys(t.st.groups) {
		if g := t.st.groups[id]; g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (t *Tx) ListChildren(_ context.Context, parentID *int64) ([]chart.Child, error) {
	var out []chart.Child
	for _, id := range sortedKeys(t.st.groups) {
		g := t.st.groups[id]
		if !g.IsActive || !sameParent(g.ParentID, parentID) {
			continue
		}
		out = append(out, chart.Child{Kind: chart.ChildGroup, ID: g.ID, Name: g.Name, Code: g.Code})
	}
	if parentID == nil {
		return out, nil
	}
	for _, id := range sortedKeys(t.st.ledgers) {
		l := t.st.ledgers[id]
		if !l.IsActive || l.GroupID != *parentID {
			continue
		}
		out = append(out, chart.Child{Kind: chart.ChildLedger, ID: l.ID, Name: l.Name, Code: l.Code, BranchID: l.BranchID})
	}
	return out, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t *Tx) InsertGroup(_ context.Context, g chart.AccountGroup) (chart.AccountGroup, error) {
	g.ID = t.st.nextID("account_groups")
	g.IsActive = true
	g.UpdatedAt = g.CreatedAt
	if g.ParentID != nil {
		parent := *g.ParentID
		g.ParentID = &parent
	}
	t.st.groups[g.ID] = g
	return g, nil
}

func (t *Tx) CountActiveChildren(ctx context.Context, groupID int64) (int, error) {
	children, err := t.ListChildren(ctx, &groupID)
	return len(children), err
}

func (t *Tx) DeactivateGroup(_ context.Context, id int64, at time.Time) error {
	g, ok := t.st.groups[id]
	if !ok || !g.IsActive {
		return chart.ErrGroupNotFound
	}
	g.IsActive, g.UpdatedAt = false, at
	t.st.groups[id] = g
	return nil
}

func (t *Tx) UpdateGroupParent(_ context.Context, id int64, parentID *int64, at time.Time) error {
	g, ok := t.st.groups[id]
	if !ok || !g.IsActive {
		return chart.ErrGroupNotFound
	}
	if parentID != nil {
		parent := *parentID
		parentID = &parent
	}
	g.ParentID, g.UpdatedAt = parentID, at
	t.st.groups[id] = g
	return nil
}

func (t *Tx) FindGroupByNature(_ context.Context, nature chart.Nature) (chart.AccountGroup, error) {
	var found *chart.AccountGroup
	for _, id := range sortedKeys(t.st.groups) {
		g := t.st.groups[id]
		if !g.IsActive || g.Nature != nature {
			continue
		}
		if g.ParentID == nil {
			return g, nil
		}
		if found == nil {
			found = &g
		}
	}
	if found == nil {
		return chart.AccountGroup{}, chart.ErrGroupNotFound
	}
	return *found, nil
}

func (t *Tx) NextCodeSuffix(_ context.Context, scope string, floor int) (int, error) {
	last, ok := t.st.codes[scope]
	if !ok || floor > last {
		last = floor
	}
	last++
	t.st.codes[scope] = last
	return last, nil
}

func (t *Tx) RewriteCodePrefix(_ context.Context, oldPrefix, newPrefix string, at time.Time) error {
	for id, g := range t.st.groups {
		if g.Code == oldPrefix || strings.HasPrefix(g.Code, oldPrefix+".") {
			g.Code = newPrefix + g.Code[len(oldPrefix):]
			g.UpdatedAt = at
			t.st.groups[id] = g
		}
	}
	for id, l := range t.st.ledgers {
		if strings.HasPrefix(l.Code, oldPrefix+".") {
			l.Code = newPrefix + l.Code[len(oldPrefix):]
			l.UpdatedAt = at
			t.st.ledgers[id] = l
		}
	}
	return nil
}

func (t *Tx) InsertLedger(_ context.Context, l chart.Ledger) (chart.Ledger, error) {
	l.ID = t.st.nextID("ledgers")
	l.IsActive = true
	l.UpdatedAt = l.CreatedAt
	t.st.ledgers[l.ID] = l
	return t.withNature(l), nil
}

// withNature fills the nature from the owning group as the SQL join does.
func (t *Tx) withNature(l chart.Ledger) chart.Ledger {
	if g, ok := t.st.groups[l.GroupID]; ok {
		l.Nature = g.Nature
	}
	return l
}

func (t *Tx) GetLedger(_ context.Context, id int64) (chart.Ledger, error) {
	l, ok := t.st.ledgers[id]
	if !ok || !l.IsActive {
		return chart.Ledger{}, chart.ErrLedgerNotFound
	}
	return t.withNature(l), nil
}

func (t *Tx) GetLedgerForUpdate(ctx context.Context, id int64) (chart.Ledger, error) {
	return t.GetLedger(ctx, id)
}

func (t *Tx) ListLedgers(_ context.Context, filter chart.LedgerFilter) ([]chart.Ledger, error) {
	var out []chart.Ledger
	for _, l := range t.st.ledgers {
		switch {
		case !l.IsActive:
		case filter.BranchID > 0 && l.BranchID != filter.BranchID:
		case filter.GroupID > 0 && l.GroupID != filter.GroupID:
		case filter.Type != "" && l.Type != filter.Type:
		default:
			out = append(out, t.withNature(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *Tx) FindLedgerByType(_ context.Context, branchID int64, lt chart.LedgerType) (chart.Ledger, error) {
	for _, id := range sortedKeys(t.st.ledgers) {
		l := t.st.ledgers[id]
		if l.IsActive && l.BranchID == branchID && l.Type == lt {
			return t.withNature(l), nil
		}
	}
	return chart.Ledger{}, chart.ErrLedgerNotFound
}

func (t *Tx) CountLedgerEntries(_ context.Context, ledgerID int64) (int, error) {
	n := 0
	for _, e := range t.st.entries {
		if e.LedgerID == ledgerID {
			n++
		}
	}
	return n, nil
}

func (t *Tx) DeactivateLedger(_ context.Context, id int64, at time.Time) error {
	l, ok := t.st.ledgers[id]
	if !ok || !l.IsActive {
		return chart.ErrLedgerNotFound
	}
	l.IsActive, l.UpdatedAt = false, at
	t.st.ledgers[id] = l
	return nil
}

// Journal

func (t *Tx) FindOpenBook(_ context.Context, branchID int64, date time.Time) (journal.Book, error) {
	var found *journal.Book
	for _, b := range t.st.books {
		if b.BranchID != branchID || b.Status != shared.BookStatusOpen || !b.Covers(date) {
			continue
		}
		if found == nil || b.StartDate.Before(found.StartDate) {
			b := b
			found = &b
		}
	}
	if found == nil {
		return journal.Book{}, journal.ErrJournalBookNotFound
	}
	return *found, nil
}

func (t *Tx) InsertBook(_ context.Context, b journal.Book) (journal.Book, error) {
	b.ID = t.st.nextID("journal_books")
	b.UpdatedAt = b.CreatedAt
	t.st.books[b.ID] = b
	return b, nil
}

func (t *Tx) GetBookForUpdate(_ context.Context, id int64) (journal.Book, error) {
	b, ok := t.st.books[id]
	if !ok {
		return journal.Book{}, journal.ErrBookNotFound
	}
	return b, nil
}

func (t *Tx) UpdateBookStatus(_ context.Context, id int64, status string, at time.Time) error {
	b, ok := t.st.books[id]
	if !ok {
		return journal.ErrBookNotFound
	}
	b.Status, b.UpdatedAt = status, at
	t.st.books[id] = b
	return nil
}

func (t *Tx) ListBooks(_ context.Context, branchID int64) ([]journal.Book, error) {
	var out []journal.Book
	for _, b := range t.st.books {
		if b.BranchID == branchID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (t *Tx) InsertEntries(_ context.Context, entries []journal.Entry) ([]journal.Entry, error) {
	out := make([]journal.Entry, 0, len(entries))
	for _, e := range entries {
		e.ID = t.st.nextID("journal_entries")
		e.Date = truncateDay(e.Date)
		e.IsActive = true
		t.st.entries = append(t.st.entries, e)
		out = append(out, e)
	}
	return out, nil
}

func (t *Tx) UpdateLedgerBalance(_ context.Context, ledgerID int64, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	l, ok := t.st.ledgers[ledgerID]
	if !ok {
		return decimal.Decimal{}, journal.ErrLedgerNotFound
	}
	l.Balance = l.Balance.Add(delta)
	l.UpdatedAt = at
	t.st.ledgers[ledgerID] = l
	return l.Balance, nil
}

func (t *Tx) LinkSource(_ context.Context, module string, ref uuid.UUID, reference string) error {
	key := module + ":" + ref.String()
	if _, ok := t.st.links[key]; ok {
		return journal.ErrSourceConflict
	}
	t.st.links[key] = reference
	return nil
}

func (t *Tx) ListEntriesByReference(_ context.Context, reference string) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range t.st.entries {
		if e.IsActive && e.Reference == reference {
			out = append(out, e)
		}
	}
	return out, nil
}

// Reports

func (t *Tx) ListLedgerEntries(_ context.Context, ledgerID int64) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range t.st.entries {
		if e.IsActive && e.LedgerID == ledgerID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) LedgerActivity(_ context.Context, branchID int64, from, to time.Time) ([]reports.Activity, error) {
	from, to = truncateDay(from), truncateDay(to)
	acc := map[int64]*reports.Activity{}
	for _, e := range t.st.entries {
		l, ok := t.st.ledgers[e.LedgerID]
		if !ok || l.BranchID != branchID || !e.IsActive || e.IsOpening {
			continue
		}
		day := truncateDay(e.Date)
		if day.After(to) {
			continue
		}
		a, ok := acc[e.LedgerID]
		if !ok {
			a = &reports.Activity{LedgerID: e.LedgerID}
			acc[e.LedgerID] = a
		}
		prior := day.Before(from)
		switch {
		case prior && e.Type == journal.Debit:
			a.PriorDebit = a.PriorDebit.Add(e.Amount)
		case prior:
			a.PriorCredit = a.PriorCredit.Add(e.Amount)
		case e.Type == journal.Debit:
			a.Debit = a.Debit.Add(e.Amount)
		default:
			a.Credit = a.Credit.Add(e.Amount)
		}
	}
	out := make([]reports.Activity, 0, len(acc))
	for _, id := range sortedKeys(acc) {
		out = append(out, *acc[id])
	}
	return out, nil
}
