package chart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// TxRepository exposes the transactional chart operations.
type TxRepository interface {
	GetGroup(ctx context.Context, id int64) (AccountGroup, error)
	GetGroupForUpdate(ctx context.Context, id int64) (AccountGroup, error)
	ListGroups(ctx context.Context) ([]AccountGroup, error)
	ListChildren(ctx context.Context, parentID *int64) ([]Child, error)
	InsertGroup(ctx context.Context, g AccountGroup) (AccountGroup, error)
	CountActiveChildren(ctx context.Context, groupID int64) (int, error)
	DeactivateGroup(ctx context.Context, id int64, at time.Time) error
	UpdateGroupParent(ctx context.Context, id int64, parentID *int64, at time.Time) error
	FindGroupByNature(ctx context.Context, nature Nature) (AccountGroup, error)

	NextCodeSuffix(ctx context.Context, scope string, floor int) (int, error)
	RewriteCodePrefix(ctx context.Context, oldPrefix, newPrefix string, at time.Time) error

	InsertLedger(ctx context.Context, l Ledger) (Ledger, error)
	GetLedger(ctx context.Context, id int64) (Ledger, error)
	GetLedgerForUpdate(ctx context.Context, id int64) (Ledger, error)
	ListLedgers(ctx context.Context, filter LedgerFilter) ([]Ledger, error)
	FindLedgerByType(ctx context.Context, branchID int64, t LedgerType) (Ledger, error)
	CountLedgerEntries(ctx context.Context, ledgerID int64) (int, error)
	DeactivateLedger(ctx context.Context, id int64, at time.Time) error
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records chart changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AddGroup creates a group inside an open transaction. A child group inherits
// its parent's nature; naming a different one fails.
func AddGroup(ctx context.Context, tx TxRepository, in GroupInput, now time.Time) (AccountGroup, error) {
	if err := in.Validate(); err != nil {
		return AccountGroup{}, err
	}
	s, err := openSlot(ctx, tx, in.ParentID)
	if err != nil {
		return AccountGroup{}, err
	}
	nature := in.Nature
	if s.parent != nil {
		if nature != "" && nature != s.parent.Nature {
			return AccountGroup{}, fmt.Errorf("%w: %s under %s", ErrNatureMismatch, nature, s.parent.Nature)
		}
		nature = s.parent.Nature
	}
	if err := s.checkName(in.Name, 0, 0); err != nil {
		return AccountGroup{}, err
	}
	code, err := s.nextCode(ctx, tx)
	if err != nil {
		return AccountGroup{}, err
	}
	return tx.InsertGroup(ctx, AccountGroup{
		Name:      strings.TrimSpace(in.Name),
		Code:      code,
		Nature:    nature,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// AddLedger creates a ledger inside an open transaction. The stored balance
// starts at the opening balance; posting the opening legs is the caller's job.
func AddLedger(ctx context.Context, tx TxRepository, in LedgerInput, now time.Time) (Ledger, error) {
	if err := in.Validate(); err != nil {
		return Ledger{}, err
	}
	s, err := openSlot(ctx, tx, &in.GroupID)
	if err != nil {
		return Ledger{}, err
	}
	want, _ := in.Type.Nature()
	if want != s.parent.Nature {
		return Ledger{}, fmt.Errorf("%w: %s ledger under %s group", ErrNatureMismatch, in.Type, s.parent.Nature)
	}
	if err := s.checkName(in.Name, 0, in.BranchID); err != nil {
		return Ledger{}, err
	}
	code, err := s.nextCode(ctx, tx)
	if err != nil {
		return Ledger{}, err
	}
	opening := shared.Money(in.OpeningBalance)
	return tx.InsertLedger(ctx, Ledger{
		Name:           strings.TrimSpace(in.Name),
		Code:           code,
		Type:           in.Type,
		Nature:         want,
		OpeningBalance: opening,
		Balance:        opening,
		GroupID:        in.GroupID,
		BranchID:       in.BranchID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// Service manages the chart of accounts.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the chart service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateGroup adds a group to the chart.
func (s *Service) CreateGroup(ctx context.Context, in GroupInput) (AccountGroup, error) {
	var group AccountGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		group, err = AddGroup(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return AccountGroup{}, err
	}
	s.record(ctx, "chart.group.create", "account_group", group.ID, map[string]any{"code": group.Code, "nature": group.Nature})
	return group, nil
}

// CreateLedger adds a ledger without an opening balance. Openings need a
// balanced contra entry and go through the posting orchestrator.
func (s *Service) CreateLedger(ctx context.Context, in LedgerInput) (Ledger, error) {
	if !in.OpeningBalance.IsZero() {
		return Ledger{}, shared.NewValidationError("opening_balance", "must be posted through the ledger account endpoint")
	}
	var ledger Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ledger, err = AddLedger(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return Ledger{}, err
	}
	s.record(ctx, "chart.ledger.create", "ledger", ledger.ID, map[string]any{"code": ledger.Code, "type": ledger.Type})
	return ledger, nil
}

// MoveGroup re-parents a group and rewrites the codes of its whole subtree.
func (s *Service) MoveGroup(ctx context.Context, id int64, parentID *int64) (AccountGroup, error) {
	var moved AccountGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroupForUpdate(ctx, id)
		if err != nil {
			return err
		}
		tree, err := s.loadTree(ctx, tx)
		if err != nil {
			return err
		}
		if err := tree.Move(id, parentID); err != nil {
			return err
		}
		slot, err := openSlot(ctx, tx, parentID)
		if err != nil {
			return err
		}
		if slot.parent != nil && slot.parent.Nature != group.Nature {
			return fmt.Errorf("%w: %s group under %s", ErrNatureMismatch, group.Nature, slot.parent.Nature)
		}
		if err := slot.checkName(group.Name, group.ID, 0); err != nil {
			return err
		}
		code, err := slot.nextCode(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.UpdateGroupParent(ctx, id, parentID, now); err != nil {
			return err
		}
		if err := tx.RewriteCodePrefix(ctx, group.Code, code, now); err != nil {
			return err
		}
		moved, err = tx.GetGroup(ctx, id)
		return err
	})
	if err != nil {
		return AccountGroup{}, err
	}
	s.record(ctx, "chart.group.move", "account_group", moved.ID, map[string]any{"code": moved.Code})
	return moved, nil
}

// DeleteGroup soft-deletes a group without active children.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetGroupForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountActiveChildren(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrGroupNotEmpty
		}
		return tx.DeactivateGroup(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.record(ctx, "chart.group.delete", "account_group", id, nil)
	return nil
}

// DeleteLedger soft-deletes a ledger no journal entry references.
func (s *Service) DeleteLedger(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetLedgerForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountLedgerEntries(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrLedgerInUse
		}
		return tx.DeactivateLedger(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.record(ctx, "chart.ledger.delete", "ledger", id, nil)
	return nil
}

// LoadTree returns the active chart as an arena.
func (s *Service) LoadTree(ctx context.Context) (*Tree, error) {
	var tree *Tree
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		tree, err = s.loadTree(ctx, tx)
		return err
	})
	return tree, err
}

// ListLedgers returns active ledgers matching the filter.
func (s *Service) ListLedgers(ctx context.Context, filter LedgerFilter) ([]Ledger, error) {
	var ledgers []Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ledgers, err = tx.ListLedgers(ctx, filter)
		return err
	})
	return ledgers, err
}

// GetLedger returns one active ledger.
func (s *Service) GetLedger(ctx context.Context, id int64) (Ledger, error) {
	var ledger Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ledger, err = tx.GetLedger(ctx, id)
		return err
	})
	return ledger, err
}

func (s *Service) loadTree(ctx context.Context, tx TxRepository) (*Tree, error) {
	groups, err := tx.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	ledgers, err := tx.ListLedgers(ctx, LedgerFilter{})
	if err != nil {
		return nil, err
	}
	return NewTree(groups, ledgers)
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
