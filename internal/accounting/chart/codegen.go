package chart

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

const rootScope = "root"

func groupScope(id int64) string {
	return "group:" + strconv.FormatInt(id, 10)
}

// NextGroupCode allocates the code for a new group. A nil parent yields the
// next top-level code ("1", "2", ...); otherwise the parent's code is extended
// with the next sibling suffix. The parent row stays locked until commit.
func NextGroupCode(ctx context.Context, tx TxRepository, parentID *int64) (string, error) {
	s, err := openSlot(ctx, tx, parentID)
	if err != nil {
		return "", err
	}
	return s.nextCode(ctx, tx)
}

// NextLeafCode allocates the code for a new ledger under groupID. Groups and
// ledgers draw from the same sibling namespace.
func NextLeafCode(ctx context.Context, tx TxRepository, groupID int64) (string, error) {
	if groupID <= 0 {
		return "", shared.NewValidationError("group_id", "ledgers must belong to a group")
	}
	s, err := openSlot(ctx, tx, &groupID)
	if err != nil {
		return "", err
	}
	return s.nextCode(ctx, tx)
}

// Suffix parses the last dot-separated segment of a code.
func Suffix(code string) (int, error) {
	seg := code
	if i := strings.LastIndexByte(code, '.'); i >= 0 {
		seg = code[i+1:]
	}
	n, err := strconv.Atoi(seg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCode, code)
	}
	return n, nil
}

// slot is the locked position new children are allocated into.
type slot struct {
	parent   *AccountGroup
	children []Child
}

func openSlot(ctx context.Context, tx TxRepository, parentID *int64) (slot, error) {
	var s slot
	if parentID != nil {
		parent, err := tx.GetGroupForUpdate(ctx, *parentID)
		if err != nil {
			return slot{}, err
		}
		s.parent = &parent
	}
	children, err := tx.ListChildren(ctx, parentID)
	if err != nil {
		return slot{}, err
	}
	s.children = children
	return s, nil
}

func (s slot) scope() string {
	if s.parent == nil {
		return rootScope
	}
	return groupScope(s.parent.ID)
}

func (s slot) nextCode(ctx context.Context, tx TxRepository) (string, error) {
	floor := 0
	for _, child := range s.children {
		n, err := Suffix(child.Code)
		if err != nil {
			return "", err
		}
		if n > floor {
			floor = n
		}
	}
	next, err := tx.NextCodeSuffix(ctx, s.scope(), floor)
	if err != nil {
		return "", err
	}
	if s.parent == nil {
		return strconv.Itoa(next), nil
	}
	return s.parent.Code + "." + strconv.Itoa(next), nil
}

// checkName rejects a name already used by an active sibling, ignoring case.
// Ledgers only clash with ledgers of the same branch. Groups are shared by
// every branch, so a group name is checked with branchID 0 against the
// ledgers of all branches, and a ledger name always against sibling groups.
func (s slot) checkName(name string, skipGroupID, branchID int64) error {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for _, child := range s.children {
		if child.Kind == ChildGroup && child.ID == skipGroupID {
			continue
		}
		if child.Kind == ChildLedger && branchID != 0 && child.BranchID != branchID {
			continue
		}
		if fold.String(strings.TrimSpace(child.Name)) == want {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return nil
}
