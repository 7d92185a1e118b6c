// Package chart maintains the chart of accounts: account groups carrying a
// financial nature, leaf ledgers beneath them, and their dotted codes.
package chart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// Nature is the financial classification of a group.
type Nature string

const (
	NatureAssets      Nature = "ASSETS"
	NatureLiabilities Nature = "LIABILITIES"
	NatureCapital     Nature = "CAPITAL"
	NatureIncome      Nature = "INCOME"
	NatureExpenses    Nature = "EXPENSES"
)

// Natures lists every nature in presentation order.
var Natures = []Nature{NatureAssets, NatureLiabilities, NatureCapital, NatureIncome, NatureExpenses}

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	switch n {
	case NatureAssets, NatureLiabilities, NatureCapital, NatureIncome, NatureExpenses:
		return true
	}
	return false
}

// DebitNormal reports whether a DEBIT increases balances of this nature.
func (n Nature) DebitNormal() bool {
	return n == NatureAssets || n == NatureExpenses
}

// ParseNature accepts any casing of a nature name.
func ParseNature(s string) (Nature, error) {
	n := Nature(strings.ToUpper(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownNature, s)
	}
	return n, nil
}

// LedgerType is the closed vocabulary of leaf account types.
type LedgerType string

const (
	LedgerCash               LedgerType = "CASH"
	LedgerBank               LedgerType = "BANK"
	LedgerAccountsReceivable LedgerType = "ACCOUNTS_RECEIVABLE"
	LedgerInventory          LedgerType = "INVENTORY"
	LedgerFixedAssets        LedgerType = "FIXED_ASSETS"
	LedgerAccountsPayable    LedgerType = "ACCOUNTS_PAYABLE"
	LedgerDutiesAndTaxes     LedgerType = "DUTIES_AND_TAXES"
	LedgerLoans              LedgerType = "LOANS"
	LedgerOwnerCapital       LedgerType = "OWNER_CAPITAL"
	LedgerDrawings           LedgerType = "DRAWINGS"
	LedgerSales              LedgerType = "SALES"
	LedgerDiscountReceived   LedgerType = "DISCOUNT_RECEIVED"
	LedgerOtherIncome        LedgerType = "OTHER_INCOME"
	LedgerPurchase           LedgerType = "PURCHASE"
	LedgerDiscountAllowed    LedgerType = "DISCOUNT_ALLOWED"
	LedgerCartage            LedgerType = "CARTAGE"
	LedgerDirectExpense      LedgerType = "DIRECT_EXPENSE"
	LedgerIndirectExpense    LedgerType = "INDIRECT_EXPENSE"
)

var ledgerNatures = map[LedgerType]Nature{
	LedgerCash:               NatureAssets,
	LedgerBank:               NatureAssets,
	LedgerAccountsReceivable: NatureAssets,
	LedgerInventory:          NatureAssets,
	LedgerFixedAssets:        NatureAssets,
	LedgerAccountsPayable:    NatureLiabilities,
	LedgerDutiesAndTaxes:     NatureLiabilities,
	LedgerLoans:              NatureLiabilities,
	LedgerOwnerCapital:       NatureCapital,
	LedgerDrawings:           NatureCapital,
	LedgerSales:              NatureIncome,
	LedgerDiscountReceived:   NatureIncome,
	LedgerOtherIncome:        NatureIncome,
	LedgerPurchase:           NatureExpenses,
	LedgerDiscountAllowed:    NatureExpenses,
	LedgerCartage:            NatureExpenses,
	LedgerDirectExpense:      NatureExpenses,
	LedgerIndirectExpense:    NatureExpenses,
}

// Nature returns the nature a ledger of this type must sit under.
func (t LedgerType) Nature() (Nature, bool) {
	n, ok := ledgerNatures[t]
	return n, ok
}

// IsCashOrBank reports whether the type holds liquid funds.
func (t LedgerType) IsCashOrBank() bool {
	return t == LedgerCash || t == LedgerBank
}

// ParseLedgerType accepts any casing of a ledger type.
func ParseLedgerType(s string) (LedgerType, error) {
	t := LedgerType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := ledgerNatures[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLedgerType, s)
	}
	return t, nil
}

// AccountGroup is a non-terminal node of the chart.
type AccountGroup struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Nature    Nature          `json:"nature"`
	ParentID  *int64          `json:"parent_id,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Ledger is a leaf account journal entries post against.
type Ledger struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	Type           LedgerType      `json:"type"`
	Nature         Nature          `json:"nature"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	GroupID        int64           `json:"group_id"`
	BranchID       int64           `json:"branch_id"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ChildKind distinguishes sub-groups from ledgers sharing a parent.
type ChildKind string

const (
	ChildGroup  ChildKind = "GROUP"
	ChildLedger ChildKind = "LEDGER"
)

// Child is an active direct child of a group (or of the root).
type Child struct {
	Kind     ChildKind
	ID       int64
	Name     string
	Code     string
	BranchID int64
}

// GroupInput describes a group to create.
type GroupInput struct {
	Name     string
	Nature   Nature
	ParentID *int64
}

// Validate checks the group request.
func (in GroupInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.NewValidationError("name", "is required")
	}
	if in.ParentID == nil && !in.Nature.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownNature, in.Nature)
	}
	if in.Nature != "" && !in.Nature.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownNature, in.Nature)
	}
	if in.ParentID != nil && *in.ParentID <= 0 {
		return shared.NewValidationError("parent_id", "must be positive")
	}
	return nil
}

// LedgerInput describes a ledger to create.
type LedgerInput struct {
	Name           string
	Type           LedgerType
	GroupID        int64
	BranchID       int64
	OpeningBalance decimal.Decimal
}

// Validate checks the ledger request.
func (in LedgerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.NewValidationError("name", "is required")
	}
	if _, ok := in.Type.Nature(); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLedgerType, in.Type)
	}
	if in.GroupID <= 0 {
		return shared.NewValidationError("group_id", "ledgers must belong to a group")
	}
	if in.BranchID <= 0 {
		return shared.NewValidationError("branch_id", "is required")
	}
	return nil
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	BranchID int64
	GroupID  int64
	Type     LedgerType
}

var (
	// ErrGroupNotFound indicates a missing or inactive group.
	ErrGroupNotFound = fmt.Errorf("chart: account group not found: %w", shared.ErrNotFound)
	// ErrLedgerNotFound indicates a missing or inactive ledger.
	ErrLedgerNotFound = fmt.Errorf("chart: ledger not found: %w", shared.ErrNotFound)
	// ErrUnknownNature indicates a nature outside the closed set.
	ErrUnknownNature = fmt.Errorf("chart: unknown nature: %w", shared.ErrValidation)
	// ErrUnknownLedgerType indicates a ledger type outside the closed vocabulary.
	ErrUnknownLedgerType = fmt.Errorf("chart: unknown ledger type: %w", shared.ErrValidation)
	// ErrNatureMismatch indicates a child whose nature differs from its parent group.
	ErrNatureMismatch = fmt.Errorf("chart: nature does not match parent group: %w", shared.ErrValidation)
	// ErrSelfParent indicates a group referencing itself as parent.
	ErrSelfParent = fmt.Errorf("chart: group cannot be its own parent: %w", shared.ErrValidation)
	// ErrCycle indicates a move that would make a group its own ancestor.
	ErrCycle = fmt.Errorf("chart: move would create a cycle: %w", shared.ErrValidation)
	// ErrDuplicateName indicates a sibling with the same name.
	ErrDuplicateName = fmt.Errorf("chart: name already used under this parent: %w", shared.ErrConflict)
	// ErrGroupNotEmpty indicates a delete of a group with active children.
	ErrGroupNotEmpty = fmt.Errorf("chart: group has active children: %w", shared.ErrConflict)
	// ErrLedgerInUse indicates a delete of a ledger referenced by journal entries.
	ErrLedgerInUse = fmt.Errorf("chart: ledger has journal entries: %w", shared.ErrConflict)
	// ErrMalformedCode indicates a stored code whose last segment is not numeric.
	ErrMalformedCode = errors.New("chart: malformed account code")
)
