package shared

import "errors"

// Error taxonomy shared by the ledger core. Package level sentinels wrap one of
// these so the HTTP edge can map them without knowing every package.
var (
	// ErrValidation indicates malformed or missing input; nothing was mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced record is absent or inactive.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates an outgoing movement would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransfer indicates a transfer request that cannot be honoured.
	ErrInvalidTransfer = errors.New("invalid transfer")
	// ErrUnbalancedPosting indicates debits and credits differ. It is a defect, not a user error.
	ErrUnbalancedPosting = errors.New("unbalanced posting")
	// ErrConflict indicates a duplicate or a concurrent update that lost.
	ErrConflict = errors.New("conflict")
	// ErrInternal indicates an unexpected persistence failure.
	ErrInternal = errors.New("internal error")
)
