package shared

import "fmt"

// Journal book statuses.
const (
	BookStatusOpen   = "OPEN"
	BookStatusClosed = "CLOSED"
	BookStatusLocked = "LOCKED"
)

// ErrInvalidBookTransition indicates status change not allowed.
var ErrInvalidBookTransition = fmt.Errorf("journal book transition invalid: %w", ErrValidation)

// ValidateBookTransition checks transitions according to policy.
func ValidateBookTransition(current, target string, hasOverride bool) error {
	if current == target {
		return nil
	}
	switch current {
	case BookStatusOpen:
		if target == BookStatusClosed || target == BookStatusLocked {
			return nil
		}
	case BookStatusClosed:
		if target == BookStatusOpen || target == BookStatusLocked {
			return nil
		}
	case BookStatusLocked:
		if target == BookStatusClosed && hasOverride {
			return nil
		}
	}
	return ErrInvalidBookTransition
}
