package ledger

import (
	"errors"
	"fmt"
)

// Validation errors. They are returned before any mutation and are never
// worth retrying.
var (
	ErrInvalidAccountName   = errors.New("invalid account name")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// ErrCollaboratorUnavailable marks a failure of the account store or the
// price oracle. The operation left no trace and may be retried.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// unavailable wraps err so that both ErrCollaboratorUnavailable and the
// original cause match with errors.Is.
func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCollaboratorUnavailable, what, err)
}

// IsRetryable reports whether err came from a collaborator rather than
// from validation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}
