/*
errors.go - Centralized error taxonomy

PURPOSE:
  All error types in one place so every engine reports failures the same way
  and the API layer can map each condition to a distinct status. Engines wrap
  these sentinels with structured context where the caller needs specifics
  ("insufficient voucher balance" vs "ticket type expired").

ERROR CATEGORIES:
  1. Input errors     - ErrValidation (malformed or out-of-range input)
  2. Access errors    - ErrForbidden (role not permitted)
  3. Lookup errors    - ErrNotFound, ErrGone (referenced dependency deleted)
  4. State errors     - ErrAlreadyProcessed, ErrInvalidTransition
  5. Balance errors   - ErrInsufficientBalance
  6. Race errors      - ErrConflict (retryable)

USAGE:
  if errors.Is(err, ledger.ErrInsufficientBalance) { ... }

  var ib *ledger.InsufficientBalanceError
  if errors.As(err, &ib) { log.Print(ib.Shortfall) }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the caller's role does not permit the
	// operation. The gate short-circuits before any engine logic runs.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a code or ID does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrGone is returned when a resource exists but a dependency it
	// references was deleted (a ticket whose type was removed).
	ErrGone = errors.New("referenced resource deleted")

	// ErrAlreadyProcessed is returned when a voucher is processed a second
	// time. Exactly one caller wins; the rest get this error.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrInvalidTransition is returned when a payout request is moved out of
	// a terminal state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict is returned when a concurrent mutation lost a race.
	// Callers may retry.
	ErrConflict = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the violated constraint so the caller can render the
// exact cause.
type ValidationError struct {
	Field  string // e.g. "amount", "quantity"
	Reason string // e.g. "amount exceeds entitlement"
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validationf builds a ValidationError for one field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError reports the exact shortage.
type InsufficientBalanceError struct {
	AccountID AccountID
	Field     BalanceField
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s: available %s, requested %s",
		e.Field, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is the amount missing to satisfy the request.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// ForbiddenError records which role attempted what.
type ForbiddenError struct {
	Role      Role
	Operation string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Operation)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// TransitionError records an attempted payout transition from a state that
// does not allow it.
type TransitionError struct {
	PaymentID PaymentID
	From      PayoutStatus
	To        PayoutStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("payout %s: cannot transition %s -> %s", e.PaymentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input or
// client-visible state, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
