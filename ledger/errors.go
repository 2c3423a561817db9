/*
errors.go - Error taxonomy for the ledger

PURPOSE:
  All error kinds in one place. Callers branch with errors.Is against the
  sentinels; the structured types carry the details a human needs.

ERROR CATEGORIES:
  1. Validation  - malformed input, rejected before any transaction starts
  2. NotFound    - referenced invoice/payment/customer/lookup does not exist
  3. Rejected    - business rule: the change would push exposure past total
  4. Integrity   - broken reference or impossible recompute; transaction
                   rolled back and logged loudly
  5. Unavailable - store conflict or timeout; retry the whole operation

USAGE:
  _, err := svc.ChangePaymentStatus(ctx, id, ledger.PaymentCompleted)
  var rej *ledger.RejectedError
  if errors.As(err, &rej) {
      fmt.Println(rej.Prospective, rej.Limit)
  }

SEE ALSO:
  - api/handlers.go: maps each kind to an HTTP status
  - store/sqlite, store/postgres: map driver errors to ErrUnavailable
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRejected is returned when a change would exceed the invoice total.
	ErrRejected = errors.New("rejected")

	// ErrIntegrity is returned when stored data contradicts an invariant.
	ErrIntegrity = errors.New("integrity violation")

	// ErrUnavailable is returned when the store could not complete the
	// transaction (lock timeout, serialization conflict, busy database).
	ErrUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names what was missing.
type NotFoundError struct {
	Kind string // "invoice", "payment", "customer", "payment method", "attachment"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RejectedError reports a transition or creation that would breach the
// invoice total. Prospective and Limit are included so the caller can
// explain the rejection to a person. Limit is the invoice total, or the
// remaining balance for the creation-time bound.
type RejectedError struct {
	InvoiceID   InvoiceID
	PaymentID   PaymentID
	Reason      string
	Prospective Money
	Limit       Money
	Total       Money
}

func (e *RejectedError) Error() string {
	if e.Reason == ReasonExceedsBalance {
		return fmt.Sprintf("payment amount %s exceeds invoice balance %s",
			FormatMoney(e.Prospective), FormatMoney(e.Limit))
	}
	return fmt.Sprintf("payments total %s exceeds invoice total %s",
		FormatMoney(e.Prospective), FormatMoney(e.Limit))
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// Rejection reasons.
const (
	ReasonExceedsTotal   = "exceeds invoice total"
	ReasonExceedsBalance = "exceeds invoice balance"
)

// IntegrityError reports stored data that breaks an invariant.
type IntegrityError struct {
	Op     string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s: %s", e.Op, e.Detail)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// UnavailableError wraps the store error that made the transaction fail.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// Unavailable wraps err as an UnavailableError. Nil stays nil.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole operation may be retried from the start.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsClientError returns true if the caller must change the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRejected)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
