/*
aggregate.go - Sum of payment amounts by status category

PURPOSE:
  The one place that turns "which payments count" into a number. Both the
  validator (before the write) and the reconciler (after the write) call
  SumByStatusCategory, so the two recomputation points can never drift.

CATEGORIES:
  InProgressOrCompleted: exposure - everything not voided
  CompletedOnly:         collected money - drives balance and Paid status

SEE ALSO:
  - validator.go: otherSum = exposure excluding the moving payment
  - reconcile.go: completed and exposure after the write
*/
package ledger

import (
	"context"
	"fmt"
)

// StatusCategory selects which payment statuses are summed.
type StatusCategory int

const (
	InProgressOrCompleted StatusCategory = iota
	CompletedOnly
)

func (c StatusCategory) String() string {
	switch c {
	case InProgressOrCompleted:
		return "in_progress_or_completed"
	case CompletedOnly:
		return "completed_only"
	}
	return fmt.Sprintf("StatusCategory(%d)", int(c))
}

// Statuses returns the payment statuses in the category.
func (c StatusCategory) Statuses() []PaymentStatus {
	switch c {
	case InProgressOrCompleted:
		return []PaymentStatus{PaymentInProgress, PaymentCompleted}
	case CompletedOnly:
		return []PaymentStatus{PaymentCompleted}
	}
	return nil
}

// SumByStatusCategory sums the invoice's payments in category, leaving out
// exclude. It must run on the caller's transaction so sibling writes made
// earlier in the same transaction are visible.
func SumByStatusCategory(ctx context.Context, tx Tx, invoiceID InvoiceID, category StatusCategory, exclude PaymentID) (Money, error) {
	statuses := category.Statuses()
	if statuses == nil {
		return ZeroMoney, fmt.Errorf("sum payments: unknown category %v", category)
	}
	sum, err := tx.SumPayments(ctx, invoiceID, statuses, exclude)
	if err != nil {
		return ZeroMoney, fmt.Errorf("sum %s payments for invoice %d: %w", category, invoiceID, err)
	}
	return sum, nil
}
