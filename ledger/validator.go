/*
validator.go - Admission rules for payment status transitions

PURPOSE:
  Decides whether moving a payment to a target status keeps the invoice's
  exposure (InProgress + Completed) within its total.

ALGORITHM:
  1. target == current status       -> DecisionNoChange
  2. target is Voided               -> DecisionApply (removes exposure)
  3. otherSum = exposure excluding this payment
  4. prospective = otherSum + amount
  5. prospective > total (strict)   -> *RejectedError
  6. otherwise                      -> DecisionApply

  Moving a Voided payment back is validated exactly like a fresh
  inclusion. New payments are validated with ID NoPayment and an empty
  current status.

SEE ALSO:
  - aggregate.go: SumByStatusCategory
  - reconcile.go: Runs the validator under the invoice row lock
*/
package ledger

import "context"

// Decision is the validator's verdict when the transition is admissible.
type Decision int

const (
	// DecisionApply means the caller must write the change.
	DecisionApply Decision = iota
	// DecisionNoChange means the payment already has the target status.
	DecisionNoChange
)

func (d Decision) String() string {
	if d == DecisionNoChange {
		return "no_change"
	}
	return "apply"
}

// TransitionValidator checks transitions against the invoice total.
type TransitionValidator struct{}

// Validate returns the decision for moving payment to target, or a
// *RejectedError. amount is the payment's current amount. tx must already
// hold the invoice lock for the result to stay true until commit.
func (TransitionValidator) Validate(ctx context.Context, tx Tx, inv *Invoice, payment *Payment, amount Money, target PaymentStatus) (Decision, error) {
	if target == payment.Status {
		return DecisionNoChange, nil
	}
	if !target.CountsTowardExposure() {
		return DecisionApply, nil
	}

	otherSum, err := SumByStatusCategory(ctx, tx, inv.ID, InProgressOrCompleted, payment.ID)
	if err != nil {
		return DecisionApply, err
	}

	prospective := otherSum.Add(amount)
	if prospective.GreaterThan(inv.Total) {
		return DecisionApply, &RejectedError{
			InvoiceID:   inv.ID,
			PaymentID:   payment.ID,
			Reason:      ReasonExceedsTotal,
			Prospective: prospective,
			Limit:       inv.Total,
			Total:       inv.Total,
		}
	}
	return DecisionApply, nil
}
