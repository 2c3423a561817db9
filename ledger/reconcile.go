/*
reconcile.go - Atomic payment status change and invoice recompute

PURPOSE:
  The Engine is the only writer of invoice balance/status and of payment
  status after creation. Every change runs in one transaction:

    1. read payment                      (missing -> NotFound)
    2. lock owning invoice row           (missing -> Integrity)
       re-read payment under the lock
    3. validate transition               (over total -> Rejected)
    4. same status                       -> roll back, return as is
    5. write payment status
    6. completed, exposure = sums AFTER the write
    7. balance = total - completed       (negative -> Integrity)
    8. status  = DeriveInvoiceStatus(...)
    9. write invoice, commit
   10. return payment with display names

  Any error between 1 and 9 rolls the whole transaction back.

CONCURRENCY:
  Step 2 serializes transitions on the same invoice. Reading the payment
  again after the lock matters: another transaction may have moved it
  between step 1 and the lock being granted.

SEE ALSO:
  - validator.go: Step 3
  - aggregate.go: Steps 3 and 6
  - service.go: Retries and timeouts around ApplyStatusChange
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// errNoChange rolls back a transaction that turned out to be a no-op.
var errNoChange = errors.New("no change")

// DeriveInvoiceStatus applies the invoice status rule:
// Paid iff completed >= total; InProgress iff exposure > 0; else Pending.
func DeriveInvoiceStatus(total, completed, exposure Money) InvoiceStatus {
	switch {
	case completed.GreaterThanOrEqual(total):
		return InvoicePaid
	case exposure.IsPositive():
		return InvoiceInProgress
	default:
		return InvoicePending
	}
}

// Engine orchestrates payment status changes.
type Engine struct {
	store     Store
	catalog   *Catalog
	validator TransitionValidator
	log       zerolog.Logger
}

// NewEngine creates an engine over store. catalog resolves display names.
func NewEngine(store Store, catalog *Catalog, log zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		catalog: catalog,
		log:     log,
	}
}

// ApplyStatusChange moves a payment to target and reconciles its invoice.
// Calling it with the payment's current status is a successful no-op.
func (e *Engine) ApplyStatusChange(ctx context.Context, paymentID PaymentID, target PaymentStatus) (*Payment, error) {
	if !target.Valid() {
		return nil, NewValidationError("status", fmt.Sprintf("unknown payment status %q", target))
	}

	var result *Payment
	err := e.store.WithTx(ctx, func(tx Tx) error {
		payment, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("load payment %d: %w", paymentID, err)
		}
		if payment == nil {
			return &NotFoundError{Kind: "payment", ID: int64(paymentID)}
		}

		inv, err := tx.LockInvoice(ctx, payment.InvoiceID)
		if err != nil {
			return fmt.Errorf("lock invoice %d: %w", payment.InvoiceID, err)
		}
		if inv == nil {
			return &IntegrityError{
				Op:     "apply status change",
				Detail: fmt.Sprintf("payment %d references missing invoice %d", paymentID, payment.InvoiceID),
			}
		}

		payment, err = tx.GetPayment(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("reload payment %d: %w", paymentID, err)
		}
		if payment == nil {
			return &NotFoundError{Kind: "payment", ID: int64(paymentID)}
		}

		decision, err := e.validator.Validate(ctx, tx, inv, payment, payment.Amount, target)
		if err != nil {
			return err
		}
		if decision == DecisionNoChange {
			result = payment
			return errNoChange
		}

		if err := tx.UpdatePaymentStatus(ctx, paymentID, target); err != nil {
			return fmt.Errorf("update payment %d status: %w", paymentID, err)
		}
		if _, err := e.ReconcileInvoice(ctx, tx, inv); err != nil {
			return err
		}

		payment.Status = target
		result = payment
		return nil
	})

	switch {
	case errors.Is(err, errNoChange):
		e.log.Debug().
			Int64("payment_id", int64(paymentID)).
			Str("status", string(target)).
			Msg("status unchanged")
	case err != nil:
		e.logFailure(err, paymentID, target)
		return nil, err
	default:
		e.log.Debug().
			Int64("payment_id", int64(paymentID)).
			Int64("invoice_id", int64(result.InvoiceID)).
			Str("status", string(target)).
			Msg("payment status applied")
	}

	e.catalog.ResolvePayment(result)
	return result, nil
}

// ReconcileInvoice recomputes balance and status from the payments visible
// in tx and persists them. inv must be locked by tx. inv is updated in place.
func (e *Engine) ReconcileInvoice(ctx context.Context, tx Tx, inv *Invoice) (*Invoice, error) {
	completed, err := SumByStatusCategory(ctx, tx, inv.ID, CompletedOnly, NoPayment)
	if err != nil {
		return nil, err
	}
	exposure, err := SumByStatusCategory(ctx, tx, inv.ID, InProgressOrCompleted, NoPayment)
	if err != nil {
		return nil, err
	}

	balance := inv.Total.Sub(completed)
	if balance.IsNegative() {
		return nil, &IntegrityError{
			Op: "reconcile invoice",
			Detail: fmt.Sprintf("invoice %d: completed %s exceeds total %s",
				inv.ID, FormatMoney(completed), FormatMoney(inv.Total)),
		}
	}
	status := DeriveInvoiceStatus(inv.Total, completed, exposure)

	if err := tx.UpdateInvoiceBalance(ctx, inv.ID, balance, status); err != nil {
		return nil, fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}

	inv.Balance = balance
	inv.Status = status
	e.catalog.ResolveInvoice(inv)
	return inv, nil
}

func (e *Engine) logFailure(err error, paymentID PaymentID, target PaymentStatus) {
	var ev *zerolog.Event
	switch {
	case errors.Is(err, ErrIntegrity):
		ev = e.log.Error()
	case errors.Is(err, ErrRejected), errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation):
		ev = e.log.Info()
	default:
		ev = e.log.Warn()
	}
	ev.Err(err).
		Int64("payment_id", int64(paymentID)).
		Str("status", string(target)).
		Msg("status change failed")
}
