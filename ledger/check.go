/*
check.go - Consistency check of stored invoices

PURPOSE:
  Re-derives every invoice's balance and status from its payments and
  compares them with what is stored. Writes never leave drift behind, so
  a discrepancy means the database was edited outside this package or a
  bug slipped through; either way someone must look at it.

  The check is read-only. It runs under the invoice lock so it never
  observes a half-applied change.

SEE ALSO:
  - reconcile.go: The rules being re-checked
  - api/scheduler.go: Runs CheckInvoices periodically
*/
package ledger

import (
	"context"
	"fmt"
)

// Discrepancy describes one invoice whose stored state disagrees with its
// payments.
type Discrepancy struct {
	InvoiceID       InvoiceID
	StoredBalance   Money
	ExpectedBalance Money
	StoredStatus    InvoiceStatus
	ExpectedStatus  InvoiceStatus
	Exposure        Money
	Total           Money
}

// Problems lists what is wrong, for logs.
func (d Discrepancy) Problems() []string {
	var out []string
	if !d.StoredBalance.Equal(d.ExpectedBalance) {
		out = append(out, fmt.Sprintf("balance %s, expected %s",
			FormatMoney(d.StoredBalance), FormatMoney(d.ExpectedBalance)))
	}
	if d.StoredStatus != d.ExpectedStatus {
		out = append(out, fmt.Sprintf("status %s, expected %s", d.StoredStatus, d.ExpectedStatus))
	}
	if d.Exposure.GreaterThan(d.Total) {
		out = append(out, fmt.Sprintf("exposure %s exceeds total %s",
			FormatMoney(d.Exposure), FormatMoney(d.Total)))
	}
	if d.ExpectedBalance.IsNegative() {
		out = append(out, "completed payments exceed total")
	}
	return out
}

// CheckReport summarizes a CheckInvoices run.
type CheckReport struct {
	Checked       int
	Discrepancies []Discrepancy
}

// CheckInvoice returns the discrepancy for one invoice, or nil if it is
// consistent.
func (s *Service) CheckInvoice(ctx context.Context, id InvoiceID) (*Discrepancy, error) {
	var found *Discrepancy
	err := s.store.WithTx(ctx, func(tx Tx) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return fmt.Errorf("lock invoice %d: %w", id, err)
		}
		if inv == nil {
			return &NotFoundError{Kind: "invoice", ID: int64(id)}
		}
		completed, err := SumByStatusCategory(ctx, tx, id, CompletedOnly, NoPayment)
		if err != nil {
			return err
		}
		exposure, err := SumByStatusCategory(ctx, tx, id, InProgressOrCompleted, NoPayment)
		if err != nil {
			return err
		}

		d := Discrepancy{
			InvoiceID:       id,
			StoredBalance:   inv.Balance,
			ExpectedBalance: inv.Total.Sub(completed),
			StoredStatus:    inv.Status,
			ExpectedStatus:  DeriveInvoiceStatus(inv.Total, completed, exposure),
			Exposure:        exposure,
			Total:           inv.Total,
		}
		if len(d.Problems()) > 0 {
			found = &d
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// CheckInvoices checks every invoice. Invoices deleted while the run is in
// progress are skipped.
func (s *Service) CheckInvoices(ctx context.Context) (CheckReport, error) {
	var report CheckReport
	invoices, err := s.store.ListInvoices(ctx, InvoiceFilter{})
	if err != nil {
		return report, fmt.Errorf("list invoices: %w", err)
	}

	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		d, err := s.CheckInvoice(ctx, inv.ID)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return report, err
		}
		report.Checked++
		if d != nil {
			report.Discrepancies = append(report.Discrepancies, *d)
			s.log.Error().
				Int64("invoice_id", int64(d.InvoiceID)).
				Strs("problems", d.Problems()).
				Msg("invoice inconsistent with its payments")
		}
	}
	return report, nil
}
