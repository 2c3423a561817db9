package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-ledger/ledger"
)

func TestCheckInvoice_Consistent(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice("100.00")
	p := f.pay(inv.ID, "40.00")
	f.mustChange(p.ID, ledger.PaymentCompleted)

	d, err := f.svc.CheckInvoice(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCheckInvoice_Drift(t *testing.T) {
	// GIVEN: A completed payment written without recomputing the invoice
	// WHEN: Checking the invoice
	// THEN: Both the balance and the status are reported

	f := newFixture(t)
	inv := f.invoice("100.00")
	f.insertPayment(inv.ID, "30.00", ledger.PaymentCompleted)

	d, err := f.svc.CheckInvoice(f.ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, d)

	assertMoney(t, "100.00", d.StoredBalance)
	assertMoney(t, "70.00", d.ExpectedBalance)
	assert.Equal(t, ledger.InvoicePending, d.StoredStatus)
	assert.Equal(t, ledger.InvoiceInProgress, d.ExpectedStatus)
	assert.Equal(t, []string{
		"balance 100.00, expected 70.00",
		"status pending, expected in_progress",
	}, d.Problems())

	// The check never writes.
	assertMoney(t, "100.00", f.reloadInvoice(inv.ID).Balance)
}

func TestCheckInvoice_ExposureOverTotal(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice("100.00")
	f.insertPayment(inv.ID, "150.00", ledger.PaymentInProgress)

	d, err := f.svc.CheckInvoice(f.ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Contains(t, d.Problems(), "exposure 150.00 exceeds total 100.00")
}

func TestCheckInvoice_OverpaidReported(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice("50.00")
	f.insertPayment(inv.ID, "80.00", ledger.PaymentCompleted)

	d, err := f.svc.CheckInvoice(f.ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Contains(t, d.Problems(), "completed payments exceed total")
}

func TestCheckInvoice_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckInvoice(f.ctx, 999)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCheckInvoices_Report(t *testing.T) {
	f := newFixture(t)
	good := f.invoice("100.00")
	f.pay(good.ID, "20.00")
	bad := f.invoice("100.00")
	f.insertPayment(bad.ID, "10.00", ledger.PaymentCompleted)
	f.invoice("5.00")

	report, err := f.svc.CheckInvoices(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, bad.ID, report.Discrepancies[0].InvoiceID)
}

func TestCheckInvoices_AfterReconcileIsClean(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice("100.00")
	a := f.pay(inv.ID, "60.00")
	b := f.pay(inv.ID, "40.00")
	f.mustChange(a.ID, ledger.PaymentCompleted)
	f.mustChange(b.ID, ledger.PaymentVoided)
	f.mustChange(b.ID, ledger.PaymentCompleted)

	report, err := f.svc.CheckInvoices(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Empty(t, report.Discrepancies)
}
