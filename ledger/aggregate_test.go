package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-ledger/ledger"
)

func TestSumByStatusCategory(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice("500.00")
	other := f.invoice("500.00")

	completed := f.insertPayment(inv.ID, "100.25", ledger.PaymentCompleted)
	inProgress := f.insertPayment(inv.ID, "40.50", ledger.PaymentInProgress)
	f.insertPayment(inv.ID, "70.00", ledger.PaymentVoided)
	f.insertPayment(other.ID, "33.00", ledger.PaymentCompleted)

	tests := []struct {
		name     string
		invoice  ledger.InvoiceID
		category ledger.StatusCategory
		exclude  ledger.PaymentID
		want     string
	}{
		{"exposure", inv.ID, ledger.InProgressOrCompleted, ledger.NoPayment, "140.75"},
		{"completed only", inv.ID, ledger.CompletedOnly, ledger.NoPayment, "100.25"},
		{"exposure excluding in progress", inv.ID, ledger.InProgressOrCompleted, inProgress.ID, "100.25"},
		{"completed excluding completed", inv.ID, ledger.CompletedOnly, completed.ID, "0.00"},
		{"exclude unrelated payment", other.ID, ledger.CompletedOnly, completed.ID, "33.00"},
		{"invoice without payments", ledger.InvoiceID(99), ledger.InProgressOrCompleted, ledger.NoPayment, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertMoney(t, tt.want, f.sum(tt.invoice, tt.category, tt.exclude))
		})
	}
}

func TestSumByStatusCategory_SeesOwnWrites(t *testing.T) {
	// GIVEN: A transaction that has just moved a payment to completed
	// WHEN: The completed sum is taken inside the same transaction
	// THEN: The new status is counted

	f := newFixture(t)
	inv := f.invoice("100.00")
	p := f.insertPayment(inv.ID, "25.00", ledger.PaymentInProgress)

	err := f.store.WithTx(f.ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.UpdatePaymentStatus(f.ctx, p.ID, ledger.PaymentCompleted))
		sum, err := ledger.SumByStatusCategory(f.ctx, tx, inv.ID, ledger.CompletedOnly, ledger.NoPayment)
		require.NoError(t, err)
		assertMoney(t, "25.00", sum)
		return errors.New("roll back")
	})
	require.Error(t, err)

	assertMoney(t, "0.00", f.sum(inv.ID, ledger.CompletedOnly, ledger.NoPayment))
}

func TestSumByStatusCategory_UnknownCategory(t *testing.T) {
	f := newFixture(t)
	err := f.store.WithTx(context.Background(), func(tx ledger.Tx) error {
		_, err := ledger.SumByStatusCategory(f.ctx, tx, 1, ledger.StatusCategory(42), ledger.NoPayment)
		return err
	})
	assert.Error(t, err)
}

func TestStatusCategory(t *testing.T) {
	assert.Equal(t, []ledger.PaymentStatus{ledger.PaymentInProgress, ledger.PaymentCompleted},
		ledger.InProgressOrCompleted.Statuses())
	assert.Equal(t, []ledger.PaymentStatus{ledger.PaymentCompleted}, ledger.CompletedOnly.Statuses())
	assert.Equal(t, "completed_only", ledger.CompletedOnly.String())
	assert.Equal(t, "StatusCategory(42)", ledger.StatusCategory(42).String())
}
