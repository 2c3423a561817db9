package ledger_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-ledger/ledger"
	"github.com/warp/payment-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Memory
	svc    *ledger.Service
	engine *ledger.Engine
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOptions(t, ledger.DefaultOptions())
}

func newFixtureWithOptions(t *testing.T, opts ledger.Options) *fixture {
	mem := store.NewMemory()
	catalog := ledger.DefaultCatalog()
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  mem,
		svc:    ledger.NewService(mem, catalog, opts, zerolog.Nop()),
		engine: ledger.NewEngine(mem, catalog, zerolog.Nop()),
	}
}

func money(s string) ledger.Money {
	return ledger.MustMoney(s)
}

func receipt() *ledger.Attachment {
	return &ledger.Attachment{Name: "receipt.pdf", Data: []byte("%PDF-1.4 test")}
}

// invoice creates a customer and an invoice with the given total.
func (f *fixture) invoice(total string) *ledger.Invoice {
	f.t.Helper()
	c, err := f.svc.CreateCustomer(f.ctx, "Acme Corp")
	require.NoError(f.t, err)
	inv, err := f.svc.CreateInvoice(f.ctx, ledger.CreateInvoiceInput{
		CustomerID: c.ID,
		Total:      money(total),
		Activity:   "Consulting",
	})
	require.NoError(f.t, err)
	return inv
}

// pay records a payment through the service, with every creation check.
func (f *fixture) pay(id ledger.InvoiceID, amount string) *ledger.Payment {
	f.t.Helper()
	p, err := f.svc.CreatePayment(f.ctx, ledger.CreatePaymentInput{
		InvoiceID:  id,
		Amount:     money(amount),
		MethodID:   1,
		Attachment: receipt(),
	})
	require.NoError(f.t, err)
	return p
}

// insertPayment writes a payment straight into the store, skipping creation
// checks, to set up states the service would not produce on its own.
func (f *fixture) insertPayment(id ledger.InvoiceID, amount string, status ledger.PaymentStatus) *ledger.Payment {
	f.t.Helper()
	p := &ledger.Payment{InvoiceID: id, Amount: money(amount), MethodID: 1, Status: status}
	err := f.store.WithTx(f.ctx, func(tx ledger.Tx) error {
		return tx.InsertPayment(f.ctx, p, nil)
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) change(id ledger.PaymentID, target ledger.PaymentStatus) (*ledger.Payment, error) {
	return f.svc.ChangePaymentStatus(f.ctx, id, target)
}

func (f *fixture) mustChange(id ledger.PaymentID, target ledger.PaymentStatus) *ledger.Payment {
	f.t.Helper()
	p, err := f.change(id, target)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) reloadInvoice(id ledger.InvoiceID) *ledger.Invoice {
	f.t.Helper()
	inv, err := f.svc.GetInvoice(f.ctx, id)
	require.NoError(f.t, err)
	return inv
}

func (f *fixture) reloadPayment(id ledger.PaymentID) *ledger.Payment {
	f.t.Helper()
	p, err := f.svc.GetPayment(f.ctx, id)
	require.NoError(f.t, err)
	return p
}

// sum runs the aggregation engine in its own transaction.
func (f *fixture) sum(id ledger.InvoiceID, category ledger.StatusCategory, exclude ledger.PaymentID) ledger.Money {
	f.t.Helper()
	var total ledger.Money
	err := f.store.WithTx(f.ctx, func(tx ledger.Tx) error {
		var err error
		total, err = ledger.SumByStatusCategory(f.ctx, tx, id, category, exclude)
		return err
	})
	require.NoError(f.t, err)
	return total
}

func assertMoney(t *testing.T, want string, got ledger.Money, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, ledger.FormatMoney(got), msgAndArgs...)
}

// assertInvoiceConsistent checks the balance equation and status rule
// against the payments currently stored.
func (f *fixture) assertInvoiceConsistent(id ledger.InvoiceID) {
	f.t.Helper()
	inv := f.reloadInvoice(id)
	completed := f.sum(id, ledger.CompletedOnly, ledger.NoPayment)
	exposure := f.sum(id, ledger.InProgressOrCompleted, ledger.NoPayment)

	assert.True(f.t, inv.Balance.Equal(inv.Total.Sub(completed)),
		"balance %s != total %s - completed %s", inv.Balance, inv.Total, completed)
	assert.False(f.t, exposure.GreaterThan(inv.Total),
		"exposure %s exceeds total %s", exposure, inv.Total)
	assert.Equal(f.t, ledger.DeriveInvoiceStatus(inv.Total, completed, exposure), inv.Status)
}
