package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-ledger/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(t *testing.T, s *Store) *ledger.Service {
	t.Helper()
	catalog, err := ledger.LoadCatalog(context.Background(), s)
	require.NoError(t, err)
	return ledger.NewService(s, catalog, ledger.DefaultOptions(), zerolog.Nop())
}

func seedInvoice(t *testing.T, svc *ledger.Service, total string) *ledger.Invoice {
	t.Helper()
	ctx := context.Background()
	c, err := svc.CreateCustomer(ctx, "Umbrella")
	require.NoError(t, err)
	inv, err := svc.CreateInvoice(ctx, ledger.CreateInvoiceInput{
		CustomerID: c.ID,
		Total:      ledger.MustMoney(total),
		Activity:   "Maintenance",
	})
	require.NoError(t, err)
	return inv
}

func receipt(name string) *ledger.Attachment {
	return &ledger.Attachment{Name: name, Data: []byte{0x89, 'P', 'N', 'G', 0, 1, 2}}
}

func pay(t *testing.T, svc *ledger.Service, id ledger.InvoiceID, amount string) *ledger.Payment {
	t.Helper()
	p, err := svc.CreatePayment(context.Background(), ledger.CreatePaymentInput{
		InvoiceID:  id,
		Amount:     ledger.MustMoney(amount),
		MethodID:   3,
		Attachment: receipt("receipt.png"),
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// SCHEMA
// =============================================================================

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	ps, is, ms, err := s.LoadLookups(ctx)
	require.NoError(t, err)
	wantPS, wantIS, wantMS := ledger.DefaultLookups()
	assert.Equal(t, wantPS, ps)
	assert.Equal(t, wantIS, is)
	assert.Equal(t, wantMS, ms)
}

func TestStore_Customers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &ledger.Customer{Name: "Hooli"}
	require.NoError(t, s.CreateCustomer(ctx, c))
	assert.NotZero(t, c.ID)

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hooli", got.Name)

	missing, err := s.GetCustomer(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// LEDGER FLOWS
// =============================================================================

func TestStore_PaymentLifecycle(t *testing.T) {
	// GIVEN: Invoice of 100.00 stored in SQLite
	// WHEN: 60.00 is completed, a second 50.00 is refused, then the first voided
	// THEN: Stored balance and status follow each step and money keeps two decimals

	s := newTestStore(t)
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")

	first := pay(t, svc, inv.ID, "60.00")
	_, err := svc.ChangePaymentStatus(ctx, first.ID, ledger.PaymentCompleted)
	require.NoError(t, err)

	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", ledger.FormatMoney(got.Balance))
	assert.Equal(t, ledger.InvoiceInProgress, got.Status)
	assert.Equal(t, "Umbrella", got.CustomerName)

	_, err = svc.CreatePayment(ctx, ledger.CreatePaymentInput{
		InvoiceID: inv.ID, Amount: ledger.MustMoney("50.00"), MethodID: 1, Attachment: receipt("r.pdf"),
	})
	assert.True(t, errors.Is(err, ledger.ErrRejected))

	voided, err := svc.ChangePaymentStatus(ctx, first.ID, ledger.PaymentVoided)
	require.NoError(t, err)
	assert.Equal(t, "Voided", voided.StatusName)
	assert.Equal(t, "Card", voided.MethodName)

	got, err = svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", ledger.FormatMoney(got.Balance))
	assert.Equal(t, ledger.InvoicePending, got.Status)
}

func TestStore_RejectedTransitionLeavesRowsUntouched(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")

	first := pay(t, svc, inv.ID, "60.00")
	_, err := svc.ChangePaymentStatus(ctx, first.ID, ledger.PaymentCompleted)
	require.NoError(t, err)

	var second ledger.Payment
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Tx) error {
		second = ledger.Payment{InvoiceID: inv.ID, Amount: ledger.MustMoney("50.00"), MethodID: 1, Status: ledger.PaymentInProgress}
		return tx.InsertPayment(ctx, &second, nil)
	}))

	_, err = svc.ChangePaymentStatus(ctx, second.ID, ledger.PaymentCompleted)
	var rej *ledger.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "110.00", ledger.FormatMoney(rej.Prospective))

	p, err := s.GetPayment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentInProgress, p.Status)
	assert.False(t, p.HasAttachment)
}

func TestStore_SumPayments(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")

	a := pay(t, svc, inv.ID, "10.10")
	pay(t, svc, inv.ID, "20.20")
	_, err := svc.ChangePaymentStatus(ctx, a.ID, ledger.PaymentCompleted)
	require.NoError(t, err)

	require.NoError(t, s.WithTx(ctx, func(tx ledger.Tx) error {
		exposure, err := ledger.SumByStatusCategory(ctx, tx, inv.ID, ledger.InProgressOrCompleted, ledger.NoPayment)
		require.NoError(t, err)
		assert.Equal(t, "30.30", ledger.FormatMoney(exposure))

		completed, err := ledger.SumByStatusCategory(ctx, tx, inv.ID, ledger.CompletedOnly, ledger.NoPayment)
		require.NoError(t, err)
		assert.Equal(t, "10.10", ledger.FormatMoney(completed))

		others, err := ledger.SumByStatusCategory(ctx, tx, inv.ID, ledger.InProgressOrCompleted, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "20.20", ledger.FormatMoney(others))

		none, err := ledger.SumByStatusCategory(ctx, tx, 999, ledger.InProgressOrCompleted, ledger.NoPayment)
		require.NoError(t, err)
		assert.True(t, none.IsZero())
		return nil
	}))
}

func TestStore_WithTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")
	p := pay(t, svc, inv.ID, "10.00")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.UpdatePaymentStatus(ctx, p.ID, ledger.PaymentVoided))
		require.NoError(t, tx.UpdateInvoiceBalance(ctx, inv.ID, ledger.MustMoney("1.00"), ledger.InvoicePaid))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	gotP, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentInProgress, gotP.Status)
	gotInv, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", ledger.FormatMoney(gotInv.Balance))
}

func TestStore_UpdateMissingRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.UpdatePaymentStatus(ctx, 77, ledger.PaymentVoided)
	})
	assert.Error(t, err)
}

func TestStore_Attachment(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")
	p := pay(t, svc, inv.ID, "10.00")

	got, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.HasAttachment)
	assert.Equal(t, "receipt.png", got.AttachmentName)

	att, err := svc.GetAttachment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt("x").Data, att.Data)
	assert.Equal(t, ledger.ContentTypePNG, att.ContentType)

	missing, err := s.GetAttachment(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ListFilters(t *testing.T) {
	day := time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)
	clock := day
	s := newTestStore(t, WithClock(func() time.Time { return clock }))
	svc := newTestService(t, s)
	ctx := context.Background()

	inv := seedInvoice(t, svc, "500.00")
	clock = day.Add(time.Hour)
	early := pay(t, svc, inv.ID, "10.00")
	clock = day.Add(3 * time.Hour)
	late := pay(t, svc, inv.ID, "20.00")
	clock = day.AddDate(0, 0, 1)
	other := seedInvoice(t, svc, "50.00")
	_, err := svc.ChangePaymentStatus(ctx, late.ID, ledger.PaymentCompleted)
	require.NoError(t, err)

	desc, err := svc.ListPayments(ctx, ledger.PaymentFilter{InvoiceID: &inv.ID, SortByDate: ledger.SortDesc})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, late.ID, desc[0].ID)
	assert.Equal(t, early.ID, desc[1].ID)
	assert.True(t, day.Add(3*time.Hour).Equal(desc[0].CreatedAt))

	completed := ledger.PaymentCompleted
	method := ledger.PaymentMethodID(3)
	filtered, err := svc.ListPayments(ctx, ledger.PaymentFilter{Status: &completed, MethodID: &method})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, late.ID, filtered[0].ID)

	from, to := day.Add(30*time.Minute), day.Add(2*time.Hour)
	byDate, err := svc.ListPayments(ctx, ledger.PaymentFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, early.ID, byDate[0].ID)

	pending := ledger.InvoicePending
	invoices, err := svc.ListInvoices(ctx, ledger.InvoiceFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, other.ID, invoices[0].ID)

	dayTwo := day.AddDate(0, 0, 1)
	invoices, err = svc.ListInvoices(ctx, ledger.InvoiceFilter{From: &dayTwo})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, other.ID, invoices[0].ID)
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")
	pay(t, svc, inv.ID, "10.00")

	require.NoError(t, s.Reset(ctx))

	invoices, err := s.ListInvoices(ctx, ledger.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
	_, _, ms, err := s.LoadLookups(ctx)
	require.NoError(t, err)
	assert.Len(t, ms, 4)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestStore_ConcurrentCompletions(t *testing.T) {
	// GIVEN: A file database and ten voided payments of 30.00 on 100.00
	// WHEN: Ten goroutines complete them at once
	// THEN: Exactly three are admitted; the rest are rejected

	s, err := New(filepath.Join(t.TempDir(), "ledger.db"), WithBusyTimeout(10*time.Second))
	require.NoError(t, err)
	defer s.Close()
	svc := newTestService(t, s)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")

	var ids []ledger.PaymentID
	for i := 0; i < 10; i++ {
		p, err := svc.CreatePayment(ctx, ledger.CreatePaymentInput{
			InvoiceID: inv.ID, Amount: ledger.MustMoney("30.00"), MethodID: 1,
			Status: ledger.PaymentVoided, Attachment: receipt("r.pdf"),
		})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		failures []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id ledger.PaymentID) {
			defer wg.Done()
			_, err := svc.ChangePaymentStatus(ctx, id, ledger.PaymentCompleted)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case !errors.Is(err, ledger.ErrRejected):
				failures = append(failures, fmt.Errorf("payment %d: %w", id, err))
			}
		}(id)
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, 3, accepted)
	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", ledger.FormatMoney(got.Balance))
}

// =============================================================================
// HELPERS
// =============================================================================

func TestMapError(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	constraint := sqlite3.Error{Code: sqlite3.ErrConstraint}

	assert.ErrorIs(t, mapError(busy), ledger.ErrUnavailable)
	assert.ErrorIs(t, mapError(fmt.Errorf("exec: %w", locked)), ledger.ErrUnavailable)
	assert.ErrorIs(t, mapError(context.DeadlineExceeded), ledger.ErrUnavailable)
	assert.NotErrorIs(t, mapError(constraint), ledger.ErrUnavailable)
	assert.NoError(t, mapError(nil))
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 7, 4, 10, 11, 12, 13000, time.FixedZone("X", 3600))
	out := parseTime(formatTime(in))
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())
}
