package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-ledger/ledger"
)

// testDSNEnv names the database used by the integration tests. They are
// skipped when it is unset.
const testDSNEnv = "LEDGER_TEST_POSTGRES_DSN"

func newTestService(t *testing.T) (*Store, *ledger.Service) {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, WithLockTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	catalog, err := ledger.LoadCatalog(ctx, s)
	require.NoError(t, err)
	return s, ledger.NewService(s, catalog, ledger.DefaultOptions(), zerolog.Nop())
}

func seedInvoice(t *testing.T, svc *ledger.Service, total string) *ledger.Invoice {
	t.Helper()
	ctx := context.Background()
	c, err := svc.CreateCustomer(ctx, "Stark Industries")
	require.NoError(t, err)
	inv, err := svc.CreateInvoice(ctx, ledger.CreateInvoiceInput{
		CustomerID: c.ID,
		Total:      ledger.MustMoney(total),
		Activity:   "Installation",
	})
	require.NoError(t, err)
	return inv
}

func createPayment(t *testing.T, svc *ledger.Service, id ledger.InvoiceID, amount string, status ledger.PaymentStatus) *ledger.Payment {
	t.Helper()
	p, err := svc.CreatePayment(context.Background(), ledger.CreatePaymentInput{
		InvoiceID:  id,
		Amount:     ledger.MustMoney(amount),
		MethodID:   1,
		Status:     status,
		Attachment: &ledger.Attachment{Name: "receipt.pdf", Data: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	return p
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock timeout", fmt.Errorf("lock invoice: %w", &pgconn.PgError{Code: "55P03"}), true},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.Equal(t, tt.retryable, errors.Is(got, ledger.ErrUnavailable))
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, mapError(nil))
}

func TestParams(t *testing.T) {
	var p params
	assert.Equal(t, "$1", p.add(10))
	assert.Equal(t, "$2", p.add("x"))
	assert.Len(t, p, 2)
}

func TestStore_PaymentLifecycle(t *testing.T) {
	s, svc := newTestService(t)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")

	first := createPayment(t, svc, inv.ID, "60.00", "")
	_, err := svc.ChangePaymentStatus(ctx, first.ID, ledger.PaymentCompleted)
	require.NoError(t, err)

	second := createPayment(t, svc, inv.ID, "50.00", ledger.PaymentVoided)
	_, err = svc.ChangePaymentStatus(ctx, second.ID, ledger.PaymentCompleted)
	var rej *ledger.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "110.00", ledger.FormatMoney(rej.Prospective))

	_, err = svc.ChangePaymentStatus(ctx, first.ID, ledger.PaymentVoided)
	require.NoError(t, err)
	_, err = svc.ChangePaymentStatus(ctx, second.ID, ledger.PaymentCompleted)
	require.NoError(t, err)

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", ledger.FormatMoney(got.Balance))
	assert.Equal(t, ledger.InvoiceInProgress, got.Status)
	assert.Equal(t, "Stark Industries", got.CustomerName)

	att, err := svc.GetAttachment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ContentTypePDF, att.ContentType)

	payments, err := svc.ListPayments(ctx, ledger.PaymentFilter{InvoiceID: &inv.ID, SortByDate: ledger.SortAsc})
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, first.ID, payments[0].ID)
}

func TestStore_ConcurrentCompletions(t *testing.T) {
	// GIVEN: Ten voided payments of 30.00 on a 100.00 invoice
	// WHEN: They are completed concurrently on separate connections
	// THEN: The row lock admits exactly three

	_, svc := newTestService(t)
	ctx := context.Background()
	inv := seedInvoice(t, svc, "100.00")

	var ids []ledger.PaymentID
	for i := 0; i < 10; i++ {
		ids = append(ids, createPayment(t, svc, inv.ID, "30.00", ledger.PaymentVoided).ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id ledger.PaymentID) {
			defer wg.Done()
			_, err := svc.ChangePaymentStatus(ctx, id, ledger.PaymentCompleted)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			assert.ErrorIs(t, err, ledger.ErrRejected)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", ledger.FormatMoney(got.Balance))
}
