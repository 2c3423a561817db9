/*
Package ledger provides the invoice/payment reconciliation engine.

PURPOSE:
  This package owns the only part of the system with real invariants: the
  sum of non-voided payments against an invoice never exceeds its total, and
  the invoice's balance and status always agree with its payment history.
  Every payment state change flows through one transactional path that
  recomputes sums, validates them and writes payment + invoice together.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: fixed-point currency amount (decimal.Decimal, 2 fractional digits)
  - Invoice: amount owed, remaining balance, derived status
  - Payment: amount applied to an invoice, with status and attachment
  - Customer: owner of invoices (external data, read for display)

DESIGN PRINCIPLES:
  1. Precision: Money is decimal.Decimal, never float64
  2. Single writer: invoice balance/status are only written by reconcile.go
  3. Explicit transactions: every core operation receives its Tx handle
  4. Type Safety: distinct ID types for invoices, payments, customers

USAGE:
  svc := ledger.NewService(store, catalog, ledger.DefaultOptions(), log)
  inv, err := svc.CreateInvoice(ctx, ledger.CreateInvoiceInput{
      CustomerID: 1,
      Total:      ledger.MustMoney("100.00"),
      Activity:   "Consulting",
  })

SEE ALSO:
  - status.go: Status enums and the lookup catalog
  - aggregate.go: Sum of payments by status category
  - validator.go: Transition admission rules
  - reconcile.go: Atomic status change + invoice recompute
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point currency amount
// =============================================================================

// MoneyScale is the number of fractional digits a currency amount may carry.
const MoneyScale = 2

// Money is a currency amount. All arithmetic goes through decimal.Decimal.
type Money = decimal.Decimal

// ZeroMoney is the additive identity.
var ZeroMoney = decimal.Zero

// ParseMoney parses a decimal string such as "100.00".
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney parses s and panics on malformed input. Intended for tests and
// static fixtures.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// HasMoneyScale reports whether m fits in MoneyScale fractional digits.
func HasMoneyScale(m Money) bool {
	return m.Equal(m.Round(MoneyScale))
}

// FormatMoney renders m with exactly MoneyScale fractional digits.
func FormatMoney(m Money) string {
	return m.StringFixed(MoneyScale)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type InvoiceID int64
type PaymentID int64
type CustomerID int64
type PaymentMethodID int64

// NoPayment is used where "exclude no payment" is meant. Store sequences start
// at 1, so no persisted payment has this id.
const NoPayment PaymentID = 0

// =============================================================================
// ENTITIES
// =============================================================================

// Customer owns invoices. Customers are reference data for this package.
type Customer struct {
	ID        CustomerID
	Name      string
	CreatedAt time.Time
}

// Invoice is an amount owed by a customer.
//
// INVARIANTS (maintained by reconcile.go only):
//   - Balance == Total - sum(Completed payments)
//   - 0 <= Balance <= Total
//   - Status derived by DeriveInvoiceStatus
type Invoice struct {
	ID           InvoiceID
	CustomerID   CustomerID
	CustomerName string
	Total        Money
	Balance      Money
	Status       InvoiceStatus
	StatusName   string
	Activity     string
	CreatedAt    time.Time
}

// Payment is an amount applied to one invoice. InvoiceID never changes after
// creation; Status changes only through the reconciliation engine.
type Payment struct {
	ID             PaymentID
	InvoiceID      InvoiceID
	Amount         Money
	MethodID       PaymentMethodID
	MethodName     string
	Status         PaymentStatus
	StatusName     string
	AttachmentName string
	HasAttachment  bool
	CreatedAt      time.Time
}

// Attachment is the opaque receipt stored with a payment.
type Attachment struct {
	PaymentID   PaymentID
	Name        string
	ContentType string
	Data        []byte
}

// =============================================================================
// FILTERS - Read path parameters
// =============================================================================

// InvoiceFilter narrows ListInvoices. Nil fields are not applied.
// From and To bound CreatedAt inclusively.
type InvoiceFilter struct {
	CustomerID *CustomerID
	Status     *InvoiceStatus
	From       *time.Time
	To         *time.Time
}

// SortOrder controls ordering by creation date.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PaymentFilter narrows ListPayments. Nil fields are not applied.
type PaymentFilter struct {
	InvoiceID  *InvoiceID
	Status     *PaymentStatus
	MethodID   *PaymentMethodID
	From       *time.Time
	To         *time.Time
	SortByDate SortOrder
}
