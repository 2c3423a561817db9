/*
store.go - Persistence contract consumed by the engine

PURPOSE:
  Defines the interface between the reconciliation logic and the
  relational store. The store is a collaborator: it knows tables and SQL,
  the engine knows invariants.

KEY INTERFACES:
  Store: reads outside a transaction + WithTx
  Tx:    operations that only exist inside a transaction (locking read,
         aggregate, insert, update)

TRANSACTIONS:
  WithTx(ctx, fn) begins a transaction with at least READ COMMITTED
  isolation, passes the handle to fn, commits when fn returns nil and
  rolls back otherwise. There are no partial commits.

LOCKING:
  Tx.LockInvoice reads the invoice row and holds a write lock on it until
  the transaction ends. Every payment write happens after locking the
  owning invoice, so transitions on one invoice serialize while transitions
  on different invoices do not contend.

NOT FOUND:
  Point reads return (nil, nil) when the row is absent. Deciding whether
  absence is NotFound or Integrity is the caller's job.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (default)
  - store/postgres: PostgreSQL via pgx
  - ledger/store: in-memory, for tests

SEE ALSO:
  - reconcile.go: The only writer of invoice balance/status
*/
package ledger

import "context"

// =============================================================================
// STORE - Non-transactional reads and the transaction boundary
// =============================================================================

// Store is the ledger's persistence collaborator.
type Store interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error

	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)

	// GetAttachment returns the stored receipt, or nil if the payment has none.
	GetAttachment(ctx context.Context, id PaymentID) (*Attachment, error)

	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	CreateCustomer(ctx context.Context, c *Customer) error

	// LoadLookups returns the lookup table rows used to build the Catalog.
	LoadLookups(ctx context.Context) (paymentStatuses, invoiceStatuses, methods []LookupEntry, err error)

	Ping(ctx context.Context) error
}

// =============================================================================
// TX - Operations inside one transaction
// =============================================================================

// Tx is a transaction handle. It is only valid inside the WithTx callback.
type Tx interface {
	// LockInvoice reads the invoice and locks its row for the rest of the
	// transaction.
	LockInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)

	// GetPayment reads a payment, seeing this transaction's own writes.
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)

	// SumPayments returns the sum of amounts of the invoice's payments whose
	// status is in statuses, skipping exclude (NoPayment skips nothing).
	// Returns zero when nothing matches.
	SumPayments(ctx context.Context, invoiceID InvoiceID, statuses []PaymentStatus, exclude PaymentID) (Money, error)

	// InsertInvoice persists inv and sets its ID and CreatedAt.
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// InsertPayment persists p with its attachment and sets ID and CreatedAt.
	InsertPayment(ctx context.Context, p *Payment, att *Attachment) error

	UpdatePaymentStatus(ctx context.Context, id PaymentID, status PaymentStatus) error
	UpdateInvoiceBalance(ctx context.Context, id InvoiceID, balance Money, status InvoiceStatus) error
}
