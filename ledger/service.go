/*
service.go - Caller-facing operations

PURPOSE:
  The surface the presentation layer talks to. Reads go straight to the
  store; every write runs through a transaction with the invoice row
  locked, so creation and status changes see the same consistent state.

OPERATIONS:
  CreateInvoice, GetInvoice, ListInvoices
  CreatePayment, GetPayment, ListPayments, GetAttachment
  ChangePaymentStatus (-> Engine.ApplyStatusChange)
  CreateCustomer, ListCustomers, Catalog

INPUT VALIDATION:
  Done before any transaction starts. Money must be positive and carry at
  most two fractional digits.

PAYMENT CREATION:
  A new payment starts InProgress (or Voided when the caller says so).
  Inside the transaction:
    1. lock invoice
    2. amount > current balance       -> Rejected (courtesy bound)
    3. validator as a fresh inclusion -> Rejected if exposure > total
    4. insert payment + attachment
    5. reconcile invoice (Pending becomes InProgress)
  Voided payments skip 2 and 3.

RETRIES:
  Writes that fail with Unavailable are retried per Options.Retry; each
  attempt gets its own Options.TxTimeout.

SEE ALSO:
  - reconcile.go: The engine behind ChangePaymentStatus
  - api/handlers.go: HTTP adapter over Service
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// MinActivityLength is the minimum length of an invoice activity label.
const MinActivityLength = 3

// Options tunes the service.
type Options struct {
	TxTimeout          time.Duration
	Retry              RetryPolicy
	MaxAttachmentBytes int64
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		TxTimeout:          5 * time.Second,
		Retry:              DefaultRetryPolicy(),
		MaxAttachmentBytes: DefaultMaxAttachmentBytes,
	}
}

// Service exposes invoice and payment operations.
type Service struct {
	store   Store
	catalog *Catalog
	engine  *Engine
	opts    Options
	log     zerolog.Logger
}

// NewService wires a service over store.
func NewService(store Store, catalog *Catalog, opts Options, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		engine:  NewEngine(store, catalog, log),
		opts:    opts,
		log:     log,
	}
}

// LoadCatalog reads the lookup tables from store and builds the catalog.
func LoadCatalog(ctx context.Context, store Store) (*Catalog, error) {
	ps, is, ms, err := store.LoadLookups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load lookups: %w", err)
	}
	return NewCatalog(ps, is, ms)
}

func (s *Service) Catalog() *Catalog { return s.catalog }

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// write runs fn with retries, each attempt bounded by TxTimeout.
func (s *Service) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if s.opts.TxTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.TxTimeout)
			defer cancel()
		}
		err := fn(ctx)
		if err != nil && IsRetryable(err) {
			s.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("retryable store failure")
		}
		return err
	})
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// CreateCustomer stores a customer. Customers are reference data; this
// exists so a fresh database can be seeded.
func (s *Service) CreateCustomer(ctx context.Context, name string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "customer name is required")
	}
	c := &Customer{Name: name}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.store.ListCustomers(ctx)
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoiceInput is the input of CreateInvoice.
type CreateInvoiceInput struct {
	CustomerID CustomerID
	Total      Money
	Activity   string
}

func (in CreateInvoiceInput) validate() error {
	if in.CustomerID <= 0 {
		return NewValidationError("customer_id", "must be a positive id")
	}
	if !in.Total.IsPositive() {
		return NewValidationError("total", "must be greater than zero")
	}
	if !HasMoneyScale(in.Total) {
		return NewValidationError("total", "at most two decimal places")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Activity)) < MinActivityLength {
		return NewValidationError("activity", fmt.Sprintf("must be at least %d characters", MinActivityLength))
	}
	return nil
}

// CreateInvoice creates a Pending invoice whose balance equals its total.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	customer, err := s.store.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer %d: %w", in.CustomerID, err)
	}
	if customer == nil {
		return nil, &NotFoundError{Kind: "customer", ID: int64(in.CustomerID)}
	}

	var inv *Invoice
	err = s.write(ctx, "create invoice", func(ctx context.Context) error {
		inv = &Invoice{
			CustomerID:   in.CustomerID,
			CustomerName: customer.Name,
			Total:        in.Total,
			Balance:      in.Total,
			Status:       InvoicePending,
			Activity:     strings.TrimSpace(in.Activity),
		}
		return s.store.WithTx(ctx, func(tx Tx) error {
			return tx.InsertInvoice(ctx, inv)
		})
	})
	if err != nil {
		return nil, err
	}

	s.catalog.ResolveInvoice(inv)
	s.log.Info().
		Int64("invoice_id", int64(inv.ID)).
		Int64("customer_id", int64(inv.CustomerID)).
		Str("total", FormatMoney(inv.Total)).
		Msg("invoice created")
	return inv, nil
}

// GetInvoice returns one invoice or a NotFoundError.
func (s *Service) GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	if inv == nil {
		return nil, &NotFoundError{Kind: "invoice", ID: int64(id)}
	}
	s.catalog.ResolveInvoice(inv)
	return inv, nil
}

// ListInvoices returns invoices matching filter, ordered by id.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	invoices, err := s.store.ListInvoices(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	for i := range invoices {
		s.catalog.ResolveInvoice(&invoices[i])
	}
	return invoices, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CreatePaymentInput is the input of CreatePayment. Status may be empty
// (InProgress) or PaymentVoided.
type CreatePaymentInput struct {
	InvoiceID  InvoiceID
	Amount     Money
	MethodID   PaymentMethodID
	Status     PaymentStatus
	Attachment *Attachment
}

func (s *Service) validatePayment(in *CreatePaymentInput) error {
	if in.InvoiceID <= 0 {
		return NewValidationError("invoice_id", "must be a positive id")
	}
	if !in.Amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	if !HasMoneyScale(in.Amount) {
		return NewValidationError("amount", "at most two decimal places")
	}
	switch in.Status {
	case "":
		in.Status = PaymentInProgress
	case PaymentInProgress, PaymentVoided:
	case PaymentCompleted:
		return NewValidationError("status", "a new payment must be in progress or voided")
	default:
		return NewValidationError("status", fmt.Sprintf("unknown payment status %q", in.Status))
	}
	if in.MethodID <= 0 {
		return NewValidationError("method_id", "must be a positive id")
	}
	if _, ok := s.catalog.Method(in.MethodID); !ok {
		return &NotFoundError{Kind: "payment method", ID: int64(in.MethodID)}
	}
	return ValidateAttachment(in.Attachment, s.opts.MaxAttachmentBytes)
}

// CreatePayment records a payment with its receipt against an invoice.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if err := s.validatePayment(&in); err != nil {
		return nil, err
	}

	var payment *Payment
	err := s.write(ctx, "create payment", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Tx) error {
			inv, err := tx.LockInvoice(ctx, in.InvoiceID)
			if err != nil {
				return fmt.Errorf("lock invoice %d: %w", in.InvoiceID, err)
			}
			if inv == nil {
				return &NotFoundError{Kind: "invoice", ID: int64(in.InvoiceID)}
			}

			if in.Status.CountsTowardExposure() && in.Amount.GreaterThan(inv.Balance) {
				return &RejectedError{
					InvoiceID:   inv.ID,
					Reason:      ReasonExceedsBalance,
					Prospective: in.Amount,
					Limit:       inv.Balance,
					Total:       inv.Total,
				}
			}

			fresh := &Payment{ID: NoPayment, InvoiceID: inv.ID}
			if _, err := s.engine.validator.Validate(ctx, tx, inv, fresh, in.Amount, in.Status); err != nil {
				return err
			}

			payment = &Payment{
				InvoiceID:      inv.ID,
				Amount:         in.Amount,
				MethodID:       in.MethodID,
				Status:         in.Status,
				AttachmentName: strings.TrimSpace(in.Attachment.Name),
				HasAttachment:  true,
			}
			att := &Attachment{
				Name:        payment.AttachmentName,
				ContentType: ContentTypeFor(payment.AttachmentName),
				Data:        in.Attachment.Data,
			}
			if err := tx.InsertPayment(ctx, payment, att); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}

			_, err = s.engine.ReconcileInvoice(ctx, tx, inv)
			return err
		})
	})
	if err != nil {
		s.log.Info().Err(err).Int64("invoice_id", int64(in.InvoiceID)).Msg("payment not created")
		return nil, err
	}

	s.catalog.ResolvePayment(payment)
	s.log.Info().
		Int64("payment_id", int64(payment.ID)).
		Int64("invoice_id", int64(payment.InvoiceID)).
		Str("amount", FormatMoney(payment.Amount)).
		Str("status", string(payment.Status)).
		Msg("payment created")
	return payment, nil
}

// GetPayment returns one payment or a NotFoundError.
func (s *Service) GetPayment(ctx context.Context, id PaymentID) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	if p == nil {
		return nil, &NotFoundError{Kind: "payment", ID: int64(id)}
	}
	s.catalog.ResolvePayment(p)
	return p, nil
}

// ListPayments returns payments matching filter.
func (s *Service) ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	switch filter.SortByDate {
	case SortNone, SortAsc, SortDesc:
	default:
		return nil, NewValidationError("sort", fmt.Sprintf("unknown sort order %q", filter.SortByDate))
	}
	payments, err := s.store.ListPayments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	for i := range payments {
		s.catalog.ResolvePayment(&payments[i])
	}
	return payments, nil
}

// ChangePaymentStatus moves a payment to target and reconciles its invoice.
func (s *Service) ChangePaymentStatus(ctx context.Context, id PaymentID, target PaymentStatus) (*Payment, error) {
	if !target.Valid() {
		return nil, NewValidationError("status", fmt.Sprintf("unknown payment status %q", target))
	}
	var p *Payment
	err := s.write(ctx, "change payment status", func(ctx context.Context) error {
		var err error
		p, err = s.engine.ApplyStatusChange(ctx, id, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetAttachment returns the receipt stored with a payment.
func (s *Service) GetAttachment(ctx context.Context, id PaymentID) (*Attachment, error) {
	att, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get attachment %d: %w", id, err)
	}
	if att == nil {
		return nil, &NotFoundError{Kind: "attachment", ID: int64(id)}
	}
	att.ContentType = ContentTypeFor(att.Name)
	return att, nil
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return NewValidationError("date range", "from must not be after to")
	}
	return nil
}
