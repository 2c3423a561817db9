/*
Package postgres provides a PostgreSQL implementation of ledger.Store using
pgx.

PURPOSE:
  Same contract as store/sqlite, for deployments with more than one writer
  process. Money is NUMERIC(12,2) and sums happen in SQL; values cross the
  driver boundary as text so nothing passes through float64.

LOCKING:
  Transactions run at READ COMMITTED. LockInvoice is
  SELECT ... FOR UPDATE on the invoice row, so status changes on one
  invoice serialize and different invoices proceed in parallel. A
  per-transaction lock_timeout bounds the wait.

ERRORS:
  40001 serialization_failure  -> ledger.ErrUnavailable
  40P01 deadlock_detected      -> ledger.ErrUnavailable
  55P03 lock_not_available     -> ledger.ErrUnavailable
  57014 query_canceled         -> ledger.ErrUnavailable

SEE ALSO:
  - store/sqlite: Default store
  - ledger/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/payment-ledger/ledger"
)

// DefaultLockTimeout bounds how long a transaction waits for a row lock.
const DefaultLockTimeout = 2 * time.Second

// Store implements ledger.Store using a pgx connection pool.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets the per-transaction lock_timeout. Zero disables it.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// New connects to dsn, verifies the connection and migrates the schema.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	s := &Store{pool: pool, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.pool.Ping(ctx))
}

const schema = `
CREATE TABLE IF NOT EXISTS payment_statuses (
	id BIGINT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_statuses (
	id BIGINT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_methods (
	id BIGINT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invoices (
	id BIGSERIAL PRIMARY KEY,
	customer_id BIGINT NOT NULL REFERENCES customers(id),
	total NUMERIC(12,2) NOT NULL CHECK (total > 0),
	balance NUMERIC(12,2) NOT NULL CHECK (balance >= 0 AND balance <= total),
	status_id BIGINT NOT NULL REFERENCES invoice_statuses(id),
	activity TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);
CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at);

CREATE TABLE IF NOT EXISTS payments (
	id BIGSERIAL PRIMARY KEY,
	invoice_id BIGINT NOT NULL REFERENCES invoices(id),
	amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	method_id BIGINT NOT NULL REFERENCES payment_methods(id),
	status_id BIGINT NOT NULL REFERENCES payment_statuses(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_payments_invoice_status ON payments(invoice_id, status_id);
CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at);

CREATE TABLE IF NOT EXISTS payment_attachments (
	payment_id BIGINT PRIMARY KEY REFERENCES payments(id),
	name TEXT NOT NULL,
	data BYTEA NOT NULL
);
`

// Migrate creates the schema and seeds the lookup tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return mapError(err)
	}

	ps, is, ms := ledger.DefaultLookups()
	seed := []struct {
		table string
		rows  []ledger.LookupEntry
	}{
		{"payment_statuses", ps},
		{"invoice_statuses", is},
		{"payment_methods", ms},
	}
	for _, t := range seed {
		for _, r := range t.rows {
			_, err := s.pool.Exec(ctx,
				"INSERT INTO "+t.table+" (id, code, name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING",
				r.ID, r.Code, r.Name)
			if err != nil {
				return fmt.Errorf("seed %s: %w", t.table, mapError(err))
			}
		}
	}
	return nil
}

func (s *Store) LoadLookups(ctx context.Context) (ps, is, ms []ledger.LookupEntry, err error) {
	if ps, err = s.loadLookup(ctx, "payment_statuses"); err != nil {
		return nil, nil, nil, err
	}
	if is, err = s.loadLookup(ctx, "invoice_statuses"); err != nil {
		return nil, nil, nil, err
	}
	if ms, err = s.loadLookup(ctx, "payment_methods"); err != nil {
		return nil, nil, nil, err
	}
	return ps, is, ms, nil
}

func (s *Store) loadLookup(ctx context.Context, table string) ([]ledger.LookupEntry, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, code, name FROM "+table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, mapError(err))
	}
	defer rows.Close()

	var out []ledger.LookupEntry
	for rows.Next() {
		var e ledger.LookupEntry
		if err := rows.Scan(&e.ID, &e.Code, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// params numbers positional arguments as they are added.
type params []any

func (p *params) add(v any) string {
	*p = append(*p, v)
	return "$" + strconv.Itoa(len(*p))
}

// ===== CUSTOMERS =====

func (s *Store) CreateCustomer(ctx context.Context, c *ledger.Customer) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (name) VALUES ($1) RETURNING id, created_at`, c.Name,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	var c ledger.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", mapError(err))
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", mapError(err))
	}
	defer rows.Close()

	customers := []ledger.Customer{}
	for rows.Next() {
		var c ledger.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, mapError(rows.Err())
}

// ===== INVOICES =====

const invoiceColumns = `
	SELECT i.id, i.customer_id, c.name, i.total::text, i.balance::text, st.code, i.activity, i.created_at
	FROM invoices i
	JOIN customers c ON c.id = i.customer_id
	JOIN invoice_statuses st ON st.id = i.status_id`

func (s *Store) GetInvoice(ctx context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	return getInvoice(ctx, s.pool, invoiceColumns+` WHERE i.id = $1`, id)
}

func getInvoice(ctx context.Context, q querier, query string, id ledger.InvoiceID) (*ledger.Invoice, error) {
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", mapError(err))
	}
	invoices, err := scanInvoices(rows)
	if err != nil || len(invoices) == 0 {
		return nil, err
	}
	return &invoices[0], nil
}

func (s *Store) ListInvoices(ctx context.Context, f ledger.InvoiceFilter) ([]ledger.Invoice, error) {
	var (
		conds []string
		args  params
	)
	if f.CustomerID != nil {
		conds = append(conds, "i.customer_id = "+args.add(int64(*f.CustomerID)))
	}
	if f.Status != nil {
		conds = append(conds, "st.code = "+args.add(string(*f.Status)))
	}
	conds = appendRange(conds, &args, "i.created_at", f.From, f.To)

	rows, err := s.pool.Query(ctx, invoiceColumns+where(conds)+` ORDER BY i.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", mapError(err))
	}
	return scanInvoices(rows)
}

func scanInvoices(rows pgx.Rows) ([]ledger.Invoice, error) {
	defer rows.Close()

	invoices := []ledger.Invoice{}
	for rows.Next() {
		var (
			inv            ledger.Invoice
			total, balance string
			status         string
		)
		err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.CustomerName,
			&total, &balance, &status, &inv.Activity, &inv.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", mapError(err))
		}
		if inv.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invoice %d: bad total %q: %w", inv.ID, total, err)
		}
		if inv.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("invoice %d: bad balance %q: %w", inv.ID, balance, err)
		}
		inv.Status = ledger.InvoiceStatus(status)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return invoices, nil
}

// ===== PAYMENTS =====

const paymentColumns = `
	SELECT p.id, p.invoice_id, p.amount::text, p.method_id, st.code, a.name, p.created_at
	FROM payments p
	JOIN payment_statuses st ON st.id = p.status_id
	LEFT JOIN payment_attachments a ON a.payment_id = p.id`

func (s *Store) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, s.pool, id)
}

func getPayment(ctx context.Context, q querier, id ledger.PaymentID) (*ledger.Payment, error) {
	rows, err := q.Query(ctx, paymentColumns+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", mapError(err))
	}
	payments, err := scanPayments(rows)
	if err != nil || len(payments) == 0 {
		return nil, err
	}
	return &payments[0], nil
}

func (s *Store) ListPayments(ctx context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	var (
		conds []string
		args  params
	)
	if f.InvoiceID != nil {
		conds = append(conds, "p.invoice_id = "+args.add(int64(*f.InvoiceID)))
	}
	if f.Status != nil {
		conds = append(conds, "st.code = "+args.add(string(*f.Status)))
	}
	if f.MethodID != nil {
		conds = append(conds, "p.method_id = "+args.add(int64(*f.MethodID)))
	}
	conds = appendRange(conds, &args, "p.created_at", f.From, f.To)

	order := ` ORDER BY p.id`
	switch f.SortByDate {
	case ledger.SortAsc:
		order = ` ORDER BY p.created_at ASC, p.id ASC`
	case ledger.SortDesc:
		order = ` ORDER BY p.created_at DESC, p.id DESC`
	}

	rows, err := s.pool.Query(ctx, paymentColumns+where(conds)+order, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", mapError(err))
	}
	return scanPayments(rows)
}

func scanPayments(rows pgx.Rows) ([]ledger.Payment, error) {
	defer rows.Close()

	payments := []ledger.Payment{}
	for rows.Next() {
		var (
			p              ledger.Payment
			amount, status string
			attachmentName *string
		)
		err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &p.MethodID, &status, &attachmentName, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", mapError(err))
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %d: bad amount %q: %w", p.ID, amount, err)
		}
		p.Status = ledger.PaymentStatus(status)
		if attachmentName != nil {
			p.AttachmentName = *attachmentName
			p.HasAttachment = true
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return payments, nil
}

func (s *Store) GetAttachment(ctx context.Context, id ledger.PaymentID) (*ledger.Attachment, error) {
	att := ledger.Attachment{PaymentID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT name, data FROM payment_attachments WHERE payment_id = $1`, id,
	).Scan(&att.Name, &att.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", mapError(err))
	}
	return &att, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.Tx interface)
// =============================================================================

// WithTx runs fn in a READ COMMITTED transaction with lock_timeout set.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if s.lockTimeout > 0 {
		_, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`,
			strconv.FormatInt(s.lockTimeout.Milliseconds(), 10)+"ms")
		if err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", mapError(err))
		}
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", mapError(err))
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (ts *txStore) LockInvoice(ctx context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	return getInvoice(ctx, ts.tx, invoiceColumns+` WHERE i.id = $1 FOR UPDATE OF i`, id)
}

func (ts *txStore) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) SumPayments(ctx context.Context, invoiceID ledger.InvoiceID, statuses []ledger.PaymentStatus, exclude ledger.PaymentID) (ledger.Money, error) {
	if len(statuses) == 0 {
		return ledger.ZeroMoney, nil
	}
	codes := make([]string, len(statuses))
	for i, st := range statuses {
		codes[i] = string(st)
	}

	var sum string
	err := ts.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)::text
		FROM payments p
		JOIN payment_statuses st ON st.id = p.status_id
		WHERE p.invoice_id = $1 AND p.id <> $2 AND st.code = ANY($3)`,
		int64(invoiceID), int64(exclude), codes,
	).Scan(&sum)
	if err != nil {
		return ledger.ZeroMoney, fmt.Errorf("failed to sum payments: %w", mapError(err))
	}
	return decimal.NewFromString(sum)
}

func (ts *txStore) InsertInvoice(ctx context.Context, inv *ledger.Invoice) error {
	err := ts.tx.QueryRow(ctx, `
		INSERT INTO invoices (customer_id, total, balance, status_id, activity)
		VALUES ($1, $2::numeric, $3::numeric, (SELECT id FROM invoice_statuses WHERE code = $4), $5)
		RETURNING id, created_at`,
		int64(inv.CustomerID),
		ledger.FormatMoney(inv.Total),
		ledger.FormatMoney(inv.Balance),
		string(inv.Status),
		inv.Activity,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", mapError(err))
	}
	return nil
}

func (ts *txStore) InsertPayment(ctx context.Context, p *ledger.Payment, att *ledger.Attachment) error {
	err := ts.tx.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, amount, method_id, status_id)
		VALUES ($1, $2::numeric, $3, (SELECT id FROM payment_statuses WHERE code = $4))
		RETURNING id, created_at`,
		int64(p.InvoiceID),
		ledger.FormatMoney(p.Amount),
		int64(p.MethodID),
		string(p.Status),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", mapError(err))
	}

	if att == nil {
		return nil
	}
	_, err = ts.tx.Exec(ctx,
		`INSERT INTO payment_attachments (payment_id, name, data) VALUES ($1, $2, $3)`,
		int64(p.ID), att.Name, att.Data)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", mapError(err))
	}
	p.AttachmentName = att.Name
	p.HasAttachment = true
	return nil
}

func (ts *txStore) UpdatePaymentStatus(ctx context.Context, id ledger.PaymentID, status ledger.PaymentStatus) error {
	tag, err := ts.tx.Exec(ctx, `
		UPDATE payments
		SET status_id = (SELECT id FROM payment_statuses WHERE code = $1)
		WHERE id = $2`,
		string(status), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", mapError(err))
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("payment %d: %d rows updated", id, tag.RowsAffected())
	}
	return nil
}

func (ts *txStore) UpdateInvoiceBalance(ctx context.Context, id ledger.InvoiceID, balance ledger.Money, status ledger.InvoiceStatus) error {
	tag, err := ts.tx.Exec(ctx, `
		UPDATE invoices
		SET balance = $1::numeric, status_id = (SELECT id FROM invoice_statuses WHERE code = $2)
		WHERE id = $3`,
		ledger.FormatMoney(balance), string(status), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", mapError(err))
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("invoice %d: %d rows updated", id, tag.RowsAffected())
	}
	return nil
}

// ===== HELPERS =====

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func appendRange(conds []string, args *params, column string, from, to *time.Time) []string {
	if from != nil {
		conds = append(conds, column+" >= "+args.add(*from))
	}
	if to != nil {
		conds = append(conds, column+" <= "+args.add(*to))
	}
	return conds
}

// Postgres error codes that mean "try the whole transaction again".
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement_timeout)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryableCodes[pgErr.Code] {
		return ledger.Unavailable(err)
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return ledger.Unavailable(err)
	}
	return err
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*txStore)(nil)
)
