/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  The default store. Everything the engine needs (invoice row lock,
  payment sums, atomic multi-row writes) maps onto one SQLite database
  file.

KEY TABLES:
  payment_statuses, invoice_statuses, payment_methods: lookup (id, code, name)
  customers:           invoice owners
  invoices:            total, balance, status_id
  payments:            amount, method_id, status_id, invoice_id
  payment_attachments: receipt bytes, one row per payment

MONEY:
  Stored as TEXT ("100.00") and summed in Go with decimal. SQLite has no
  decimal type; SUM over REAL would round.

TIMESTAMPS:
  Stored as fixed-width UTC text so that string order equals time order
  and date range filters can compare directly.

CONCURRENCY:
  Opened with _txlock=immediate: every transaction takes the database
  write lock at BEGIN, which is a superset of the invoice row lock the
  engine asks for. Writers wait up to the busy timeout; past that the
  driver reports SQLITE_BUSY, which is mapped to ledger.ErrUnavailable.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, catalog, ledger.DefaultOptions(), log)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/postgres: Same contract with row-level locks
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payment-ledger/ledger"
)

// timeLayout keeps lexicographic order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultBusyTimeout is how long a writer waits for the database lock.
const DefaultBusyTimeout = 5 * time.Second

// Store implements ledger.Store using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*config)

type config struct {
	busyTimeout time.Duration
	now         func() time.Time
}

// WithBusyTimeout sets how long a transaction waits for the write lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) { c.busyTimeout = d }
}

// WithClock overrides the source of created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	cfg := config{
		busyTimeout: DefaultBusyTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=%d",
		dbPath, cfg.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: cfg.now}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.db.PingContext(ctx))
}

// Migrate creates the schema and seeds the lookup tables. Safe to run
// repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS payment_statuses (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoice_statuses (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_methods (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		total TEXT NOT NULL,
		balance TEXT NOT NULL,
		status_id INTEGER NOT NULL REFERENCES invoice_statuses(id),
		activity TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id),
		amount TEXT NOT NULL,
		method_id INTEGER NOT NULL REFERENCES payment_methods(id),
		status_id INTEGER NOT NULL REFERENCES payment_statuses(id),
		created_at TEXT NOT NULL
	);

	-- Hot path: sums per invoice by status
	CREATE INDEX IF NOT EXISTS idx_payments_invoice_status ON payments(invoice_id, status_id);
	CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at);

	CREATE TABLE IF NOT EXISTS payment_attachments (
		payment_id INTEGER PRIMARY KEY REFERENCES payments(id),
		name TEXT NOT NULL,
		data BLOB NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return s.seedLookups(ctx)
}

func (s *Store) seedLookups(ctx context.Context) error {
	ps, is, ms := ledger.DefaultLookups()
	seed := map[string][]ledger.LookupEntry{
		"payment_statuses": ps,
		"invoice_statuses": is,
		"payment_methods":  ms,
	}
	for table, rows := range seed {
		for _, r := range rows {
			_, err := s.db.ExecContext(ctx,
				"INSERT OR IGNORE INTO "+table+" (id, code, name) VALUES (?, ?, ?)",
				r.ID, r.Code, r.Name)
			if err != nil {
				return fmt.Errorf("seed %s: %w", table, err)
			}
		}
	}
	return nil
}

// LoadLookups reads all three lookup tables.
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
	rows, err := s.db.QueryContext(ctx, "SELECT id, code, name FROM "+table+" ORDER BY id")
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
	return out, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) CreateCustomer(ctx context.Context, c *ledger.Customer) error {
	c.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (name, created_at) VALUES (?, ?)`,
		c.Name, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = ledger.CustomerID(id)
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	var (
		c         ledger.Customer
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", mapError(err))
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", mapError(err))
	}
	defer rows.Close()

	customers := []ledger.Customer{}
	for rows.Next() {
		var (
			c         ledger.Customer
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `
	SELECT i.id, i.customer_id, c.name, i.total, i.balance, st.code, i.activity, i.created_at
	FROM invoices i
	JOIN customers c ON c.id = i.customer_id
	JOIN invoice_statuses st ON st.id = i.status_id`

func (s *Store) GetInvoice(ctx context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

func getInvoice(ctx context.Context, q querier, id ledger.InvoiceID) (*ledger.Invoice, error) {
	rows, err := q.QueryContext(ctx, invoiceColumns+` WHERE i.id = ?`, id)
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
		args  []any
	)
	if f.CustomerID != nil {
		conds = append(conds, "i.customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.Status != nil {
		conds = append(conds, "st.code = ?")
		args = append(args, string(*f.Status))
	}
	conds, args = appendRange(conds, args, "i.created_at", f.From, f.To)

	rows, err := s.db.QueryContext(ctx, invoiceColumns+where(conds)+` ORDER BY i.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", mapError(err))
	}
	return scanInvoices(rows)
}

func scanInvoices(rows *sql.Rows) ([]ledger.Invoice, error) {
	defer rows.Close()

	invoices := []ledger.Invoice{}
	for rows.Next() {
		var (
			inv             ledger.Invoice
			total, balance  string
			status, created string
		)
		err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.CustomerName,
			&total, &balance, &status, &inv.Activity, &created)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		if inv.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invoice %d: bad total %q: %w", inv.ID, total, err)
		}
		if inv.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("invoice %d: bad balance %q: %w", inv.ID, balance, err)
		}
		inv.Status = ledger.InvoiceStatus(status)
		inv.CreatedAt = parseTime(created)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return invoices, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `
	SELECT p.id, p.invoice_id, p.amount, p.method_id, st.code, a.name, p.created_at
	FROM payments p
	JOIN payment_statuses st ON st.id = p.status_id
	LEFT JOIN payment_attachments a ON a.payment_id = p.id`

func (s *Store) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, q querier, id ledger.PaymentID) (*ledger.Payment, error) {
	rows, err := q.QueryContext(ctx, paymentColumns+` WHERE p.id = ?`, id)
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
		args  []any
	)
	if f.InvoiceID != nil {
		conds = append(conds, "p.invoice_id = ?")
		args = append(args, *f.InvoiceID)
	}
	if f.Status != nil {
		conds = append(conds, "st.code = ?")
		args = append(args, string(*f.Status))
	}
	if f.MethodID != nil {
		conds = append(conds, "p.method_id = ?")
		args = append(args, *f.MethodID)
	}
	conds, args = appendRange(conds, args, "p.created_at", f.From, f.To)

	order := ` ORDER BY p.id`
	switch f.SortByDate {
	case ledger.SortAsc:
		order = ` ORDER BY p.created_at ASC, p.id ASC`
	case ledger.SortDesc:
		order = ` ORDER BY p.created_at DESC, p.id DESC`
	}

	rows, err := s.db.QueryContext(ctx, paymentColumns+where(conds)+order, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", mapError(err))
	}
	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]ledger.Payment, error) {
	defer rows.Close()

	payments := []ledger.Payment{}
	for rows.Next() {
		var (
			p              ledger.Payment
			amount, status string
			attachmentName sql.NullString
			created        string
		)
		err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &p.MethodID, &status, &attachmentName, &created)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %d: bad amount %q: %w", p.ID, amount, err)
		}
		p.Status = ledger.PaymentStatus(status)
		p.AttachmentName = attachmentName.String
		p.HasAttachment = attachmentName.Valid
		p.CreatedAt = parseTime(created)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return payments, nil
}

func (s *Store) GetAttachment(ctx context.Context, id ledger.PaymentID) (*ledger.Attachment, error) {
	att := ledger.Attachment{PaymentID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, data FROM payment_attachments WHERE payment_id = ?`, id,
	).Scan(&att.Name, &att.Data)
	if errors.Is(err, sql.ErrNoRows) {
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

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", mapError(err))
	}
	return nil
}

// txStore never touches parent.db: with a single connection that would
// wait on itself.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

// LockInvoice reads the invoice. BEGIN IMMEDIATE already holds the database
// write lock, so no row-level statement is needed.
func (ts *txStore) LockInvoice(ctx context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	return getInvoice(ctx, ts.tx, id)
}

func (ts *txStore) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) SumPayments(ctx context.Context, invoiceID ledger.InvoiceID, statuses []ledger.PaymentStatus, exclude ledger.PaymentID) (ledger.Money, error) {
	sum := ledger.ZeroMoney
	if len(statuses) == 0 {
		return sum, nil
	}

	args := []any{invoiceID, exclude}
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	query := `
		SELECT p.amount
		FROM payments p
		JOIN payment_statuses st ON st.id = p.status_id
		WHERE p.invoice_id = ? AND p.id <> ? AND st.code IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return sum, fmt.Errorf("failed to sum payments: %w", mapError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return sum, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return sum, fmt.Errorf("invoice %d: bad payment amount %q: %w", invoiceID, amount, err)
		}
		sum = sum.Add(d)
	}
	return sum, mapError(rows.Err())
}

func (ts *txStore) InsertInvoice(ctx context.Context, inv *ledger.Invoice) error {
	inv.CreatedAt = ts.parent.now().UTC()
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO invoices (customer_id, total, balance, status_id, activity, created_at)
		VALUES (?, ?, ?, (SELECT id FROM invoice_statuses WHERE code = ?), ?, ?)`,
		inv.CustomerID,
		ledger.FormatMoney(inv.Total),
		ledger.FormatMoney(inv.Balance),
		string(inv.Status),
		inv.Activity,
		formatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = ledger.InvoiceID(id)
	return nil
}

func (ts *txStore) InsertPayment(ctx context.Context, p *ledger.Payment, att *ledger.Attachment) error {
	p.CreatedAt = ts.parent.now().UTC()
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO payments (invoice_id, amount, method_id, status_id, created_at)
		VALUES (?, ?, ?, (SELECT id FROM payment_statuses WHERE code = ?), ?)`,
		p.InvoiceID,
		ledger.FormatMoney(p.Amount),
		p.MethodID,
		string(p.Status),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = ledger.PaymentID(id)

	if att == nil {
		return nil
	}
	_, err = ts.tx.ExecContext(ctx,
		`INSERT INTO payment_attachments (payment_id, name, data) VALUES (?, ?, ?)`,
		p.ID, att.Name, att.Data)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", mapError(err))
	}
	p.AttachmentName = att.Name
	p.HasAttachment = true
	return nil
}

func (ts *txStore) UpdatePaymentStatus(ctx context.Context, id ledger.PaymentID, status ledger.PaymentStatus) error {
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE payments
		SET status_id = (SELECT id FROM payment_statuses WHERE code = ?)
		WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", mapError(err))
	}
	return expectOneRow(res, "payment", int64(id))
}

func (ts *txStore) UpdateInvoiceBalance(ctx context.Context, id ledger.InvoiceID, balance ledger.Money, status ledger.InvoiceStatus) error {
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE invoices
		SET balance = ?, status_id = (SELECT id FROM invoice_statuses WHERE code = ?)
		WHERE id = ?`,
		ledger.FormatMoney(balance), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", mapError(err))
	}
	return expectOneRow(res, "invoice", int64(id))
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data but the lookup tables (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"payment_attachments", "payments", "invoices", "customers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func expectOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%s %d: %d rows updated", kind, id, n)
	}
	return nil
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func appendRange(conds []string, args []any, column string, from, to *time.Time) ([]string, []any) {
	if from != nil {
		conds = append(conds, column+" >= ?")
		args = append(args, formatTime(*from))
	}
	if to != nil {
		conds = append(conds, column+" <= ?")
		args = append(args, formatTime(*to))
	}
	return conds, args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// mapError marks lock contention and timeouts as ledger.ErrUnavailable so
// the service retries them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return ledger.Unavailable(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ledger.Unavailable(err)
	}
	return err
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*txStore)(nil)
)
