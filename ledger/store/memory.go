// Package store provides an in-memory ledger.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/payment-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps behind one mutex. A transaction holds the
// write lock from start to finish, which makes LockInvoice trivially
// correct and serializes all writers.
type Memory struct {
	mu sync.RWMutex

	customers   map[ledger.CustomerID]ledger.Customer
	invoices    map[ledger.InvoiceID]ledger.Invoice
	payments    map[ledger.PaymentID]ledger.Payment
	attachments map[ledger.PaymentID]ledger.Attachment

	nextCustomer ledger.CustomerID
	nextInvoice  ledger.InvoiceID
	nextPayment  ledger.PaymentID

	paymentStatuses []ledger.LookupEntry
	invoiceStatuses []ledger.LookupEntry
	methods         []ledger.LookupEntry

	now func() time.Time
}

// NewMemory returns an empty store seeded with the default lookup rows.
func NewMemory() *Memory {
	ps, is, ms := ledger.DefaultLookups()
	return &Memory{
		customers:       make(map[ledger.CustomerID]ledger.Customer),
		invoices:        make(map[ledger.InvoiceID]ledger.Invoice),
		payments:        make(map[ledger.PaymentID]ledger.Payment),
		attachments:     make(map[ledger.PaymentID]ledger.Attachment),
		paymentStatuses: ps,
		invoiceStatuses: is,
		methods:         ms,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the creation timestamp source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// DeleteInvoice removes an invoice while leaving its payments behind. Only
// useful for exercising dangling-reference handling.
func (m *Memory) DeleteInvoice(id ledger.InvoiceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invoices, id)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) LoadLookups(context.Context) (ps, is, ms []ledger.LookupEntry, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.LookupEntry(nil), m.paymentStatuses...),
		append([]ledger.LookupEntry(nil), m.invoiceStatuses...),
		append([]ledger.LookupEntry(nil), m.methods...),
		nil
}

// ===== CUSTOMERS =====

func (m *Memory) CreateCustomer(_ context.Context, c *ledger.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCustomer++
	c.ID = m.nextCustomer
	c.CreatedAt = m.now()
	m.customers[c.ID] = *c
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListCustomers(context.Context) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== INVOICES =====

func (m *Memory) GetInvoice(_ context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoiceLocked(id), nil
}

func (m *Memory) invoiceLocked(id ledger.InvoiceID) *ledger.Invoice {
	inv, ok := m.invoices[id]
	if !ok {
		return nil
	}
	if c, ok := m.customers[inv.CustomerID]; ok {
		inv.CustomerName = c.Name
	}
	return &inv
}

func (m *Memory) ListInvoices(_ context.Context, f ledger.InvoiceFilter) ([]ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Invoice, 0)
	for id := range m.invoices {
		inv := m.invoiceLocked(id)
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		if !inRange(inv.CreatedAt, f.From, f.To) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== PAYMENTS =====

func (m *Memory) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentLocked(id), nil
}

func (m *Memory) paymentLocked(id ledger.PaymentID) *ledger.Payment {
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	return &p
}

func (m *Memory) ListPayments(_ context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Payment, 0)
	for _, p := range m.payments {
		if f.InvoiceID != nil && p.InvoiceID != *f.InvoiceID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.MethodID != nil && p.MethodID != *f.MethodID {
			continue
		}
		if !inRange(p.CreatedAt, f.From, f.To) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.SortByDate {
		case ledger.SortAsc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case ledger.SortDesc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *Memory) GetAttachment(_ context.Context, id ledger.PaymentID) (*ledger.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	att, ok := m.attachments[id]
	if !ok {
		return nil, nil
	}
	att.Data = append([]byte(nil), att.Data...)
	return &att, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return ledger.Unavailable(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	invoices    map[ledger.InvoiceID]ledger.Invoice
	payments    map[ledger.PaymentID]ledger.Payment
	attachments map[ledger.PaymentID]ledger.Attachment
	nextInvoice ledger.InvoiceID
	nextPayment ledger.PaymentID
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		invoices:    make(map[ledger.InvoiceID]ledger.Invoice, len(m.invoices)),
		payments:    make(map[ledger.PaymentID]ledger.Payment, len(m.payments)),
		attachments: make(map[ledger.PaymentID]ledger.Attachment, len(m.attachments)),
		nextInvoice: m.nextInvoice,
		nextPayment: m.nextPayment,
	}
	for k, v := range m.invoices {
		s.invoices[k] = v
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.attachments {
		s.attachments[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.invoices = s.invoices
	m.payments = s.payments
	m.attachments = s.attachments
	m.nextInvoice = s.nextInvoice
	m.nextPayment = s.nextPayment
}

// txView runs with the parent's write lock already held.
type txView struct {
	parent *Memory
}

func (tv *txView) LockInvoice(_ context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	return tv.parent.invoiceLocked(id), nil
}

func (tv *txView) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return tv.parent.paymentLocked(id), nil
}

func (tv *txView) SumPayments(_ context.Context, invoiceID ledger.InvoiceID, statuses []ledger.PaymentStatus, exclude ledger.PaymentID) (ledger.Money, error) {
	sum := ledger.ZeroMoney
	for _, p := range tv.parent.payments {
		if p.InvoiceID != invoiceID || p.ID == exclude {
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				sum = sum.Add(p.Amount)
				break
			}
		}
	}
	return sum, nil
}

func (tv *txView) InsertInvoice(_ context.Context, inv *ledger.Invoice) error {
	m := tv.parent
	if _, ok := m.customers[inv.CustomerID]; !ok {
		return fmt.Errorf("insert invoice: customer %d does not exist", inv.CustomerID)
	}
	m.nextInvoice++
	inv.ID = m.nextInvoice
	inv.CreatedAt = m.now()
	m.invoices[inv.ID] = *inv
	return nil
}

func (tv *txView) InsertPayment(_ context.Context, p *ledger.Payment, att *ledger.Attachment) error {
	m := tv.parent
	if _, ok := m.invoices[p.InvoiceID]; !ok {
		return fmt.Errorf("insert payment: invoice %d does not exist", p.InvoiceID)
	}
	m.nextPayment++
	p.ID = m.nextPayment
	p.CreatedAt = m.now()
	if att != nil {
		p.HasAttachment = true
		p.AttachmentName = att.Name
		stored := *att
		stored.PaymentID = p.ID
		stored.Data = append([]byte(nil), att.Data...)
		m.attachments[p.ID] = stored
	}
	m.payments[p.ID] = *p
	return nil
}

func (tv *txView) UpdatePaymentStatus(_ context.Context, id ledger.PaymentID, status ledger.PaymentStatus) error {
	p, ok := tv.parent.payments[id]
	if !ok {
		return fmt.Errorf("update payment: payment %d does not exist", id)
	}
	p.Status = status
	tv.parent.payments[id] = p
	return nil
}

func (tv *txView) UpdateInvoiceBalance(_ context.Context, id ledger.InvoiceID, balance ledger.Money, status ledger.InvoiceStatus) error {
	inv, ok := tv.parent.invoices[id]
	if !ok {
		return fmt.Errorf("update invoice: invoice %d does not exist", id)
	}
	inv.Balance = balance
	inv.Status = status
	tv.parent.invoices[id] = inv
	return nil
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

var (
	_ ledger.Store = (*Memory)(nil)
	_ ledger.Tx    = (*txView)(nil)
)
