/*
status.go - Payment/invoice status enums and the lookup catalog

PURPOSE:
  Statuses are small enumerated types. The relational store keeps them in
  lookup tables (id, code, name) so rows reference them by id; the Catalog
  is loaded from those tables once at startup and treated as read-only
  configuration. Nothing in the engine compares display strings.

LOOKUP TABLES:
  payment_statuses: 1 in_progress, 2 completed, 3 voided
  invoice_statuses: 1 pending, 2 in_progress, 3 paid
  payment_methods:  1 transfer, 2 cash, 3 card, 4 check

SEE ALSO:
  - aggregate.go: StatusCategory -> set of PaymentStatus
  - store/sqlite, store/postgres: seed the lookup tables
*/
package ledger

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// PAYMENT STATUS
// =============================================================================

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentInProgress PaymentStatus = "in_progress"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentVoided     PaymentStatus = "voided"
)

// PaymentStatuses lists every payment status in lookup-table order.
var PaymentStatuses = []PaymentStatus{PaymentInProgress, PaymentCompleted, PaymentVoided}

// CountsTowardExposure reports whether a payment in this status is part of
// the invoice's exposure (InProgress or Completed).
func (s PaymentStatus) CountsTowardExposure() bool {
	return s == PaymentInProgress || s == PaymentCompleted
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentInProgress, PaymentCompleted, PaymentVoided:
		return true
	}
	return false
}

// ParsePaymentStatus accepts a code ("in_progress"), a display name
// ("In Progress") or a camel-case name ("InProgress"), case-insensitively.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch normalizeStatus(s) {
	case "inprogress":
		return PaymentInProgress, nil
	case "completed":
		return PaymentCompleted, nil
	case "voided":
		return PaymentVoided, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown payment status %q", s))
}

// =============================================================================
// INVOICE STATUS
// =============================================================================

// InvoiceStatus is derived from the invoice's payments; see DeriveInvoiceStatus.
type InvoiceStatus string

const (
	InvoicePending    InvoiceStatus = "pending"
	InvoiceInProgress InvoiceStatus = "in_progress"
	InvoicePaid       InvoiceStatus = "paid"
)

var InvoiceStatuses = []InvoiceStatus{InvoicePending, InvoiceInProgress, InvoicePaid}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoiceInProgress, InvoicePaid:
		return true
	}
	return false
}

// ParseInvoiceStatus accepts the same spellings as ParsePaymentStatus.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch normalizeStatus(s) {
	case "pending":
		return InvoicePending, nil
	case "inprogress":
		return InvoiceInProgress, nil
	case "paid":
		return InvoicePaid, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown invoice status %q", s))
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// =============================================================================
// CATALOG - Lookup tables, loaded once
// =============================================================================

// LookupEntry is one row of a lookup table.
type LookupEntry struct {
	ID   int64
	Code string
	Name string
}

// Catalog maps enum codes and method ids to lookup rows. Immutable after
// NewCatalog returns; safe for concurrent use.
type Catalog struct {
	paymentStatuses map[PaymentStatus]LookupEntry
	invoiceStatuses map[InvoiceStatus]LookupEntry
	methods         map[PaymentMethodID]LookupEntry

	paymentStatusList []LookupEntry
	invoiceStatusList []LookupEntry
	methodList        []LookupEntry
}

// NewCatalog builds a catalog from lookup rows. Every PaymentStatus and
// InvoiceStatus known to this package must be present, otherwise the store
// and the engine disagree and startup must fail.
func NewCatalog(paymentStatuses, invoiceStatuses, methods []LookupEntry) (*Catalog, error) {
	c := &Catalog{
		paymentStatuses: make(map[PaymentStatus]LookupEntry, len(paymentStatuses)),
		invoiceStatuses: make(map[InvoiceStatus]LookupEntry, len(invoiceStatuses)),
		methods:         make(map[PaymentMethodID]LookupEntry, len(methods)),
	}

	for _, e := range paymentStatuses {
		s := PaymentStatus(e.Code)
		if !s.Valid() {
			return nil, fmt.Errorf("catalog: unknown payment status code %q", e.Code)
		}
		c.paymentStatuses[s] = e
	}
	for _, s := range PaymentStatuses {
		if _, ok := c.paymentStatuses[s]; !ok {
			return nil, fmt.Errorf("catalog: payment status %q missing from lookup table", s)
		}
	}

	for _, e := range invoiceStatuses {
		s := InvoiceStatus(e.Code)
		if !s.Valid() {
			return nil, fmt.Errorf("catalog: unknown invoice status code %q", e.Code)
		}
		c.invoiceStatuses[s] = e
	}
	for _, s := range InvoiceStatuses {
		if _, ok := c.invoiceStatuses[s]; !ok {
			return nil, fmt.Errorf("catalog: invoice status %q missing from lookup table", s)
		}
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("catalog: no payment methods")
	}
	for _, e := range methods {
		c.methods[PaymentMethodID(e.ID)] = e
	}

	c.paymentStatusList = sortedEntries(paymentStatuses)
	c.invoiceStatusList = sortedEntries(invoiceStatuses)
	c.methodList = sortedEntries(methods)
	return c, nil
}

// DefaultLookups returns the rows the store migrations seed.
func DefaultLookups() (paymentStatuses, invoiceStatuses, methods []LookupEntry) {
	paymentStatuses = []LookupEntry{
		{ID: 1, Code: string(PaymentInProgress), Name: "In Progress"},
		{ID: 2, Code: string(PaymentCompleted), Name: "Completed"},
		{ID: 3, Code: string(PaymentVoided), Name: "Voided"},
	}
	invoiceStatuses = []LookupEntry{
		{ID: 1, Code: string(InvoicePending), Name: "Pending"},
		{ID: 2, Code: string(InvoiceInProgress), Name: "In Progress"},
		{ID: 3, Code: string(InvoicePaid), Name: "Paid"},
	}
	methods = []LookupEntry{
		{ID: 1, Code: "transfer", Name: "Bank Transfer"},
		{ID: 2, Code: "cash", Name: "Cash"},
		{ID: 3, Code: "card", Name: "Card"},
		{ID: 4, Code: "check", Name: "Check"},
	}
	return
}

// DefaultCatalog builds the catalog from DefaultLookups.
func DefaultCatalog() *Catalog {
	ps, is, ms := DefaultLookups()
	c, err := NewCatalog(ps, is, ms)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) PaymentStatusName(s PaymentStatus) string {
	return c.paymentStatuses[s].Name
}

func (c *Catalog) InvoiceStatusName(s InvoiceStatus) string {
	return c.invoiceStatuses[s].Name
}

// Method returns the lookup row for a payment method id.
func (c *Catalog) Method(id PaymentMethodID) (LookupEntry, bool) {
	e, ok := c.methods[id]
	return e, ok
}

func (c *Catalog) PaymentStatusEntries() []LookupEntry { return c.paymentStatusList }
func (c *Catalog) InvoiceStatusEntries() []LookupEntry { return c.invoiceStatusList }
func (c *Catalog) MethodEntries() []LookupEntry        { return c.methodList }

// ResolvePayment fills display names on p.
func (c *Catalog) ResolvePayment(p *Payment) {
	if p == nil {
		return
	}
	p.StatusName = c.PaymentStatusName(p.Status)
	if m, ok := c.methods[p.MethodID]; ok {
		p.MethodName = m.Name
	}
}

// ResolveInvoice fills display names on inv.
func (c *Catalog) ResolveInvoice(inv *Invoice) {
	if inv == nil {
		return
	}
	inv.StatusName = c.InvoiceStatusName(inv.Status)
}

func sortedEntries(in []LookupEntry) []LookupEntry {
	out := make([]LookupEntry, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
