/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Rendered as strings with exactly two decimals ("40.00"). JSON numbers
  would round-trip through float64 in most clients.

DATES:
  RFC3339 on output. Filters take YYYY-MM-DD (see parseDateRange).

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/warp/payment-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreateCustomerRequest is the request to create a customer.
type CreateCustomerRequest struct {
	Name string `json:"name"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID           int64  `json:"id"`
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Total        string `json:"total"`
	Balance      string `json:"balance"`
	Status       string `json:"status"`
	StatusName   string `json:"status_name"`
	Activity     string `json:"activity"`
	CreatedAt    string `json:"created_at"`
}

// CreateInvoiceRequest is the request to create an invoice. Total is a
// decimal string.
type CreateInvoiceRequest struct {
	CustomerID int64  `json:"customer_id"`
	Total      string `json:"total"`
	Activity   string `json:"activity"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID             int64  `json:"id"`
	InvoiceID      int64  `json:"invoice_id"`
	Amount         string `json:"amount"`
	MethodID       int64  `json:"method_id"`
	MethodName     string `json:"method_name"`
	Status         string `json:"status"`
	StatusName     string `json:"status_name"`
	AttachmentName string `json:"attachment_name,omitempty"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// ChangeStatusRequest is the body of PUT /api/payments/{id}/status.
// Status accepts a code ("completed") or display name ("Completed").
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// LookupDTO is one row of a lookup table.
type LookupDTO struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// LookupsResponse carries every lookup table for building forms.
type LookupsResponse struct {
	PaymentStatuses []LookupDTO `json:"payment_statuses"`
	InvoiceStatuses []LookupDTO `json:"invoice_statuses"`
	PaymentMethods  []LookupDTO `json:"payment_methods"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ScenarioResult reports what a scenario created and what happened at
// each step.
type ScenarioResult struct {
	ScenarioID string       `json:"scenario_id"`
	Invoice    InvoiceDTO   `json:"invoice"`
	Payments   []PaymentDTO `json:"payments"`
	Steps      []string     `json:"steps"`
}

// DiscrepancyDTO is one inconsistent invoice.
type DiscrepancyDTO struct {
	InvoiceID int64    `json:"invoice_id"`
	Problems  []string `json:"problems"`
}

// ConsistencyReport is returned by GET /api/consistency.
type ConsistencyReport struct {
	Checked       int              `json:"checked"`
	Consistent    bool             `json:"consistent"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// RejectionDetails is the Details payload of a 422 response.
type RejectionDetails struct {
	Reason      string `json:"reason"`
	Prospective string `json:"prospective"`
	Limit       string `json:"limit"`
	Total       string `json:"total"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        int64(c.ID),
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:           int64(inv.ID),
		CustomerID:   int64(inv.CustomerID),
		CustomerName: inv.CustomerName,
		Total:        ledger.FormatMoney(inv.Total),
		Balance:      ledger.FormatMoney(inv.Balance),
		Status:       string(inv.Status),
		StatusName:   inv.StatusName,
		Activity:     inv.Activity,
		CreatedAt:    inv.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTO(p ledger.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:         int64(p.ID),
		InvoiceID:  int64(p.InvoiceID),
		Amount:     ledger.FormatMoney(p.Amount),
		MethodID:   int64(p.MethodID),
		MethodName: p.MethodName,
		Status:     string(p.Status),
		StatusName: p.StatusName,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
	if p.HasAttachment {
		dto.AttachmentName = p.AttachmentName
		dto.AttachmentURL = attachmentURL(p.ID)
	}
	return dto
}

func toLookupDTOs(entries []ledger.LookupEntry) []LookupDTO {
	dtos := make([]LookupDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LookupDTO{ID: e.ID, Code: e.Code, Name: e.Name}
	}
	return dtos
}

func toConsistencyReport(r ledger.CheckReport) ConsistencyReport {
	out := ConsistencyReport{
		Checked:       r.Checked,
		Consistent:    len(r.Discrepancies) == 0,
		Discrepancies: make([]DiscrepancyDTO, len(r.Discrepancies)),
	}
	for i, d := range r.Discrepancies {
		out.Discrepancies[i] = DiscrepancyDTO{InvoiceID: int64(d.InvoiceID), Problems: d.Problems()}
	}
	return out
}
