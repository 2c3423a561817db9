/*
handlers.go - HTTP API handlers for the payment ledger

PURPOSE:
  Exposes ledger.Service via REST. Handles HTTP request/response, JSON and
  multipart decoding, and maps ledger errors onto status codes. No business
  rule lives here.

ENDPOINTS:
  Lookups:
    GET    /api/lookups                     Status and method tables
    GET    /api/consistency                 Re-check every invoice against its payments

  Customers:
    GET    /api/customers                   List customers
    POST   /api/customers                   Create customer

  Invoices:
    GET    /api/invoices                    List (customer_id, status, from, to)
    POST   /api/invoices                    Create invoice
    GET    /api/invoices/{id}               Get invoice
    POST   /api/invoices/{id}/payments      Record payment (multipart)

  Payments:
    GET    /api/payments                    List (invoice_id, status, method_id, from, to, sort)
    GET    /api/payments/{id}               Get payment
    PUT    /api/payments/{id}/status        Change status {"status": "completed"}
    GET    /api/payments/{id}/attachment    Download receipt

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Run a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Call ledger.Service
  3. Serialize response
  4. Map errors (writeServiceError)

ERROR HANDLING:
  - 400: ledger.ErrValidation, malformed body or parameters
  - 404: ledger.ErrNotFound
  - 422: ledger.ErrRejected (details carry prospective, limit, total)
  - 503: ledger.ErrUnavailable, with Retry-After
  - 500: ledger.ErrIntegrity and anything unexpected

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/warp/payment-ledger/ledger"
)

// multipartOverhead is allowed on top of the attachment limit for the
// other form fields and part headers.
const multipartOverhead = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Log     zerolog.Logger

	maxUploadBytes int64
}

// NewHandler creates a handler over svc. maxAttachmentBytes bounds the
// request body of payment uploads.
func NewHandler(svc *ledger.Service, maxAttachmentBytes int64, log zerolog.Logger) *Handler {
	if maxAttachmentBytes <= 0 {
		maxAttachmentBytes = ledger.DefaultMaxAttachmentBytes
	}
	return &Handler{
		Service:        svc,
		Log:            log,
		maxUploadBytes: maxAttachmentBytes + multipartOverhead,
	}
}

// =============================================================================
// HEALTH & LOOKUPS
// =============================================================================

// Health pings the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetLookups returns the lookup tables loaded at startup.
func (h *Handler) GetLookups(w http.ResponseWriter, r *http.Request) {
	c := h.Service.Catalog()
	writeJSON(w, http.StatusOK, LookupsResponse{
		PaymentStatuses: toLookupDTOs(c.PaymentStatusEntries()),
		InvoiceStatuses: toLookupDTOs(c.InvoiceStatusEntries()),
		PaymentMethods:  toLookupDTOs(c.MethodEntries()),
	})
}

// =============================================================================
// CUSTOMER ENDPOINTS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Service.ListCustomers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Service.CreateCustomer(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c))
}

// =============================================================================
// INVOICE ENDPOINTS
// =============================================================================

// ListInvoices returns invoices matching the query filters.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ledger.InvoiceFilter

	if v := q.Get("customer_id"); v != "" {
		id, err := parseID("customer_id", v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		cid := ledger.CustomerID(id)
		filter.CustomerID = &cid
	}
	if v := q.Get("status"); v != "" {
		st, err := ledger.ParseInvoiceStatus(v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Status = &st
	}
	from, to, err := parseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filter.From, filter.To = from, to

	invoices, err := h.Service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateInvoice creates a Pending invoice.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := parseMoney("total", req.Total)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	inv, err := h.Service.CreateInvoice(r.Context(), ledger.CreateInvoiceInput{
		CustomerID: ledger.CustomerID(req.CustomerID),
		Total:      total,
		Activity:   req.Activity,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(*inv))
}

// GetInvoice returns a single invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	inv, err := h.Service.GetInvoice(r.Context(), ledger.InvoiceID(id))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// CreatePayment records a payment against an invoice.
//
// Multipart fields: amount, method_id, status (optional), file.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeServiceError(w, r, ledger.NewValidationError("attachment", "request body too large"))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	amount, err := parseMoney("amount", r.FormValue("amount"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	methodID, err := parseID("method_id", r.FormValue("method_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var status ledger.PaymentStatus
	if v := r.FormValue("status"); v != "" {
		if status, err = ledger.ParsePaymentStatus(v); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	att, err := readAttachment(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	p, err := h.Service.CreatePayment(r.Context(), ledger.CreatePaymentInput{
		InvoiceID:  ledger.InvoiceID(invoiceID),
		Amount:     amount,
		MethodID:   ledger.PaymentMethodID(methodID),
		Status:     status,
		Attachment: att,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*p))
}

// readAttachment returns the "file" part, or nil if there is none.
func readAttachment(r *http.Request) (*ledger.Attachment, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.NewValidationError("attachment", err.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &ledger.Attachment{Name: header.Filename, Data: data}, nil
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

// ListPayments returns payments matching the query filters.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.PaymentFilter{SortByDate: ledger.SortOrder(strings.ToLower(q.Get("sort")))}

	if v := q.Get("invoice_id"); v != "" {
		id, err := parseID("invoice_id", v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		iid := ledger.InvoiceID(id)
		filter.InvoiceID = &iid
	}
	if v := q.Get("status"); v != "" {
		st, err := ledger.ParsePaymentStatus(v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Status = &st
	}
	if v := q.Get("method_id"); v != "" {
		id, err := parseID("method_id", v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		mid := ledger.PaymentMethodID(id)
		filter.MethodID = &mid
	}
	from, to, err := parseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filter.From, filter.To = from, to

	payments, err := h.Service.ListPayments(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	p, err := h.Service.GetPayment(r.Context(), ledger.PaymentID(id))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*p))
}

// ChangePaymentStatus moves a payment to a new status and returns it.
// Repeating the current status is a successful no-op.
func (h *Handler) ChangePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target, err := ledger.ParsePaymentStatus(req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	p, err := h.Service.ChangePaymentStatus(r.Context(), ledger.PaymentID(id), target)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*p))
}

// GetAttachment streams the stored receipt for inline display.
func (h *Handler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	att, err := h.Service.GetAttachment(r.Context(), ledger.PaymentID(id))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": att.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(att.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(att.Data)
}

// CheckConsistency re-derives every invoice from its payments and reports
// the ones that disagree. Read-only.
func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.CheckInvoices(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsistencyReport(report))
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// LoadScenario runs one demo scenario against the ledger.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := RunScenario(r.Context(), h.Service, req.ScenarioID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// =============================================================================
// HELPERS
// =============================================================================

// writeServiceError maps a ledger error onto an HTTP response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *ledger.ValidationError
		rejected   *ledger.RejectedError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   validation.Error(),
			Code:    "validation",
			Details: map[string]string{"field": validation.Field},
		})
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: rejected.Error(),
			Code:  "rejected",
			Details: RejectionDetails{
				Reason:      rejected.Reason,
				Prospective: ledger.FormatMoney(rejected.Prospective),
				Limit:       ledger.FormatMoney(rejected.Limit),
				Total:       ledger.FormatMoney(rejected.Total),
			},
		})
	case errors.Is(err, ledger.ErrIntegrity):
		hlog.FromRequest(r).Error().Err(err).Msg("integrity violation")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Code: "integrity"})
	case ledger.IsRetryable(err):
		hlog.FromRequest(r).Warn().Err(err).Msg("store unavailable")
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Service temporarily unavailable, retry", Code: "unavailable"})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func parseID(field, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.NewValidationError(field, fmt.Sprintf("must be a positive integer, got %q", s))
	}
	return id, nil
}

func parseMoney(field, s string) (ledger.Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ledger.ZeroMoney, ledger.NewValidationError(field, "is required")
	}
	m, err := ledger.ParseMoney(s)
	if err != nil {
		return ledger.ZeroMoney, ledger.NewValidationError(field, fmt.Sprintf("not a decimal amount: %q", s))
	}
	return m, nil
}

// parseDateRange parses inclusive YYYY-MM-DD bounds in UTC. to covers the
// whole day.
func parseDateRange(fromStr, toStr string) (from, to *time.Time, err error) {
	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, nil, ledger.NewValidationError("from", "expected YYYY-MM-DD")
		}
		from = &t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, nil, ledger.NewValidationError("to", "expected YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	return from, to, nil
}

func attachmentURL(id ledger.PaymentID) string {
	return fmt.Sprintf("/api/payments/%d/attachment", id)
}
