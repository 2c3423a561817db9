/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that drive the ledger through the payment
  flows people usually ask about. Each scenario creates a customer and an
  invoice, records payments and changes their status, and reports every
  step including rejected ones.

AVAILABLE SCENARIOS:
  partial-payment:   60.00 of 100.00 completed, balance 40.00
  over-total:        second payment of 50.00 cannot complete (110.00 > 100.00)
  void-and-complete: voiding the first payment frees room for the second
  paid-in-full:      one payment equal to the total, invoice Paid

HOW SCENARIOS WORK:
  Scenarios only add data. They go through ledger.Service like any other
  client, so every rule applies. A rejection that the scenario expects
  is recorded as a step, not returned as an error.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "over-total"}

USAGE VIA CLI:
  ledgerd seed --scenario all

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - cmd/server/seed.go: CLI entry point
*/
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/payment-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	run func(ctx context.Context, s *scenarioRun) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "partial-payment",
			Name:        "Partial Payment",
			Description: "Invoice of 100.00, payment of 60.00 completed; balance 40.00, invoice in progress",
		},
		run: func(ctx context.Context, s *scenarioRun) error {
			if err := s.invoice(ctx, "Acme Corp", "100.00", "Consulting, March"); err != nil {
				return err
			}
			p, err := s.pay(ctx, "60.00")
			if err != nil {
				return err
			}
			return s.change(ctx, p, ledger.PaymentCompleted)
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "over-total",
			Name:        "Over Total",
			Description: "After 60.00 is completed, a second payment of 50.00 cannot complete: 110.00 exceeds 100.00",
		},
		run: func(ctx context.Context, s *scenarioRun) error {
			if err := s.invoice(ctx, "Globex", "100.00", "Hardware rental"); err != nil {
				return err
			}
			first, err := s.pay(ctx, "60.00")
			if err != nil {
				return err
			}
			if err := s.change(ctx, first, ledger.PaymentCompleted); err != nil {
				return err
			}
			// 60.00 completed + 50.00 new is already over the total at
			// creation, so the second payment starts voided.
			second, err := s.payVoided(ctx, "50.00")
			if err != nil {
				return err
			}
			if err := s.change(ctx, second, ledger.PaymentInProgress); err != nil {
				return err
			}
			return s.change(ctx, second, ledger.PaymentCompleted)
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "void-and-complete",
			Name:        "Void and Complete",
			Description: "Voiding a completed 60.00 payment lets a 50.00 payment complete; balance 50.00",
		},
		run: func(ctx context.Context, s *scenarioRun) error {
			if err := s.invoice(ctx, "Initech", "100.00", "Training workshop"); err != nil {
				return err
			}
			first, err := s.pay(ctx, "60.00")
			if err != nil {
				return err
			}
			if err := s.change(ctx, first, ledger.PaymentCompleted); err != nil {
				return err
			}
			second, err := s.payVoided(ctx, "50.00")
			if err != nil {
				return err
			}
			if err := s.change(ctx, first, ledger.PaymentVoided); err != nil {
				return err
			}
			if err := s.change(ctx, second, ledger.PaymentInProgress); err != nil {
				return err
			}
			return s.change(ctx, second, ledger.PaymentCompleted)
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "paid-in-full",
			Name:        "Paid in Full",
			Description: "One payment equal to the total; invoice paid, balance 0.00",
		},
		run: func(ctx context.Context, s *scenarioRun) error {
			if err := s.invoice(ctx, "Umbrella", "100.00", "Annual support"); err != nil {
				return err
			}
			p, err := s.pay(ctx, "100.00")
			if err != nil {
				return err
			}
			return s.change(ctx, p, ledger.PaymentCompleted)
		},
	},
}

// demoReceipt is a minimal PDF attached to every scenario payment.
var demoReceipt = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")

// Scenarios lists the available scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.ScenarioDTO
	}
	return out
}

// RunScenario executes the scenario with the given id and returns the final
// state of its invoice and payments.
func RunScenario(ctx context.Context, svc *ledger.Service, id string) (*ScenarioResult, error) {
	for _, sc := range scenarios {
		if sc.ID != id {
			continue
		}
		run := &scenarioRun{svc: svc, result: ScenarioResult{ScenarioID: id, Payments: []PaymentDTO{}}}
		if err := sc.run(ctx, run); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", id, err)
		}
		if err := run.finish(ctx); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", id, err)
		}
		return &run.result, nil
	}
	return nil, ledger.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", id))
}

// =============================================================================
// SCENARIO STEPS
// =============================================================================

type scenarioRun struct {
	svc     *ledger.Service
	invID   ledger.InvoiceID
	result  ScenarioResult
	payment []ledger.PaymentID
}

func (s *scenarioRun) step(format string, args ...any) {
	s.result.Steps = append(s.result.Steps, fmt.Sprintf(format, args...))
}

func (s *scenarioRun) invoice(ctx context.Context, customer, total, activity string) error {
	c, err := s.svc.CreateCustomer(ctx, customer)
	if err != nil {
		return err
	}
	inv, err := s.svc.CreateInvoice(ctx, ledger.CreateInvoiceInput{
		CustomerID: c.ID,
		Total:      ledger.MustMoney(total),
		Activity:   activity,
	})
	if err != nil {
		return err
	}
	s.invID = inv.ID
	s.step("invoice %d created for %s: total %s", inv.ID, c.Name, total)
	return nil
}

func (s *scenarioRun) pay(ctx context.Context, amount string) (ledger.PaymentID, error) {
	return s.create(ctx, amount, ledger.PaymentInProgress)
}

func (s *scenarioRun) payVoided(ctx context.Context, amount string) (ledger.PaymentID, error) {
	return s.create(ctx, amount, ledger.PaymentVoided)
}

func (s *scenarioRun) create(ctx context.Context, amount string, status ledger.PaymentStatus) (ledger.PaymentID, error) {
	methods := s.svc.Catalog().MethodEntries()
	p, err := s.svc.CreatePayment(ctx, ledger.CreatePaymentInput{
		InvoiceID:  s.invID,
		Amount:     ledger.MustMoney(amount),
		MethodID:   ledger.PaymentMethodID(methods[0].ID),
		Status:     status,
		Attachment: &ledger.Attachment{Name: "receipt.pdf", Data: demoReceipt},
	})
	if err != nil {
		return 0, err
	}
	s.payment = append(s.payment, p.ID)
	s.step("payment %d of %s recorded as %s", p.ID, amount, p.StatusName)
	return p.ID, nil
}

// change applies a status change. A rejection is recorded, not returned.
func (s *scenarioRun) change(ctx context.Context, id ledger.PaymentID, target ledger.PaymentStatus) error {
	p, err := s.svc.ChangePaymentStatus(ctx, id, target)
	var rejected *ledger.RejectedError
	switch {
	case errors.As(err, &rejected):
		s.step("payment %d to %s rejected: %s", id, target, rejected.Error())
		return nil
	case err != nil:
		return err
	}
	s.step("payment %d is now %s", p.ID, p.StatusName)
	return nil
}

func (s *scenarioRun) finish(ctx context.Context) error {
	inv, err := s.svc.GetInvoice(ctx, s.invID)
	if err != nil {
		return err
	}
	s.result.Invoice = toInvoiceDTO(*inv)
	for _, id := range s.payment {
		p, err := s.svc.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		s.result.Payments = append(s.result.Payments, toPaymentDTO(*p))
	}
	s.step("invoice %d: balance %s, %s", inv.ID, s.result.Invoice.Balance, inv.StatusName)
	return nil
}
