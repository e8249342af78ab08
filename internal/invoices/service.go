package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

// RepositoryPort defines persistence for invoice management.
type RepositoryPort interface {
	Create(ctx context.Context, tenantID int64, input CreateInvoiceInput) (*workflow.Invoice, error)
	Get(ctx context.Context, id int64) (*workflow.Invoice, error)
	List(ctx context.Context, tenantID int64, req ListInvoicesRequest) ([]workflow.Invoice, error)
	Count(ctx context.Context, tenantID int64, req ListInvoicesRequest) (int, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]workflow.Payment, error)
	CreatePayment(ctx context.Context, input workflow.CreatePaymentInput) (*workflow.Payment, error)
	GetPayment(ctx context.Context, id int64) (*workflow.Payment, error)
	UpdatePaymentAmount(ctx context.Context, paymentID int64, amount decimal.Decimal) error
	SetRemindersPaused(ctx context.Context, id int64, paused bool, reason string) error
	ListOutstanding(ctx context.Context, tenantID int64) ([]OutstandingInvoice, error)
}

// Engine is the slice of the workflow orchestrator this module drives.
type Engine interface {
	ProcessSingle(ctx context.Context, event workflow.Event, actor shared.Actor) (*workflow.Result, error)
	ApplyInvoiceEvent(ctx context.Context, ev workflow.InvoiceEvent, actor shared.Actor) (*workflow.Result, error)
	Reevaluate(ctx context.Context, invoiceID int64, reason string, actor shared.Actor) (*workflow.Result, error)
}

// Service implements invoice management on top of the workflow engine.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	engine Engine
	now    func() time.Time
}

// NewService constructs the invoice service.
func NewService(logger *slog.Logger, repo RepositoryPort, engine Engine) *Service {
	return &Service{logger: logger, repo: repo, engine: engine, now: time.Now}
}

// Create raises a draft invoice.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput, actor shared.Actor) (*workflow.Invoice, error) {
	if input.Total.Sign() < 0 {
		return nil, shared.FieldError("total", "must not be negative")
	}
	if input.Currency == "" {
		input.Currency = "AED"
	}
	invoice, err := s.repo.Create(ctx, actor.TenantID, input)
	if err != nil {
		return nil, fmt.Errorf("invoices: create: %w", err)
	}
	s.logger.Info("invoice created",
		slog.Int64("invoice_id", invoice.ID),
		slog.String("number", invoice.Number),
		slog.Int64("tenant_id", actor.TenantID))
	return invoice, nil
}

// Get returns the invoice with its ledger position.
func (s *Service) Get(ctx context.Context, id int64, actor shared.Actor) (*InvoiceDetail, error) {
	invoice, err := s.ownedInvoice(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list payments: %w", err)
	}
	return &InvoiceDetail{
		Invoice:       *invoice,
		DisplayStatus: displayStatus(invoice, s.now()),
		Ledger:        workflow.Summarize(invoice.Total, payments),
		Payments:      payments,
	}, nil
}

// displayStatus shows SENT invoices past their due date as OVERDUE without
// waiting for the sweep. The stored status stays authoritative for writes.
func displayStatus(inv *workflow.Invoice, now time.Time) workflow.InvoiceStatus {
	if inv.Status == workflow.StatusSent && inv.DueAt.Before(now) {
		return workflow.StatusOverdue
	}
	return inv.Status
}

// List returns one page of the tenant's invoices. Each row carries its
// display status so a listing never shows a lapsed invoice as merely sent.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest, actor shared.Actor) ([]InvoiceListItem, shared.Pagination, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, shared.Pagination{}, shared.FieldError("status", "unknown status filter")
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PerPage <= 0 || req.PerPage > 200 {
		req.PerPage = 50
	}
	req.Limit = req.PerPage
	req.Offset = (req.Page - 1) * req.PerPage

	list, err := s.repo.List(ctx, actor.TenantID, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("invoices: list: %w", err)
	}
	total, err := s.repo.Count(ctx, actor.TenantID, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("invoices: count: %w", err)
	}

	now := s.now()
	items := make([]InvoiceListItem, 0, len(list))
	for _, inv := range list {
		items = append(items, InvoiceListItem{
			Invoice:       inv,
			DisplayStatus: displayStatus(&inv, now),
		})
	}
	return items, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// Send moves a draft invoice into the live workflow.
func (s *Service) Send(ctx context.Context, id int64, actor shared.Actor) (*workflow.Result, error) {
	return s.engine.ApplyInvoiceEvent(ctx, workflow.InvoiceEvent{
		InvoiceID: id,
		Kind:      workflow.EventInvoiceSent,
	}, actor)
}

// RecordPayment registers a manual payment and runs it through the workflow.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, input RecordPaymentInput, actor shared.Actor) (*workflow.Result, error) {
	if input.Amount.Sign() <= 0 {
		return nil, shared.FieldError("amount", "must be positive")
	}
	if _, err := s.ownedInvoice(ctx, invoiceID, actor); err != nil {
		return nil, err
	}

	method := workflow.PaymentMethod(input.Method)
	if input.Method == "" {
		method = workflow.MethodOther
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	payment, err := s.repo.CreatePayment(ctx, workflow.CreatePaymentInput{
		InvoiceID: invoiceID,
		Amount:    input.Amount,
		PaidAt:    paidAt,
		Method:    method,
		Reference: input.Reference,
		Note:      input.Note,
	})
	if err != nil {
		return nil, fmt.Errorf("invoices: create payment: %w", err)
	}

	return s.engine.ProcessSingle(ctx, workflow.Event{
		PaymentID: payment.ID,
		Kind:      workflow.EventPaymentReceived,
	}, actor)
}

// AmendPayment corrects the amount on a recorded payment and realigns the
// invoice status with the adjusted ledger.
func (s *Service) AmendPayment(ctx context.Context, invoiceID, paymentID int64, input AmendPaymentInput, actor shared.Actor) (*workflow.Result, error) {
	if input.Amount.Sign() <= 0 {
		return nil, shared.FieldError("amount", "must be positive")
	}
	payment, err := s.ownedPayment(ctx, invoiceID, paymentID, actor)
	if err != nil {
		return nil, err
	}
	if payment.Reversed() {
		return nil, shared.FieldError("payment_id", "payment has been reversed and cannot be amended")
	}

	if err := s.repo.UpdatePaymentAmount(ctx, paymentID, input.Amount); err != nil {
		return nil, fmt.Errorf("invoices: update payment amount: %w", err)
	}
	s.logger.Info("payment amended",
		slog.Int64("invoice_id", invoiceID),
		slog.Int64("payment_id", paymentID),
		slog.String("amount", input.Amount.String()))
	return s.engine.Reevaluate(ctx, invoiceID, "payment amount corrected", actor)
}

// DeletePayment reverses a recorded payment. The row is kept, marked
// reversed, so the audit trail stays complete; the ledger stops counting it
// and the invoice status is re-evaluated.
func (s *Service) DeletePayment(ctx context.Context, invoiceID, paymentID int64, actor shared.Actor) (*workflow.Result, error) {
	payment, err := s.ownedPayment(ctx, invoiceID, paymentID, actor)
	if err != nil {
		return nil, err
	}
	return s.engine.ProcessSingle(ctx, workflow.Event{
		PaymentID: payment.ID,
		Kind:      workflow.EventPaymentReversed,
		Reason:    "payment deleted",
	}, actor)
}

// ownedPayment loads a payment after verifying the invoice belongs to the
// actor's tenant and the payment belongs to the invoice.
func (s *Service) ownedPayment(ctx context.Context, invoiceID, paymentID int64, actor shared.Actor) (*workflow.Payment, error) {
	if _, err := s.ownedInvoice(ctx, invoiceID, actor); err != nil {
		return nil, err
	}
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.InvoiceID != invoiceID {
		return nil, shared.ErrNotFound
	}
	return payment, nil
}

// RaiseDispute marks the invoice as disputed.
func (s *Service) RaiseDispute(ctx context.Context, id int64, reason string, actor shared.Actor) (*workflow.Result, error) {
	if reason == "" {
		return nil, shared.FieldError("reason", "required")
	}
	return s.engine.ApplyInvoiceEvent(ctx, workflow.InvoiceEvent{
		InvoiceID: id,
		Kind:      workflow.EventDisputeRaised,
		Reason:    reason,
	}, actor)
}

// ResolveDispute resolves a dispute into the caller-chosen outcome status.
func (s *Service) ResolveDispute(ctx context.Context, id int64, target workflow.InvoiceStatus, reason string, actor shared.Actor) (*workflow.Result, error) {
	return s.engine.ApplyInvoiceEvent(ctx, workflow.InvoiceEvent{
		InvoiceID: id,
		Kind:      workflow.EventDisputeResolved,
		Target:    target,
		Reason:    reason,
	}, actor)
}

// Override forces a status for operators with override authority. The reason
// is mandatory: every override must be explainable in the audit trail.
func (s *Service) Override(ctx context.Context, id int64, target workflow.InvoiceStatus, reason string, actor shared.Actor) (*workflow.Result, error) {
	if reason == "" {
		return nil, shared.FieldError("reason", "required for manual override")
	}
	return s.engine.ApplyInvoiceEvent(ctx, workflow.InvoiceEvent{
		InvoiceID: id,
		Kind:      workflow.EventManualOverride,
		Target:    target,
		Reason:    reason,
	}, actor)
}

// PauseReminders stops the reminder sequence for one invoice.
func (s *Service) PauseReminders(ctx context.Context, id int64, reason string, actor shared.Actor) error {
	if _, err := s.ownedInvoice(ctx, id, actor); err != nil {
		return err
	}
	return s.repo.SetRemindersPaused(ctx, id, true, reason)
}

// ResumeReminders restarts the reminder sequence.
func (s *Service) ResumeReminders(ctx context.Context, id int64, actor shared.Actor) error {
	if _, err := s.ownedInvoice(ctx, id, actor); err != nil {
		return err
	}
	return s.repo.SetRemindersPaused(ctx, id, false, "")
}

// Aging buckets the tenant's outstanding balances by days overdue.
func (s *Service) Aging(ctx context.Context, actor shared.Actor) (*AgingReport, error) {
	outstanding, err := s.repo.ListOutstanding(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list outstanding: %w", err)
	}

	report := &AgingReport{AsOf: s.now()}
	for _, inv := range outstanding {
		days := int(report.AsOf.Sub(inv.DueAt).Hours() / 24)
		switch {
		case days <= 0:
			report.Current = report.Current.Add(inv.Remaining)
		case days <= 30:
			report.Bucket30 = report.Bucket30.Add(inv.Remaining)
		case days <= 60:
			report.Bucket60 = report.Bucket60.Add(inv.Remaining)
		case days <= 90:
			report.Bucket90 = report.Bucket90.Add(inv.Remaining)
		default:
			report.Bucket120 = report.Bucket120.Add(inv.Remaining)
		}
		report.Total = report.Total.Add(inv.Remaining)
	}
	return report, nil
}

func (s *Service) ownedInvoice(ctx context.Context, id int64, actor shared.Actor) (*workflow.Invoice, error) {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.TenantID != actor.TenantID {
		return nil, shared.ErrAccessDenied
	}
	return invoice, nil
}
