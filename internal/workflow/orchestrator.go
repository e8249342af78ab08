package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tahseel-hq/tahseel/internal/calendar"
	"github.com/tahseel-hq/tahseel/internal/observability"
	"github.com/tahseel-hq/tahseel/internal/shared"
)

// MaxBatchSize caps ProcessBatch. Oversized batches are rejected, never
// silently truncated.
const MaxBatchSize = 100

// batchConcurrency bounds how many invoices a batch touches at once.
// Events for the same invoice always run sequentially in supplied order.
const batchConcurrency = 4

// RepositoryPort defines the persistence surface the orchestrator needs.
// Implementations must support the conditional status write backing the
// optimistic-concurrency guarantee.
type RepositoryPort interface {
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, tenantID int64, number string) (*Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error)
	FindPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error)
	// MarkPaymentReversed voids a payment row so the ledger stops counting
	// it. Marking an already-reversed row is a no-op.
	MarkPaymentReversed(ctx context.Context, paymentID int64, at time.Time) error
	// ApplyTransition writes the status change and its audit record in one
	// transaction, conditional on the invoice version. Returns
	// shared.ErrConcurrencyConflict when the version moved underneath.
	ApplyTransition(ctx context.Context, input ApplyTransitionInput) error
}

// ApplyTransitionInput describes one conditional status write.
type ApplyTransitionInput struct {
	InvoiceID int64
	From      InvoiceStatus
	To        InvoiceStatus
	Version   int64
	Audit     shared.AuditRecord
}

// AuditSink records no-op evaluations. Transition audits ride inside the
// repository transaction instead.
type AuditSink interface {
	Record(ctx context.Context, rec shared.AuditRecord) error
}

// CalendarSource supplies per-tenant contact calendars.
type CalendarSource interface {
	CalendarFor(ctx context.Context, tenantID int64) (calendar.Config, error)
}

// StaticCalendars is a CalendarSource serving a fixed config per tenant with
// a shared default.
type StaticCalendars struct {
	Default  calendar.Config
	ByTenant map[int64]calendar.Config
}

// CalendarFor returns the tenant's calendar or the default.
func (s StaticCalendars) CalendarFor(_ context.Context, tenantID int64) (calendar.Config, error) {
	if cfg, ok := s.ByTenant[tenantID]; ok {
		return cfg, nil
	}
	return s.Default, nil
}

// ComplianceFlags annotate how an event was processed.
type ComplianceFlags struct {
	ReferenceProvided   bool
	WithinBusinessHours bool
}

// Result is the orchestrator's answer for one processed event.
type Result struct {
	PaymentID     int64
	InvoiceID     int64
	InvoiceNumber string
	OldStatus     InvoiceStatus
	NewStatus     InvoiceStatus
	Decision      Decision
	Ledger        LedgerSummary
	Compliance    ComplianceFlags
	NextActions   []string
}

// BatchItem is one slot in a batch result. Err is empty on success.
type BatchItem struct {
	Index     int
	PaymentID int64
	Result    *Result
	Err       string
	ErrKind   string
}

// BatchResult aggregates a ProcessBatch run.
type BatchResult struct {
	BatchID     string
	Total       int
	Succeeded   int
	Failed      int
	Transitions int
	Items       []BatchItem
}

// InvoiceEvent is an invoice-level event with no payment attached
// (send, overdue detection, disputes, overrides).
type InvoiceEvent struct {
	InvoiceID int64
	Kind      EventKind
	Target    InvoiceStatus
	Reason    string
	Metadata  map[string]any
}

// ServiceConfig tunes the orchestrator.
type ServiceConfig struct {
	MaxBatchSize int
	Now          func() time.Time
}

// Service is the payment workflow orchestrator. It owns all invoice status
// writes; the state machine, ledger and calendar stay pure underneath it.
type Service struct {
	repo      RepositoryPort
	audit     AuditSink
	calendars CalendarSource
	logger    *slog.Logger
	metrics   *observability.WorkflowMetrics
	now       func() time.Time
	maxBatch  int
}

// NewService builds the orchestrator.
func NewService(repo RepositoryPort, audit AuditSink, calendars CalendarSource, logger *slog.Logger, metrics *observability.WorkflowMetrics, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = MaxBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if calendars == nil {
		calendars = StaticCalendars{}
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		calendars: calendars,
		logger:    logger,
		metrics:   metrics,
		now:       cfg.Now,
		maxBatch:  cfg.MaxBatchSize,
	}
}

// ProcessSingle applies one payment lifecycle event. Tenant isolation is
// verified before anything is written; a version conflict is retried exactly
// once before surfacing shared.ErrConcurrencyConflict.
func (s *Service) ProcessSingle(ctx context.Context, event Event, actor shared.Actor) (*Result, error) {
	if !event.Kind.Valid() {
		return nil, shared.FieldError("kind", "unknown event kind")
	}
	if event.PaymentID <= 0 {
		return nil, shared.FieldError("payment_id", "required")
	}

	payment, err := s.repo.GetPayment(ctx, event.PaymentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("payment %d: %w", event.PaymentID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("workflow: load payment: %w", err)
	}

	return s.evaluate(ctx, payment.InvoiceID, payment, event.Kind, event.Target, event.Reason, event.Metadata, actor)
}

// ApplyInvoiceEvent applies an invoice-level event: sending, overdue
// detection, disputes and manual overrides.
func (s *Service) ApplyInvoiceEvent(ctx context.Context, ev InvoiceEvent, actor shared.Actor) (*Result, error) {
	if !ev.Kind.Valid() {
		return nil, shared.FieldError("kind", "unknown event kind")
	}
	if ev.InvoiceID <= 0 {
		return nil, shared.FieldError("invoice_id", "required")
	}
	return s.evaluate(ctx, ev.InvoiceID, nil, ev.Kind, ev.Target, ev.Reason, ev.Metadata, actor)
}

// Reevaluate realigns an invoice's status with its ledger after a payment row
// was amended or deleted outside the event flow. A Paid invoice with money
// newly outstanding falls back to Sent or Overdue by due date; a Sent or
// Overdue invoice whose balance reached zero settles to Paid. Any other
// combination is left untouched.
func (s *Service) Reevaluate(ctx context.Context, invoiceID int64, reason string, actor shared.Actor) (*Result, error) {
	if invoiceID <= 0 {
		return nil, shared.FieldError("invoice_id", "required")
	}
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("workflow: load invoice: %w", err)
	}
	if invoice.TenantID != actor.TenantID {
		return nil, shared.ErrAccessDenied
	}

	payments, err := s.repo.ListPayments(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list payments: %w", err)
	}
	summary := Summarize(invoice.Total, payments)

	var kind EventKind
	switch {
	case invoice.Status == StatusPaid && summary.Remaining.Sign() > 0:
		kind = EventPaymentReversed
	case (invoice.Status == StatusSent || invoice.Status == StatusOverdue) &&
		summary.Remaining.Sign() <= 0 && summary.InvoiceTotal.Sign() > 0:
		kind = EventPaymentReceived
	default:
		decision := noChange(invoice.Status, ReasonNoStatusEffect)
		return s.buildResult(ctx, invoice, nil, summary, decision, s.now()), nil
	}
	return s.evaluate(ctx, invoice.ID, nil, kind, "", reason, nil, actor)
}

// evaluate is the shared read-decide-write path. On a version conflict it
// re-reads the invoice and ledger and retries once; the state machine's
// idempotent no-op decisions make the retry safe.
func (s *Service) evaluate(ctx context.Context, invoiceID int64, payment *Payment, kind EventKind, target InvoiceStatus, reason string, meta map[string]any, actor shared.Actor) (*Result, error) {
	// A reversal voids the payment row before the ledger is read, so the
	// decision below sees the post-reversal balance. Reversing the same
	// payment twice is a no-op: the money was already backed out.
	alreadyReversed := kind == EventPaymentReversed && payment != nil && payment.Reversed()
	reversePending := kind == EventPaymentReversed && payment != nil && !alreadyReversed

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		invoice, err := s.repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
			}
			return nil, fmt.Errorf("workflow: load invoice: %w", err)
		}
		if invoice.TenantID != actor.TenantID {
			s.logger.Warn("cross-tenant access denied",
				slog.Int64("invoice_id", invoice.ID),
				slog.Int64("invoice_tenant", invoice.TenantID),
				slog.Int64("actor_tenant", actor.TenantID))
			return nil, shared.ErrAccessDenied
		}

		if reversePending {
			at := s.now()
			if err := s.repo.MarkPaymentReversed(ctx, payment.ID, at); err != nil {
				return nil, fmt.Errorf("workflow: reverse payment: %w", err)
			}
			payment.ReversedAt = &at
			reversePending = false
		}

		payments, err := s.repo.ListPayments(ctx, invoice.ID)
		if err != nil {
			return nil, fmt.Errorf("workflow: list payments: %w", err)
		}
		summary := Summarize(invoice.Total, payments)

		now := s.now()
		var decision Decision
		if alreadyReversed {
			decision = noChange(invoice.Status, ReasonAlreadyReversed)
		} else {
			decision = NextStatus(invoice.Status, kind, TransitionContext{
				Remaining: summary.Remaining,
				DueAt:     invoice.DueAt,
				Now:       now,
				Disputed:  invoice.Disputed,
				Target:    target,
				Override:  actor.CanOverride,
			})
		}

		audit := shared.AuditRecord{
			TenantID:  actor.TenantID,
			ActorID:   actor.ActorID,
			EventKind: string(kind),
			Entity:    "invoice",
			EntityID:  invoice.ID,
			OldStatus: string(invoice.Status),
			NewStatus: string(decision.NewStatus),
			Reason:    firstNonEmpty(reason, decision.Reason),
			At:        now,
			Metadata:  meta,
		}

		if decision.Transitioned {
			err = s.repo.ApplyTransition(ctx, ApplyTransitionInput{
				InvoiceID: invoice.ID,
				From:      invoice.Status,
				To:        decision.NewStatus,
				Version:   invoice.Version,
				Audit:     audit,
			})
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				s.metrics.ConflictRetried()
				lastErr = err
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("workflow: apply transition: %w", err)
			}
			s.metrics.Transition(string(kind), string(decision.NewStatus))
		} else if s.audit != nil {
			if auditErr := s.audit.Record(ctx, audit); auditErr != nil {
				// Fire-and-record: never fail the workflow for audit trouble.
				s.logger.Error("record audit", slog.Any("error", auditErr))
			}
		}

		return s.buildResult(ctx, invoice, payment, summary, decision, now), nil
	}
	return nil, fmt.Errorf("workflow: invoice %d: %w", invoiceID, lastErr)
}

func (s *Service) buildResult(ctx context.Context, invoice *Invoice, payment *Payment, summary LedgerSummary, decision Decision, now time.Time) *Result {
	cfg, err := s.calendars.CalendarFor(ctx, invoice.TenantID)
	if err != nil {
		// Missing calendar config must never block processing.
		s.logger.Warn("load calendar", slog.Any("error", err))
		cfg = calendar.Config{}
	}

	flags := ComplianceFlags{
		WithinBusinessHours: calendar.Eligible(now, cfg),
	}
	var paymentID int64
	if payment != nil {
		paymentID = payment.ID
		flags.ReferenceProvided = payment.Reference != ""
	}

	res := &Result{
		PaymentID:     paymentID,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		OldStatus:     invoice.Status,
		NewStatus:     decision.NewStatus,
		Decision:      decision,
		Ledger:        summary,
		Compliance:    flags,
	}
	res.NextActions = nextActions(res)
	return res
}

// nextActions maps an outcome to human-readable operator suggestions. The
// notification collaborator consumes these; nothing here sends email.
func nextActions(res *Result) []string {
	var actions []string
	d := res.Decision

	switch {
	case d.Transitioned && d.NewStatus == StatusPaid:
		actions = append(actions, "send payment receipt")
		if res.OldStatus == StatusOverdue {
			actions = append(actions, "remove from overdue tracking")
		}
		if res.Ledger.IsOverpaid {
			actions = append(actions, "review overpayment: process refund or credit note")
		}
	case d.Transitioned && res.OldStatus == StatusPaid:
		actions = append(actions, "notify customer that payment was reversed", "restart reminder sequence")
	case d.Transitioned && d.NewStatus == StatusDisputed:
		actions = append(actions, "pause reminder sequence pending dispute resolution")
	case d.Transitioned && d.NewStatus == StatusOverdue:
		actions = append(actions, "enroll invoice in overdue reminder sequence")
	case d.Reason == ReasonPartialPayment:
		actions = append(actions, "send partial payment acknowledgment")
	}

	if !res.Compliance.WithinBusinessHours {
		actions = append(actions, "defer customer contact to the next business-hours window")
	}
	return actions
}

// ProcessBatch applies events with per-event failure isolation: one event's
// failure never aborts its siblings. Events for the same invoice run in the
// supplied order; distinct invoices proceed concurrently.
func (s *Service) ProcessBatch(ctx context.Context, events []Event, actor shared.Actor) (*BatchResult, error) {
	if len(events) == 0 {
		return nil, shared.FieldError("events", "batch is empty")
	}
	if len(events) > s.maxBatch {
		return nil, shared.Validationf("batch size %d exceeds maximum %d", len(events), s.maxBatch)
	}

	result := &BatchResult{
		BatchID: uuid.NewString(),
		Total:   len(events),
		Items:   make([]BatchItem, len(events)),
	}

	// Resolve each event's invoice up front so same-invoice ordering can be
	// preserved while distinct invoices fan out.
	groups := make(map[int64][]int)
	var order []int64
	for i, ev := range events {
		result.Items[i] = BatchItem{Index: i, PaymentID: ev.PaymentID}
		payment, err := s.repo.GetPayment(ctx, ev.PaymentID)
		if err != nil {
			result.Items[i].Err = shared.UserSafeMessage(normalizeLookupErr(ev.PaymentID, err))
			result.Items[i].ErrKind = errorKind(normalizeLookupErr(ev.PaymentID, err))
			continue
		}
		if _, seen := groups[payment.InvoiceID]; !seen {
			order = append(order, payment.InvoiceID)
		}
		groups[payment.InvoiceID] = append(groups[payment.InvoiceID], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, invoiceID := range order {
		indices := groups[invoiceID]
		g.Go(func() error {
			for _, idx := range indices {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res, err := s.ProcessSingle(gctx, events[idx], actor)
				if err != nil {
					result.Items[idx].Err = shared.UserSafeMessage(err)
					result.Items[idx].ErrKind = errorKind(err)
					continue
				}
				result.Items[idx].Result = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range result.Items {
		if result.Items[i].Result != nil {
			result.Succeeded++
			if result.Items[i].Result.Decision.Transitioned {
				result.Transitions++
			}
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// Reconcile compares invoice total against recorded payments. Read-only by
// design: calling it any number of times never changes invoice status.
func (s *Service) Reconcile(ctx context.Context, invoiceID, tenantID int64) (*ReconciliationResult, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("workflow: load invoice: %w", err)
	}
	if invoice.TenantID != tenantID {
		return nil, shared.ErrAccessDenied
	}

	payments, err := s.repo.ListPayments(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list payments: %w", err)
	}

	summary := Summarize(invoice.Total, payments)
	status, notes := Classify(summary, payments)

	breakdown := make([]PaymentBreakdown, 0, len(payments))
	for _, p := range payments {
		breakdown = append(breakdown, PaymentBreakdown{
			PaymentID: p.ID,
			Amount:    p.Amount,
			PaidAt:    p.PaidAt,
			Method:    p.Method,
			Reference: p.Reference,
			Reversed:  p.Reversed(),
		})
	}

	return &ReconciliationResult{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		Status:        status,
		Ledger:        summary,
		Payments:      breakdown,
		Notes:         notes,
	}, nil
}

// ProcessNotification is the adapter path for gateway-initiated events. An
// unseen external payment id creates the payment row first; then the event
// flows through ProcessSingle under the system actor.
func (s *Service) ProcessNotification(ctx context.Context, n ExternalNotification, tenantID int64) (*Result, error) {
	var kind EventKind
	switch n.Status {
	case "success":
		kind = EventPaymentReceived
	case "failed":
		kind = EventPaymentFailed
	default:
		return nil, shared.FieldError("status", fmt.Sprintf("unsupported notification status %q", n.Status))
	}
	if n.ExternalPaymentID == "" {
		return nil, shared.FieldError("external_payment_id", "required")
	}

	payment, err := s.repo.FindPaymentByExternalID(ctx, n.ExternalPaymentID)
	switch {
	case err == nil:
		// Known payment: re-deliveries fall through to the idempotent path.
	case errors.Is(err, shared.ErrNotFound):
		payment, err = s.recordNotifiedPayment(ctx, n, tenantID, kind)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			// Failed attempt with no prior row: audit only, nothing to apply.
			return s.auditFailedAttempt(ctx, n, tenantID)
		}
	default:
		return nil, fmt.Errorf("workflow: find payment: %w", err)
	}

	meta := map[string]any{"external_payment_id": n.ExternalPaymentID}
	if n.Reference != "" {
		meta["reference"] = n.Reference
	}
	return s.ProcessSingle(ctx, Event{
		PaymentID: payment.ID,
		Kind:      kind,
		Reason:    "gateway notification",
		Metadata:  meta,
	}, shared.System(tenantID))
}

// recordNotifiedPayment creates the payment row for a success notification.
// Failed attempts never create ledger rows; they return (nil, nil).
func (s *Service) recordNotifiedPayment(ctx context.Context, n ExternalNotification, tenantID int64, kind EventKind) (*Payment, error) {
	if kind == EventPaymentFailed {
		return nil, nil
	}

	invoice, err := s.repo.GetInvoiceByNumber(ctx, tenantID, n.InvoiceNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.FieldError("invoice_number", fmt.Sprintf("unknown invoice %q", n.InvoiceNumber))
		}
		return nil, fmt.Errorf("workflow: load invoice by number: %w", err)
	}
	if n.Amount.Sign() <= 0 {
		return nil, shared.FieldError("amount", "must be positive")
	}
	if n.Currency != "" && n.Currency != invoice.Currency {
		return nil, shared.FieldError("currency", fmt.Sprintf("notification currency %s does not match invoice currency %s", n.Currency, invoice.Currency))
	}

	method := n.Method
	if !method.Valid() {
		method = MethodOther
	}
	paidAt := n.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	payment, err := s.repo.CreatePayment(ctx, CreatePaymentInput{
		InvoiceID:  invoice.ID,
		Amount:     n.Amount,
		PaidAt:     paidAt,
		Method:     method,
		Reference:  n.Reference,
		ExternalID: n.ExternalPaymentID,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: create payment: %w", err)
	}
	return payment, nil
}

func (s *Service) auditFailedAttempt(ctx context.Context, n ExternalNotification, tenantID int64) (*Result, error) {
	invoice, err := s.repo.GetInvoiceByNumber(ctx, tenantID, n.InvoiceNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.FieldError("invoice_number", fmt.Sprintf("unknown invoice %q", n.InvoiceNumber))
		}
		return nil, fmt.Errorf("workflow: load invoice by number: %w", err)
	}

	now := s.now()
	if s.audit != nil {
		rec := shared.AuditRecord{
			TenantID:  tenantID,
			EventKind: string(EventPaymentFailed),
			Entity:    "invoice",
			EntityID:  invoice.ID,
			OldStatus: string(invoice.Status),
			NewStatus: string(invoice.Status),
			Reason:    "gateway reported failed payment attempt",
			At:        now,
			Metadata:  map[string]any{"external_payment_id": n.ExternalPaymentID},
		}
		if auditErr := s.audit.Record(ctx, rec); auditErr != nil {
			s.logger.Error("record audit", slog.Any("error", auditErr))
		}
	}

	payments, err := s.repo.ListPayments(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list payments: %w", err)
	}
	summary := Summarize(invoice.Total, payments)
	decision := noChange(invoice.Status, ReasonNoStatusEffect)
	return s.buildResult(ctx, invoice, nil, summary, decision, now), nil
}

func normalizeLookupErr(paymentID int64, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
	}
	return err
}

// errorKind buckets a failure for batch reporting so callers can apply the
// right retry policy per slot.
func errorKind(err error) string {
	switch {
	case shared.IsValidation(err):
		return "validation"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "infrastructure"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
