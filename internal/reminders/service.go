package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tahseel-hq/tahseel/internal/calendar"
)

// Candidate is one invoice eligible for a reminder: Sent or Overdue, balance
// outstanding, reminders not paused.
type Candidate struct {
	InvoiceID     int64
	TenantID      int64
	CustomerID    int64
	InvoiceNumber string
	CustomerName  string
	Email         string
	Language      string
	Currency      string
	Remaining     decimal.Decimal
	DueAt         time.Time
	// LastStep is the most escalated step already sent, empty when none.
	LastStep string
}

// Message is a scheduled reminder handed to the mail queue.
type Message struct {
	InvoiceID     int64           `json:"invoice_id"`
	TenantID      int64           `json:"tenant_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Email         string          `json:"email"`
	CustomerName  string          `json:"customer_name"`
	Template      string          `json:"template"`
	Step          string          `json:"step"`
	Currency      string          `json:"currency"`
	Remaining     decimal.Decimal `json:"remaining"`
	// SendAt is the earliest instant delivery is allowed under the tenant's
	// contact calendar.
	SendAt time.Time `json:"send_at"`
}

// RepositoryPort defines persistence for the reminder processor.
type RepositoryPort interface {
	ListCandidates(ctx context.Context, limit int) ([]Candidate, error)
	RecordScheduled(ctx context.Context, invoiceID int64, step string, sendAt time.Time) error
}

// Enqueuer hands messages to the delivery queue.
type Enqueuer interface {
	EnqueueReminder(ctx context.Context, msg Message) error
}

// CalendarSource supplies per-tenant contact calendars.
type CalendarSource interface {
	CalendarFor(ctx context.Context, tenantID int64) (calendar.Config, error)
}

// Service walks due invoices and schedules their next reminder.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	enqueuer  Enqueuer
	calendars CalendarSource
	sequence  []Step
	now       func() time.Time
}

// NewService constructs the reminder processor.
func NewService(logger *slog.Logger, repo RepositoryPort, enqueuer Enqueuer, calendars CalendarSource) *Service {
	return &Service{
		logger:    logger,
		repo:      repo,
		enqueuer:  enqueuer,
		calendars: calendars,
		sequence:  DefaultSequence,
		now:       time.Now,
	}
}

// DispatchStats summarises one dispatch run.
type DispatchStats struct {
	Examined  int
	Scheduled int
	Skipped   int
	Failed    int
}

// Dispatch examines due candidates and enqueues at most one reminder per
// invoice per run. Failures are isolated per candidate so one broken row
// never stalls the whole sweep.
func (s *Service) Dispatch(ctx context.Context, limit int) (DispatchStats, error) {
	var stats DispatchStats
	candidates, err := s.repo.ListCandidates(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("reminders: list candidates: %w", err)
	}
	stats.Examined = len(candidates)

	now := s.now()
	for _, c := range candidates {
		msg, ok := s.plan(ctx, c, now)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := s.enqueuer.EnqueueReminder(ctx, msg); err != nil {
			stats.Failed++
			s.logger.Error("enqueue reminder",
				slog.Any("error", err),
				slog.Int64("invoice_id", c.InvoiceID))
			continue
		}
		if err := s.repo.RecordScheduled(ctx, c.InvoiceID, msg.Step, msg.SendAt); err != nil {
			stats.Failed++
			s.logger.Error("record reminder",
				slog.Any("error", err),
				slog.Int64("invoice_id", c.InvoiceID))
			continue
		}
		stats.Scheduled++
	}

	s.logger.Info("reminder dispatch complete",
		slog.Int("examined", stats.Examined),
		slog.Int("scheduled", stats.Scheduled),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// plan decides whether the candidate gets a reminder now and builds it.
func (s *Service) plan(ctx context.Context, c Candidate, now time.Time) (Message, bool) {
	daysOverdue := int(now.Sub(c.DueAt).Hours() / 24)
	step := StepFor(s.sequence, daysOverdue)
	if step == nil {
		return Message{}, false
	}
	if c.LastStep == step.Name {
		// Already sent this escalation level; wait for the next one.
		return Message{}, false
	}

	cfg, err := s.calendars.CalendarFor(ctx, c.TenantID)
	if err != nil {
		s.logger.Warn("load calendar", slog.Any("error", err), slog.Int64("tenant_id", c.TenantID))
		cfg = calendar.Config{}
	}

	return Message{
		InvoiceID:     c.InvoiceID,
		TenantID:      c.TenantID,
		InvoiceNumber: c.InvoiceNumber,
		Email:         c.Email,
		CustomerName:  c.CustomerName,
		Template:      TemplateFor(*step, c.Language),
		Step:          step.Name,
		Currency:      c.Currency,
		Remaining:     c.Remaining,
		SendAt:        calendar.NextEligible(now, cfg),
	}, true
}
