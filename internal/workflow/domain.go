// Package workflow implements the payment workflow and invoice status engine:
// a pure status state machine, a fixed-point payment ledger aggregator, the
// transactional orchestrator tying them together, and the read-only
// reconciliation reporter.
package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice statuses.
type InvoiceStatus string

const (
	StatusDraft      InvoiceStatus = "DRAFT"
	StatusSent       InvoiceStatus = "SENT"
	StatusOverdue    InvoiceStatus = "OVERDUE"
	StatusPaid       InvoiceStatus = "PAID"
	StatusDisputed   InvoiceStatus = "DISPUTED"
	StatusWrittenOff InvoiceStatus = "WRITTEN_OFF"
)

// Valid reports whether the status is a member of the closed enum.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusOverdue, StatusPaid, StatusDisputed, StatusWrittenOff:
		return true
	}
	return false
}

// EventKind enumerates payment lifecycle and invoice workflow events.
type EventKind string

const (
	EventInvoiceSent     EventKind = "invoice_sent"
	EventPaymentReceived EventKind = "payment_received"
	EventPaymentPartial  EventKind = "payment_partial"
	EventPaymentComplete EventKind = "payment_completed"
	EventPaymentFailed   EventKind = "payment_failed"
	EventPaymentReversed EventKind = "payment_reversed"
	EventOverdueDetected EventKind = "overdue_detected"
	EventOverdueCleared  EventKind = "overdue_cleared"
	EventDisputeRaised   EventKind = "dispute_raised"
	EventDisputeResolved EventKind = "dispute_resolved"
	EventManualOverride  EventKind = "manual_override"
)

// Valid reports whether the event kind is known.
func (k EventKind) Valid() bool {
	switch k {
	case EventInvoiceSent, EventPaymentReceived, EventPaymentPartial, EventPaymentComplete,
		EventPaymentFailed, EventPaymentReversed, EventOverdueDetected, EventOverdueCleared,
		EventDisputeRaised, EventDisputeResolved, EventManualOverride:
		return true
	}
	return false
}

// PaymentMethod enumerates how funds were received.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodCash         PaymentMethod = "cash"
	MethodCheque       PaymentMethod = "cheque"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCard, MethodCash, MethodCheque, MethodOther:
		return true
	}
	return false
}

// Invoice model. Monetary fields are fixed-point decimals; Version backs the
// optimistic-concurrency check on status writes.
type Invoice struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"-"`
	CustomerID      int64           `json:"customer_id"`
	Number          string          `json:"number"`
	Currency        string          `json:"currency"`
	Total           decimal.Decimal `json:"total"`
	Status          InvoiceStatus   `json:"status"`
	DueAt           time.Time       `json:"due_at"`
	Disputed        bool            `json:"disputed"`
	DisputeReason   string          `json:"dispute_reason,omitempty"`
	RemindersPaused bool            `json:"reminders_paused"`
	PauseReason     string          `json:"pause_reason,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Payment model. A payment applies to exactly one invoice. A reversed payment
// keeps its row for the audit trail but no longer counts toward the ledger.
type Payment struct {
	ID         int64           `json:"id"`
	InvoiceID  int64           `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	Method     PaymentMethod   `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	Note       string          `json:"note,omitempty"`
	ExternalID string          `json:"external_id,omitempty"`
	ReversedAt *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Reversed reports whether the payment has been reversed.
func (p Payment) Reversed() bool {
	return p.ReversedAt != nil
}

// Event is an immutable unit of work for the orchestrator.
type Event struct {
	PaymentID int64
	Kind      EventKind
	Reason    string
	// Target carries the caller-specified status for dispute_resolved and
	// manual_override events.
	Target   InvoiceStatus
	Metadata map[string]any
}

// ExternalNotification is the normalized shape produced by the payment
// gateway webhook adapter.
type ExternalNotification struct {
	ExternalPaymentID string
	InvoiceNumber     string
	Amount            decimal.Decimal
	Currency          string
	Method            PaymentMethod
	Reference         string
	PaidAt            time.Time
	Status            string // success | failed | pending
}

// CreatePaymentInput for recording a payment row.
type CreatePaymentInput struct {
	InvoiceID  int64
	Amount     decimal.Decimal
	PaidAt     time.Time
	Method     PaymentMethod
	Reference  string
	Note       string
	ExternalID string
}
