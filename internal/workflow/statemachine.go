package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitionContext carries the facts the state machine needs: the ledger
// balance after the event, the invoice due date, and the evaluation clock.
// Now is injected so decisions stay reproducible in tests.
type TransitionContext struct {
	Remaining decimal.Decimal
	DueAt     time.Time
	Now       time.Time
	Disputed  bool
	// Target is the caller-specified status for dispute resolution and
	// manual overrides.
	Target InvoiceStatus
	// Override is set when the acting user has override authority.
	Override bool
}

// Decision is the state machine's verdict. Illegal transitions are reported
// with Transitioned false and a reason code, never an error: the orchestrator
// surfaces them as no-ops so batch processing continues.
type Decision struct {
	NewStatus    InvoiceStatus
	Transitioned bool
	Reason       string
}

// Reason codes returned on no-op decisions.
const (
	ReasonUnknownEvent       = "unknown_event"
	ReasonNotPayable         = "not_payable"
	ReasonAlreadyPaid        = "already_paid"
	ReasonPartialPayment     = "partial_payment"
	ReasonNotSent            = "not_sent"
	ReasonNotDue             = "not_due"
	ReasonStillDue           = "still_due"
	ReasonNotDisputable      = "not_disputable"
	ReasonNotDisputed        = "not_disputed"
	ReasonAlreadyReversed    = "already_reversed"
	ReasonInvalidTarget      = "invalid_target"
	ReasonOverrideNotAllowed = "override_not_permitted"
	ReasonNoStatusEffect     = "no_status_effect"
)

func noChange(current InvoiceStatus, reason string) Decision {
	return Decision{NewStatus: current, Transitioned: false, Reason: reason}
}

func changed(to InvoiceStatus) Decision {
	return Decision{NewStatus: to, Transitioned: true}
}

// dueStatus recomputes Sent vs Overdue from the due date.
func dueStatus(tc TransitionContext) InvoiceStatus {
	if tc.DueAt.Before(tc.Now) {
		return StatusOverdue
	}
	return StatusSent
}

// NextStatus maps (current status, event, context) to the next status. Pure
// and total: every input yields a Decision, never a panic. Re-applying an
// event whose effect already holds comes back Transitioned false, which is
// what makes orchestrator retries idempotent.
func NextStatus(current InvoiceStatus, event EventKind, tc TransitionContext) Decision {
	switch event {
	case EventManualOverride:
		if !tc.Override {
			return noChange(current, ReasonOverrideNotAllowed)
		}
		if !tc.Target.Valid() {
			return noChange(current, ReasonInvalidTarget)
		}
		if tc.Target == current {
			return noChange(current, ReasonNoStatusEffect)
		}
		return changed(tc.Target)

	case EventInvoiceSent:
		if current != StatusDraft {
			return noChange(current, ReasonNoStatusEffect)
		}
		return changed(dueStatus(tc))

	case EventPaymentReceived, EventPaymentPartial, EventPaymentComplete:
		switch current {
		case StatusSent, StatusOverdue:
			// Zero or negative remaining both resolve to Paid; overpayment is
			// flagged by reconciliation, never blocked here.
			if tc.Remaining.Sign() <= 0 {
				return changed(StatusPaid)
			}
			if next := dueStatus(tc); next != current {
				return changed(next)
			}
			return noChange(current, ReasonPartialPayment)
		case StatusPaid:
			return noChange(current, ReasonAlreadyPaid)
		default:
			return noChange(current, ReasonNotPayable)
		}

	case EventPaymentReversed:
		if current != StatusPaid {
			return noChange(current, ReasonNoStatusEffect)
		}
		return changed(dueStatus(tc))

	case EventPaymentFailed:
		// A failed attempt never moves the invoice.
		return noChange(current, ReasonNoStatusEffect)

	case EventOverdueDetected:
		if current != StatusSent {
			return noChange(current, ReasonNotSent)
		}
		if !tc.DueAt.Before(tc.Now) {
			return noChange(current, ReasonNotDue)
		}
		return changed(StatusOverdue)

	case EventOverdueCleared:
		if current != StatusOverdue {
			return noChange(current, ReasonNoStatusEffect)
		}
		if tc.DueAt.Before(tc.Now) {
			return noChange(current, ReasonStillDue)
		}
		return changed(StatusSent)

	case EventDisputeRaised:
		switch current {
		case StatusSent, StatusOverdue:
			return changed(StatusDisputed)
		default:
			return noChange(current, ReasonNotDisputable)
		}

	case EventDisputeResolved:
		if current != StatusDisputed {
			return noChange(current, ReasonNotDisputed)
		}
		switch tc.Target {
		case StatusSent, StatusOverdue, StatusPaid, StatusWrittenOff:
			return changed(tc.Target)
		default:
			return noChange(current, ReasonInvalidTarget)
		}
	}

	return noChange(current, ReasonUnknownEvent)
}
