package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	dueLater = testNow.Add(72 * time.Hour)
	duePast  = testNow.Add(-72 * time.Hour)
)

func ctxWith(remaining string, dueAt time.Time) TransitionContext {
	return TransitionContext{
		Remaining: decimal.RequireFromString(remaining),
		DueAt:     dueAt,
		Now:       testNow,
	}
}

func TestNextStatusPaymentResolvesToPaid(t *testing.T) {
	for _, current := range []InvoiceStatus{StatusSent, StatusOverdue} {
		d := NextStatus(current, EventPaymentReceived, ctxWith("0", duePast))
		require.True(t, d.Transitioned, "from %s", current)
		require.Equal(t, StatusPaid, d.NewStatus)
	}
}

func TestNextStatusPartialPaymentKeepsStatus(t *testing.T) {
	d := NextStatus(StatusSent, EventPaymentPartial, ctxWith("500", dueLater))
	require.False(t, d.Transitioned)
	require.Equal(t, StatusSent, d.NewStatus)
	require.Equal(t, ReasonPartialPayment, d.Reason)

	d = NextStatus(StatusOverdue, EventPaymentPartial, ctxWith("500", duePast))
	require.False(t, d.Transitioned)
	require.Equal(t, StatusOverdue, d.NewStatus)
}

func TestNextStatusPartialPaymentRealignsDueStatus(t *testing.T) {
	// A partial payment on a SENT invoice whose due date has already passed
	// moves it to OVERDUE rather than leaving it stale.
	d := NextStatus(StatusSent, EventPaymentPartial, ctxWith("500", duePast))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusOverdue, d.NewStatus)
}

func TestNextStatusPaymentOnPaidIsNoop(t *testing.T) {
	d := NextStatus(StatusPaid, EventPaymentReceived, ctxWith("0", dueLater))
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonAlreadyPaid, d.Reason)
}

func TestNextStatusPaymentOnDraftRejected(t *testing.T) {
	for _, current := range []InvoiceStatus{StatusDraft, StatusDisputed, StatusWrittenOff} {
		d := NextStatus(current, EventPaymentReceived, ctxWith("0", dueLater))
		require.False(t, d.Transitioned, "from %s", current)
		require.Equal(t, ReasonNotPayable, d.Reason)
	}
}

func TestNextStatusOverpaymentStillResolvesToPaid(t *testing.T) {
	d := NextStatus(StatusSent, EventPaymentReceived, ctxWith("-200", dueLater))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusPaid, d.NewStatus)
}

func TestNextStatusReversal(t *testing.T) {
	d := NextStatus(StatusPaid, EventPaymentReversed, ctxWith("5000", dueLater))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusSent, d.NewStatus)

	d = NextStatus(StatusPaid, EventPaymentReversed, ctxWith("5000", duePast))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusOverdue, d.NewStatus)

	d = NextStatus(StatusSent, EventPaymentReversed, ctxWith("5000", dueLater))
	require.False(t, d.Transitioned)
}

func TestNextStatusFailedPaymentNeverMoves(t *testing.T) {
	for _, current := range []InvoiceStatus{StatusDraft, StatusSent, StatusOverdue, StatusPaid, StatusDisputed, StatusWrittenOff} {
		d := NextStatus(current, EventPaymentFailed, ctxWith("100", duePast))
		require.False(t, d.Transitioned, "from %s", current)
		require.Equal(t, current, d.NewStatus)
	}
}

func TestNextStatusOverdueDetection(t *testing.T) {
	d := NextStatus(StatusSent, EventOverdueDetected, ctxWith("100", duePast))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusOverdue, d.NewStatus)

	// Not yet due: guarded.
	d = NextStatus(StatusSent, EventOverdueDetected, ctxWith("100", dueLater))
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonNotDue, d.Reason)

	// Re-detection on an already overdue invoice is a no-op, which makes the
	// sweep idempotent.
	d = NextStatus(StatusOverdue, EventOverdueDetected, ctxWith("100", duePast))
	require.False(t, d.Transitioned)
}

func TestNextStatusOverdueCleared(t *testing.T) {
	d := NextStatus(StatusOverdue, EventOverdueCleared, ctxWith("100", dueLater))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusSent, d.NewStatus)

	d = NextStatus(StatusOverdue, EventOverdueCleared, ctxWith("100", duePast))
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonStillDue, d.Reason)
}

func TestNextStatusDisputeLifecycle(t *testing.T) {
	for _, current := range []InvoiceStatus{StatusSent, StatusOverdue} {
		d := NextStatus(current, EventDisputeRaised, ctxWith("100", duePast))
		require.True(t, d.Transitioned, "from %s", current)
		require.Equal(t, StatusDisputed, d.NewStatus)
	}

	d := NextStatus(StatusPaid, EventDisputeRaised, ctxWith("0", duePast))
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonNotDisputable, d.Reason)

	for _, target := range []InvoiceStatus{StatusSent, StatusOverdue, StatusPaid, StatusWrittenOff} {
		tc := ctxWith("100", duePast)
		tc.Target = target
		d := NextStatus(StatusDisputed, EventDisputeResolved, tc)
		require.True(t, d.Transitioned, "target %s", target)
		require.Equal(t, target, d.NewStatus)
	}

	tc := ctxWith("100", duePast)
	tc.Target = StatusDraft
	d = NextStatus(StatusDisputed, EventDisputeResolved, tc)
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonInvalidTarget, d.Reason)
}

func TestNextStatusManualOverride(t *testing.T) {
	tc := ctxWith("100", duePast)
	tc.Target = StatusWrittenOff

	d := NextStatus(StatusOverdue, EventManualOverride, tc)
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonOverrideNotAllowed, d.Reason)

	tc.Override = true
	d = NextStatus(StatusOverdue, EventManualOverride, tc)
	require.True(t, d.Transitioned)
	require.Equal(t, StatusWrittenOff, d.NewStatus)

	tc.Target = StatusOverdue
	d = NextStatus(StatusOverdue, EventManualOverride, tc)
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonNoStatusEffect, d.Reason)

	tc.Target = InvoiceStatus("BOGUS")
	d = NextStatus(StatusOverdue, EventManualOverride, tc)
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonInvalidTarget, d.Reason)
}

func TestNextStatusInvoiceSent(t *testing.T) {
	d := NextStatus(StatusDraft, EventInvoiceSent, ctxWith("5000", dueLater))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusSent, d.NewStatus)

	// Sending with a past due date lands directly in OVERDUE.
	d = NextStatus(StatusDraft, EventInvoiceSent, ctxWith("5000", duePast))
	require.True(t, d.Transitioned)
	require.Equal(t, StatusOverdue, d.NewStatus)

	d = NextStatus(StatusSent, EventInvoiceSent, ctxWith("5000", dueLater))
	require.False(t, d.Transitioned)
}

// TestNextStatusTotal drives every (status, event) pair through the machine
// and asserts each yields a usable decision: a valid resulting status, and a
// reason code whenever nothing moved.
func TestNextStatusTotal(t *testing.T) {
	statuses := []InvoiceStatus{StatusDraft, StatusSent, StatusOverdue, StatusPaid, StatusDisputed, StatusWrittenOff}
	events := []EventKind{
		EventInvoiceSent, EventPaymentReceived, EventPaymentPartial, EventPaymentComplete,
		EventPaymentFailed, EventPaymentReversed, EventOverdueDetected, EventOverdueCleared,
		EventDisputeRaised, EventDisputeResolved, EventManualOverride,
	}

	for _, status := range statuses {
		for _, event := range events {
			for _, tc := range []TransitionContext{
				ctxWith("0", dueLater),
				ctxWith("500", duePast),
				{Remaining: decimal.NewFromInt(500), DueAt: duePast, Now: testNow, Target: StatusPaid, Override: true},
			} {
				d := NextStatus(status, event, tc)
				require.True(t, d.NewStatus.Valid(), "(%s, %s) produced invalid status %q", status, event, d.NewStatus)
				if !d.Transitioned {
					require.Equal(t, status, d.NewStatus, "(%s, %s) no-op must keep current status", status, event)
					require.NotEmpty(t, d.Reason, "(%s, %s) no-op must carry a reason", status, event)
				}
			}
		}
	}

	// Unknown events degrade to a reasoned no-op, not a panic.
	d := NextStatus(StatusSent, EventKind("mystery"), ctxWith("0", dueLater))
	require.False(t, d.Transitioned)
	require.Equal(t, ReasonUnknownEvent, d.Reason)
}

// Re-applying an event whose effect already holds must come back unchanged.
func TestNextStatusIdempotentReapplication(t *testing.T) {
	tc := ctxWith("0", duePast)
	first := NextStatus(StatusOverdue, EventPaymentReceived, tc)
	require.True(t, first.Transitioned)
	require.Equal(t, StatusPaid, first.NewStatus)

	second := NextStatus(first.NewStatus, EventPaymentReceived, tc)
	require.False(t, second.Transitioned)
	require.Equal(t, StatusPaid, second.NewStatus)
}
