package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus classifies invoice total vs. recorded payments.
type ReconciliationStatus string

const (
	Reconciled ReconciliationStatus = "RECONCILED"
	Overpaid   ReconciliationStatus = "OVERPAID"
	Underpaid  ReconciliationStatus = "UNDERPAID"
	Discrepant ReconciliationStatus = "DISCREPANT"
)

// PaymentBreakdown is one payment line in a reconciliation report. Reversed
// rows stay listed so the report explains where the money went, but their
// amounts are not in the ledger totals.
type PaymentBreakdown struct {
	PaymentID int64
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    PaymentMethod
	Reference string
	Reversed  bool
}

// ReconciliationResult is diagnostic only. Producing it never mutates invoice
// status, so financial review has no side effects.
type ReconciliationResult struct {
	InvoiceID     int64
	InvoiceNumber string
	Status        ReconciliationStatus
	Ledger        LedgerSummary
	Payments      []PaymentBreakdown
	Notes         []string
}

// Classify maps a ledger summary plus the raw payment rows to a
// reconciliation status. Discrepant flags data problems: non-positive payment
// amounts, or payments recorded against a zero-total invoice.
func Classify(summary LedgerSummary, payments []Payment) (ReconciliationStatus, []string) {
	var notes []string
	for _, p := range payments {
		if p.Amount.Sign() <= 0 {
			notes = append(notes, "payment has non-positive amount")
		}
	}
	if summary.InvoiceTotal.Sign() <= 0 && summary.TotalPaid.Sign() > 0 {
		notes = append(notes, "payments recorded against zero-total invoice")
	}
	if len(notes) > 0 {
		return Discrepant, notes
	}

	switch {
	case summary.TotalPaid.Equal(summary.InvoiceTotal):
		return Reconciled, nil
	case summary.TotalPaid.GreaterThan(summary.InvoiceTotal):
		return Overpaid, nil
	default:
		return Underpaid, nil
	}
}

// recommendationTable is the static classification -> operator actions map.
var recommendationTable = map[ReconciliationStatus][]string{
	Reconciled: {"no action required, invoice fully reconciled"},
	Overpaid:   {"process refund or credit note for the excess amount", "confirm overpayment with the customer"},
	Underpaid:  {"send reminder for outstanding balance", "verify whether further payments are in transit"},
	Discrepant: {"review payment records for data entry errors", "escalate to finance operations"},
}

// RecommendationsFor maps a reconciliation status to suggested operator
// actions. Total over the four classifications; unknown values get a review
// fallback rather than nothing.
func RecommendationsFor(status ReconciliationStatus) []string {
	if recs, ok := recommendationTable[status]; ok {
		out := make([]string, len(recs))
		copy(out, recs)
		return out
	}
	return []string{"manual review required"}
}
