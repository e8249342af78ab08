package workflow

import "github.com/shopspring/decimal"

// LedgerSummary holds the derived totals for one invoice's set of payments.
// All arithmetic is fixed-point; nothing here ever touches binary floats.
type LedgerSummary struct {
	InvoiceTotal decimal.Decimal
	TotalPaid    decimal.Decimal
	Remaining    decimal.Decimal
	IsPartial    bool
	IsFullyPaid  bool
	IsOverpaid   bool
}

// Summarize computes paid-to-date and remaining balance. Summation is
// commutative, so the result is independent of payment order. Reversed
// payments are excluded: their money is no longer held. Remaining is clamped
// at zero; overpayment is reported via the flag, not a negative balance.
func Summarize(invoiceTotal decimal.Decimal, payments []Payment) LedgerSummary {
	totalPaid := decimal.Zero
	for _, p := range payments {
		if p.Reversed() {
			continue
		}
		totalPaid = totalPaid.Add(p.Amount)
	}

	remaining := invoiceTotal.Sub(totalPaid)
	if remaining.Sign() < 0 {
		remaining = decimal.Zero
	}

	return LedgerSummary{
		InvoiceTotal: invoiceTotal,
		TotalPaid:    totalPaid,
		Remaining:    remaining,
		IsPartial:    totalPaid.Sign() > 0 && totalPaid.LessThan(invoiceTotal),
		IsFullyPaid:  totalPaid.GreaterThanOrEqual(invoiceTotal) && invoiceTotal.Sign() > 0,
		IsOverpaid:   totalPaid.GreaterThan(invoiceTotal),
	}
}

// PercentPaid returns paid-to-date as a percentage rounded half-up to two
// decimal places. Display only: the rounded value is never fed back into
// stored totals.
func (s LedgerSummary) PercentPaid() decimal.Decimal {
	if s.InvoiceTotal.Sign() <= 0 {
		return decimal.Zero
	}
	pct := s.TotalPaid.Mul(decimal.NewFromInt(100)).Div(s.InvoiceTotal)
	return pct.Round(2)
}
