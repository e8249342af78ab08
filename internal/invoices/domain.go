// Package invoices manages invoice lifecycle operations: creation, sending,
// disputes, manual payments and the receivables aging view. Status writes are
// delegated to the workflow engine, which owns all transition decisions.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tahseel-hq/tahseel/internal/workflow"
)

// CreateInvoiceInput carries fields for raising a draft invoice.
type CreateInvoiceInput struct {
	CustomerID int64           `json:"customer_id" validate:"required,gt=0"`
	Number     string          `json:"number" validate:"required,max=64"`
	Currency   string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	Total      decimal.Decimal `json:"total"`
	DueAt      time.Time       `json:"due_at" validate:"required"`
}

// ListInvoicesRequest filters an invoice listing. Page and PerPage drive the
// pagination; Limit and Offset are derived by the service before the query.
type ListInvoicesRequest struct {
	Status     workflow.InvoiceStatus
	CustomerID int64
	Page       int
	PerPage    int
	Limit      int
	Offset     int
}

// RecordPaymentInput registers a manually captured payment.
type RecordPaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Method    string          `json:"method" validate:"omitempty,oneof=bank_transfer card cash cheque other"`
	Reference string          `json:"reference" validate:"max=128"`
	Note      string          `json:"note" validate:"max=500"`
}

// AmendPaymentInput corrects a recorded payment's amount.
type AmendPaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
}

// InvoiceListItem is one row of a listing with its display status resolved at
// read time.
type InvoiceListItem struct {
	workflow.Invoice
	DisplayStatus workflow.InvoiceStatus `json:"display_status"`
}

// InvoiceDetail is an invoice with its derived ledger position.
type InvoiceDetail struct {
	Invoice workflow.Invoice
	// DisplayStatus recomputes SENT vs OVERDUE from the due date at read
	// time, so a just-lapsed invoice reads as overdue even before the sweep
	// has written the transition.
	DisplayStatus workflow.InvoiceStatus
	Ledger        workflow.LedgerSummary
	Payments      []workflow.Payment
}

// OutstandingInvoice is one open invoice line feeding the aging report.
type OutstandingInvoice struct {
	InvoiceID  int64
	CustomerID int64
	Remaining  decimal.Decimal
	DueAt      time.Time
}

// AgingReport buckets outstanding balances by days overdue.
type AgingReport struct {
	AsOf      time.Time       `json:"as_of"`
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120_plus"`
	Total     decimal.Decimal `json:"total"`
}
