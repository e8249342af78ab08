package workflow

import (
	"github.com/shopspring/decimal"
)

type paymentEventRequest struct {
	PaymentID int64          `json:"payment_id" validate:"required,gt=0"`
	Kind      string         `json:"kind" validate:"required"`
	Target    string         `json:"target,omitempty"`
	Reason    string         `json:"reason,omitempty" validate:"max=500"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (r paymentEventRequest) toEvent() Event {
	return Event{
		PaymentID: r.PaymentID,
		Kind:      EventKind(r.Kind),
		Target:    InvoiceStatus(r.Target),
		Reason:    r.Reason,
		Metadata:  r.Metadata,
	}
}

type batchRequest struct {
	Events []paymentEventRequest `json:"events" validate:"required,min=1,dive"`
}

type ledgerResponse struct {
	InvoiceTotal decimal.Decimal `json:"invoice_total"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Remaining    decimal.Decimal `json:"remaining"`
	PercentPaid  decimal.Decimal `json:"percent_paid"`
	IsPartial    bool            `json:"is_partial"`
	IsFullyPaid  bool            `json:"is_fully_paid"`
	IsOverpaid   bool            `json:"is_overpaid"`
}

func toLedgerResponse(s LedgerSummary) ledgerResponse {
	return ledgerResponse{
		InvoiceTotal: s.InvoiceTotal,
		TotalPaid:    s.TotalPaid,
		Remaining:    s.Remaining,
		PercentPaid:  s.PercentPaid(),
		IsPartial:    s.IsPartial,
		IsFullyPaid:  s.IsFullyPaid,
		IsOverpaid:   s.IsOverpaid,
	}
}

type complianceResponse struct {
	ReferenceProvided   bool `json:"reference_provided"`
	WithinBusinessHours bool `json:"within_business_hours"`
}

type resultResponse struct {
	PaymentID     int64              `json:"payment_id,omitempty"`
	InvoiceID     int64              `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	OldStatus     string             `json:"old_status"`
	NewStatus     string             `json:"new_status"`
	Transitioned  bool               `json:"transitioned"`
	Reason        string             `json:"reason,omitempty"`
	Ledger        ledgerResponse     `json:"ledger"`
	Compliance    complianceResponse `json:"compliance"`
	NextActions   []string           `json:"next_actions,omitempty"`
}

func toResultResponse(res *Result) resultResponse {
	return resultResponse{
		PaymentID:     res.PaymentID,
		InvoiceID:     res.InvoiceID,
		InvoiceNumber: res.InvoiceNumber,
		OldStatus:     string(res.OldStatus),
		NewStatus:     string(res.NewStatus),
		Transitioned:  res.Decision.Transitioned,
		Reason:        res.Decision.Reason,
		Ledger:        toLedgerResponse(res.Ledger),
		Compliance: complianceResponse{
			ReferenceProvided:   res.Compliance.ReferenceProvided,
			WithinBusinessHours: res.Compliance.WithinBusinessHours,
		},
		NextActions: res.NextActions,
	}
}

type batchItemResponse struct {
	Index     int             `json:"index"`
	PaymentID int64           `json:"payment_id"`
	Result    *resultResponse `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

type batchResponse struct {
	BatchID     string              `json:"batch_id"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	Transitions int                 `json:"transitions"`
	Items       []batchItemResponse `json:"items"`
}

func toBatchResponse(br *BatchResult) batchResponse {
	out := batchResponse{
		BatchID:     br.BatchID,
		Total:       br.Total,
		Succeeded:   br.Succeeded,
		Failed:      br.Failed,
		Transitions: br.Transitions,
		Items:       make([]batchItemResponse, 0, len(br.Items)),
	}
	for _, item := range br.Items {
		resp := batchItemResponse{
			Index:     item.Index,
			PaymentID: item.PaymentID,
			Error:     item.Err,
			ErrorKind: item.ErrKind,
		}
		if item.Result != nil {
			r := toResultResponse(item.Result)
			resp.Result = &r
		}
		out.Items = append(out.Items, resp)
	}
	return out
}

type paymentBreakdownResponse struct {
	PaymentID int64           `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    string          `json:"paid_at"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
}

type reconciliationResponse struct {
	InvoiceID       int64                      `json:"invoice_id"`
	InvoiceNumber   string                     `json:"invoice_number"`
	Status          string                     `json:"status"`
	Ledger          ledgerResponse             `json:"ledger"`
	Payments        []paymentBreakdownResponse `json:"payments"`
	Notes           []string                   `json:"notes,omitempty"`
	Recommendations []string                   `json:"recommendations"`
}

func toReconciliationResponse(rr *ReconciliationResult) reconciliationResponse {
	payments := make([]paymentBreakdownResponse, 0, len(rr.Payments))
	for _, p := range rr.Payments {
		payments = append(payments, paymentBreakdownResponse{
			PaymentID: p.PaymentID,
			Amount:    p.Amount,
			PaidAt:    p.PaidAt.Format("2006-01-02T15:04:05Z07:00"),
			Method:    string(p.Method),
			Reference: p.Reference,
		})
	}
	return reconciliationResponse{
		InvoiceID:       rr.InvoiceID,
		InvoiceNumber:   rr.InvoiceNumber,
		Status:          string(rr.Status),
		Ledger:          toLedgerResponse(rr.Ledger),
		Payments:        payments,
		Notes:           rr.Notes,
		Recommendations: RecommendationsFor(rr.Status),
	}
}
