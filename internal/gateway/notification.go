// Package gateway adapts payment-gateway webhooks into workflow events. It
// authenticates deliveries with an HMAC shared secret, suppresses replays
// through a Redis seen-cache, and hands normalized notifications to the
// workflow orchestrator.
package gateway

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

// payload is the gateway's wire format. Amounts arrive as strings; parsing
// them through decimal keeps the money exact.
type payload struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	Reference     string `json:"reference"`
	PaidAt        string `json:"paid_at"`
	Status        string `json:"status"`
}

// parseNotification decodes and normalizes one delivery body.
func parseNotification(body []byte) (workflow.ExternalNotification, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return workflow.ExternalNotification{}, shared.Validationf("malformed webhook payload: %v", err)
	}
	if p.ID == "" {
		return workflow.ExternalNotification{}, shared.FieldError("id", "required")
	}
	if p.InvoiceNumber == "" {
		return workflow.ExternalNotification{}, shared.FieldError("invoice_number", "required")
	}
	switch p.Status {
	case "success", "failed", "pending":
	default:
		return workflow.ExternalNotification{}, shared.FieldError("status", "must be success, failed or pending")
	}

	n := workflow.ExternalNotification{
		ExternalPaymentID: p.ID,
		InvoiceNumber:     p.InvoiceNumber,
		Currency:          p.Currency,
		Method:            workflow.PaymentMethod(p.Method),
		Reference:         p.Reference,
		Status:            p.Status,
	}

	if p.Amount != "" {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return workflow.ExternalNotification{}, shared.FieldError("amount", "not a valid decimal")
		}
		n.Amount = amount
	}
	if p.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, p.PaidAt)
		if err != nil {
			return workflow.ExternalNotification{}, shared.FieldError("paid_at", "not a valid RFC3339 timestamp")
		}
		n.PaidAt = paidAt
	}
	return n, nil
}
