// Package jobs runs the background side of the workflow engine: queued
// payment-event batches, the overdue sweep, reminder dispatch and reminder
// delivery, all on asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tahseel-hq/tahseel/internal/reminders"
	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

const (
	// QueueDefault carries workflow and sweep tasks.
	QueueDefault = "default"
	// QueueMail carries outbound reminder deliveries.
	QueueMail = "mail"

	TaskTypePaymentBatch     = "workflow:payment_batch"
	TaskTypeOverdueSweep     = "workflow:overdue_sweep"
	TaskTypeReminderDispatch = "reminders:dispatch"
	TaskTypeSendReminder     = "mail:reminder"
)

// PaymentEventPayload is one event inside a queued batch.
type PaymentEventPayload struct {
	PaymentID int64  `json:"payment_id"`
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentBatchPayload is a queued ProcessBatch invocation.
type PaymentBatchPayload struct {
	TenantID int64                 `json:"tenant_id"`
	ActorID  int64                 `json:"actor_id"`
	Events   []PaymentEventPayload `json:"events"`
}

// NewPaymentBatchTask constructs a queued batch task.
func NewPaymentBatchTask(payload PaymentBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePaymentBatch, data), nil
}

// NewOverdueSweepTask constructs the sweep task. No payload: the sweep finds
// its own work.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueSweep, nil)
}

// NewReminderDispatchTask constructs the reminder dispatch task.
func NewReminderDispatchTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReminderDispatch, nil)
}

// NewSendReminderTask constructs a reminder delivery task.
func NewSendReminderTask(msg reminders.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendReminder, data), nil
}

// HandlePaymentBatch returns the handler for queued batches. Per-event
// failures live inside the BatchResult; only infrastructure errors bubble up
// to asynq for retry.
func HandlePaymentBatch(engine *workflow.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PaymentBatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		events := make([]workflow.Event, 0, len(payload.Events))
		for _, e := range payload.Events {
			events = append(events, workflow.Event{
				PaymentID: e.PaymentID,
				Kind:      workflow.EventKind(e.Kind),
				Target:    workflow.InvoiceStatus(e.Target),
				Reason:    e.Reason,
			})
		}

		actor := shared.Actor{TenantID: payload.TenantID, ActorID: payload.ActorID}
		result, err := engine.ProcessBatch(ctx, events, actor)
		if err != nil {
			if shared.IsValidation(err) {
				logger.Error("queued batch rejected", slog.Any("error", err))
				return asynq.SkipRetry
			}
			return err
		}
		logger.Info("queued batch processed",
			slog.String("batch_id", result.BatchID),
			slog.Int("total", result.Total),
			slog.Int("succeeded", result.Succeeded),
			slog.Int("failed", result.Failed),
			slog.Int("transitions", result.Transitions))
		return nil
	}
}

// HandleReminderDispatch returns the handler for the reminder dispatch cron.
func HandleReminderDispatch(svc *reminders.Service, batchSize int, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if _, err := svc.Dispatch(ctx, batchSize); err != nil {
			logger.Error("reminder dispatch", slog.Any("error", err))
			return err
		}
		return nil
	}
}
