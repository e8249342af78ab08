package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tahseel-hq/tahseel/internal/reminders"
)

// MailSender delivers one rendered reminder. The SMTP implementation lives
// in the deployment; the default sender only logs.
type MailSender interface {
	SendReminder(ctx context.Context, msg reminders.Message) error
}

// LogSender is the no-op MailSender used until SMTP is configured.
type LogSender struct {
	Logger *slog.Logger
}

// SendReminder logs the delivery instead of sending it.
func (s LogSender) SendReminder(_ context.Context, msg reminders.Message) error {
	s.Logger.Info("reminder delivery (log only)",
		slog.String("to", msg.Email),
		slog.String("template", msg.Template),
		slog.String("invoice", msg.InvoiceNumber))
	return nil
}

// HandleSendReminder returns the handler for reminder delivery tasks.
func HandleSendReminder(sender MailSender, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var msg reminders.Message
		if err := json.Unmarshal(t.Payload(), &msg); err != nil {
			return asynq.SkipRetry
		}
		if err := sender.SendReminder(ctx, msg); err != nil {
			logger.Error("send reminder",
				slog.Any("error", err),
				slog.Int64("invoice_id", msg.InvoiceID))
			return err
		}
		return nil
	}
}
