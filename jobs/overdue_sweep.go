package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

// sweepBatchSize bounds one sweep run. Leftovers are picked up by the next
// cron tick.
const sweepBatchSize = 500

// OverdueSource lists invoices awaiting overdue detection.
type OverdueSource interface {
	ListOverdueCandidates(ctx context.Context, limit int) ([]workflow.OverdueCandidate, error)
}

// RunOverdueSweep pushes overdue_detected events for SENT invoices past
// their due date. The state machine guards re-detection, so overlapping
// sweeps are harmless.
func RunOverdueSweep(ctx context.Context, source OverdueSource, engine *workflow.Service, logger *slog.Logger) error {
	candidates, err := source.ListOverdueCandidates(ctx, sweepBatchSize)
	if err != nil {
		return err
	}

	var transitioned, failed int
	for _, c := range candidates {
		res, err := engine.ApplyInvoiceEvent(ctx, workflow.InvoiceEvent{
			InvoiceID: c.InvoiceID,
			Kind:      workflow.EventOverdueDetected,
		}, shared.System(c.TenantID))
		if err != nil {
			// A conflicting concurrent write just means someone else moved the
			// invoice; the next sweep re-examines it.
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				continue
			}
			failed++
			logger.Error("overdue sweep event",
				slog.Any("error", err),
				slog.Int64("invoice_id", c.InvoiceID))
			continue
		}
		if res.Decision.Transitioned {
			transitioned++
		}
	}

	logger.Info("overdue sweep complete",
		slog.Int("examined", len(candidates)),
		slog.Int("transitioned", transitioned),
		slog.Int("failed", failed))
	return nil
}

// HandleOverdueSweep returns the handler for the sweep cron.
func HandleOverdueSweep(source OverdueSource, engine *workflow.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		return RunOverdueSweep(ctx, source, engine, logger)
	}
}
