package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tahseel-hq/tahseel/internal/platform/db"
	"github.com/tahseel-hq/tahseel/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the workflow engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, tenant_id, customer_id, number, currency, total, status, due_at,
	disputed, COALESCE(dispute_reason, ''), reminders_paused, COALESCE(pause_reason, ''),
	version, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.CustomerID, &inv.Number, &inv.Currency, &inv.Total,
		&inv.Status, &inv.DueAt, &inv.Disputed, &inv.DisputeReason,
		&inv.RemindersPaused, &inv.PauseReason, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvoice retrieves an invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, id))
}

// GetInvoiceByNumber retrieves a tenant's invoice by its number.
func (r *Repository) GetInvoiceByNumber(ctx context.Context, tenantID int64, number string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND number = $2`
	return scanInvoice(r.pool.QueryRow(ctx, query, tenantID, number))
}

const paymentColumns = `id, invoice_id, amount, paid_at, method, COALESCE(reference, ''),
	COALESCE(note, ''), COALESCE(external_id, ''), reversed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.Amount, &p.PaidAt, &p.Method,
		&p.Reference, &p.Note, &p.ExternalID, &p.ReversedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment retrieves a payment by id.
func (r *Repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// FindPaymentByExternalID looks up a payment by the gateway's identifier.
func (r *Repository) FindPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, externalID))
}

// ListPayments returns all payments recorded against an invoice.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.InvoiceID, &p.Amount, &p.PaidAt, &p.Method,
			&p.Reference, &p.Note, &p.ExternalID, &p.ReversedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreatePayment records a new payment row.
func (r *Repository) CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error) {
	query := `
		INSERT INTO payments (invoice_id, amount, paid_at, method, reference, note, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var p Payment
	err := r.pool.QueryRow(ctx, query,
		input.InvoiceID, input.Amount, input.PaidAt, string(input.Method),
		input.Reference, input.Note, input.ExternalID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.InvoiceID = input.InvoiceID
	p.Amount = input.Amount
	p.PaidAt = input.PaidAt
	p.Method = input.Method
	p.Reference = input.Reference
	p.Note = input.Note
	p.ExternalID = input.ExternalID
	return &p, nil
}

// MarkPaymentReversed voids a payment row. The reversed row stays in place
// for the audit trail; the ledger aggregator skips it. Re-marking an already
// reversed row keeps the original reversal timestamp.
func (r *Repository) MarkPaymentReversed(ctx context.Context, paymentID int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET reversed_at = $2, updated_at = NOW()
		WHERE id = $1 AND reversed_at IS NULL`,
		paymentID, at)
	return err
}

// UpdatePaymentAmount corrects the amount on a live payment row. Reversed
// rows are immutable; correcting one returns shared.ErrNotFound.
func (r *Repository) UpdatePaymentAmount(ctx context.Context, paymentID int64, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET amount = $2, updated_at = NOW()
		WHERE id = $1 AND reversed_at IS NULL`,
		paymentID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ApplyTransition writes the status change and its audit record in one
// transaction. The UPDATE is conditional on the version column; zero rows
// affected means another writer got there first.
func (r *Repository) ApplyTransition(ctx context.Context, input ApplyTransitionInput) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE invoices
			SET status = $3,
				disputed = CASE WHEN $3 = 'DISPUTED' THEN TRUE WHEN $2 = 'DISPUTED' THEN FALSE ELSE disputed END,
				dispute_reason = CASE WHEN $3 = 'DISPUTED' THEN $4 WHEN $2 = 'DISPUTED' THEN NULL ELSE dispute_reason END,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $1 AND status = $2 AND version = $5`,
			input.InvoiceID, string(input.From), string(input.To), input.Audit.Reason, input.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrConcurrencyConflict
		}

		metaJSON, err := json.Marshal(input.Audit.Metadata)
		if err != nil {
			return fmt.Errorf("workflow: marshal audit metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_audit (tenant_id, actor_id, event_kind, entity, entity_id, old_status, new_status, reason, meta, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			input.Audit.TenantID, input.Audit.ActorID, input.Audit.EventKind,
			input.Audit.Entity, input.Audit.EntityID, input.Audit.OldStatus,
			input.Audit.NewStatus, input.Audit.Reason, metaJSON, input.Audit.At,
		)
		return err
	})
}

// ListOverdueCandidates returns ids of SENT invoices whose due date passed,
// for the cron sweep. Capped so a single run stays bounded.
func (r *Repository) ListOverdueCandidates(ctx context.Context, limit int) ([]OverdueCandidate, error) {
	if limit <= 0 {
		limit = MaxBatchSize
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id FROM invoices
		WHERE status = 'SENT' AND due_at < NOW()
		ORDER BY due_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverdueCandidate
	for rows.Next() {
		var c OverdueCandidate
		if err := rows.Scan(&c.InvoiceID, &c.TenantID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// OverdueCandidate identifies one invoice due for overdue detection.
type OverdueCandidate struct {
	InvoiceID int64
	TenantID  int64
}
