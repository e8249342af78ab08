package reminders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCandidates returns open invoices eligible for a reminder. Disputed and
// paused invoices never appear; the workflow and invoice services own those
// gates.
func (r *Repository) ListCandidates(ctx context.Context, limit int) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.tenant_id, i.customer_id, i.number,
			c.name, c.email, c.language, i.currency,
			i.total - COALESCE(paid.amount, 0), i.due_at,
			COALESCE(last.step, '')
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		LEFT JOIN LATERAL (
			SELECT SUM(amount) AS amount FROM payments p
			WHERE p.invoice_id = i.id AND p.reversed_at IS NULL
		) paid ON TRUE
		LEFT JOIN LATERAL (
			SELECT step FROM reminder_log rl
			WHERE rl.invoice_id = i.id
			ORDER BY rl.scheduled_at DESC LIMIT 1
		) last ON TRUE
		WHERE i.status IN ('SENT', 'OVERDUE')
		  AND i.reminders_paused = FALSE
		  AND i.due_at < NOW()
		  AND i.total - COALESCE(paid.amount, 0) > 0
		ORDER BY i.due_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.InvoiceID, &c.TenantID, &c.CustomerID, &c.InvoiceNumber,
			&c.CustomerName, &c.Email, &c.Language, &c.Currency,
			&c.Remaining, &c.DueAt, &c.LastStep,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordScheduled appends one reminder_log row.
func (r *Repository) RecordScheduled(ctx context.Context, invoiceID int64, step string, sendAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_log (invoice_id, step, scheduled_at, created_at)
		VALUES ($1, $2, $3, NOW())`, invoiceID, step, sendAt)
	return err
}
