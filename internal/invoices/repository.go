package invoices

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

// Repository is the PostgreSQL implementation of RepositoryPort. Reads share
// the invoices and payments tables with the workflow repository; writes here
// never touch the status or version columns.
type Repository struct {
	pool     *pgxpool.Pool
	workflow *workflow.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, workflow: workflow.NewRepository(pool)}
}

func (r *Repository) Create(ctx context.Context, tenantID int64, input CreateInvoiceInput) (*workflow.Invoice, error) {
	query := `
		INSERT INTO invoices (tenant_id, customer_id, number, currency, total, status, due_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'DRAFT', $6, 1, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	inv := &workflow.Invoice{
		TenantID:   tenantID,
		CustomerID: input.CustomerID,
		Number:     input.Number,
		Currency:   input.Currency,
		Total:      input.Total,
		Status:     workflow.StatusDraft,
		DueAt:      input.DueAt,
		Version:    1,
	}
	err := r.pool.QueryRow(ctx, query,
		tenantID, input.CustomerID, input.Number, input.Currency, input.Total, input.DueAt,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.FieldError("number", "invoice number already exists for this tenant")
		}
		return nil, err
	}
	return inv, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*workflow.Invoice, error) {
	return r.workflow.GetInvoice(ctx, id)
}

func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]workflow.Payment, error) {
	return r.workflow.ListPayments(ctx, invoiceID)
}

func (r *Repository) CreatePayment(ctx context.Context, input workflow.CreatePaymentInput) (*workflow.Payment, error) {
	return r.workflow.CreatePayment(ctx, input)
}

func (r *Repository) GetPayment(ctx context.Context, id int64) (*workflow.Payment, error) {
	return r.workflow.GetPayment(ctx, id)
}

func (r *Repository) UpdatePaymentAmount(ctx context.Context, paymentID int64, amount decimal.Decimal) error {
	return r.workflow.UpdatePaymentAmount(ctx, paymentID, amount)
}

func (r *Repository) List(ctx context.Context, tenantID int64, req ListInvoicesRequest) ([]workflow.Invoice, error) {
	query := `SELECT id, tenant_id, customer_id, number, currency, total, status, due_at,
		disputed, COALESCE(dispute_reason, ''), reminders_paused, COALESCE(pause_reason, ''),
		version, created_at, updated_at
		FROM invoices WHERE tenant_id = $1`
	args := []any{tenantID}
	if req.Status != "" {
		args = append(args, string(req.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if req.CustomerID > 0 {
		args = append(args, req.CustomerID)
		query += ` AND customer_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY due_at, id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workflow.Invoice
	for rows.Next() {
		var inv workflow.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.TenantID, &inv.CustomerID, &inv.Number, &inv.Currency, &inv.Total,
			&inv.Status, &inv.DueAt, &inv.Disputed, &inv.DisputeReason,
			&inv.RemindersPaused, &inv.PauseReason, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repository) Count(ctx context.Context, tenantID int64, req ListInvoicesRequest) (int, error) {
	query := `SELECT COUNT(*) FROM invoices WHERE tenant_id = $1`
	args := []any{tenantID}
	if req.Status != "" {
		args = append(args, string(req.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if req.CustomerID > 0 {
		args = append(args, req.CustomerID)
		query += ` AND customer_id = $` + strconv.Itoa(len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repository) SetRemindersPaused(ctx context.Context, id int64, paused bool, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET reminders_paused = $2, pause_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`, id, paused, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListOutstanding returns open invoices with their remaining balances.
// Reversed payments do not reduce the balance.
func (r *Repository) ListOutstanding(ctx context.Context, tenantID int64) ([]OutstandingInvoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.customer_id, i.total - COALESCE(SUM(p.amount), 0), i.due_at
		FROM invoices i
		LEFT JOIN payments p ON p.invoice_id = i.id AND p.reversed_at IS NULL
		WHERE i.tenant_id = $1 AND i.status IN ('SENT', 'OVERDUE', 'DISPUTED')
		GROUP BY i.id
		HAVING i.total - COALESCE(SUM(p.amount), 0) > 0
		ORDER BY i.due_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutstandingInvoice
	for rows.Next() {
		var o OutstandingInvoice
		if err := rows.Scan(&o.InvoiceID, &o.CustomerID, &o.Remaining, &o.DueAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
