package customers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tahseel-hq/tahseel/internal/shared"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, tenant_id, name, COALESCE(name_ar, ''), email, COALESCE(phone, ''), COALESCE(trn, ''), language, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.NameAr, &c.Email, &c.Phone, &c.TRN, &c.Language, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, tenantID int64, input CreateCustomerInput) (*Customer, error) {
	query := `
		INSERT INTO customers (tenant_id, name, name_ar, email, phone, trn, language, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7, NOW(), NOW())
		RETURNING ` + customerColumns
	return scanCustomer(r.pool.QueryRow(ctx, query, tenantID, input.Name, input.NameAr, input.Email, input.Phone, input.TRN, input.Language))
}

func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) Update(ctx context.Context, id int64, input UpdateCustomerInput) (*Customer, error) {
	query := `
		UPDATE customers SET
			name = COALESCE($2, name),
			name_ar = COALESCE($3, name_ar),
			email = COALESCE($4, email),
			phone = COALESCE($5, phone),
			trn = COALESCE($6, trn),
			language = COALESCE($7, language),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + customerColumns
	return scanCustomer(r.pool.QueryRow(ctx, query, id, input.Name, input.NameAr, input.Email, input.Phone, input.TRN, input.Language))
}

func (r *Repository) List(ctx context.Context, tenantID int64, req ListCustomersRequest) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = $1`
	args := []any{tenantID}
	if q := strings.TrimSpace(req.Query); q != "" {
		query += ` AND (name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')`
		args = append(args, q)
	}
	query += ` ORDER BY name LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.NameAr, &c.Email, &c.Phone, &c.TRN, &c.Language, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountOpenInvoices counts invoices not yet in a terminal state.
func (r *Repository) CountOpenInvoices(ctx context.Context, customerID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE customer_id = $1 AND status NOT IN ('PAID', 'WRITTEN_OFF')`, customerID).Scan(&count)
	return count, err
}
