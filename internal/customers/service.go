package customers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tahseel-hq/tahseel/internal/shared"
)

// RepositoryPort defines persistence for customers.
type RepositoryPort interface {
	Create(ctx context.Context, tenantID int64, input CreateCustomerInput) (*Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	Update(ctx context.Context, id int64, input UpdateCustomerInput) (*Customer, error)
	List(ctx context.Context, tenantID int64, req ListCustomersRequest) ([]Customer, error)
	Delete(ctx context.Context, id int64) error
	CountOpenInvoices(ctx context.Context, customerID int64) (int, error)
}

// Service implements customer business logic.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService constructs the customer service.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// Create registers a new customer under the actor's tenant.
func (s *Service) Create(ctx context.Context, input CreateCustomerInput, actor shared.Actor) (*Customer, error) {
	if input.Language == "" {
		input.Language = "en"
	}
	customer, err := s.repo.Create(ctx, actor.TenantID, input)
	if err != nil {
		return nil, fmt.Errorf("customers: create: %w", err)
	}
	s.logger.Info("customer created",
		slog.Int64("customer_id", customer.ID),
		slog.Int64("tenant_id", actor.TenantID))
	return customer, nil
}

// Get fetches one customer, enforcing tenant ownership.
func (s *Service) Get(ctx context.Context, id int64, actor shared.Actor) (*Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer.TenantID != actor.TenantID {
		return nil, shared.ErrAccessDenied
	}
	return customer, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, input UpdateCustomerInput, actor shared.Actor) (*Customer, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	customer, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, fmt.Errorf("customers: update: %w", err)
	}
	return customer, nil
}

// List returns the tenant's customers.
func (s *Service) List(ctx context.Context, req ListCustomersRequest, actor shared.Actor) ([]Customer, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	return s.repo.List(ctx, actor.TenantID, req)
}

// Delete removes a customer. Customers with open invoices cannot be deleted;
// the invoices would lose their billing contact.
func (s *Service) Delete(ctx context.Context, id int64, actor shared.Actor) error {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return err
	}
	open, err := s.repo.CountOpenInvoices(ctx, id)
	if err != nil {
		return fmt.Errorf("customers: count open invoices: %w", err)
	}
	if open > 0 {
		return shared.Validationf("customer has %d open invoices and cannot be deleted", open)
	}
	return s.repo.Delete(ctx, id)
}
