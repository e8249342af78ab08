package customers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tahseel-hq/tahseel/internal/shared"
)

type memoryCustomerRepo struct {
	customers    map[int64]*Customer
	openInvoices map[int64]int
	nextID       int64
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{
		customers:    make(map[int64]*Customer),
		openInvoices: make(map[int64]int),
	}
}

func (r *memoryCustomerRepo) Create(_ context.Context, tenantID int64, input CreateCustomerInput) (*Customer, error) {
	r.nextID++
	c := &Customer{
		ID:        r.nextID,
		TenantID:  tenantID,
		Name:      input.Name,
		NameAr:    input.NameAr,
		Email:     input.Email,
		Phone:     input.Phone,
		TRN:       input.TRN,
		Language:  input.Language,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryCustomerRepo) Get(_ context.Context, id int64) (*Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryCustomerRepo) Update(_ context.Context, id int64, input UpdateCustomerInput) (*Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.NameAr != nil {
		c.NameAr = *input.NameAr
	}
	if input.Email != nil {
		c.Email = *input.Email
	}
	if input.Phone != nil {
		c.Phone = *input.Phone
	}
	if input.TRN != nil {
		c.TRN = *input.TRN
	}
	if input.Language != nil {
		c.Language = *input.Language
	}
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

func (r *memoryCustomerRepo) List(_ context.Context, tenantID int64, _ ListCustomersRequest) ([]Customer, error) {
	var out []Customer
	for _, c := range r.customers {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryCustomerRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.customers[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *memoryCustomerRepo) CountOpenInvoices(_ context.Context, customerID int64) (int, error) {
	return r.openInvoices[customerID], nil
}

func newTestService(repo *memoryCustomerRepo) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func TestCreateDefaultsLanguage(t *testing.T) {
	svc := newTestService(newMemoryCustomerRepo())
	c, err := svc.Create(context.Background(), CreateCustomerInput{Name: "Al Noor Trading", Email: "billing@alnoor.ae"}, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	require.Equal(t, "en", c.Language)
	require.Equal(t, int64(1), c.TenantID)
}

func TestGetEnforcesTenantOwnership(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := newTestService(repo)
	c, err := svc.Create(context.Background(), CreateCustomerInput{Name: "Al Noor Trading", Email: "billing@alnoor.ae"}, shared.Actor{TenantID: 1})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), c.ID, shared.Actor{TenantID: 2})
	require.ErrorIs(t, err, shared.ErrAccessDenied)

	got, err := svc.Get(context.Background(), c.ID, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
}

func TestUpdatePartial(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := newTestService(repo)
	c, err := svc.Create(context.Background(), CreateCustomerInput{Name: "Al Noor Trading", Email: "billing@alnoor.ae", Language: "ar"}, shared.Actor{TenantID: 1})
	require.NoError(t, err)

	name := "Al Noor Trading LLC"
	updated, err := svc.Update(context.Background(), c.ID, UpdateCustomerInput{Name: &name}, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	require.Equal(t, "Al Noor Trading LLC", updated.Name)
	require.Equal(t, "billing@alnoor.ae", updated.Email, "unset fields stay untouched")
	require.Equal(t, "ar", updated.Language)
}

func TestDeleteBlockedByOpenInvoices(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := newTestService(repo)
	c, err := svc.Create(context.Background(), CreateCustomerInput{Name: "Al Noor Trading", Email: "billing@alnoor.ae"}, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	repo.openInvoices[c.ID] = 2

	err = svc.Delete(context.Background(), c.ID, shared.Actor{TenantID: 1})
	require.True(t, shared.IsValidation(err))

	repo.openInvoices[c.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), c.ID, shared.Actor{TenantID: 1}))
	_, err = svc.Get(context.Background(), c.ID, shared.Actor{TenantID: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
