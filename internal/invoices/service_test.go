package invoices

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

type memoryInvoiceRepo struct {
	invoices      map[int64]*workflow.Invoice
	payments      map[int64]*workflow.Payment
	outstanding   []OutstandingInvoice
	nextInvoiceID int64
	nextPaymentID int64
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: make(map[int64]*workflow.Invoice),
		payments: make(map[int64]*workflow.Payment),
	}
}

func (r *memoryInvoiceRepo) Create(_ context.Context, tenantID int64, input CreateInvoiceInput) (*workflow.Invoice, error) {
	r.nextInvoiceID++
	inv := &workflow.Invoice{
		ID:         r.nextInvoiceID,
		TenantID:   tenantID,
		CustomerID: input.CustomerID,
		Number:     input.Number,
		Currency:   input.Currency,
		Total:      input.Total,
		Status:     workflow.StatusDraft,
		DueAt:      input.DueAt,
		Version:    1,
	}
	r.invoices[inv.ID] = inv
	return inv, nil
}

func (r *memoryInvoiceRepo) Get(_ context.Context, id int64) (*workflow.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memoryInvoiceRepo) List(_ context.Context, tenantID int64, req ListInvoicesRequest) ([]workflow.Invoice, error) {
	var out []workflow.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (r *memoryInvoiceRepo) Count(_ context.Context, tenantID int64, req ListInvoicesRequest) (int, error) {
	count := 0
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		count++
	}
	return count, nil
}

func (r *memoryInvoiceRepo) ListPayments(_ context.Context, invoiceID int64) ([]workflow.Payment, error) {
	var out []workflow.Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryInvoiceRepo) CreatePayment(_ context.Context, input workflow.CreatePaymentInput) (*workflow.Payment, error) {
	r.nextPaymentID++
	p := &workflow.Payment{
		ID:        r.nextPaymentID,
		InvoiceID: input.InvoiceID,
		Amount:    input.Amount,
		PaidAt:    input.PaidAt,
		Method:    input.Method,
		Reference: input.Reference,
		Note:      input.Note,
	}
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryInvoiceRepo) GetPayment(_ context.Context, id int64) (*workflow.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryInvoiceRepo) UpdatePaymentAmount(_ context.Context, paymentID int64, amount decimal.Decimal) error {
	p, ok := r.payments[paymentID]
	if !ok || p.ReversedAt != nil {
		return shared.ErrNotFound
	}
	p.Amount = amount
	return nil
}

func (r *memoryInvoiceRepo) SetRemindersPaused(_ context.Context, id int64, paused bool, reason string) error {
	inv, ok := r.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.RemindersPaused = paused
	inv.PauseReason = reason
	return nil
}

func (r *memoryInvoiceRepo) ListOutstanding(_ context.Context, _ int64) ([]OutstandingInvoice, error) {
	return r.outstanding, nil
}

// fakeEngine records the events the service emits without running a real
// workflow underneath.
type fakeEngine struct {
	invoiceEvents []workflow.InvoiceEvent
	paymentEvents []workflow.Event
	reevaluated   []int64
}

func (e *fakeEngine) ProcessSingle(_ context.Context, event workflow.Event, _ shared.Actor) (*workflow.Result, error) {
	e.paymentEvents = append(e.paymentEvents, event)
	return &workflow.Result{PaymentID: event.PaymentID}, nil
}

func (e *fakeEngine) ApplyInvoiceEvent(_ context.Context, ev workflow.InvoiceEvent, _ shared.Actor) (*workflow.Result, error) {
	e.invoiceEvents = append(e.invoiceEvents, ev)
	return &workflow.Result{InvoiceID: ev.InvoiceID}, nil
}

func (e *fakeEngine) Reevaluate(_ context.Context, invoiceID int64, _ string, _ shared.Actor) (*workflow.Result, error) {
	e.reevaluated = append(e.reevaluated, invoiceID)
	return &workflow.Result{InvoiceID: invoiceID}, nil
}

var invNow = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

func newTestService(repo *memoryInvoiceRepo, engine *fakeEngine) *Service {
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, engine)
	svc.now = func() time.Time { return invNow }
	return svc
}

func TestCreateDefaultsCurrency(t *testing.T) {
	svc := newTestService(newMemoryInvoiceRepo(), &fakeEngine{})
	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("1000.00"), DueAt: invNow.AddDate(0, 0, 30),
	}, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	require.Equal(t, "AED", inv.Currency)
	require.Equal(t, workflow.StatusDraft, inv.Status)
}

func TestCreateRejectsNegativeTotal(t *testing.T) {
	svc := newTestService(newMemoryInvoiceRepo(), &fakeEngine{})
	_, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("-1"), DueAt: invNow,
	}, shared.Actor{TenantID: 1})
	require.True(t, shared.IsValidation(err))
}

func TestGetComputesLedgerAndDisplayStatus(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	engine := &fakeEngine{}
	svc := newTestService(repo, engine)

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Currency: "AED",
		Total: decimal.RequireFromString("1000.00"), DueAt: invNow.AddDate(0, 0, -2),
	}, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	repo.invoices[inv.ID].Status = workflow.StatusSent
	repo.payments[1] = &workflow.Payment{ID: 1, InvoiceID: inv.ID, Amount: decimal.RequireFromString("400.00")}

	detail, err := svc.Get(context.Background(), inv.ID, shared.Actor{TenantID: 1})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSent, detail.Invoice.Status, "stored status untouched")
	require.Equal(t, workflow.StatusOverdue, detail.DisplayStatus, "past-due SENT displays as OVERDUE")
	require.True(t, detail.Ledger.Remaining.Equal(decimal.RequireFromString("600.00")))
}

func TestRecordPaymentFlowsThroughEngine(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	engine := &fakeEngine{}
	svc := newTestService(repo, engine)

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("1000.00"), DueAt: invNow.AddDate(0, 0, 30),
	}, shared.Actor{TenantID: 1})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{
		Amount: decimal.RequireFromString("1000.00"), Reference: "TRX-9",
	}, shared.Actor{TenantID: 1})
	require.NoError(t, err)

	require.Len(t, repo.payments, 1)
	require.Equal(t, workflow.MethodOther, repo.payments[1].Method, "missing method defaults to other")
	require.Equal(t, invNow, repo.payments[1].PaidAt, "missing paid_at defaults to now")
	require.Len(t, engine.paymentEvents, 1)
	require.Equal(t, workflow.EventPaymentReceived, engine.paymentEvents[0].Kind)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, &fakeEngine{})

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("1000.00"), DueAt: invNow,
	}, shared.Actor{TenantID: 1})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: decimal.Zero}, shared.Actor{TenantID: 1})
	require.True(t, shared.IsValidation(err))

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: decimal.NewFromInt(10)}, shared.Actor{TenantID: 2})
	require.ErrorIs(t, err, shared.ErrAccessDenied)
	require.Empty(t, repo.payments, "denied request must not create a payment")
}

func TestLifecycleEventsDelegateToEngine(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	engine := &fakeEngine{}
	svc := newTestService(repo, engine)
	actor := shared.Actor{TenantID: 1}

	_, err := svc.Send(context.Background(), 1, actor)
	require.NoError(t, err)

	_, err = svc.RaiseDispute(context.Background(), 1, "goods not delivered", actor)
	require.NoError(t, err)

	_, err = svc.RaiseDispute(context.Background(), 1, "", actor)
	require.True(t, shared.IsValidation(err), "dispute requires a reason")

	_, err = svc.Override(context.Background(), 1, workflow.StatusWrittenOff, "", actor)
	require.True(t, shared.IsValidation(err), "override requires a reason")

	_, err = svc.Override(context.Background(), 1, workflow.StatusWrittenOff, "uncollectable", actor)
	require.NoError(t, err)

	require.Len(t, engine.invoiceEvents, 3)
	require.Equal(t, workflow.EventInvoiceSent, engine.invoiceEvents[0].Kind)
	require.Equal(t, workflow.EventDisputeRaised, engine.invoiceEvents[1].Kind)
	require.Equal(t, workflow.EventManualOverride, engine.invoiceEvents[2].Kind)
}

func TestPauseAndResumeReminders(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, &fakeEngine{})

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("1000.00"), DueAt: invNow,
	}, shared.Actor{TenantID: 1})
	require.NoError(t, err)

	require.NoError(t, svc.PauseReminders(context.Background(), inv.ID, "customer on payment plan", shared.Actor{TenantID: 1}))
	require.True(t, repo.invoices[inv.ID].RemindersPaused)
	require.Equal(t, "customer on payment plan", repo.invoices[inv.ID].PauseReason)

	require.NoError(t, svc.ResumeReminders(context.Background(), inv.ID, shared.Actor{TenantID: 1}))
	require.False(t, repo.invoices[inv.ID].RemindersPaused)

	err = svc.PauseReminders(context.Background(), inv.ID, "x", shared.Actor{TenantID: 2})
	require.ErrorIs(t, err, shared.ErrAccessDenied)
}

func TestListPaginates(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, &fakeEngine{})
	actor := shared.Actor{TenantID: 1}

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateInvoiceInput{
			CustomerID: 5, Number: "INV-00" + string(rune('1'+i)),
			Total: decimal.RequireFromString("100.00"), DueAt: invNow,
		}, actor)
		require.NoError(t, err)
	}

	list, pagination, err := svc.List(context.Background(), ListInvoicesRequest{Page: 1, PerPage: 2}, actor)
	require.NoError(t, err)
	require.Len(t, list, 3, "memory repo ignores paging, pagination metadata still computed")
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 2, pagination.PerPage)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 2, pagination.TotalPages)

	_, _, err = svc.List(context.Background(), ListInvoicesRequest{Status: "BOGUS"}, actor)
	require.True(t, shared.IsValidation(err))
}

func TestListAppliesDisplayStatus(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, &fakeEngine{})
	actor := shared.Actor{TenantID: 1}

	lapsed, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001",
		Total: decimal.RequireFromString("100.00"), DueAt: invNow.AddDate(0, 0, -3),
	}, actor)
	require.NoError(t, err)
	repo.invoices[lapsed.ID].Status = workflow.StatusSent

	current, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-002",
		Total: decimal.RequireFromString("100.00"), DueAt: invNow.AddDate(0, 0, 3),
	}, actor)
	require.NoError(t, err)
	repo.invoices[current.ID].Status = workflow.StatusSent

	list, _, err := svc.List(context.Background(), ListInvoicesRequest{}, actor)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byNumber := make(map[string]InvoiceListItem, len(list))
	for _, item := range list {
		byNumber[item.Number] = item
	}
	require.Equal(t, workflow.StatusSent, byNumber["INV-001"].Status, "stored status untouched")
	require.Equal(t, workflow.StatusOverdue, byNumber["INV-001"].DisplayStatus, "past-due SENT row displays as OVERDUE")
	require.Equal(t, workflow.StatusSent, byNumber["INV-002"].DisplayStatus)
}

func TestAmendPaymentUpdatesRowAndReevaluates(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	engine := &fakeEngine{}
	svc := newTestService(repo, engine)
	actor := shared.Actor{TenantID: 1}

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("1000.00"), DueAt: invNow.AddDate(0, 0, 30),
	}, actor)
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: decimal.RequireFromString("1000.00")}, actor)
	require.NoError(t, err)

	_, err = svc.AmendPayment(context.Background(), inv.ID, 1, AmendPaymentInput{Amount: decimal.RequireFromString("600.00")}, actor)
	require.NoError(t, err)
	require.True(t, repo.payments[1].Amount.Equal(decimal.RequireFromString("600.00")))
	require.Equal(t, []int64{inv.ID}, engine.reevaluated, "amending must re-evaluate the invoice status")

	_, err = svc.AmendPayment(context.Background(), inv.ID, 1, AmendPaymentInput{Amount: decimal.Zero}, actor)
	require.True(t, shared.IsValidation(err))

	_, err = svc.AmendPayment(context.Background(), inv.ID, 1, AmendPaymentInput{Amount: decimal.NewFromInt(10)}, shared.Actor{TenantID: 2})
	require.ErrorIs(t, err, shared.ErrAccessDenied)

	// A reversed payment is immutable.
	at := invNow
	repo.payments[1].ReversedAt = &at
	_, err = svc.AmendPayment(context.Background(), inv.ID, 1, AmendPaymentInput{Amount: decimal.NewFromInt(10)}, actor)
	require.True(t, shared.IsValidation(err))
}

func TestDeletePaymentReversesThroughEngine(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	engine := &fakeEngine{}
	svc := newTestService(repo, engine)
	actor := shared.Actor{TenantID: 1}

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-001", Total: decimal.RequireFromString("1000.00"), DueAt: invNow.AddDate(0, 0, 30),
	}, actor)
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: decimal.RequireFromString("1000.00")}, actor)
	require.NoError(t, err)

	_, err = svc.DeletePayment(context.Background(), inv.ID, 1, actor)
	require.NoError(t, err)
	require.Len(t, engine.paymentEvents, 2)
	require.Equal(t, workflow.EventPaymentReversed, engine.paymentEvents[1].Kind)
	require.Equal(t, int64(1), engine.paymentEvents[1].PaymentID)

	// The payment must belong to the addressed invoice.
	other, err := svc.Create(context.Background(), CreateInvoiceInput{
		CustomerID: 5, Number: "INV-002", Total: decimal.RequireFromString("500.00"), DueAt: invNow.AddDate(0, 0, 30),
	}, actor)
	require.NoError(t, err)
	_, err = svc.DeletePayment(context.Background(), other.ID, 1, actor)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.DeletePayment(context.Background(), inv.ID, 1, shared.Actor{TenantID: 2})
	require.ErrorIs(t, err, shared.ErrAccessDenied)
}

func TestAgingBuckets(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	repo.outstanding = []OutstandingInvoice{
		{InvoiceID: 1, Remaining: decimal.RequireFromString("100.00"), DueAt: invNow.AddDate(0, 0, 10)},  // current
		{InvoiceID: 2, Remaining: decimal.RequireFromString("200.00"), DueAt: invNow.AddDate(0, 0, -15)}, // 30 bucket
		{InvoiceID: 3, Remaining: decimal.RequireFromString("300.00"), DueAt: invNow.AddDate(0, 0, -45)}, // 60 bucket
		{InvoiceID: 4, Remaining: decimal.RequireFromString("400.00"), DueAt: invNow.AddDate(0, 0, -75)}, // 90 bucket
		{InvoiceID: 5, Remaining: decimal.RequireFromString("500.00"), DueAt: invNow.AddDate(0, 0, -200)},
	}
	svc := newTestService(repo, &fakeEngine{})

	report, err := svc.Aging(context.Background(), shared.Actor{TenantID: 1})
	require.NoError(t, err)
	require.True(t, report.Current.Equal(decimal.RequireFromString("100.00")))
	require.True(t, report.Bucket30.Equal(decimal.RequireFromString("200.00")))
	require.True(t, report.Bucket60.Equal(decimal.RequireFromString("300.00")))
	require.True(t, report.Bucket90.Equal(decimal.RequireFromString("400.00")))
	require.True(t, report.Bucket120.Equal(decimal.RequireFromString("500.00")))
	require.True(t, report.Total.Equal(decimal.RequireFromString("1500.00")))
}
