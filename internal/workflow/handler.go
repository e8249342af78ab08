package workflow

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tahseel-hq/tahseel/internal/platform/httpx"
	"github.com/tahseel-hq/tahseel/internal/shared"
)

// IdempotencyChecker guards replayed POST requests by key.
type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
}

// Handler exposes the workflow engine over JSON.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyChecker
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyChecker) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers workflow routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payment-events", h.processSingle)
	r.Post("/payment-events/batch", h.processBatch)
	r.Get("/invoices/{id}/reconciliation", h.reconcile)
}

// checkIdempotency consumes the Idempotency-Key header when present.
func (h *Handler) checkIdempotency(r *http.Request, scope string) error {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return nil
	}
	return h.idempotency.CheckAndInsert(r.Context(), key, scope)
}

func (h *Handler) processSingle(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidAPIKey)
		return
	}

	var req paymentEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationProblem(err))
		return
	}
	if err := h.checkIdempotency(r, "payment-events"); err != nil {
		httpx.RespondError(w, err)
		return
	}

	res, err := h.service.ProcessSingle(r.Context(), req.toEvent(), actor)
	if err != nil {
		h.logger.Error("process payment event", slog.Any("error", err), slog.Int64("payment_id", req.PaymentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResultResponse(res))
}

func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidAPIKey)
		return
	}

	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationProblem(err))
		return
	}
	if err := h.checkIdempotency(r, "payment-events-batch"); err != nil {
		httpx.RespondError(w, err)
		return
	}

	events := make([]Event, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, e.toEvent())
	}

	res, err := h.service.ProcessBatch(r.Context(), events, actor)
	if err != nil {
		h.logger.Error("process payment batch", slog.Any("error", err), slog.Int("events", len(events)))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, toBatchResponse(res))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidAPIKey)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}

	res, err := h.service.Reconcile(r.Context(), id, actor.TenantID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrAccessDenied) {
			h.logger.Error("reconcile invoice", slog.Any("error", err), slog.Int64("invoice_id", id))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(res))
}

// validationProblem flattens validator errors into the shared taxonomy.
func validationProblem(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return shared.FieldError(verrs[0].Field(), "failed rule "+verrs[0].Tag())
	}
	return shared.Validationf("invalid request: %v", err)
}
