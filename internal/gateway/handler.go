package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tahseel-hq/tahseel/internal/observability"
	"github.com/tahseel-hq/tahseel/internal/platform/httpx"
	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Tahseel-Signature"

const maxBodyBytes = 64 << 10

// Notifier is the slice of the workflow orchestrator the webhook drives.
type Notifier interface {
	ProcessNotification(ctx context.Context, n workflow.ExternalNotification, tenantID int64) (*workflow.Result, error)
}

// Handler receives payment gateway webhooks. Webhook routes are mounted
// outside API-key auth; the HMAC signature is the authentication.
type Handler struct {
	logger  *slog.Logger
	secret  []byte
	replays *ReplayCache
	engine  Notifier
	metrics *observability.WorkflowMetrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, secret string, replays *ReplayCache, engine Notifier, metrics *observability.WorkflowMetrics) *Handler {
	return &Handler{logger: logger, secret: []byte(secret), replays: replays, engine: engine, metrics: metrics}
}

// MountRoutes registers webhook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/webhooks/gateway/{tenantID}", h.receive)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil || tenantID <= 0 {
		h.reject(w, http.StatusNotFound, "unknown tenant")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		h.reject(w, http.StatusBadRequest, "unreadable or oversized body")
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", slog.Int64("tenant_id", tenantID))
		h.reject(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	notification, err := parseNotification(body)
	if err != nil {
		h.reject(w, http.StatusBadRequest, shared.UserSafeMessage(err))
		return
	}

	seen, err := h.replays.MarkSeen(r.Context(), notification.ExternalPaymentID)
	if err != nil {
		// Redis trouble must not drop payments: fall through and rely on the
		// orchestrator's idempotent handling of known external ids.
		h.logger.Error("replay cache unavailable", slog.Any("error", err))
	} else if seen {
		httpx.JSON(w, http.StatusOK, map[string]any{"replay": true})
		return
	}

	result, err := h.engine.ProcessNotification(r.Context(), notification, tenantID)
	if err != nil {
		// Release the id so the gateway's retry gets another attempt.
		if h.replays != nil {
			if forgetErr := h.replays.Forget(r.Context(), notification.ExternalPaymentID); forgetErr != nil {
				h.logger.Error("release replay id", slog.Any("error", forgetErr))
			}
		}
		h.logger.Error("process gateway notification",
			slog.Any("error", err),
			slog.Int64("tenant_id", tenantID),
			slog.String("external_id", notification.ExternalPaymentID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice_id":   result.InvoiceID,
		"old_status":   result.OldStatus,
		"new_status":   result.NewStatus,
		"transitioned": result.Decision.Transitioned,
	})
}

func (h *Handler) verifySignature(body []byte, header string) bool {
	if header == "" || len(h.secret) == 0 {
		return false
	}
	sig, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

func (h *Handler) reject(w http.ResponseWriter, status int, detail string) {
	h.metrics.WebhookRejected()
	httpx.Problem(w, status, http.StatusText(status), detail)
}

// Sign computes the signature a caller must attach. Exported for the tenant
// onboarding docs generator and tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
