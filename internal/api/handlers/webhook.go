package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seopilot/internal/core"
	"seopilot/internal/types"
)

// maxWebhookBodySize caps billing webhook payloads at 64 KB. Provider
// payloads are small; the limit protects against abuse on an
// unauthenticated route.
const maxWebhookBodySize = 64 * 1024

// BillingEventProcessor verifies and applies billing provider events.
// Implemented by billing.WebhookProcessor.
type BillingEventProcessor interface {
	Process(ctx context.Context, payload []byte, sigHeader string) error
}

// WebhookHandler handles asynchronous billing events. The route sits
// outside site auth; the provider signature is the only credential.
type WebhookHandler struct {
	processor BillingEventProcessor
	logger    *slog.Logger
}

func NewWebhookHandler(processor BillingEventProcessor, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{processor: processor, logger: logger}
}

// RegisterRoutes mounts POST /webhooks/billing. Kept separate from the
// billing handler because this route bypasses the auth middleware.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/billing", h.Handle)
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing webhook signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"missing signature header",
			nil,
		))
		return
	}

	if err := h.processor.Process(r.Context(), payload, sigHeader); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "received"}})
}
