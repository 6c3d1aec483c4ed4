package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/favianyip/shunharvest/internal/platform/httpx"
	"github.com/favianyip/shunharvest/internal/services"
)

const (
	maxWebhookBodySize    = 256 * 1024
	stripeSignatureHeader = "Stripe-Signature"
)

// PaymentWebhookHandlers receives payment gateway notifications.
type PaymentWebhookHandlers struct {
	events services.PaymentEventService
}

// NewPaymentWebhookHandlers constructs the webhook handlers.
func NewPaymentWebhookHandlers(events services.PaymentEventService) *PaymentWebhookHandlers {
	return &PaymentWebhookHandlers{events: events}
}

// Routes registers the webhook endpoints.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

type webhookResponse struct {
	Received bool `json:"received"`
}

func (h *PaymentWebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "payment webhooks unavailable", http.StatusServiceUnavailable))
		return
	}

	// The signature covers the exact bytes, so the body is read raw and never re-encoded.
	payload, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", err.Error(), status))
		return
	}

	if _, err := h.events.HandleWebhook(ctx, payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		switch {
		case errors.Is(err, services.ErrSignatureVerification):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		case errors.Is(err, services.ErrPersistence):
			httpx.WriteError(ctx, w, httpx.NewError("persistence_error", "payment recorded upstream but not stored; retry delivery", http.StatusInternalServerError))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookResponse{Received: true})
}
