package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/platform/httpx"
	"github.com/favianyip/shunharvest/internal/services"
)

const maxSettingsRequestBody = 8 * 1024

// AdminSettingsHandlers exposes payment settings maintenance.
type AdminSettingsHandlers struct {
	requireAdmin AdminMiddleware
	settings     services.SettingsService
}

// NewAdminSettingsHandlers constructs admin settings handlers.
func NewAdminSettingsHandlers(requireAdmin AdminMiddleware, settings services.SettingsService) *AdminSettingsHandlers {
	return &AdminSettingsHandlers{requireAdmin: requireAdmin, settings: settings}
}

// Routes registers admin settings endpoints.
func (h *AdminSettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	protect(r, h.requireAdmin, func(rt chi.Router) {
		rt.Get("/settings/payments", h.getPaymentSettings)
		rt.Put("/settings/payments", h.updatePaymentSettings)
	})
}

type paymentSettingsRequest struct {
	CardEnabled    bool   `json:"cardEnabled"`
	PushQREnabled  bool   `json:"pushQrEnabled"`
	PublishableKey string `json:"publishableKey"`
	PushQR         struct {
		UEN          string `json:"uen"`
		DisplayName  string `json:"displayName"`
		QRImageURL   string `json:"qrImageUrl"`
		ContactEmail string `json:"contactEmail"`
	} `json:"pushQr"`
}

func (h *AdminSettingsHandlers) getPaymentSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	settings, err := h.settings.PaymentSettings(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to load payment settings", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, toPaymentSettingsResponse(settings, true))
}

func (h *AdminSettingsHandlers) updatePaymentSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	actor, ok := adminActor(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	var req paymentSettingsRequest
	if !decodeJSONBody(w, r, maxSettingsRequestBody, &req) {
		return
	}
	settings, err := h.settings.UpdatePaymentSettings(ctx, services.UpdatePaymentSettingsCommand{
		CardEnabled:    req.CardEnabled,
		PushQREnabled:  req.PushQREnabled,
		PublishableKey: strings.TrimSpace(req.PublishableKey),
		PushQR: domain.PushQRDisplay{
			UEN:          req.PushQR.UEN,
			DisplayName:  req.PushQR.DisplayName,
			QRImageURL:   req.PushQR.QRImageURL,
			ContactEmail: req.PushQR.ContactEmail,
		},
		ActorID: actor,
	})
	if err != nil {
		if errors.Is(err, services.ErrSettingsInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to save payment settings", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, toPaymentSettingsResponse(settings, true))
}
