package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/platform/httpx"
	"github.com/favianyip/shunharvest/internal/platform/idempotency"
	"github.com/favianyip/shunharvest/internal/services"
)

const (
	maxCheckoutRequestBody = 32 * 1024
	checkoutSuccessPath    = "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	checkoutCancelPath     = "/checkout/cancelled"
	idempotencyHeader      = "Idempotency-Key"
)

// CheckoutHandlers exposes checkout creation for anonymous shoppers.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	baseURL  string
	limiter  rateLimiter
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutBaseURL fixes the storefront origin used for redirect URLs. When unset the
// request Origin header is used.
func WithCheckoutBaseURL(base string) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithCheckoutRateLimit limits checkout creation per client IP.
func WithCheckoutRateLimit(perMinute int) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newFixedWindowLimiter(perMinute, time.Minute, nil)
	}
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{checkout: checkout}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", rateLimited(h.limiter, "checkout", h.createCheckout))
}

type checkoutItemRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
}

type checkoutRequest struct {
	Items         []checkoutItemRequest `json:"items"`
	CustomerEmail string                `json:"customerEmail"`
	PaymentMethod string                `json:"paymentMethod"`
	Shipping      string                `json:"shipping,omitempty"`
	SuccessURL    string                `json:"successUrl,omitempty"`
	CancelURL     string                `json:"cancelUrl,omitempty"`
}

type checkoutResponse struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId,omitempty"`
	URL             string `json:"url,omitempty"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

func (h *CheckoutHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req checkoutRequest
	if !decodeJSONBody(w, r, maxCheckoutRequestBody, &req) {
		return
	}

	items := make([]services.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.CheckoutItem{
			ProductID: strings.TrimSpace(item.ID),
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Image:     strings.TrimSpace(item.Image),
		})
	}

	successURL, cancelURL, trusted := h.redirectURLs(r, req)
	if !trusted {
		httpx.WriteError(ctx, w, httpx.NewError("untrusted_redirect", "redirect urls require a known storefront origin", http.StatusBadRequest))
		return
	}
	key := idempotency.KeyFromContext(ctx)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	result, err := h.checkout.CreateCheckout(ctx, services.CheckoutCommand{
		Items:          items,
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		PaymentMethod:  domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Shipping:       req.Shipping,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: key,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutResponse{
		Type:            string(result.Type),
		SessionID:       result.SessionID,
		URL:             result.URL,
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
		Amount:          result.Amount,
		Currency:        result.Currency,
	})
}

// redirectURLs keeps client redirect urls only under the configured base or the request Origin.
// Without either, client urls cannot be checked and trusted is false.
func (h *CheckoutHandlers) redirectURLs(r *http.Request, req checkoutRequest) (success, cancel string, trusted bool) {
	base := h.baseURL
	if base == "" {
		base = originOf(r.Header.Get("Origin"))
	}
	success = strings.TrimSpace(req.SuccessURL)
	cancel = strings.TrimSpace(req.CancelURL)
	if base == "" {
		return "", "", success == "" && cancel == ""
	}
	if success == "" || !strings.HasPrefix(success, base+"/") {
		success = base + checkoutSuccessPath
	}
	if cancel == "" || !strings.HasPrefix(cancel, base+"/") {
		cancel = base + checkoutCancelPath
	}
	return success, cancel, true
}

func originOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var gwErr *services.GatewayError
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutInvalidEmail):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_email", "a valid customer email is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutMethodDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_disabled", "payment method is not available", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusConflict))
	case errors.As(err, &gwErr):
		details := map[string]any{}
		if gwErr.StatusCode != 0 {
			details["upstream_status"] = gwErr.StatusCode
		}
		if gwErr.Code != "" {
			details["upstream_code"] = gwErr.Code
		}
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment provider rejected the request", http.StatusBadGateway).WithDetails(details))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
