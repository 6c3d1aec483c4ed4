package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/services"
)

type stubCheckoutService struct {
	createFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
	calls      int
}

func (s *stubCheckoutService) CreateCheckout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	s.calls++
	if s.createFunc == nil {
		return services.CheckoutResult{}, nil
	}
	return s.createFunc(ctx, cmd)
}

const checkoutPayload = `{"items":[{"id":"prod_melon","name":"Crown Melon","price":138,"quantity":1},{"id":"prod_grape","name":"Shine Muscat","price":119.00,"quantity":2}],"customerEmail":"buyer@example.com","paymentMethod":"card"}`

func TestCheckoutHandlersCreateCardSession(t *testing.T) {
	var captured services.CheckoutCommand
	service := &stubCheckoutService{
		createFunc: func(_ context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			captured = cmd
			return services.CheckoutResult{
				Type:      domain.PaymentMethodCard,
				SessionID: "cs_test_1",
				URL:       "https://checkout.stripe.test/cs_test_1",
				Amount:    37600,
				Currency:  "SGD",
			}, nil
		},
	}
	router := chi.NewRouter()
	NewCheckoutHandlers(service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutPayload))
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp checkoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Type != "card" || resp.SessionID != "cs_test_1" || resp.URL == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(captured.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(captured.Items))
	}
	if got := captured.Items[1].UnitPrice.String(); got != "119" {
		t.Fatalf("expected unit price 119, got %s", got)
	}
	if captured.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("expected card method, got %s", captured.PaymentMethod)
	}
	if captured.SuccessURL != "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("unexpected success url %s", captured.SuccessURL)
	}
	if captured.CancelURL != "https://shop.example.com/checkout/cancelled" {
		t.Fatalf("unexpected cancel url %s", captured.CancelURL)
	}
	if captured.IdempotencyKey != "key-1" {
		t.Fatalf("expected idempotency key key-1, got %q", captured.IdempotencyKey)
	}
}

func TestCheckoutHandlersRejectsForeignRedirects(t *testing.T) {
	var captured services.CheckoutCommand
	service := &stubCheckoutService{
		createFunc: func(_ context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			captured = cmd
			return services.CheckoutResult{Type: domain.PaymentMethodCard}, nil
		},
	}
	router := chi.NewRouter()
	NewCheckoutHandlers(service, WithCheckoutBaseURL("https://shop.example.com/")).Routes(router)

	payload := `{"items":[{"id":"a","name":"A","price":1,"quantity":1}],"customerEmail":"a@example.com","paymentMethod":"card","successUrl":"https://evil.example/steal"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.SuccessURL != "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("expected storefront success url, got %s", captured.SuccessURL)
	}
}

func TestCheckoutHandlersRejectsRedirectsWithoutTrustedBase(t *testing.T) {
	service := &stubCheckoutService{}
	router := chi.NewRouter()
	NewCheckoutHandlers(service).Routes(router)

	payload := `{"items":[{"id":"a","name":"A","price":1,"quantity":1}],"customerEmail":"a@example.com","paymentMethod":"card","successUrl":"https://evil.example/steal","cancelUrl":"https://evil.example/back"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "untrusted_redirect" {
		t.Fatalf("expected untrusted_redirect, got %v", body["error"])
	}
	if service.calls != 0 {
		t.Fatalf("expected service not to be called, got %d calls", service.calls)
	}
}

func TestCheckoutHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty cart", services.ErrCheckoutEmptyCart, http.StatusBadRequest, "empty_cart"},
		{"bad email", services.ErrCheckoutInvalidEmail, http.StatusBadRequest, "invalid_email"},
		{"method disabled", services.ErrCheckoutMethodDisabled, http.StatusBadRequest, "payment_method_disabled"},
		{"invalid input", fmt.Errorf("%w: quantity", services.ErrCheckoutInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"unavailable product", fmt.Errorf("%w: prod_x", services.ErrCartProductUnavailable), http.StatusConflict, "product_unavailable"},
		{"gateway", &services.GatewayError{StatusCode: 402, Code: "card_declined", Message: "declined"}, http.StatusBadGateway, "payment_gateway_error"},
		{"settings down", services.ErrCheckoutUnavailable, http.StatusServiceUnavailable, "checkout_unavailable"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "checkout_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCheckoutService{
				createFunc: func(context.Context, services.CheckoutCommand) (services.CheckoutResult, error) {
					return services.CheckoutResult{}, tc.err
				},
			}
			router := chi.NewRouter()
			NewCheckoutHandlers(service).Routes(router)

			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutPayload))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("expected JSON body: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected error code %s, got %v", tc.code, body["error"])
			}
			if tc.code == "payment_gateway_error" && body["upstream_code"] != "card_declined" {
				t.Fatalf("expected upstream code in body, got %v", body)
			}
		})
	}
}

func TestCheckoutHandlersRejectsMalformedBody(t *testing.T) {
	service := &stubCheckoutService{}
	router := chi.NewRouter()
	NewCheckoutHandlers(service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"items":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("expected service not to be called")
	}
}

func TestCheckoutHandlersRateLimit(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(context.Context, services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{Type: domain.PaymentMethodCard}, nil
		},
	}
	router := chi.NewRouter()
	NewCheckoutHandlers(service, WithCheckoutRateLimit(2)).Routes(router)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutPayload))
		req.RemoteAddr = "203.0.113.7:5555"
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if service.calls != 2 {
		t.Fatalf("expected 2 service calls, got %d", service.calls)
	}
}
