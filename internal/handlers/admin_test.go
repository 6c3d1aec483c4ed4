package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/platform/auth"
	"github.com/favianyip/shunharvest/internal/repositories/memory"
	"github.com/favianyip/shunharvest/internal/services"
)

type adminFixture struct {
	router chi.Router
	orders *memory.OrderRepository
	order  domain.Order
}

func newAdminFixture(t *testing.T) adminFixture {
	t.Helper()
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	checker, err := auth.NewCredentialChecker("admin", hash)
	if err != nil {
		t.Fatalf("credential checker: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("handler-test-secret", auth.WithTokenTTL(time.Hour))
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	authSvc, err := services.NewAdminAuthService(services.AdminAuthServiceDeps{Credentials: checker, Tokens: tokens})
	if err != nil {
		t.Fatalf("admin auth service: %v", err)
	}

	registry := memory.NewRegistry()
	orders := registry.Orders().(*memory.OrderRepository)
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: orders,
		Clock: func() time.Time {
			current = current.Add(time.Minute)
			return current
		},
	})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	order, _, err := orderSvc.RecordPaidOrder(context.Background(), services.RecordOrderCommand{
		PaymentRef:    "cs_admin_1",
		PaymentMethod: domain.PaymentMethodCard,
		Items:         []domain.OrderItem{{ProductID: "prod_melon", Name: "Crown Melon", UnitPrice: 13800, Quantity: 1}},
		AmountPaid:    13800,
		Currency:      "SGD",
		CustomerEmail: "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{Settings: registry.Settings()})
	if err != nil {
		t.Fatalf("settings service: %v", err)
	}

	requireAdmin := AdminMiddleware(tokens.RequireAdmin())
	router := chi.NewRouter()
	NewAdminAuthHandlers(authSvc, 0).Routes(router)
	NewAdminOrderHandlers(requireAdmin, orderSvc).Routes(router)
	NewAdminSettingsHandlers(requireAdmin, settingsSvc).Routes(router)
	return adminFixture{router: router, orders: orders, order: order}
}

func (fx adminFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	fx.router.ServeHTTP(rr, req)
	return rr
}

func (fx adminFixture) login(t *testing.T) string {
	t.Helper()
	rr := fx.do(t, http.MethodPost, "/login", "", `{"username":"admin","password":"correct horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.Token == "" || resp.ExpiresAt == "" {
		t.Fatalf("expected token and expiry, got %+v", resp)
	}
	return resp.Token
}

func TestAdminLoginRejectsWrongPassword(t *testing.T) {
	fx := newAdminFixture(t)
	rr := fx.do(t, http.MethodPost, "/login", "", `{"username":"admin","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	fx := newAdminFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/orders"},
		{http.MethodPatch, "/orders/" + fx.order.ID + "/status"},
		{http.MethodGet, "/settings/payments"},
	} {
		rr := fx.do(t, tc.method, tc.path, "", `{"status":"shipped"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected status 401, got %d", tc.method, tc.path, rr.Code)
		}
		rr = fx.do(t, tc.method, tc.path, "not-a-token", `{"status":"shipped"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s with bad token: expected status 401, got %d", tc.method, tc.path, rr.Code)
		}
	}
	stored, _ := fx.orders.Get(context.Background(), fx.order.ID)
	if stored.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected order untouched, got %s", stored.Status)
	}
}

func TestAdminOrderLifecycle(t *testing.T) {
	fx := newAdminFixture(t)
	token := fx.login(t)

	rr := fx.do(t, http.MethodGet, "/orders?status=processing", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected status 200, got %d", rr.Code)
	}
	var list struct {
		Items []orderResponse `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != fx.order.ID {
		t.Fatalf("unexpected list %+v", list.Items)
	}
	if len(list.Items[0].NextStatuses) != 2 {
		t.Fatalf("expected two next statuses, got %v", list.Items[0].NextStatuses)
	}

	rr = fx.do(t, http.MethodPatch, "/orders/"+fx.order.ID+"/status", token, `{"status":"shipped"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("ship: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = fx.do(t, http.MethodPatch, "/orders/"+fx.order.ID+"/status", token, `{"status":"processing"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("backwards transition: expected status 409, got %d", rr.Code)
	}

	stale := fx.order.UpdatedAt.Format(time.RFC3339Nano)
	rr = fx.do(t, http.MethodPatch, "/orders/"+fx.order.ID+"/status", token, `{"status":"delivered","expectedUpdatedAt":"`+stale+`"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale update: expected status 409, got %d", rr.Code)
	}

	rr = fx.do(t, http.MethodPatch, "/orders/"+fx.order.ID+"/status", token, `{"status":"bogus"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected status 400, got %d", rr.Code)
	}

	rr = fx.do(t, http.MethodGet, "/orders/ord_missing", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing order: expected status 404, got %d", rr.Code)
	}

	stored, err := fx.orders.Get(context.Background(), fx.order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", stored.Status)
	}
}

func TestAdminPaymentSettingsUpdate(t *testing.T) {
	fx := newAdminFixture(t)
	token := fx.login(t)

	rr := fx.do(t, http.MethodPut, "/settings/payments", token, `{"cardEnabled":true,"pushQrEnabled":true,"pushQr":{"uen":""}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing uen: expected status 400, got %d", rr.Code)
	}

	rr = fx.do(t, http.MethodPut, "/settings/payments", token, `{"cardEnabled":false,"pushQrEnabled":true,"publishableKey":"pk_test_abc","pushQr":{"uen":"201912345K","displayName":"Shun Harvest"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = fx.do(t, http.MethodGet, "/settings/payments", token, "")
	var settings paymentSettingsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.CardEnabled || !settings.PushQREnabled || settings.PushQR.UEN != "201912345K" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.UpdatedAt == "" {
		t.Fatalf("expected updatedAt in admin view")
	}
}
