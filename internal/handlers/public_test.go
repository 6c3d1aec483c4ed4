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
	"github.com/favianyip/shunharvest/internal/repositories/memory"
	"github.com/favianyip/shunharvest/internal/services"
)

func newPublicRouter(t *testing.T) chi.Router {
	t.Helper()
	ctx := context.Background()
	registry := memory.NewRegistry()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sale := int64(11900)

	if err := registry.Categories().Insert(ctx, domain.Category{ID: "cat_melon", Name: "Melons", Slug: "melons", Order: 1, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	for _, p := range []domain.Product{
		{ID: "prod_melon", SKU: "MEL-1", Name: "Crown Melon", Price: 13800, Inventory: 3, CategoryID: "cat_melon", IsFeatured: true, Images: []string{"https://cdn.example.com/melon.jpg"}, CreatedAt: now, UpdatedAt: now},
		{ID: "prod_grape", SKU: "GRP-1", Name: "Shine Muscat", Price: 12900, SalePrice: &sale, Inventory: 10, CreatedAt: now.Add(time.Hour), UpdatedAt: now},
		{ID: "prod_peach", SKU: "PCH-1", Name: "White Peach", Price: 8800, Inventory: 0, CreatedAt: now.Add(2 * time.Hour), UpdatedAt: now},
	} {
		if err := registry.Products().Insert(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
	for _, b := range []domain.Banner{
		{ID: "ban_live", Title: "Summer", Active: true, Order: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "ban_off", Title: "Winter", Active: false, Order: 2, CreatedAt: now, UpdatedAt: now},
	} {
		if err := registry.Banners().Insert(ctx, b); err != nil {
			t.Fatalf("seed banner: %v", err)
		}
	}

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   registry.Products(),
		Categories: registry.Categories(),
		Banners:    registry.Banners(),
		Currency:   "SGD",
	})
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	settings, err := services.NewSettingsService(services.SettingsServiceDeps{Settings: registry.Settings()})
	if err != nil {
		t.Fatalf("settings service: %v", err)
	}
	pricer, err := services.NewCartPricer(services.CartPricerDeps{Products: registry.Products(), Currency: "SGD"})
	if err != nil {
		t.Fatalf("cart pricer: %v", err)
	}

	router := chi.NewRouter()
	NewPublicHandlers(catalog, settings, pricer, "sgd").Routes(router)
	return router
}

func getJSON(t *testing.T, router chi.Router, path string, dst any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if dst != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rr.Code
}

func TestPublicProductsListing(t *testing.T) {
	router := newPublicRouter(t)

	var all struct {
		Items []productResponse `json:"items"`
	}
	if code := getJSON(t, router, "/products", &all); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if len(all.Items) != 3 {
		t.Fatalf("expected 3 products, got %d", len(all.Items))
	}

	var featured struct {
		Items []productResponse `json:"items"`
	}
	getJSON(t, router, "/products?featured=true", &featured)
	if len(featured.Items) != 1 || featured.Items[0].ID != "prod_melon" {
		t.Fatalf("unexpected featured products %+v", featured.Items)
	}
	if featured.Items[0].Price != 138 || featured.Items[0].PriceMinor != 13800 {
		t.Fatalf("unexpected price rendering %+v", featured.Items[0])
	}

	var grape productResponse
	if code := getJSON(t, router, "/products/prod_grape", &grape); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if grape.SalePrice == nil || *grape.SalePrice != 119 {
		t.Fatalf("expected sale price 119, got %v", grape.SalePrice)
	}

	if code := getJSON(t, router, "/products/prod_missing", nil); code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", code)
	}
	if code := getJSON(t, router, "/products?featured=maybe", nil); code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", code)
	}
}

func TestPublicCategoriesAndBanners(t *testing.T) {
	router := newPublicRouter(t)

	var category categoryResponse
	if code := getJSON(t, router, "/categories/melons", &category); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if category.ID != "cat_melon" {
		t.Fatalf("unexpected category %+v", category)
	}

	var banners struct {
		Items []bannerResponse `json:"items"`
	}
	getJSON(t, router, "/banners", &banners)
	if len(banners.Items) != 1 || banners.Items[0].ID != "ban_live" {
		t.Fatalf("expected only the active banner, got %+v", banners.Items)
	}
}

func TestPublicPaymentSettingsHidesAuditFields(t *testing.T) {
	router := newPublicRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment-settings", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cardEnabled"] != true || body["pushQrEnabled"] != true {
		t.Fatalf("expected both methods enabled by default, got %v", body)
	}
	if _, ok := body["updatedAt"]; ok {
		t.Fatalf("public view must not expose updatedAt")
	}
}

func TestPublicCartQuote(t *testing.T) {
	router := newPublicRouter(t)

	payload := `{"items":[{"id":"prod_melon","quantity":5},{"id":"prod_grape","quantity":1},{"id":"prod_grape","quantity":1},{"id":"prod_peach","quantity":1}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/quote", bytes.NewBufferString(payload)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var quote cartQuoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(quote.Items) != 2 {
		t.Fatalf("expected 2 priced lines, got %+v", quote.Items)
	}
	// Melon clamps to the 3 in stock; grape lines merge at the sale price.
	if quote.TotalItems != 5 || quote.TotalPriceMinor != 3*13800+2*11900 {
		t.Fatalf("unexpected totals items=%d total=%d", quote.TotalItems, quote.TotalPriceMinor)
	}
	if quote.Currency != "SGD" {
		t.Fatalf("expected SGD, got %s", quote.Currency)
	}
	if len(quote.Adjusted) != 2 {
		t.Fatalf("expected melon and peach adjusted, got %v", quote.Adjusted)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/quote", bytes.NewBufferString(`{"items":[{"id":"prod_melon","quantity":0}]}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for zero quantity, got %d", rr.Code)
	}
}
