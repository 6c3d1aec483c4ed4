package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/money"
	"github.com/favianyip/shunharvest/internal/platform/httpx"
	"github.com/favianyip/shunharvest/internal/services"
)

const (
	maxQuoteRequestBody = 16 * 1024
	maxProductPageSize  = 200
)

// PublicHandlers serves the anonymous storefront read surface and cart quotes.
type PublicHandlers struct {
	catalog  services.CatalogService
	settings services.SettingsService
	pricer   services.CartPricer
	currency string
}

// NewPublicHandlers constructs storefront handlers. Nil services answer 503 on their routes.
func NewPublicHandlers(catalog services.CatalogService, settings services.SettingsService, pricer services.CartPricer, currency string) *PublicHandlers {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "SGD"
	}
	return &PublicHandlers{
		catalog:  catalog,
		settings: settings,
		pricer:   pricer,
		currency: currency,
	}
}

// Routes registers public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{slug}", h.getCategory)
	r.Get("/banners", h.listBanners)
	r.Get("/payment-settings", h.getPaymentSettings)
	r.Post("/cart/quote", h.quoteCart)
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	query := r.URL.Query()
	filter := domain.ProductFilter{
		CategoryID: strings.TrimSpace(query.Get("categoryId")),
		SKU:        strings.TrimSpace(query.Get("sku")),
	}
	if raw := strings.TrimSpace(query.Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "featured must be a boolean", http.StatusBadRequest))
			return
		}
		filter.FeaturedOnly = featured
	}
	limit, ok := parseLimit(ctx, w, query.Get("limit"), maxProductPageSize)
	if !ok {
		return
	}
	filter.Limit = limit

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product, h.currency))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *PublicHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID")))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProductResponse(product, h.currency))
}

func (h *PublicHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, toCategoryResponse(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *PublicHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	category, err := h.catalog.GetCategoryBySlug(ctx, strings.TrimSpace(chi.URLParam(r, "slug")))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toCategoryResponse(category))
}

func (h *PublicHandlers) listBanners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	banners, err := h.catalog.ListBanners(ctx, true)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]bannerResponse, 0, len(banners))
	for _, banner := range banners {
		items = append(items, toBannerResponse(banner))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *PublicHandlers) getPaymentSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	settings, err := h.settings.PaymentSettings(ctx)
	if err != nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	writeJSONResponse(w, http.StatusOK, toPaymentSettingsResponse(settings, false))
}

type cartQuoteRequest struct {
	Items []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
}

type cartQuoteLineResponse struct {
	Product        productResponse `json:"product"`
	Quantity       int             `json:"quantity"`
	LineTotal      float64         `json:"lineTotal"`
	LineTotalMinor int64           `json:"lineTotalMinor"`
}

type cartQuoteResponse struct {
	Items           []cartQuoteLineResponse `json:"items"`
	TotalPrice      float64                 `json:"totalPrice"`
	TotalPriceMinor int64                   `json:"totalPriceMinor"`
	TotalItems      int                     `json:"totalItems"`
	Currency        string                  `json:"currency"`
	Adjusted        []string                `json:"adjusted"`
}

func (h *PublicHandlers) quoteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricer == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	var req cartQuoteRequest
	if !decodeJSONBody(w, r, maxQuoteRequestBody, &req) {
		return
	}
	lines := make([]services.CartQuoteLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, services.CartQuoteLine{ProductID: strings.TrimSpace(item.ID), Quantity: item.Quantity})
	}

	quote, err := h.pricer.Quote(ctx, lines)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCartInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			writeCatalogError(ctx, w, err)
		}
		return
	}

	currency := quote.Currency
	if currency == "" {
		currency = h.currency
	}
	resp := cartQuoteResponse{
		Items:           make([]cartQuoteLineResponse, 0, len(quote.Items)),
		TotalPriceMinor: quote.TotalPrice,
		TotalItems:      quote.TotalItems,
		Currency:        currency,
		Adjusted:        append([]string{}, quote.Adjusted...),
	}
	resp.TotalPrice, _ = money.MinorToFloat(quote.TotalPrice, currency)
	for _, item := range quote.Items {
		lineTotal := item.LineTotal()
		major, _ := money.MinorToFloat(lineTotal, currency)
		resp.Items = append(resp.Items, cartQuoteLineResponse{
			Product:        toProductResponse(item.Product, currency),
			Quantity:       item.Quantity,
			LineTotal:      major,
			LineTotalMinor: lineTotal,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func parseLimit(ctx context.Context, w http.ResponseWriter, raw string, max int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
		return 0, false
	}
	if limit > max {
		limit = max
	}
	return limit, true
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, component string) {
	httpx.WriteError(ctx, w, httpx.NewError(component+"_unavailable", component+" service unavailable", http.StatusServiceUnavailable))
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
