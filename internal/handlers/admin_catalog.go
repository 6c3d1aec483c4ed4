package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/services"
)

const maxCatalogRequestBody = 256 * 1024

// AdminCatalogHandlers exposes catalog CRUD for the back office.
type AdminCatalogHandlers struct {
	requireAdmin AdminMiddleware
	catalog      services.CatalogService
	currency     string
}

// NewAdminCatalogHandlers constructs admin catalog handlers.
func NewAdminCatalogHandlers(requireAdmin AdminMiddleware, catalog services.CatalogService, currency string) *AdminCatalogHandlers {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "SGD"
	}
	return &AdminCatalogHandlers{requireAdmin: requireAdmin, catalog: catalog, currency: currency}
}

// Routes registers admin catalog endpoints.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	protect(r, h.requireAdmin, func(rt chi.Router) {
		rt.Get("/products", h.listProducts)
		rt.Post("/products", h.createProduct)
		rt.Put("/products/{productID}", h.updateProduct)
		rt.Delete("/products/{productID}", h.deleteProduct)
		rt.Get("/categories", h.listCategories)
		rt.Post("/categories", h.createCategory)
		rt.Put("/categories/{categoryID}", h.updateCategory)
		rt.Delete("/categories/{categoryID}", h.deleteCategory)
		rt.Get("/banners", h.listBanners)
		rt.Post("/banners", h.createBanner)
		rt.Put("/banners/{bannerID}", h.updateBanner)
		rt.Delete("/banners/{bannerID}", h.deleteBanner)
	})
}

type adminProductRequest struct {
	SKU           string           `json:"sku"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	Inventory     int              `json:"inventory"`
	CategoryID    string           `json:"categoryId"`
	FarmName      string           `json:"farmName"`
	Location      string           `json:"location"`
	Images        []string         `json:"images"`
	IsNew         bool             `json:"isNew"`
	IsFeatured    bool             `json:"isFeatured"`
	Rating        float64          `json:"rating"`
	ReviewCount   int              `json:"reviewCount"`
	OrderDeadline *time.Time       `json:"orderDeadline"`
	DeliveryDate  *time.Time       `json:"deliveryDate"`
}

func (req adminProductRequest) command() services.UpsertProductCommand {
	return services.UpsertProductCommand{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		SalePrice:     req.SalePrice,
		Inventory:     req.Inventory,
		CategoryID:    req.CategoryID,
		FarmName:      req.FarmName,
		Location:      req.Location,
		Images:        req.Images,
		IsNew:         req.IsNew,
		IsFeatured:    req.IsFeatured,
		Rating:        req.Rating,
		ReviewCount:   req.ReviewCount,
		OrderDeadline: req.OrderDeadline,
		DeliveryDate:  req.DeliveryDate,
	}
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	limit, ok := parseLimit(ctx, w, r.URL.Query().Get("limit"), maxProductPageSize)
	if !ok {
		return
	}
	products, err := h.catalog.ListProducts(ctx, domain.ProductFilter{
		CategoryID: strings.TrimSpace(r.URL.Query().Get("categoryId")),
		SKU:        strings.TrimSpace(r.URL.Query().Get("sku")),
		Limit:      limit,
	})
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

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, "")
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, strings.TrimSpace(chi.URLParam(r, "productID")))
}

func (h *AdminCatalogHandlers) saveProduct(w http.ResponseWriter, r *http.Request, productID string) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req adminProductRequest
	if !decodeJSONBody(w, r, maxCatalogRequestBody, &req) {
		return
	}
	var (
		product domain.Product
		err     error
	)
	if productID == "" {
		product, err = h.catalog.CreateProduct(ctx, req.command())
	} else {
		product, err = h.catalog.UpdateProduct(ctx, productID, req.command())
	}
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, savedStatus(r), toProductResponse(product, h.currency))
}

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID"))); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminCategoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Order       int    `json:"order"`
}

func (h *AdminCatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, "")
}

func (h *AdminCatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, strings.TrimSpace(chi.URLParam(r, "categoryID")))
}

func (h *AdminCatalogHandlers) saveCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req adminCategoryRequest
	if !decodeJSONBody(w, r, maxCatalogRequestBody, &req) {
		return
	}
	cmd := services.UpsertCategoryCommand{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
		Order:       req.Order,
	}
	var (
		category domain.Category
		err      error
	)
	if categoryID == "" {
		category, err = h.catalog.CreateCategory(ctx, cmd)
	} else {
		category, err = h.catalog.UpdateCategory(ctx, categoryID, cmd)
	}
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, savedStatus(r), toCategoryResponse(category))
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteCategory(ctx, strings.TrimSpace(chi.URLParam(r, "categoryID"))); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminBannerRequest struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Image    string `json:"image"`
	Link     string `json:"link"`
	Active   bool   `json:"active"`
	Order    int    `json:"order"`
}

func (h *AdminCatalogHandlers) listBanners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	banners, err := h.catalog.ListBanners(ctx, false)
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

func (h *AdminCatalogHandlers) createBanner(w http.ResponseWriter, r *http.Request) {
	h.saveBanner(w, r, "")
}

func (h *AdminCatalogHandlers) updateBanner(w http.ResponseWriter, r *http.Request) {
	h.saveBanner(w, r, strings.TrimSpace(chi.URLParam(r, "bannerID")))
}

func (h *AdminCatalogHandlers) saveBanner(w http.ResponseWriter, r *http.Request, bannerID string) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req adminBannerRequest
	if !decodeJSONBody(w, r, maxCatalogRequestBody, &req) {
		return
	}
	cmd := services.UpsertBannerCommand{
		Title:    req.Title,
		Subtitle: req.Subtitle,
		Image:    req.Image,
		Link:     req.Link,
		Active:   req.Active,
		Order:    req.Order,
	}
	var (
		banner domain.Banner
		err    error
	)
	if bannerID == "" {
		banner, err = h.catalog.CreateBanner(ctx, cmd)
	} else {
		banner, err = h.catalog.UpdateBanner(ctx, bannerID, cmd)
	}
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, savedStatus(r), toBannerResponse(banner))
}

func (h *AdminCatalogHandlers) deleteBanner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteBanner(ctx, strings.TrimSpace(chi.URLParam(r, "bannerID"))); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func savedStatus(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}
