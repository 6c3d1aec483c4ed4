package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/money"
	"github.com/favianyip/shunharvest/internal/repositories"
)

const (
	productIDPrefix  = "prod_"
	categoryIDPrefix = "cat_"
	bannerIDPrefix   = "ban_"

	maxProductImages   = 10
	defaultProductPage = 50
	maxProductPage     = 200
)

var categorySlugSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog mutation.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogNotFound indicates the requested catalog entry does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
	// ErrCatalogConflict indicates a uniqueness constraint was violated.
	ErrCatalogConflict = errors.New("catalog service: conflict")
)

// UpsertProductCommand carries product fields from the back office. Prices are major units.
type UpsertProductCommand struct {
	SKU           string
	Name          string
	Description   string
	Price         decimal.Decimal
	SalePrice     *decimal.Decimal
	Inventory     int
	CategoryID    string
	FarmName      string
	Location      string
	Images        []string
	IsNew         bool
	IsFeatured    bool
	Rating        float64
	ReviewCount   int
	OrderDeadline *time.Time
	DeliveryDate  *time.Time
}

// UpsertCategoryCommand carries category fields. Slug is derived from Name when empty.
type UpsertCategoryCommand struct {
	Name        string
	Slug        string
	Description string
	Image       string
	Order       int
}

// UpsertBannerCommand carries banner fields.
type UpsertBannerCommand struct {
	Title    string
	Subtitle string
	Image    string
	Link     string
	Active   bool
	Order    int
}

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products   repositories.ProductRepository
	Categories repositories.CategoryRepository
	Banners    repositories.BannerRepository
	Currency   string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	banners    repositories.BannerRepository
	currency   string
	clock      func() time.Time
	policy     *bluemonday.Policy
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Banners == nil {
		return nil, errors.New("catalog service: banner repository is required")
	}
	currency, err := money.NormalizeCurrency(deps.Currency)
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		banners:    deps.Banners,
		currency:   currency,
		clock:      func() time.Time { return clock().UTC() },
		policy:     newDescriptionPolicy(),
		logger:     logger,
	}, nil
}

// newDescriptionPolicy allows the rich text the back office editor produces and nothing else.
func newDescriptionPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

func (s *catalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]Product, error) {
	filter.CategoryID = strings.TrimSpace(filter.CategoryID)
	filter.SKU = strings.TrimSpace(filter.SKU)
	if filter.Limit <= 0 {
		filter.Limit = defaultProductPage
	}
	if filter.Limit > maxProductPage {
		filter.Limit = maxProductPage
	}
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Product{}, mapCatalogError(err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	now := s.clock()
	product, err := s.buildProduct(ctx, cmd)
	if err != nil {
		return Product{}, err
	}
	product.ID = productIDPrefix + ulid.Make().String()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, mapCatalogError(err)
	}
	s.logger(ctx, "catalog.product.created", map[string]any{"productId": product.ID, "sku": product.SKU})
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error) {
	existing, err := s.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	product, err := s.buildProduct(ctx, cmd)
	if err != nil {
		return Product{}, err
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.clock()
	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, mapCatalogError(err)
	}
	s.logger(ctx, "catalog.product.updated", map[string]any{"productId": product.ID})
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, strings.TrimSpace(productID)); err != nil {
		return mapCatalogError(err)
	}
	s.logger(ctx, "catalog.product.deleted", map[string]any{"productId": productID})
	return nil
}

func (s *catalogService) buildProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	sku := strings.ToUpper(strings.TrimSpace(cmd.SKU))
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if cmd.Inventory < 0 {
		return Product{}, fmt.Errorf("%w: inventory must not be negative", ErrCatalogInvalidInput)
	}
	if cmd.Rating < 0 || cmd.Rating > 5 {
		return Product{}, fmt.Errorf("%w: rating must be between 0 and 5", ErrCatalogInvalidInput)
	}
	if cmd.ReviewCount < 0 {
		return Product{}, fmt.Errorf("%w: review count must not be negative", ErrCatalogInvalidInput)
	}
	price, err := money.ToMinor(cmd.Price, s.currency)
	if err != nil {
		return Product{}, fmt.Errorf("%w: price: %v", ErrCatalogInvalidInput, err)
	}
	var salePrice *int64
	if cmd.SalePrice != nil {
		sale, err := money.ToMinor(*cmd.SalePrice, s.currency)
		if err != nil {
			return Product{}, fmt.Errorf("%w: sale price: %v", ErrCatalogInvalidInput, err)
		}
		if sale > price {
			return Product{}, fmt.Errorf("%w: sale price exceeds price", ErrCatalogInvalidInput)
		}
		salePrice = &sale
	}
	images, err := normalizeImageURLs(cmd.Images)
	if err != nil {
		return Product{}, err
	}
	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID != "" {
		if _, err := s.categories.Get(ctx, categoryID); err != nil {
			if repositories.IsNotFound(err) {
				return Product{}, fmt.Errorf("%w: unknown category %s", ErrCatalogInvalidInput, categoryID)
			}
			return Product{}, mapCatalogError(err)
		}
	}

	return Product{
		SKU:           sku,
		Name:          name,
		Description:   strings.TrimSpace(s.policy.Sanitize(cmd.Description)),
		Price:         price,
		SalePrice:     salePrice,
		Inventory:     cmd.Inventory,
		CategoryID:    categoryID,
		FarmName:      strings.TrimSpace(cmd.FarmName),
		Location:      strings.TrimSpace(cmd.Location),
		Images:        images,
		IsNew:         cmd.IsNew,
		IsFeatured:    cmd.IsFeatured,
		Rating:        cmd.Rating,
		ReviewCount:   cmd.ReviewCount,
		OrderDeadline: utcPointer(cmd.OrderDeadline),
		DeliveryDate:  utcPointer(cmd.DeliveryDate),
	}, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	return categories, nil
}

func (s *catalogService) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Category{}, fmt.Errorf("%w: slug is required", ErrCatalogInvalidInput)
	}
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return Category{}, mapCatalogError(err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	category, err := s.buildCategory(ctx, "", cmd)
	if err != nil {
		return Category{}, err
	}
	now := s.clock()
	category.ID = categoryIDPrefix + ulid.Make().String()
	category.CreatedAt = now
	category.UpdatedAt = now
	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, mapCatalogError(err)
	}
	s.logger(ctx, "catalog.category.created", map[string]any{"categoryId": category.ID, "slug": category.Slug})
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, categoryID string, cmd UpsertCategoryCommand) (Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	existing, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return Category{}, mapCatalogError(err)
	}
	category, err := s.buildCategory(ctx, existing.ID, cmd)
	if err != nil {
		return Category{}, err
	}
	category.ID = existing.ID
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = s.clock()
	if err := s.categories.Update(ctx, category); err != nil {
		return Category{}, mapCatalogError(err)
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.categories.Get(ctx, categoryID); err != nil {
		return mapCatalogError(err)
	}
	inUse, err := s.products.List(ctx, domain.ProductFilter{CategoryID: categoryID, Limit: 1})
	if err != nil {
		return mapCatalogError(err)
	}
	if len(inUse) > 0 {
		return fmt.Errorf("%w: category %s still has products", ErrCatalogConflict, categoryID)
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return mapCatalogError(err)
	}
	return nil
}

func (s *catalogService) buildCategory(ctx context.Context, selfID string, cmd UpsertCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	slug := deriveSlug(cmd.Slug)
	if slug == "" {
		slug = deriveSlug(name)
	}
	if slug == "" {
		return Category{}, fmt.Errorf("%w: slug could not be derived from %q", ErrCatalogInvalidInput, name)
	}
	image, err := normalizeOptionalURL("image", cmd.Image)
	if err != nil {
		return Category{}, err
	}

	existing, err := s.categories.FindBySlug(ctx, slug)
	switch {
	case err == nil && existing.ID != selfID:
		return Category{}, fmt.Errorf("%w: slug %s already used", ErrCatalogConflict, slug)
	case err != nil && !repositories.IsNotFound(err):
		return Category{}, mapCatalogError(err)
	}

	return Category{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(s.policy.Sanitize(cmd.Description)),
		Image:       image,
		Order:       cmd.Order,
	}, nil
}

func (s *catalogService) ListBanners(ctx context.Context, activeOnly bool) ([]Banner, error) {
	banners, err := s.banners.List(ctx, activeOnly)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	return banners, nil
}

func (s *catalogService) CreateBanner(ctx context.Context, cmd UpsertBannerCommand) (Banner, error) {
	banner, err := buildBanner(cmd)
	if err != nil {
		return Banner{}, err
	}
	now := s.clock()
	banner.ID = bannerIDPrefix + ulid.Make().String()
	banner.CreatedAt = now
	banner.UpdatedAt = now
	if err := s.banners.Insert(ctx, banner); err != nil {
		return Banner{}, mapCatalogError(err)
	}
	return banner, nil
}

func (s *catalogService) UpdateBanner(ctx context.Context, bannerID string, cmd UpsertBannerCommand) (Banner, error) {
	bannerID = strings.TrimSpace(bannerID)
	if bannerID == "" {
		return Banner{}, fmt.Errorf("%w: banner id is required", ErrCatalogInvalidInput)
	}
	existing, err := s.banners.Get(ctx, bannerID)
	if err != nil {
		return Banner{}, mapCatalogError(err)
	}
	banner, err := buildBanner(cmd)
	if err != nil {
		return Banner{}, err
	}
	banner.ID = existing.ID
	banner.CreatedAt = existing.CreatedAt
	banner.UpdatedAt = s.clock()
	if err := s.banners.Update(ctx, banner); err != nil {
		return Banner{}, mapCatalogError(err)
	}
	return banner, nil
}

func (s *catalogService) DeleteBanner(ctx context.Context, bannerID string) error {
	bannerID = strings.TrimSpace(bannerID)
	if bannerID == "" {
		return fmt.Errorf("%w: banner id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.banners.Get(ctx, bannerID); err != nil {
		return mapCatalogError(err)
	}
	return mapCatalogError(s.banners.Delete(ctx, bannerID))
}

func buildBanner(cmd UpsertBannerCommand) (Banner, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return Banner{}, fmt.Errorf("%w: title is required", ErrCatalogInvalidInput)
	}
	image, err := normalizeOptionalURL("image", cmd.Image)
	if err != nil {
		return Banner{}, err
	}
	link := strings.TrimSpace(cmd.Link)
	if link != "" && !strings.HasPrefix(link, "/") {
		if link, err = normalizeOptionalURL("link", link); err != nil {
			return Banner{}, err
		}
	}
	return Banner{
		Title:    title,
		Subtitle: strings.TrimSpace(cmd.Subtitle),
		Image:    image,
		Link:     link,
		Active:   cmd.Active,
		Order:    cmd.Order,
	}, nil
}

func deriveSlug(value string) string {
	slug := categorySlugSanitizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	return strings.Trim(slug, "-")
}

func normalizeImageURLs(images []string) ([]string, error) {
	if len(images) > maxProductImages {
		return nil, fmt.Errorf("%w: at most %d images are allowed", ErrCatalogInvalidInput, maxProductImages)
	}
	out := make([]string, 0, len(images))
	for _, raw := range images {
		normalized, err := normalizeOptionalURL("image", raw)
		if err != nil {
			return nil, err
		}
		if normalized != "" {
			out = append(out, normalized)
		}
	}
	return out, nil
}

func normalizeOptionalURL(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return "", fmt.Errorf("%w: %s must be an absolute http(s) url", ErrCatalogInvalidInput, field)
	}
	return parsed.String(), nil
}

func utcPointer(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func mapCatalogError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		}
	}
	return err
}
