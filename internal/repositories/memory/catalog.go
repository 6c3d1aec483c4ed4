package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories"
)

// ProductRepository stores products in memory.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewProductRepository returns an empty repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]domain.Product)}
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string(nil), p.Images...)
	if p.SalePrice != nil {
		sale := *p.SalePrice
		p.SalePrice = &sale
	}
	if p.OrderDeadline != nil {
		t := *p.OrderDeadline
		p.OrderDeadline = &t
	}
	if p.DeliveryDate != nil {
		t := *p.DeliveryDate
		p.DeliveryDate = &t
	}
	return p
}

func (r *ProductRepository) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.FeaturedOnly && !p.IsFeatured {
			continue
		}
		if filter.SKU != "" && !strings.EqualFold(p.SKU, filter.SKU) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *ProductRepository) Get(_ context.Context, productID string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewNotFoundError("products.get", "product", productID)
	}
	return cloneProduct(p), nil
}

func (r *ProductRepository) Insert(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[product.ID]; exists {
		return repositories.NewConflictError("products.insert", "product already exists")
	}
	r.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *ProductRepository) Update(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[product.ID]; !exists {
		return repositories.NewNotFoundError("products.update", "product", product.ID)
	}
	r.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *ProductRepository) Delete(_ context.Context, productID string) error {
	r.mu.Lock()
	delete(r.products, productID)
	r.mu.Unlock()
	return nil
}

// CategoryRepository stores categories in memory.
type CategoryRepository struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

// NewCategoryRepository returns an empty repository.
func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{categories: make(map[string]domain.Category)}
}

func (r *CategoryRepository) List(context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].Name < out[j].Name
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (r *CategoryRepository) Get(_ context.Context, categoryID string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[categoryID]
	if !ok {
		return domain.Category{}, repositories.NewNotFoundError("categories.get", "category", categoryID)
	}
	return c, nil
}

func (r *CategoryRepository) FindBySlug(_ context.Context, slug string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return domain.Category{}, repositories.NewNotFoundError("categories.find_by_slug", "category", slug)
}

func (r *CategoryRepository) Insert(_ context.Context, category domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.categories[category.ID]; exists {
		return repositories.NewConflictError("categories.insert", "category already exists")
	}
	r.categories[category.ID] = category
	return nil
}

func (r *CategoryRepository) Update(_ context.Context, category domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.categories[category.ID]; !exists {
		return repositories.NewNotFoundError("categories.update", "category", category.ID)
	}
	r.categories[category.ID] = category
	return nil
}

func (r *CategoryRepository) Delete(_ context.Context, categoryID string) error {
	r.mu.Lock()
	delete(r.categories, categoryID)
	r.mu.Unlock()
	return nil
}

// BannerRepository stores banners in memory.
type BannerRepository struct {
	mu      sync.RWMutex
	banners map[string]domain.Banner
}

// NewBannerRepository returns an empty repository.
func NewBannerRepository() *BannerRepository {
	return &BannerRepository{banners: make(map[string]domain.Banner)}
}

func (r *BannerRepository) List(_ context.Context, activeOnly bool) ([]domain.Banner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Banner, 0, len(r.banners))
	for _, b := range r.banners {
		if activeOnly && !b.Active {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].ID < out[j].ID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (r *BannerRepository) Get(_ context.Context, bannerID string) (domain.Banner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.banners[bannerID]
	if !ok {
		return domain.Banner{}, repositories.NewNotFoundError("banners.get", "banner", bannerID)
	}
	return b, nil
}

func (r *BannerRepository) Insert(_ context.Context, banner domain.Banner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.banners[banner.ID]; exists {
		return repositories.NewConflictError("banners.insert", "banner already exists")
	}
	r.banners[banner.ID] = banner
	return nil
}

func (r *BannerRepository) Update(_ context.Context, banner domain.Banner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.banners[banner.ID]; !exists {
		return repositories.NewNotFoundError("banners.update", "banner", banner.ID)
	}
	r.banners[banner.ID] = banner
	return nil
}

func (r *BannerRepository) Delete(_ context.Context, bannerID string) error {
	r.mu.Lock()
	delete(r.banners, bannerID)
	r.mu.Unlock()
	return nil
}
