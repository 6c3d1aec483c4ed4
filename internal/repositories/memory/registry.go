// Package memory provides process-local repositories for local runs and tests.
package memory

import (
	"context"

	"github.com/favianyip/shunharvest/internal/repositories"
)

// Registry bundles the in-memory repositories.
type Registry struct {
	products   *ProductRepository
	categories *CategoryRepository
	banners    *BannerRepository
	orders     *OrderRepository
	settings   *SettingsRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry returns empty repositories.
func NewRegistry() *Registry {
	return &Registry{
		products:   NewProductRepository(),
		categories: NewCategoryRepository(),
		banners:    NewBannerRepository(),
		orders:     NewOrderRepository(),
		settings:   NewSettingsRepository(),
	}
}

func (r *Registry) Products() repositories.ProductRepository     { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Banners() repositories.BannerRepository       { return r.banners }
func (r *Registry) Orders() repositories.OrderRepository         { return r.orders }
func (r *Registry) Settings() repositories.SettingsRepository   { return r.settings }
func (r *Registry) Health() repositories.HealthRepository       { return r }

// Ping always succeeds.
func (r *Registry) Ping(context.Context) error { return nil }

// Close is a no-op.
func (r *Registry) Close(context.Context) error { return nil }
