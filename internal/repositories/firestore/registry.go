// Package firestore implements the repositories on Cloud Firestore.
package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/favianyip/shunharvest/internal/platform/firestore"
	"github.com/favianyip/shunharvest/internal/repositories"
)

// Registry wires the Firestore repositories over one provider.
type Registry struct {
	provider   *pfirestore.Provider
	products   *ProductRepository
	categories *CategoryRepository
	banners    *BannerRepository
	orders     *OrderRepository
	settings   *SettingsRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every repository. currency is used to convert stored major-unit prices.
func NewRegistry(provider *pfirestore.Provider, currency string) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	products, err := NewProductRepository(provider, currency)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:   provider,
		products:   products,
		categories: NewCategoryRepository(provider),
		banners:    NewBannerRepository(provider),
		orders:     orders,
		settings:   NewSettingsRepository(provider),
	}, nil
}

func (r *Registry) Products() repositories.ProductRepository     { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Banners() repositories.BannerRepository       { return r.banners }
func (r *Registry) Orders() repositories.OrderRepository         { return r.orders }
func (r *Registry) Settings() repositories.SettingsRepository   { return r.settings }
func (r *Registry) Health() repositories.HealthRepository       { return r }

// Ping checks Firestore reachability.
func (r *Registry) Ping(ctx context.Context) error {
	return r.provider.Ping(ctx)
}

// Close releases the Firestore client.
func (r *Registry) Close(context.Context) error {
	return r.provider.Close()
}
