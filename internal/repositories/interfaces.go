package repositories

import (
	"context"
	"time"

	"github.com/favianyip/shunharvest/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Banners() BannerRepository
	Orders() OrderRepository
	Settings() SettingsRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Get(ctx context.Context, productID string) (domain.Product, error)
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
}

// CategoryRepository persists product categories ordered by their sort key.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Get(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
}

// BannerRepository persists home page banners.
type BannerRepository interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Banner, error)
	Get(ctx context.Context, bannerID string) (domain.Banner, error)
	Insert(ctx context.Context, banner domain.Banner) error
	Update(ctx context.Context, banner domain.Banner) error
	Delete(ctx context.Context, bannerID string) error
}

// OrderStatusUpdate moves an order between states under an optimistic precondition.
type OrderStatusUpdate struct {
	OrderID           string
	From              domain.OrderStatus
	To                domain.OrderStatus
	ExpectedUpdatedAt time.Time
	UpdatedAt         time.Time
}

// OrderRepository persists orders. Orders are never deleted.
type OrderRepository interface {
	// CreateForPayment inserts order unless an order already exists for order.PaymentRef.
	// It returns the stored order and whether it was created by this call.
	CreateForPayment(ctx context.Context, order domain.Order) (domain.Order, bool, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, update OrderStatusUpdate) (domain.Order, error)
}

// SettingsRepository persists the payment settings record.
type SettingsRepository interface {
	// PaymentSettings returns the stored settings; found is false when none were saved yet.
	PaymentSettings(ctx context.Context) (settings domain.PaymentSettings, found bool, err error)
	SavePaymentSettings(ctx context.Context, settings domain.PaymentSettings) error
}

// HealthRepository reports backing store reachability for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
