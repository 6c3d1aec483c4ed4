package services

import (
	"context"
	"time"

	"github.com/favianyip/shunharvest/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product         = domain.Product
	Category        = domain.Category
	Banner          = domain.Banner
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	PaymentMethod   = domain.PaymentMethod
	PaymentSettings = domain.PaymentSettings
	CheckoutItem    = domain.CheckoutItem
)

// CheckoutService turns a priced cart into a gateway handle.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// PaymentEventService verifies and applies payment gateway notifications.
type PaymentEventService interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (WebhookResult, error)
}

// OrderService owns order creation and the order status lifecycle.
type OrderService interface {
	RecordPaidOrder(ctx context.Context, cmd RecordOrderCommand) (Order, bool, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
}

// CatalogService serves and maintains products, categories and banners.
type CatalogService interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (Category, error)
	CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, categoryID string, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error

	ListBanners(ctx context.Context, activeOnly bool) ([]Banner, error)
	CreateBanner(ctx context.Context, cmd UpsertBannerCommand) (Banner, error)
	UpdateBanner(ctx context.Context, bannerID string, cmd UpsertBannerCommand) (Banner, error)
	DeleteBanner(ctx context.Context, bannerID string) error
}

// SettingsService reads and updates the payment settings record.
type SettingsService interface {
	PaymentSettings(ctx context.Context) (PaymentSettings, error)
	UpdatePaymentSettings(ctx context.Context, cmd UpdatePaymentSettingsCommand) (PaymentSettings, error)
}

// CartPricer rebuilds carts from catalog prices.
type CartPricer interface {
	Quote(ctx context.Context, lines []CartQuoteLine) (CartQuote, error)
	Reprice(ctx context.Context, items []CheckoutItem) ([]CheckoutItem, error)
}

// AdminAuthService exchanges the back-office credential for a bearer token.
type AdminAuthService interface {
	Login(ctx context.Context, username, password string) (AdminToken, error)
}

// OrderEventPublisher fans order lifecycle events out to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// Order event types.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status.changed"
)

// OrderEvent is the message published for order lifecycle changes.
type OrderEvent struct {
	Type           string      `json:"type"`
	OrderID        string      `json:"orderId"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previousStatus,omitempty"`
	PaymentRef     string      `json:"paymentRef,omitempty"`
	PaymentMethod  string      `json:"paymentMethod,omitempty"`
	Total          int64       `json:"total"`
	Currency       string      `json:"currency"`
	CustomerEmail  string      `json:"customerEmail,omitempty"`
	NeedsReview    bool        `json:"needsReview,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}
