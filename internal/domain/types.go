package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Product is a catalog entry. Prices are in the smallest currency unit.
type Product struct {
	ID            string
	SKU           string
	Name          string
	Description   string
	Price         int64
	SalePrice     *int64
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
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectivePrice returns the sale price when one is set, otherwise the base price.
func (p Product) EffectivePrice() int64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// InStock reports whether the product can be added to a cart.
func (p Product) InStock() bool {
	return p.Inventory > 0
}

// PrimaryImage returns the first image URL, if any.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID   string
	FeaturedOnly bool
	SKU          string
	Limit        int
}

// Category groups products for browsing.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Image       string
	Order       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Banner is a promotional slot on the storefront home page.
type Banner struct {
	ID        string
	Title     string
	Subtitle  string
	Image     string
	Link      string
	Active    bool
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentMethod selects the checkout branch.
type PaymentMethod string

const (
	// PaymentMethodCard uses a hosted checkout session.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodPushQR uses a payment intent confirmed from the customer's banking app.
	PaymentMethodPushQR PaymentMethod = "push-qr"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodPushQR
}

// PaymentSettings is the server-side record controlling which payment methods are offered.
// Gateway secrets are never part of this record.
type PaymentSettings struct {
	CardEnabled    bool
	PushQREnabled  bool
	PublishableKey string
	PushQR         PushQRDisplay
	UpdatedAt      time.Time
}

// PushQRDisplay carries merchant details shown next to the QR code.
type PushQRDisplay struct {
	UEN          string
	DisplayName  string
	QRImageURL   string
	ContactEmail string
}

// MethodEnabled reports whether method is currently offered.
func (s PaymentSettings) MethodEnabled(method PaymentMethod) bool {
	switch method {
	case PaymentMethodCard:
		return s.CardEnabled
	case PaymentMethodPushQR:
		return s.PushQREnabled
	default:
		return false
	}
}

// DefaultPaymentSettings is used until an administrator saves settings.
func DefaultPaymentSettings() PaymentSettings {
	return PaymentSettings{CardEnabled: true, PushQREnabled: true}
}

// CheckoutItem is the per-line price snapshot submitted for checkout. UnitPrice is in major units
// as sent by the storefront; it is converted to minor units server-side.
type CheckoutItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Image     string
}
