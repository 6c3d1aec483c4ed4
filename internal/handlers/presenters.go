package handlers

import (
	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/money"
)

// Prices are exposed in major units for the storefront and in minor units for exact arithmetic.
type productResponse struct {
	ID             string   `json:"id"`
	SKU            string   `json:"sku"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price"`
	PriceMinor     int64    `json:"priceMinor"`
	SalePrice      *float64 `json:"salePrice,omitempty"`
	SalePriceMinor *int64   `json:"salePriceMinor,omitempty"`
	Currency       string   `json:"currency"`
	Inventory      int      `json:"inventory"`
	InStock        bool     `json:"inStock"`
	CategoryID     string   `json:"categoryId,omitempty"`
	FarmName       string   `json:"farmName,omitempty"`
	Location       string   `json:"location,omitempty"`
	Images         []string `json:"images"`
	IsNew          bool     `json:"isNew"`
	IsFeatured     bool     `json:"isFeatured"`
	Rating         float64  `json:"rating"`
	ReviewCount    int      `json:"reviewCount"`
	OrderDeadline  *string  `json:"orderDeadline,omitempty"`
	DeliveryDate   *string  `json:"deliveryDate,omitempty"`
	CreatedAt      string   `json:"createdAt,omitempty"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

func toProductResponse(p domain.Product, currency string) productResponse {
	price, _ := money.MinorToFloat(p.Price, currency)
	resp := productResponse{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		Price:         price,
		PriceMinor:    p.Price,
		Currency:      currency,
		Inventory:     p.Inventory,
		InStock:       p.InStock(),
		CategoryID:    p.CategoryID,
		FarmName:      p.FarmName,
		Location:      p.Location,
		Images:        append([]string{}, p.Images...),
		IsNew:         p.IsNew,
		IsFeatured:    p.IsFeatured,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		OrderDeadline: formatTimePointer(p.OrderDeadline),
		DeliveryDate:  formatTimePointer(p.DeliveryDate),
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
	if p.SalePrice != nil {
		sale, _ := money.MinorToFloat(*p.SalePrice, currency)
		minor := *p.SalePrice
		resp.SalePrice = &sale
		resp.SalePriceMinor = &minor
	}
	return resp
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Order       int    `json:"order"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func toCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		Order:       c.Order,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}

type bannerResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Image     string `json:"image,omitempty"`
	Link      string `json:"link,omitempty"`
	Active    bool   `json:"active"`
	Order     int    `json:"order"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func toBannerResponse(b domain.Banner) bannerResponse {
	return bannerResponse{
		ID:        b.ID,
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		Image:     b.Image,
		Link:      b.Link,
		Active:    b.Active,
		Order:     b.Order,
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
}

type pushQRResponse struct {
	UEN          string `json:"uen,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	QRImageURL   string `json:"qrImageUrl,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

type paymentSettingsResponse struct {
	CardEnabled    bool           `json:"cardEnabled"`
	PushQREnabled  bool           `json:"pushQrEnabled"`
	PublishableKey string         `json:"publishableKey,omitempty"`
	PushQR         pushQRResponse `json:"pushQr"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

func toPaymentSettingsResponse(s domain.PaymentSettings, includeAudit bool) paymentSettingsResponse {
	resp := paymentSettingsResponse{
		CardEnabled:    s.CardEnabled,
		PushQREnabled:  s.PushQREnabled,
		PublishableKey: s.PublishableKey,
		PushQR: pushQRResponse{
			UEN:          s.PushQR.UEN,
			DisplayName:  s.PushQR.DisplayName,
			QRImageURL:   s.PushQR.QRImageURL,
			ContactEmail: s.PushQR.ContactEmail,
		},
	}
	if includeAudit {
		resp.UpdatedAt = formatTime(s.UpdatedAt)
	}
	return resp
}

type orderItemResponse struct {
	ProductID      string  `json:"productId"`
	Name           string  `json:"name"`
	UnitPrice      float64 `json:"unitPrice"`
	UnitPriceMinor int64   `json:"unitPriceMinor"`
	Quantity       int     `json:"quantity"`
	Image          string  `json:"image,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	Items           []orderItemResponse `json:"items"`
	Total           float64             `json:"total"`
	TotalMinor      int64               `json:"totalMinor"`
	AmountPaidMinor int64               `json:"amountPaidMinor"`
	Currency        string              `json:"currency"`
	Status          string              `json:"status"`
	NextStatuses    []string            `json:"nextStatuses"`
	CustomerEmail   string              `json:"customerEmail,omitempty"`
	CustomerName    string              `json:"customerName,omitempty"`
	ShippingAddress string              `json:"shippingAddress,omitempty"`
	PaymentMethod   string              `json:"paymentMethod"`
	PaymentRef      string              `json:"paymentRef"`
	NeedsReview     bool                `json:"needsReview"`
	CreatedAt       string              `json:"createdAt"`
	UpdatedAt       string              `json:"updatedAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		unit, _ := money.MinorToFloat(item.UnitPrice, o.Currency)
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPrice:      unit,
			UnitPriceMinor: item.UnitPrice,
			Quantity:       item.Quantity,
			Image:          item.Image,
		})
	}
	next := make([]string, 0, 2)
	for _, status := range o.Status.NextStatuses() {
		next = append(next, string(status))
	}
	total, _ := money.MinorToFloat(o.Total, o.Currency)
	return orderResponse{
		ID:              o.ID,
		Items:           items,
		Total:           total,
		TotalMinor:      o.Total,
		AmountPaidMinor: o.AmountPaid,
		Currency:        o.Currency,
		Status:          string(o.Status),
		NextStatuses:    next,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentRef:      o.PaymentRef,
		NeedsReview:     o.NeedsReview,
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
	}
}
