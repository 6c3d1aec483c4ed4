package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/money"
	pfirestore "github.com/favianyip/shunharvest/internal/platform/firestore"
)

const productsCollection = "products"

// productDocument keeps prices as major-unit numbers, the format the storefront has always
// written; conversion to minor units happens here.
type productDocument struct {
	SKU           string     `firestore:"sku"`
	Name          string     `firestore:"name"`
	Description   string     `firestore:"description"`
	Price         float64    `firestore:"price"`
	SalePrice     *float64   `firestore:"salePrice,omitempty"`
	Inventory     int        `firestore:"inventory"`
	CategoryID    string     `firestore:"categoryId"`
	FarmName      string     `firestore:"farmName"`
	Location      string     `firestore:"location"`
	Images        []string   `firestore:"images"`
	IsNew         bool       `firestore:"isNew"`
	IsFeatured    bool       `firestore:"isFeatured"`
	Rating        float64    `firestore:"rating"`
	ReviewCount   int        `firestore:"reviewCount"`
	OrderDeadline *time.Time `firestore:"orderDeadline,omitempty"`
	DeliveryDate  *time.Time `firestore:"deliveryDate,omitempty"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

// ProductRepository persists products.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	currency string
}

// NewProductRepository binds the products collection.
func NewProductRepository(provider *pfirestore.Provider, currency string) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	code, err := money.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	return &ProductRepository{
		base:     pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
		currency: code,
	}, nil
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.CategoryID); id != "" {
			q = q.Where("categoryId", "==", id)
		}
		if filter.FeaturedOnly {
			q = q.Where("isFeatured", "==", true)
		}
		if sku := strings.TrimSpace(filter.SKU); sku != "" {
			q = q.Where("sku", "==", sku)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product, err := r.toDomain(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, product)
	}
	return out, nil
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return r.toDomain(doc)
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	doc, err := r.fromDomain(product)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, product.ID, doc)
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	doc, err := r.fromDomain(product)
	if err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("products.update", err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.base.Delete(ctx, productID)
}

func (r *ProductRepository) toDomain(doc pfirestore.Document[productDocument]) (domain.Product, error) {
	data := doc.Data
	price, err := money.FloatToMinor(data.Price, r.currency)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s price: %w", doc.ID, err)
	}
	product := domain.Product{
		ID:          doc.ID,
		SKU:         data.SKU,
		Name:        data.Name,
		Description: data.Description,
		Price:       price,
		Inventory:   data.Inventory,
		CategoryID:  data.CategoryID,
		FarmName:    data.FarmName,
		Location:    data.Location,
		Images:      append([]string(nil), data.Images...),
		IsNew:       data.IsNew,
		IsFeatured:  data.IsFeatured,
		Rating:      data.Rating,
		ReviewCount: data.ReviewCount,
		CreatedAt:   data.CreatedAt.UTC(),
		UpdatedAt:   data.UpdatedAt.UTC(),
	}
	if data.SalePrice != nil {
		sale, err := money.FloatToMinor(*data.SalePrice, r.currency)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %s sale price: %w", doc.ID, err)
		}
		product.SalePrice = &sale
	}
	if data.OrderDeadline != nil {
		t := data.OrderDeadline.UTC()
		product.OrderDeadline = &t
	}
	if data.DeliveryDate != nil {
		t := data.DeliveryDate.UTC()
		product.DeliveryDate = &t
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = doc.CreateTime
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = doc.UpdateTime
	}
	return product, nil
}

func (r *ProductRepository) fromDomain(p domain.Product) (productDocument, error) {
	price, err := money.MinorToFloat(p.Price, r.currency)
	if err != nil {
		return productDocument{}, err
	}
	doc := productDocument{
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		Price:         price,
		Inventory:     p.Inventory,
		CategoryID:    p.CategoryID,
		FarmName:      p.FarmName,
		Location:      p.Location,
		Images:        append([]string(nil), p.Images...),
		IsNew:         p.IsNew,
		IsFeatured:    p.IsFeatured,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		OrderDeadline: p.OrderDeadline,
		DeliveryDate:  p.DeliveryDate,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
	if p.SalePrice != nil {
		sale, err := money.MinorToFloat(*p.SalePrice, r.currency)
		if err != nil {
			return productDocument{}, err
		}
		doc.SalePrice = &sale
	}
	return doc, nil
}
