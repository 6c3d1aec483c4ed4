package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories/memory"
)

func newTestCatalog(t *testing.T) (CatalogService, *memory.Registry) {
	t.Helper()
	reg := memory.NewRegistry()
	clock := &fixedClock{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:   reg.Products(),
		Categories: reg.Categories(),
		Banners:    reg.Banners(),
		Currency:   "SGD",
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	return svc, reg
}

func TestCatalogProductLifecycle(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Name: "Premium Melons", Order: 1})
	require.NoError(t, err)
	assert.Equal(t, "premium-melons", category.Slug)

	sale := decimal.RequireFromString("119.50")
	product, err := svc.CreateProduct(ctx, UpsertProductCommand{
		SKU:         "mel-001",
		Name:        " Crown Melon ",
		Description: `<p>Sweet</p><script>alert(1)</script>`,
		Price:       decimal.RequireFromString("138.00"),
		SalePrice:   &sale,
		Inventory:   4,
		CategoryID:  category.ID,
		Images:      []string{"https://cdn.example.com/melon.jpg"},
		IsFeatured:  true,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^prod_`, product.ID)
	assert.Equal(t, "MEL-001", product.SKU)
	assert.Equal(t, "Crown Melon", product.Name)
	assert.Equal(t, int64(13800), product.Price)
	require.NotNil(t, product.SalePrice)
	assert.Equal(t, int64(11950), product.EffectivePrice())
	assert.NotContains(t, product.Description, "script")
	assert.Contains(t, product.Description, "<p>Sweet</p>")

	featured, err := svc.ListProducts(ctx, domain.ProductFilter{FeaturedOnly: true})
	require.NoError(t, err)
	require.Len(t, featured, 1)

	updated, err := svc.UpdateProduct(ctx, product.ID, UpsertProductCommand{
		SKU:       "MEL-001",
		Name:      "Crown Melon",
		Price:     decimal.RequireFromString("140"),
		Inventory: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, product.CreatedAt, updated.CreatedAt)
	assert.Nil(t, updated.SalePrice)
	assert.False(t, updated.InStock())

	require.NoError(t, svc.DeleteProduct(ctx, product.ID))
	_, err = svc.GetProduct(ctx, product.ID)
	require.ErrorIs(t, err, ErrCatalogNotFound)
}

func TestCatalogProductValidation(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	higher := decimal.RequireFromString("200")

	cases := map[string]UpsertProductCommand{
		"missing name":       {SKU: "A", Price: decimal.NewFromInt(1)},
		"missing sku":        {Name: "A", Price: decimal.NewFromInt(1)},
		"negative price":     {SKU: "A", Name: "A", Price: decimal.NewFromInt(-1)},
		"negative inventory": {SKU: "A", Name: "A", Price: decimal.NewFromInt(1), Inventory: -1},
		"sale above price":   {SKU: "A", Name: "A", Price: decimal.NewFromInt(100), SalePrice: &higher},
		"unknown category":   {SKU: "A", Name: "A", Price: decimal.NewFromInt(1), CategoryID: "cat_missing"},
		"relative image":     {SKU: "A", Name: "A", Price: decimal.NewFromInt(1), Images: []string{"melon.jpg"}},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, cmd)
			require.ErrorIs(t, err, ErrCatalogInvalidInput)
		})
	}
}

func TestCatalogCategorySlugConflictAndDeleteGuard(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Name: "Grapes"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, UpsertCategoryCommand{Name: "Other", Slug: "GRAPES"})
	require.ErrorIs(t, err, ErrCatalogConflict)

	renamed, err := svc.UpdateCategory(ctx, first.ID, UpsertCategoryCommand{Name: "Grapes", Description: "Muscat"})
	require.NoError(t, err)
	assert.Equal(t, "grapes", renamed.Slug)

	found, err := svc.GetCategoryBySlug(ctx, "Grapes")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = svc.CreateProduct(ctx, UpsertProductCommand{SKU: "G1", Name: "Shine Muscat", Price: decimal.NewFromInt(119), CategoryID: first.ID, Inventory: 1})
	require.NoError(t, err)
	require.ErrorIs(t, svc.DeleteCategory(ctx, first.ID), ErrCatalogConflict)
}

func TestCatalogBanners(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := svc.CreateBanner(ctx, UpsertBannerCommand{Title: "Summer", Link: "/products", Active: true, Order: 2})
	require.NoError(t, err)
	hidden, err := svc.CreateBanner(ctx, UpsertBannerCommand{Title: "Winter", Active: false, Order: 1})
	require.NoError(t, err)
	_, err = svc.CreateBanner(ctx, UpsertBannerCommand{Title: "Bad", Link: "javascript:alert(1)"})
	require.ErrorIs(t, err, ErrCatalogInvalidInput)

	active, err := svc.ListBanners(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Summer", active[0].Title)

	all, err := svc.ListBanners(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Winter", all[0].Title)

	require.NoError(t, svc.DeleteBanner(ctx, hidden.ID))
	require.ErrorIs(t, svc.DeleteBanner(ctx, hidden.ID), ErrCatalogNotFound)
}

func TestOrderTotalUnaffectedByLaterPriceChange(t *testing.T) {
	catalog, reg := newTestCatalog(t)
	ctx := context.Background()
	orders, err := NewOrderService(OrderServiceDeps{Orders: reg.Orders()})
	require.NoError(t, err)

	product, err := catalog.CreateProduct(ctx, UpsertProductCommand{
		SKU:       "GRP-001",
		Name:      "Shine Muscat",
		Price:     decimal.RequireFromString("119.00"),
		Inventory: 10,
	})
	require.NoError(t, err)

	recorded, created, err := orders.RecordPaidOrder(ctx, RecordOrderCommand{
		PaymentRef:    "cs_price_snapshot",
		PaymentMethod: domain.PaymentMethodCard,
		Items: []OrderItem{{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.EffectivePrice(),
			Quantity:  2,
		}},
		AmountPaid: 23800,
		Currency:   "SGD",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(23800), recorded.Total)

	repriced, err := catalog.UpdateProduct(ctx, product.ID, UpsertProductCommand{
		SKU:       "GRP-001",
		Name:      "Shine Muscat",
		Price:     decimal.RequireFromString("150.00"),
		Inventory: 10,
	})
	require.NoError(t, err)
	require.Equal(t, int64(15000), repriced.EffectivePrice())

	reread, err := orders.GetOrder(ctx, recorded.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(23800), reread.Total)
	require.Len(t, reread.Items, 1)
	assert.Equal(t, int64(11900), reread.Items[0].UnitPrice)
}
