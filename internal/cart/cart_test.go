package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favianyip/shunharvest/internal/domain"
)

func product(id string, price int64, inventory int) domain.Product {
	return domain.Product{ID: id, Name: "Fruit " + id, Price: price, Inventory: inventory, Images: []string{"https://img/" + id}}
}

func sumLines(c *Cart) int64 {
	var total int64
	for _, item := range c.Items() {
		total += item.Product.EffectivePrice() * int64(item.Quantity)
	}
	return total
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	c := New()
	melon := product("melon", 13800, 5)

	require.True(t, c.AddItem(melon))
	require.True(t, c.AddItem(melon))

	require.Equal(t, 1, c.Len())
	assert.Equal(t, 2, c.Items()[0].Quantity)
	assert.Equal(t, 2, c.TotalItems())
}

func TestAddItemClampsToInventory(t *testing.T) {
	c := New()
	grape := product("grape", 11900, 1)

	assert.True(t, c.AddItem(grape))
	assert.False(t, c.AddItem(grape))
	assert.Equal(t, 1, c.TotalItems())
}

func TestAddItemIgnoresOutOfStock(t *testing.T) {
	c := New()
	assert.False(t, c.AddItem(product("peach", 500, 0)))
	assert.Zero(t, c.Len())
}

func TestTotalPriceUsesSalePriceAndTracksMutations(t *testing.T) {
	c := New()
	sale := int64(11900)
	grape := product("grape", 15000, 10)
	grape.SalePrice = &sale
	melon := product("melon", 13800, 10)

	c.AddItem(melon)
	assert.Equal(t, sumLines(c), c.TotalPrice())

	c.AddItem(grape)
	c.AddItem(grape)
	assert.Equal(t, int64(37600), c.TotalPrice())
	assert.Equal(t, sumLines(c), c.TotalPrice())

	c.UpdateQuantity("grape", 3)
	assert.Equal(t, int64(13800+3*11900), c.TotalPrice())

	c.RemoveItem("melon")
	assert.Equal(t, int64(3*11900), c.TotalPrice())
	assert.Equal(t, sumLines(c), c.TotalPrice())
}

func TestUpdateQuantityZeroEqualsRemove(t *testing.T) {
	a, b := New(), New()
	for _, c := range []*Cart{a, b} {
		c.AddItem(product("melon", 13800, 5))
		c.AddItem(product("grape", 11900, 5))
	}

	a.UpdateQuantity("melon", 0)
	b.RemoveItem("melon")

	assert.Equal(t, b.Items(), a.Items())
	assert.Equal(t, b.TotalPrice(), a.TotalPrice())
}

func TestUpdateQuantityClampsAndIgnoresUnknown(t *testing.T) {
	c := New()
	c.AddItem(product("melon", 13800, 3))

	c.UpdateQuantity("melon", 10)
	assert.Equal(t, 3, c.TotalItems())

	c.UpdateQuantity("missing", 2)
	assert.Equal(t, 1, c.Len())

	c.RemoveItem("missing")
	assert.Equal(t, 1, c.Len())
}

func TestCheckoutItems(t *testing.T) {
	c := New()
	c.AddItem(product("melon", 13800, 3))

	items, err := c.CheckoutItems("SGD")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "138", items[0].UnitPrice.String())
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "https://img/melon", items[0].Image)
}
