// Package cart implements the shopping cart aggregate used to price a checkout.
package cart

import (
	"fmt"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/money"
)

// Item is a cart line: a product snapshot and a quantity of at least one.
type Item struct {
	Product  domain.Product
	Quantity int
}

// LineTotal is the effective unit price times quantity.
func (i Item) LineTotal() int64 {
	return i.Product.EffectivePrice() * int64(i.Quantity)
}

// Cart holds the lines of one shopping session. The zero value is an empty cart.
// A Cart is not safe for concurrent use.
type Cart struct {
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(productID string) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds one unit of product. An existing line is incremented by exactly one, capped at
// the product's inventory. Products with no inventory are ignored. It reports whether the cart changed.
func (c *Cart) AddItem(product domain.Product) bool {
	if !product.InStock() {
		return false
	}
	if i := c.index(product.ID); i >= 0 {
		line := &c.items[i]
		line.Product = product
		if line.Quantity >= product.Inventory {
			if line.Quantity > product.Inventory {
				line.Quantity = product.Inventory
				return true
			}
			return false
		}
		line.Quantity++
		return true
	}
	c.items = append(c.items, Item{Product: product, Quantity: 1})
	return true
}

// RemoveItem deletes the line for productID if present.
func (c *Cart) RemoveItem(productID string) {
	if i := c.index(productID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

// UpdateQuantity sets the quantity of an existing line, capped at inventory.
// A quantity of zero or less removes the line. Unknown products are ignored.
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	i := c.index(productID)
	if i < 0 {
		return
	}
	line := &c.items[i]
	if quantity > line.Product.Inventory {
		quantity = line.Product.Inventory
	}
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	line.Quantity = quantity
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// TotalPrice sums the effective price times quantity over all lines, in minor units.
func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, item := range c.items {
		total += item.LineTotal()
	}
	return total
}

// TotalItems sums quantities.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	return append([]Item(nil), c.items...)
}

// CheckoutItems converts the lines into the price snapshot the checkout accepts.
func (c *Cart) CheckoutItems(currency string) ([]domain.CheckoutItem, error) {
	out := make([]domain.CheckoutItem, 0, len(c.items))
	for _, item := range c.items {
		unit, err := money.FromMinor(item.Product.EffectivePrice(), currency)
		if err != nil {
			return nil, fmt.Errorf("cart: price %s: %w", item.Product.ID, err)
		}
		out = append(out, domain.CheckoutItem{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			UnitPrice: unit,
			Quantity:  item.Quantity,
			Image:     item.Product.PrimaryImage(),
		})
	}
	return out, nil
}
