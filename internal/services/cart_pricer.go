package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/favianyip/shunharvest/internal/cart"
	"github.com/favianyip/shunharvest/internal/money"
	"github.com/favianyip/shunharvest/internal/repositories"
)

var (
	// ErrCartInvalidInput indicates a malformed quote request.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductUnavailable indicates a product is unknown or out of stock.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
)

// CartQuoteLine is a product reference with the requested quantity.
type CartQuoteLine struct {
	ProductID string
	Quantity  int
}

// CartQuote is a cart rebuilt from catalog prices. Amounts are minor units.
type CartQuote struct {
	Items      []cart.Item
	TotalPrice int64
	TotalItems int
	Currency   string
	// Adjusted lists product ids whose quantity was clamped to inventory or dropped.
	Adjusted []string
}

// CartPricerDeps wires the cart pricer.
type CartPricerDeps struct {
	Products repositories.ProductRepository
	Currency string
}

type cartPricer struct {
	products repositories.ProductRepository
	currency string
}

// NewCartPricer constructs a CartPricer backed by the product catalog.
func NewCartPricer(deps CartPricerDeps) (CartPricer, error) {
	if deps.Products == nil {
		return nil, errors.New("cart pricer: product repository is required")
	}
	currency, err := money.NormalizeCurrency(deps.Currency)
	if err != nil {
		return nil, fmt.Errorf("cart pricer: %w", err)
	}
	return &cartPricer{products: deps.Products, currency: currency}, nil
}

// Quote replays the lines through a cart so inventory clamping matches the storefront cart.
func (p *cartPricer) Quote(ctx context.Context, lines []CartQuoteLine) (CartQuote, error) {
	order := make([]string, 0, len(lines))
	wanted := make(map[string]int, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" || line.Quantity < 1 {
			return CartQuote{}, fmt.Errorf("%w: each line needs an id and a positive quantity", ErrCartInvalidInput)
		}
		if _, seen := wanted[id]; !seen {
			order = append(order, id)
		}
		wanted[id] += line.Quantity
	}

	c := cart.New()
	var adjusted []string
	for _, id := range order {
		product, err := p.products.Get(ctx, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				adjusted = append(adjusted, id)
				continue
			}
			return CartQuote{}, err
		}
		if !c.AddItem(product) {
			adjusted = append(adjusted, id)
			continue
		}
		c.UpdateQuantity(id, wanted[id])
		if wanted[id] > product.Inventory {
			adjusted = append(adjusted, id)
		}
	}
	return CartQuote{
		Items:      c.Items(),
		TotalPrice: c.TotalPrice(),
		TotalItems: c.TotalItems(),
		Currency:   p.currency,
		Adjusted:   adjusted,
	}, nil
}

// Reprice replaces submitted names and prices with the catalog's current values. Lines for the
// same product are merged first. Unknown or sold out products are rejected; quantities above
// inventory are rejected rather than clamped.
func (p *cartPricer) Reprice(ctx context.Context, items []CheckoutItem) ([]CheckoutItem, error) {
	merged := make([]CheckoutItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if i, ok := index[id]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		item.ProductID = id
		index[id] = len(merged)
		merged = append(merged, item)
	}

	out := make([]CheckoutItem, 0, len(merged))
	for _, item := range merged {
		id := item.ProductID
		product, err := p.products.Get(ctx, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrCartProductUnavailable, id)
			}
			return nil, err
		}
		if !product.InStock() || item.Quantity > product.Inventory {
			return nil, fmt.Errorf("%w: %s has %d in stock", ErrCartProductUnavailable, id, product.Inventory)
		}
		unit, err := money.FromMinor(product.EffectivePrice(), p.currency)
		if err != nil {
			return nil, err
		}
		out = append(out, CheckoutItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: unit,
			Quantity:  item.Quantity,
			Image:     product.PrimaryImage(),
		})
	}
	return out, nil
}
