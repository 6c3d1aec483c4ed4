package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories"
)

// OrderRepository stores orders in memory. A single mutex makes CreateForPayment an atomic
// insert-if-absent keyed on the payment reference.
type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]domain.Order
	byPayment map[string]string
}

// NewOrderRepository returns an empty repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]domain.Order),
		byPayment: make(map[string]string),
	}
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func (r *OrderRepository) CreateForPayment(_ context.Context, order domain.Order) (domain.Order, bool, error) {
	ref := strings.TrimSpace(order.PaymentRef)
	if ref == "" {
		return domain.Order{}, false, errors.New("orders.create_for_payment: payment reference is required")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, false, errors.New("orders.create_for_payment: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byPayment[ref]; ok {
		return cloneOrder(r.orders[existingID]), false, nil
	}
	if _, exists := r.orders[order.ID]; exists {
		return domain.Order{}, false, repositories.NewConflictError("orders.create_for_payment", "order id already exists")
	}
	r.orders[order.ID] = cloneOrder(order)
	r.byPayment[ref] = order.ID
	return cloneOrder(order), true, nil
}

func (r *OrderRepository) Get(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.get", "order", orderID)
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) FindByPaymentRef(_ context.Context, paymentRef string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPayment[paymentRef]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.find_by_payment_ref", "order", paymentRef)
	}
	return cloneOrder(r.orders[id]), nil
}

func (r *OrderRepository) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, update repositories.OrderStatusUpdate) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[update.OrderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.update_status", "order", update.OrderID)
	}
	if o.Status != update.From {
		return domain.Order{}, repositories.NewConflictError("orders.update_status", "order status changed concurrently")
	}
	if !update.ExpectedUpdatedAt.IsZero() && !o.UpdatedAt.Equal(update.ExpectedUpdatedAt) {
		return domain.Order{}, repositories.NewConflictError("orders.update_status", "order was modified concurrently")
	}
	o.Status = update.To
	o.UpdatedAt = update.UpdatedAt
	r.orders[o.ID] = o
	return cloneOrder(o), nil
}
