package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories"
)

const (
	orderIDPrefix       = "ord_"
	defaultOrderListCap = 100
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the state machine forbids the requested move.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates an optimistic concurrency conflict.
	ErrOrderConflict = errors.New("order: conflict")
)

// RecordOrderCommand describes a paid order reported by the payment gateway.
type RecordOrderCommand struct {
	PaymentRef      string
	PaymentMethod   PaymentMethod
	Items           []OrderItem
	AmountPaid      int64
	Currency        string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress string
	NeedsReview     bool
}

// OrderStatusTransitionCommand is an administrative status change.
type OrderStatusTransitionCommand struct {
	OrderID           string
	TargetStatus      OrderStatus
	ExpectedUpdatedAt *time.Time
	ActorID           string
}

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher
	now    func() time.Time
	newID  func() string
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders: deps.Orders,
		events: deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

// RecordPaidOrder creates a processing order exactly once per payment reference. The total is
// the sum of the line snapshots and is never recomputed afterwards. The boolean result is false
// when an order for the reference already existed.
func (s *orderService) RecordPaidOrder(ctx context.Context, cmd RecordOrderCommand) (Order, bool, error) {
	ref := strings.TrimSpace(cmd.PaymentRef)
	if ref == "" {
		return Order{}, false, fmt.Errorf("%w: payment reference is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, false, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for _, item := range cmd.Items {
		if item.Quantity < 1 || item.UnitPrice < 0 {
			return Order{}, false, fmt.Errorf("%w: invalid line for %s", ErrOrderInvalidInput, item.ProductID)
		}
	}

	now := s.now()
	order := Order{
		ID:              s.newID(),
		Items:           append([]OrderItem(nil), cmd.Items...),
		Total:           domain.SumOrderItems(cmd.Items),
		AmountPaid:      cmd.AmountPaid,
		Currency:        strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		Status:          domain.OrderStatusProcessing,
		CustomerEmail:   strings.TrimSpace(cmd.CustomerEmail),
		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		PaymentMethod:   cmd.PaymentMethod,
		PaymentRef:      ref,
		NeedsReview:     cmd.NeedsReview,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stored, created, err := s.orders.CreateForPayment(ctx, order)
	if err != nil {
		return Order{}, false, err
	}
	if !created {
		s.logger(ctx, "order.duplicate_payment", map[string]any{
			"orderId":    stored.ID,
			"paymentRef": ref,
		})
		return stored, false, nil
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     stored.ID,
		"paymentRef":  ref,
		"total":       stored.Total,
		"currency":    stored.Currency,
		"needsReview": stored.NeedsReview,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          OrderEventCreated,
		OrderID:       stored.ID,
		Status:        stored.Status,
		PaymentRef:    stored.PaymentRef,
		PaymentMethod: string(stored.PaymentMethod),
		Total:         stored.Total,
		Currency:      stored.Currency,
		CustomerEmail: stored.CustomerEmail,
		NeedsReview:   stored.NeedsReview,
		OccurredAt:    now,
	})
	return stored, true, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > defaultOrderListCap {
		filter.Limit = defaultOrderListCap
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// TransitionStatus applies an administrative status change guarded by the order state machine
// and, when supplied, the caller's last seen updatedAt.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.TargetStatus.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if cmd.ExpectedUpdatedAt != nil && !order.UpdatedAt.Equal(cmd.ExpectedUpdatedAt.UTC()) {
		return Order{}, fmt.Errorf("%w: order was updated at %s", ErrOrderConflict, order.UpdatedAt.Format(time.RFC3339Nano))
	}
	if !order.Status.CanTransitionTo(cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, cmd.TargetStatus)
	}

	now := s.now()
	prev := order.Status
	updated, err := s.orders.UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID:           order.ID,
		From:              prev,
		To:                cmd.TargetStatus,
		ExpectedUpdatedAt: order.UpdatedAt,
		UpdatedAt:         now,
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.status.changed", map[string]any{
		"orderId": updated.ID,
		"from":    string(prev),
		"to":      string(updated.Status),
		"actor":   strings.TrimSpace(cmd.ActorID),
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           OrderEventStatusChanged,
		OrderID:        updated.ID,
		Status:         updated.Status,
		PreviousStatus: prev,
		PaymentRef:     updated.PaymentRef,
		PaymentMethod:  string(updated.PaymentMethod),
		Total:          updated.Total,
		Currency:       updated.Currency,
		OccurredAt:     now,
	})
	return updated, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"status": string(event.Status),
			"error":  err.Error(),
		})
	}
}
