package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories/memory"
)

type captureOrderEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	c.events = append(c.events, event)
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("msg-%d", len(c.events)), nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestOrderService(t *testing.T, repo *memory.OrderRepository, events OrderEventPublisher, clock *fixedClock) OrderService {
	t.Helper()
	seq := 0
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: repo,
		Events: events,
		Clock:  clock.Now,
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("ord_%03d", seq)
		},
	})
	require.NoError(t, err)
	return svc
}

func paidOrderCommand(ref string) RecordOrderCommand {
	return RecordOrderCommand{
		PaymentRef:    ref,
		PaymentMethod: domain.PaymentMethodCard,
		Items: []OrderItem{
			{ProductID: "prod_melon", Name: "Crown Melon", UnitPrice: 13800, Quantity: 1},
			{ProductID: "prod_grape", Name: "Shine Muscat", UnitPrice: 11900, Quantity: 2},
		},
		AmountPaid:    40100,
		Currency:      "sgd",
		CustomerEmail: " buyer@example.com ",
	}
}

func TestRecordPaidOrderCreatesProcessingOrderOnce(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := memory.NewOrderRepository()
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events, clock)

	order, created, err := svc.RecordPaidOrder(context.Background(), paidOrderCommand("cs_test_1"))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "ord_001", order.ID)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, int64(37600), order.Total)
	assert.Equal(t, int64(40100), order.AmountPaid)
	assert.Equal(t, "SGD", order.Currency)
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)
	assert.Equal(t, clock.now, order.CreatedAt)

	again, created, err := svc.RecordPaidOrder(context.Background(), paidOrderCommand("cs_test_1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, order.ID, again.ID)

	all, err := svc.ListOrders(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	require.Len(t, events.events, 1)
	assert.Equal(t, OrderEventCreated, events.events[0].Type)
}

func TestRecordPaidOrderValidation(t *testing.T) {
	svc := newTestOrderService(t, memory.NewOrderRepository(), nil, &fixedClock{now: time.Now()})

	cmd := paidOrderCommand("")
	_, _, err := svc.RecordPaidOrder(context.Background(), cmd)
	require.ErrorIs(t, err, ErrOrderInvalidInput)

	cmd = paidOrderCommand("pi_1")
	cmd.Items = nil
	_, _, err = svc.RecordPaidOrder(context.Background(), cmd)
	require.ErrorIs(t, err, ErrOrderInvalidInput)

	cmd = paidOrderCommand("pi_1")
	cmd.Items[0].Quantity = 0
	_, _, err = svc.RecordPaidOrder(context.Background(), cmd)
	require.ErrorIs(t, err, ErrOrderInvalidInput)
}

func TestRecordPaidOrderTolerantOfPublishFailure(t *testing.T) {
	events := &captureOrderEvents{err: errors.New("pubsub down")}
	var logged []string
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: memory.NewOrderRepository(),
		Events: events,
		Logger: func(_ context.Context, event string, _ map[string]any) { logged = append(logged, event) },
	})
	require.NoError(t, err)

	_, created, err := svc.RecordPaidOrder(context.Background(), paidOrderCommand("pi_2"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, logged, "order.event.publish.failed")
}

func TestTransitionStatusFollowsStateMachine(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, memory.NewOrderRepository(), events, clock)
	ctx := context.Background()

	order, _, err := svc.RecordPaidOrder(ctx, paidOrderCommand("cs_1"))
	require.NoError(t, err)

	clock.advance(time.Hour)
	shipped, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusShipped})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, shipped.Status)
	assert.Equal(t, clock.now, shipped.UpdatedAt)
	assert.Equal(t, int64(37600), shipped.Total)

	_, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusPending})
	require.ErrorIs(t, err, ErrOrderInvalidTransition)
	_, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusCancelled})
	require.ErrorIs(t, err, ErrOrderInvalidTransition)

	clock.advance(time.Hour)
	delivered, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, delivered.Status)

	for _, target := range []OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusCancelled} {
		_, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: target})
		require.ErrorIs(t, err, ErrOrderInvalidTransition, "delivered -> %s", target)
	}

	require.Len(t, events.events, 3)
	assert.Equal(t, OrderEventStatusChanged, events.events[1].Type)
	assert.Equal(t, domain.OrderStatusProcessing, events.events[1].PreviousStatus)
	assert.Equal(t, domain.OrderStatusDelivered, events.events[2].Status)
}

func TestTransitionStatusErrors(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestOrderService(t, memory.NewOrderRepository(), nil, clock)
	ctx := context.Background()

	_, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: "missing", TargetStatus: domain.OrderStatusShipped})
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: "ord_001", TargetStatus: "lost"})
	require.ErrorIs(t, err, ErrOrderInvalidInput)

	order, _, err := svc.RecordPaidOrder(ctx, paidOrderCommand("cs_1"))
	require.NoError(t, err)

	stale := order.UpdatedAt.Add(-time.Minute)
	_, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:           order.ID,
		TargetStatus:      domain.OrderStatusCancelled,
		ExpectedUpdatedAt: &stale,
	})
	require.ErrorIs(t, err, ErrOrderConflict)

	current := order.UpdatedAt
	cancelled, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:           order.ID,
		TargetStatus:      domain.OrderStatusCancelled,
		ExpectedUpdatedAt: &current,
	})
	require.NoError(t, err)
	assert.True(t, cancelled.Status.Terminal())
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestOrderService(t, memory.NewOrderRepository(), nil, &fixedClock{now: time.Now()})
	_, err := svc.GetOrder(context.Background(), "ord_x")
	require.ErrorIs(t, err, ErrOrderNotFound)
	_, err = svc.GetOrder(context.Background(), " ")
	require.ErrorIs(t, err, ErrOrderInvalidInput)
}
