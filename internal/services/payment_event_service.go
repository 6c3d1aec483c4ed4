package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/payments"
)

const paymentEventsMeter = "github.com/favianyip/shunharvest/internal/services"

// Webhook outcomes reported in WebhookResult and the events counter.
const (
	WebhookOutcomeOrderCreated = "order_created"
	WebhookOutcomeDuplicate    = "duplicate"
	WebhookOutcomeIgnored      = "ignored"
	WebhookOutcomeFailed       = "payment_failed"
	WebhookOutcomeUnpaid       = "unpaid"
	WebhookOutcomeUndecodable  = "undecodable"
	WebhookOutcomeRejected     = "rejected"
	WebhookOutcomeError        = "error"
)

var (
	// ErrSignatureVerification indicates the notification could not be authenticated.
	ErrSignatureVerification = errors.New("payment event: signature verification failed")
	// ErrPersistence indicates a verified payment could not be recorded; the gateway should redeliver.
	ErrPersistence = errors.New("payment event: persistence failed")
)

// WebhookResult describes how a verified notification was applied.
type WebhookResult struct {
	EventID    string
	EventType  string
	Outcome    string
	OrderID    string
	PaymentRef string
}

// PaymentEventServiceDeps wires the dependencies required by the payment event service.
type PaymentEventServiceDeps struct {
	Verifier      payments.WebhookVerifier
	Orders        OrderService
	Currency      string
	PushQRMethod  string
	MeterProvider metric.MeterProvider
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type paymentEventService struct {
	verifier        payments.WebhookVerifier
	orders          OrderService
	currency        string
	pushQRMethod    string
	eventCounter    metric.Int64Counter
	persistFailures metric.Int64Counter
	logger          func(ctx context.Context, event string, fields map[string]any)
}

// NewPaymentEventService constructs a PaymentEventService validating required dependencies.
func NewPaymentEventService(deps PaymentEventServiceDeps) (PaymentEventService, error) {
	if deps.Verifier == nil {
		return nil, errors.New("payment event service: webhook verifier is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment event service: order service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	method := strings.TrimSpace(deps.PushQRMethod)
	if method == "" {
		method = payments.PushQRMethodType
	}
	provider := deps.MeterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(paymentEventsMeter)
	events, err := meter.Int64Counter("storefront.webhook.events",
		metric.WithDescription("Verified payment notifications by type and outcome"))
	if err != nil {
		return nil, fmt.Errorf("payment event service: events counter: %w", err)
	}
	failures, err := meter.Int64Counter("storefront.orders.persist_failures",
		metric.WithDescription("Paid orders that could not be persisted"))
	if err != nil {
		return nil, fmt.Errorf("payment event service: failures counter: %w", err)
	}

	return &paymentEventService{
		verifier:        deps.Verifier,
		orders:          deps.Orders,
		currency:        strings.ToUpper(strings.TrimSpace(deps.Currency)),
		pushQRMethod:    method,
		eventCounter:    events,
		persistFailures: failures,
		logger:          logger,
	}, nil
}

// HandleWebhook authenticates the payload and applies it. Every verified event is acknowledged
// unless recording a paid order failed, in which case ErrPersistence asks for redelivery.
func (s *paymentEventService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (WebhookResult, error) {
	event, err := s.verifier.Verify(payload, signatureHeader)
	if errors.Is(err, payments.ErrEventDecode) {
		// Authentic but unreadable: acknowledge so the gateway stops retrying.
		s.logger(ctx, "payment.webhook.decode.error", map[string]any{
			"eventId":   event.ID,
			"eventType": event.Type,
			"error":     err.Error(),
		})
		s.countEvent(ctx, event.Type, WebhookOutcomeUndecodable)
		return WebhookResult{EventID: event.ID, EventType: event.Type, Outcome: WebhookOutcomeUndecodable}, nil
	}
	if err != nil {
		s.logger(ctx, "payment.webhook.signature.rejected", map[string]any{
			"error":        err.Error(),
			"payloadBytes": len(payload),
		})
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	result := WebhookResult{EventID: event.ID, EventType: event.Type}
	switch event.Type {
	case payments.EventCheckoutSessionCompleted, payments.EventCheckoutSessionAsyncPaymentSucceed:
		err = s.handleSession(ctx, event, &result)
	case payments.EventPaymentIntentSucceeded:
		err = s.handleIntentSucceeded(ctx, event, &result)
	case payments.EventPaymentIntentFailed:
		s.handleIntentFailed(ctx, event, &result)
	default:
		result.Outcome = WebhookOutcomeIgnored
		s.logger(ctx, "payment.webhook.unhandled", map[string]any{
			"eventId":   event.ID,
			"eventType": event.Type,
		})
	}
	if err != nil {
		result.Outcome = WebhookOutcomeError
	}
	s.countEvent(ctx, event.Type, result.Outcome)
	return result, err
}

func (s *paymentEventService) countEvent(ctx context.Context, eventType, outcome string) {
	s.eventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (s *paymentEventService) handleSession(ctx context.Context, event payments.Event, result *WebhookResult) error {
	session := event.Session
	if session == nil {
		result.Outcome = WebhookOutcomeIgnored
		return nil
	}
	result.PaymentRef = session.ID
	if !session.Paid() {
		// Delayed methods complete later through async_payment_succeeded.
		result.Outcome = WebhookOutcomeUnpaid
		s.logger(ctx, "payment.webhook.session.unpaid", map[string]any{
			"sessionId":     session.ID,
			"paymentStatus": session.PaymentStatus,
		})
		return nil
	}

	fallback := session.AmountSubtotal
	if fallback <= 0 {
		fallback = session.AmountTotal
	}
	items, needsReview := s.reconstructItems(ctx, session.ID, session.Metadata, fallback)
	email := strings.TrimSpace(session.CustomerEmail)
	if email == "" {
		email = session.Metadata[payments.MetaKeyCustomerEmail]
	}
	return s.record(ctx, result, RecordOrderCommand{
		PaymentRef:      session.ID,
		PaymentMethod:   domain.PaymentMethodCard,
		Items:           items,
		AmountPaid:      session.AmountTotal,
		Currency:        s.currencyOr(session.Currency),
		CustomerEmail:   email,
		CustomerName:    session.CustomerName,
		ShippingAddress: session.ShippingAddress,
		NeedsReview:     needsReview,
	})
}

func (s *paymentEventService) handleIntentSucceeded(ctx context.Context, event payments.Event, result *WebhookResult) error {
	intent := event.Intent
	if intent == nil {
		result.Outcome = WebhookOutcomeIgnored
		return nil
	}
	result.PaymentRef = intent.ID
	// Card payments are recorded from their checkout session. The allowed method set does not say
	// which method paid, so only intents tagged by the push-QR branch are recorded here.
	if intent.CheckoutType() != string(domain.PaymentMethodPushQR) || !intent.HasMethod(s.pushQRMethod) {
		result.Outcome = WebhookOutcomeIgnored
		s.logger(ctx, "payment.webhook.intent.skipped", map[string]any{
			"paymentIntent": intent.ID,
			"checkoutType":  intent.CheckoutType(),
		})
		return nil
	}

	paid := intent.AmountReceived
	if paid <= 0 {
		paid = intent.Amount
	}
	items, needsReview := s.reconstructItems(ctx, intent.ID, intent.Metadata, paid)
	email := strings.TrimSpace(intent.Metadata[payments.MetaKeyCustomerEmail])
	if email == "" {
		email = strings.TrimSpace(intent.ReceiptEmail)
	}
	return s.record(ctx, result, RecordOrderCommand{
		PaymentRef:    intent.ID,
		PaymentMethod: domain.PaymentMethodPushQR,
		Items:         items,
		AmountPaid:    paid,
		Currency:      s.currencyOr(intent.Currency),
		CustomerEmail: email,
		NeedsReview:   needsReview,
	})
}

func (s *paymentEventService) handleIntentFailed(ctx context.Context, event payments.Event, result *WebhookResult) {
	result.Outcome = WebhookOutcomeFailed
	fields := map[string]any{"eventId": event.ID}
	if intent := event.Intent; intent != nil {
		result.PaymentRef = intent.ID
		fields["paymentIntent"] = intent.ID
		fields["failureCode"] = intent.FailureCode
		fields["failureMessage"] = intent.FailureMessage
	}
	s.logger(ctx, "payment.intent.failed.warn", fields)
}

func (s *paymentEventService) record(ctx context.Context, result *WebhookResult, cmd RecordOrderCommand) error {
	order, created, err := s.orders.RecordPaidOrder(ctx, cmd)
	if errors.Is(err, ErrOrderInvalidInput) && !cmd.NeedsReview {
		// The payment is real; keep it as a placeholder order for staff rather than retrying forever.
		s.logger(ctx, "payment.order.invalid.error", map[string]any{
			"paymentRef": cmd.PaymentRef,
			"error":      err.Error(),
		})
		cmd.Items = placeholderItems(cmd.PaymentRef, cmd.AmountPaid)
		cmd.NeedsReview = true
		order, created, err = s.orders.RecordPaidOrder(ctx, cmd)
	}
	if errors.Is(err, ErrOrderInvalidInput) {
		result.Outcome = WebhookOutcomeRejected
		s.logger(ctx, "payment.order.rejected.error", map[string]any{
			"paymentRef": cmd.PaymentRef,
			"method":     string(cmd.PaymentMethod),
			"error":      err.Error(),
		})
		return nil
	}
	if err != nil {
		s.persistFailures.Add(ctx, 1)
		s.logger(ctx, "payment.order.persist.error", map[string]any{
			"paymentRef": cmd.PaymentRef,
			"method":     string(cmd.PaymentMethod),
			"error":      err.Error(),
		})
		return fmt.Errorf("%w: payment %s: %v", ErrPersistence, cmd.PaymentRef, err)
	}
	result.OrderID = order.ID
	if created {
		result.Outcome = WebhookOutcomeOrderCreated
	} else {
		result.Outcome = WebhookOutcomeDuplicate
	}
	return nil
}

// reconstructItems decodes the cart metadata. When it is missing or corrupt a single
// placeholder line carrying fallbackAmount is returned and the order is flagged for review.
func (s *paymentEventService) reconstructItems(ctx context.Context, ref string, metadata map[string]string, fallbackAmount int64) ([]OrderItem, bool) {
	lines, err := payments.DecodeCartMetadata(metadata)
	if err == nil {
		items := make([]OrderItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, OrderItem{
				ProductID: line.ProductID,
				Name:      line.Name,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
			})
		}
		return items, false
	}

	s.logger(ctx, "payment.metadata.rejected", map[string]any{
		"paymentRef": ref,
		"error":      err.Error(),
	})
	return placeholderItems(ref, fallbackAmount), true
}

// placeholderItems stands in for a cart that could not be reconstructed.
func placeholderItems(ref string, amount int64) []OrderItem {
	if amount < 0 {
		amount = 0
	}
	return []OrderItem{{
		ProductID: "unknown",
		Name:      "Order " + ref,
		UnitPrice: amount,
		Quantity:  1,
	}}
}

func (s *paymentEventService) currencyOr(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return s.currency
	}
	return currency
}
