package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/money"
	"github.com/favianyip/shunharvest/internal/payments"
)

const (
	// ShippingStandard is the free tier.
	ShippingStandard = "standard"
	// ShippingExpress is the paid faster tier.
	ShippingExpress = "express"

	defaultExpressShippingMinor = 2500
)

// DefaultShippingCountries are offered on the hosted page when none are configured.
var DefaultShippingCountries = []string{"US", "CA", "SG", "JP", "GB", "AU"}

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates checkout was attempted with no items.
	ErrCheckoutEmptyCart = fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	// ErrCheckoutInvalidEmail indicates a missing or malformed customer email.
	ErrCheckoutInvalidEmail = fmt.Errorf("%w: invalid customer email", ErrCheckoutInvalidInput)
	// ErrCheckoutMethodDisabled indicates the payment method is switched off in settings.
	ErrCheckoutMethodDisabled = fmt.Errorf("%w: payment method disabled", ErrCheckoutInvalidInput)
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutGateway indicates the payment gateway rejected or failed the request.
	ErrCheckoutGateway = errors.New("checkout: payment gateway error")
)

// GatewayError reports an upstream gateway failure with its status and code.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Err        error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("checkout: payment gateway error: %s", e.Message)
}

// Is lets errors.Is match ErrCheckoutGateway.
func (e *GatewayError) Is(target error) bool {
	return target == ErrCheckoutGateway
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CheckoutCommand is the checkout request after HTTP decoding.
type CheckoutCommand struct {
	Items          []CheckoutItem
	CustomerEmail  string
	PaymentMethod  PaymentMethod
	Shipping       string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutResult is the client-usable handle. Card results carry SessionID and URL;
// push-QR results carry ClientSecret and PaymentIntentID.
type CheckoutResult struct {
	Type            PaymentMethod
	SessionID       string
	URL             string
	ClientSecret    string
	PaymentIntentID string
	Amount          int64
	Currency        string
}

type paymentSettingsReader interface {
	PaymentSettings(ctx context.Context) (PaymentSettings, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Gateway              payments.Gateway
	Settings             paymentSettingsReader
	Pricer               CartPricer
	Currency             string
	ShippingCountries    []string
	ExpressShippingMinor int64
	PushQRMethod         string
	Logger               func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	gateway         payments.Gateway
	settings        paymentSettingsReader
	pricer          CartPricer
	currency        string
	countries       []string
	expressShipping int64
	pushQRMethod    string
	logger          func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
// Pricer is optional; when set, submitted prices are replaced by catalog prices.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("checkout service: payment settings are required")
	}
	currency, err := money.NormalizeCurrency(deps.Currency)
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	countries := deps.ShippingCountries
	if len(countries) == 0 {
		countries = DefaultShippingCountries
	}
	express := deps.ExpressShippingMinor
	if express <= 0 {
		express = defaultExpressShippingMinor
	}
	method := strings.TrimSpace(deps.PushQRMethod)
	if method == "" {
		method = payments.PushQRMethodType
	}

	return &checkoutService{
		gateway:         deps.Gateway,
		settings:        deps.Settings,
		pricer:          deps.Pricer,
		currency:        currency,
		countries:       append([]string(nil), countries...),
		expressShipping: express,
		pushQRMethod:    method,
		logger:          logger,
	}, nil
}

type pricedLine struct {
	item      CheckoutItem
	unitMinor int64
}

// CreateCheckout validates the cart, computes the total in minor units and creates either a
// hosted session or a push-QR payment intent. Nothing is persisted here; orders are recorded
// when the gateway confirms payment.
func (s *checkoutService) CreateCheckout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil || s.gateway == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if len(cmd.Items) == 0 {
		return CheckoutResult{}, ErrCheckoutEmptyCart
	}
	if !cmd.PaymentMethod.Valid() {
		return CheckoutResult{}, fmt.Errorf("%w: unsupported payment method %q", ErrCheckoutInvalidInput, cmd.PaymentMethod)
	}
	email, err := normaliseCheckoutEmail(cmd.CustomerEmail, cmd.PaymentMethod == domain.PaymentMethodPushQR)
	if err != nil {
		return CheckoutResult{}, err
	}
	shipping := strings.ToLower(strings.TrimSpace(cmd.Shipping))
	if shipping == "" {
		shipping = ShippingStandard
	}
	if shipping != ShippingStandard && shipping != ShippingExpress {
		return CheckoutResult{}, fmt.Errorf("%w: unknown shipping tier %q", ErrCheckoutInvalidInput, cmd.Shipping)
	}

	settings, err := s.settings.PaymentSettings(ctx)
	if err != nil {
		s.logger(ctx, "checkout.settings.error", map[string]any{"error": err})
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if !settings.MethodEnabled(cmd.PaymentMethod) {
		return CheckoutResult{}, ErrCheckoutMethodDisabled
	}

	// Submitted lines are validated as sent, before repricing merges them.
	if _, _, err := s.priceLines(cmd.Items); err != nil {
		return CheckoutResult{}, err
	}
	items := cmd.Items
	if s.pricer != nil {
		items, err = s.pricer.Reprice(ctx, items)
		if err != nil {
			return CheckoutResult{}, err
		}
	}

	lines, total, err := s.priceLines(items)
	if err != nil {
		return CheckoutResult{}, err
	}

	metaLines := make([]payments.CartLine, 0, len(lines))
	for _, line := range lines {
		metaLines = append(metaLines, payments.CartLine{
			ProductID: line.item.ProductID,
			Name:      line.item.Name,
			Quantity:  line.item.Quantity,
			UnitPrice: line.unitMinor,
		})
	}
	metadata, err := payments.EncodeCartMetadata(metaLines, email)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	// The session copies its metadata onto its payment intent; the tag tells the two apart.
	metadata[payments.MetaKeyCheckoutType] = string(cmd.PaymentMethod)

	switch cmd.PaymentMethod {
	case domain.PaymentMethodCard:
		return s.createCardSession(ctx, cmd, lines, total, email, shipping, metadata)
	default:
		return s.createPushQRIntent(ctx, cmd, total, email, metadata)
	}
}

func (s *checkoutService) priceLines(items []CheckoutItem) ([]pricedLine, int64, error) {
	lines := make([]pricedLine, 0, len(items))
	var total int64
	for i, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Name = strings.TrimSpace(item.Name)
		if item.ProductID == "" {
			return nil, 0, fmt.Errorf("%w: item %d has no id", ErrCheckoutInvalidInput, i)
		}
		if item.Name == "" {
			item.Name = item.ProductID
		}
		if item.Quantity < 1 {
			return nil, 0, fmt.Errorf("%w: item %s quantity must be at least 1", ErrCheckoutInvalidInput, item.ProductID)
		}
		unit, err := money.ToMinor(item.UnitPrice, s.currency)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: item %s price: %v", ErrCheckoutInvalidInput, item.ProductID, err)
		}
		lines = append(lines, pricedLine{item: item, unitMinor: unit})
		total += unit * int64(item.Quantity)
	}
	return lines, total, nil
}

func (s *checkoutService) shippingOptions(preferred string) []payments.ShippingOption {
	standard := payments.ShippingOption{DisplayName: "Free shipping", Amount: 0, MinDays: 5, MaxDays: 7}
	express := payments.ShippingOption{DisplayName: "Express shipping", Amount: s.expressShipping, MinDays: 1, MaxDays: 3}
	if preferred == ShippingExpress {
		return []payments.ShippingOption{express, standard}
	}
	return []payments.ShippingOption{standard, express}
}

func (s *checkoutService) createCardSession(ctx context.Context, cmd CheckoutCommand, lines []pricedLine, total int64, email, shipping string, metadata map[string]string) (CheckoutResult, error) {
	successURL := strings.TrimSpace(cmd.SuccessURL)
	cancelURL := strings.TrimSpace(cmd.CancelURL)
	if successURL == "" || cancelURL == "" {
		return CheckoutResult{}, fmt.Errorf("%w: success and cancel urls are required", ErrCheckoutInvalidInput)
	}

	items := make([]payments.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, payments.LineItem{
			Name:       line.item.Name,
			UnitAmount: line.unitMinor,
			Quantity:   int64(line.item.Quantity),
			Image:      line.item.Image,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
		Currency:         s.currency,
		Items:            items,
		SuccessURL:       successURL,
		CancelURL:        cancelURL,
		CustomerEmail:    email,
		AllowedCountries: s.countries,
		ShippingOptions:  s.shippingOptions(shipping),
		Metadata:         metadata,
		IdempotencyKey:   cmd.IdempotencyKey,
	})
	if err != nil {
		return CheckoutResult{}, s.gatewayFailure(ctx, cmd.PaymentMethod, err)
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId": session.ID,
		"amount":    total,
		"currency":  s.currency,
		"lines":     len(lines),
	})
	return CheckoutResult{
		Type:      domain.PaymentMethodCard,
		SessionID: session.ID,
		URL:       session.URL,
		Amount:    total,
		Currency:  s.currency,
	}, nil
}

func (s *checkoutService) createPushQRIntent(ctx context.Context, cmd CheckoutCommand, total int64, email string, metadata map[string]string) (CheckoutResult, error) {
	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.IntentRequest{
		Amount:             total,
		Currency:           s.currency,
		PaymentMethodTypes: []string{s.pushQRMethod},
		ReceiptEmail:       email,
		Metadata:           metadata,
		IdempotencyKey:     cmd.IdempotencyKey,
	})
	if err != nil {
		return CheckoutResult{}, s.gatewayFailure(ctx, cmd.PaymentMethod, err)
	}

	s.logger(ctx, "checkout.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        total,
		"currency":      s.currency,
	})
	return CheckoutResult{
		Type:            domain.PaymentMethodPushQR,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          total,
		Currency:        s.currency,
	}, nil
}

func (s *checkoutService) gatewayFailure(ctx context.Context, method PaymentMethod, err error) error {
	out := &GatewayError{Message: err.Error(), Err: err}
	var upstream *payments.Error
	if errors.As(err, &upstream) {
		out.StatusCode = upstream.StatusCode
		out.Code = upstream.Code
		out.Message = upstream.Message
		out.RequestID = upstream.RequestID
	}
	s.logger(ctx, "checkout.gateway.error", map[string]any{
		"paymentMethod":  string(method),
		"upstreamStatus": out.StatusCode,
		"upstreamCode":   out.Code,
		"requestId":      out.RequestID,
		"error":          err,
	})
	return out
}

func normaliseCheckoutEmail(raw string, required bool) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		if required {
			return "", ErrCheckoutInvalidEmail
		}
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrCheckoutInvalidEmail
	}
	return email, nil
}
