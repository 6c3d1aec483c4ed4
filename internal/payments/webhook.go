package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Stripe event types handled by the storefront.
const (
	EventCheckoutSessionCompleted           = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceed = "checkout.session.async_payment_succeeded"
	EventPaymentIntentSucceeded             = "payment_intent.succeeded"
	EventPaymentIntentFailed                = "payment_intent.payment_failed"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrEventDecode is returned with an authenticated event whose object could not be decoded.
	ErrEventDecode = errors.New("payments: undecodable webhook object")
)

// Event is a verified gateway notification with its object decoded for the known types.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Session *SessionObject
	Intent  *IntentObject
}

// SessionObject is the subset of a checkout session the storefront reads.
type SessionObject struct {
	ID              string
	PaymentIntentID string
	PaymentStatus   string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress string
	AmountTotal     int64
	AmountSubtotal  int64
	Currency        string
	Metadata        map[string]string
}

// Paid reports whether the session's funds are confirmed.
func (s SessionObject) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

// IntentObject is the subset of a payment intent the storefront reads.
type IntentObject struct {
	ID                 string
	Amount             int64
	AmountReceived     int64
	Currency           string
	PaymentMethodTypes []string
	ReceiptEmail       string
	Metadata           map[string]string
	FailureCode        string
	FailureMessage     string
}

// CheckoutType reports which checkout branch created the intent, from its metadata tag.
func (i IntentObject) CheckoutType() string {
	return i.Metadata[MetaKeyCheckoutType]
}

// HasMethod reports whether the intent allows the given payment method type.
func (i IntentObject) HasMethod(method string) bool {
	for _, candidate := range i.PaymentMethodTypes {
		if strings.EqualFold(candidate, method) {
			return true
		}
	}
	return false
}

// WebhookVerifier authenticates and decodes gateway notifications. An authenticated event whose
// object cannot be decoded is returned alongside an error wrapping ErrEventDecode.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}

// StripeWebhookVerifier verifies Stripe-Signature headers with the endpoint signing secret.
type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeWebhookVerifier constructs a verifier. The secret is mandatory.
func NewStripeWebhookVerifier(secret string, tolerance time.Duration) (*StripeWebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("stripe webhook: signing secret is required")
	}
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeWebhookVerifier{secret: secret, tolerance: tolerance}, nil
}

// Verify checks the signature and decodes the event object.
func (v *StripeWebhookVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if v == nil {
		return Event{}, errors.New("stripe webhook: verifier is nil")
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return Event{}, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	raw, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event := Event{
		ID:      raw.ID,
		Type:    string(raw.Type),
		Created: time.Unix(raw.Created, 0).UTC(),
	}
	if raw.Data == nil {
		return event, nil
	}

	switch event.Type {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncPaymentSucceed:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return event, fmt.Errorf("%w: checkout session in %s: %v", ErrEventDecode, event.ID, err)
		}
		event.Session = sessionObject(&session)
	case EventPaymentIntentSucceeded, EventPaymentIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &intent); err != nil {
			return event, fmt.Errorf("%w: payment intent in %s: %v", ErrEventDecode, event.ID, err)
		}
		event.Intent = intentObject(&intent)
	}
	return event, nil
}

func sessionObject(s *stripe.CheckoutSession) *SessionObject {
	out := &SessionObject{
		ID:             s.ID,
		PaymentStatus:  string(s.PaymentStatus),
		CustomerEmail:  s.CustomerEmail,
		AmountTotal:    s.AmountTotal,
		AmountSubtotal: s.AmountSubtotal,
		Currency:       strings.ToUpper(string(s.Currency)),
		Metadata:       s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if details := s.CustomerDetails; details != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = details.Email
		}
		out.CustomerName = details.Name
		out.ShippingAddress = formatAddress(details.Address)
	}
	if shipping := s.ShippingDetails; shipping != nil {
		if shipping.Name != "" {
			out.CustomerName = shipping.Name
		}
		if addr := formatAddress(shipping.Address); addr != "" {
			out.ShippingAddress = addr
		}
	}
	return out
}

func intentObject(pi *stripe.PaymentIntent) *IntentObject {
	out := &IntentObject{
		ID:                 pi.ID,
		Amount:             pi.Amount,
		AmountReceived:     pi.AmountReceived,
		Currency:           strings.ToUpper(string(pi.Currency)),
		PaymentMethodTypes: pi.PaymentMethodTypes,
		ReceiptEmail:       pi.ReceiptEmail,
		Metadata:           pi.Metadata,
	}
	if failure := pi.LastPaymentError; failure != nil {
		out.FailureCode = string(failure.Code)
		out.FailureMessage = failure.Msg
	}
	return out
}

func formatAddress(a *stripe.Address) string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 6)
	for _, part := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
