package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
)

// Gateway payment method types used by the two checkout branches.
const (
	CardMethodType   = "card"
	PushQRMethodType = "paynow"
)

// LineItem is one hosted-session line in minor units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
	Image      string
}

// ShippingOption is a request-time shipping tier shown on the hosted page.
type ShippingOption struct {
	DisplayName string
	Amount      int64
	MinDays     int64
	MaxDays     int64
}

// SessionRequest captures the payload for a hosted checkout session.
type SessionRequest struct {
	Currency         string
	Items            []LineItem
	SuccessURL       string
	CancelURL        string
	CustomerEmail    string
	AllowedCountries []string
	ShippingOptions  []ShippingOption
	Metadata         map[string]string
	IdempotencyKey   string
}

// Session is the hosted session handle returned to the storefront.
type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
}

// IntentRequest captures the payload for a confirmable payment intent.
type IntentRequest struct {
	Amount             int64
	Currency           string
	PaymentMethodTypes []string
	ReceiptEmail       string
	Metadata           map[string]string
	IdempotencyKey     string
}

// Intent is the payment intent handle returned to the storefront.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Gateway is the narrow view of the payment processor used by checkout.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// ErrGatewayTimeout is reported when a gateway call exceeds its deadline.
var ErrGatewayTimeout = errors.New("payments: gateway timeout")

// Error carries the upstream failure details of a gateway call.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Type       string
	Message    string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != "" {
		return fmt.Sprintf("payments: %s: %s (status %d, code %s)", e.Op, e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("payments: %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapStripeError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	out := &Error{Op: op, Message: err.Error(), Err: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		out.StatusCode = stripeErr.HTTPStatusCode
		out.Code = string(stripeErr.Code)
		out.Type = string(stripeErr.Type)
		out.Message = stripeErr.Msg
		out.RequestID = stripeErr.RequestID
	}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		out.Err = fmt.Errorf("%w: %w", ErrGatewayTimeout, err)
		out.Code = "timeout"
	}
	return out
}
