package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	result *stripe.CheckoutSession
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	return f.result, f.err
}

type fakeIntents struct {
	params *stripe.PaymentIntentParams
	result *stripe.PaymentIntent
	err    error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = params
	return f.result, f.err
}

func newTestGateway(t *testing.T, sessions *fakeSessions, intents *fakeIntents) *StripeGateway {
	t.Helper()
	gw, err := NewStripeGateway(StripeGatewayConfig{Clients: &stripeClients{sessions: sessions, intents: intents}})
	require.NoError(t, err)
	return gw
}

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	_, err := NewStripeGateway(StripeGatewayConfig{})
	assert.Error(t, err)
}

func TestCreateCheckoutSessionBuildsParams(t *testing.T) {
	sessions := &fakeSessions{result: &stripe.CheckoutSession{
		ID:            "cs_test_1",
		URL:           "https://checkout.stripe.test/cs_test_1",
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
	}}
	gw := newTestGateway(t, sessions, &fakeIntents{})

	session, err := gw.CreateCheckoutSession(context.Background(), SessionRequest{
		Currency:         "SGD",
		Items:            []LineItem{{Name: "Crown Melon", UnitAmount: 13800, Quantity: 1}, {Name: "Shine Muscat", UnitAmount: 11900, Quantity: 2}},
		SuccessURL:       "https://shop.test/checkout/success",
		CancelURL:        "https://shop.test/cart",
		CustomerEmail:    "buyer@example.com",
		AllowedCountries: []string{"SG", "JP"},
		ShippingOptions:  []ShippingOption{{DisplayName: "Free shipping", MinDays: 5, MaxDays: 7}},
		Metadata:         map[string]string{"cart_v": "1"},
		IdempotencyKey:   "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1", PaymentIntentID: "pi_1"}, session)

	params := sessions.params
	require.NotNil(t, params)
	assert.Equal(t, "payment", *params.Mode)
	require.Len(t, params.PaymentMethodTypes, 1)
	assert.Equal(t, "card", *params.PaymentMethodTypes[0])
	assert.Equal(t, "buyer@example.com", *params.CustomerEmail)
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, int64(11900), *params.LineItems[1].PriceData.UnitAmount)
	assert.Equal(t, int64(2), *params.LineItems[1].Quantity)
	assert.Equal(t, "sgd", *params.LineItems[0].PriceData.Currency)
	require.NotNil(t, params.ShippingAddressCollection)
	assert.Len(t, params.ShippingAddressCollection.AllowedCountries, 2)
	require.Len(t, params.ShippingOptions, 1)
	assert.Equal(t, "1", params.PaymentIntentData.Metadata["cart_v"])
	require.NotNil(t, params.IdempotencyKey)
	assert.Equal(t, "idem-1", *params.IdempotencyKey)
	_, hasDeadline := params.Context.Deadline()
	assert.True(t, hasDeadline)
}

func TestCreatePaymentIntentDefaultsToPushQR(t *testing.T) {
	intents := &fakeIntents{result: &stripe.PaymentIntent{ID: "pi_2", ClientSecret: "pi_2_secret", Amount: 37600}}
	gw := newTestGateway(t, &fakeSessions{}, intents)

	intent, err := gw.CreatePaymentIntent(context.Background(), IntentRequest{Amount: 37600, Currency: "SGD", Metadata: map[string]string{"customerEmail": "a@b.co"}})
	require.NoError(t, err)
	assert.Equal(t, "pi_2_secret", intent.ClientSecret)
	assert.Equal(t, int64(37600), *intents.params.Amount)
	require.Len(t, intents.params.PaymentMethodTypes, 1)
	assert.Equal(t, PushQRMethodType, *intents.params.PaymentMethodTypes[0])
	assert.Equal(t, "a@b.co", intents.params.Metadata["customerEmail"])
}

func TestGatewayErrorCarriesUpstreamDetails(t *testing.T) {
	intents := &fakeIntents{err: &stripe.Error{
		HTTPStatusCode: http.StatusPaymentRequired,
		Code:           stripe.ErrorCodeAmountTooSmall,
		Msg:            "Amount must be at least 50 cents",
		RequestID:      "req_123",
	}}
	gw := newTestGateway(t, &fakeSessions{}, intents)

	_, err := gw.CreatePaymentIntent(context.Background(), IntentRequest{Amount: 1, Currency: "SGD"})
	require.Error(t, err)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusPaymentRequired, gwErr.StatusCode)
	assert.Equal(t, "amount_too_small", gwErr.Code)
	assert.Equal(t, "req_123", gwErr.RequestID)
}
