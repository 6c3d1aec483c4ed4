package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const sessionEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "created": 1735689600,
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_status": "paid",
    "amount_total": 40100,
    "amount_subtotal": 37600,
    "currency": "sgd",
    "customer_email": null,
    "payment_intent": "pi_1",
    "customer_details": {"email": "buyer@example.com", "name": "Ada Buyer", "address": {"country": "SG"}},
    "shipping_details": {"name": "Ada Buyer", "address": {"line1": "1 Orchard Rd", "city": "Singapore", "postal_code": "238800", "country": "SG"}},
    "metadata": {"cart_v": "1", "cart_n": "1", "cart_0": "melon|1|13800|Melon;"}
  }}
}`

func TestStripeWebhookVerifierDecodesSession(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testSecret, 0)
	require.NoError(t, err)

	payload := []byte(sessionEvent)
	event, err := verifier.Verify(payload, signPayload(payload, testSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, EventCheckoutSessionCompleted, event.Type)
	require.NotNil(t, event.Session)
	s := event.Session
	assert.True(t, s.Paid())
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "pi_1", s.PaymentIntentID)
	assert.Equal(t, "buyer@example.com", s.CustomerEmail)
	assert.Equal(t, "Ada Buyer", s.CustomerName)
	assert.Equal(t, "1 Orchard Rd, Singapore, 238800, SG", s.ShippingAddress)
	assert.Equal(t, int64(40100), s.AmountTotal)
	assert.Equal(t, "SGD", s.Currency)
	assert.Equal(t, "1", s.Metadata["cart_n"])
}

func TestStripeWebhookVerifierDecodesIntent(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testSecret, 0)
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{
		"id":"pi_9","object":"payment_intent","amount":37600,"currency":"sgd","payment_method_types":["paynow"],
		"metadata":{"customerEmail":"buyer@example.com"},"last_payment_error":{"code":"payment_intent_authentication_failure","message":"QR expired"}}}}`)
	event, err := verifier.Verify(payload, signPayload(payload, testSecret, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, event.Intent)
	assert.True(t, event.Intent.HasMethod("paynow"))
	assert.Equal(t, "QR expired", event.Intent.FailureMessage)
	assert.Equal(t, "payment_intent_authentication_failure", event.Intent.FailureCode)
	assert.Equal(t, "SGD", event.Intent.Currency)
}

func TestStripeWebhookVerifierReportsUndecodableObject(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testSecret, 0)
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{
		"id":"cs_bad","object":"checkout.session","amount_total":"not a number"}}}`)
	event, err := verifier.Verify(payload, signPayload(payload, testSecret, time.Now()))
	require.ErrorIs(t, err, ErrEventDecode)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, "evt_3", event.ID)
	assert.Equal(t, EventCheckoutSessionCompleted, event.Type)
	assert.Nil(t, event.Session)
}

func TestStripeWebhookVerifierRejectsBadSignatures(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testSecret, 0)
	require.NoError(t, err)
	payload := []byte(sessionEvent)

	_, err = verifier.Verify(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = verifier.Verify(payload, signPayload(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = verifier.Verify(payload, signPayload(payload, testSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	tampered := []byte(sessionEvent + " ")
	_, err = verifier.Verify(tampered, signPayload(payload, testSecret, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewStripeWebhookVerifierRequiresSecret(t *testing.T) {
	_, err := NewStripeWebhookVerifier("  ", 0)
	assert.Error(t, err)
}
