package stripe

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

const testSecret = "whsec_test_secret"

func eventJSON(t *testing.T, id, kind string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        kind,
		"created":     1700000000,
		"api_version": "2020-08-27",
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func checkoutObject() map[string]interface{} {
	return map[string]interface{}{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"amount_total":   2000,
		"currency":       "usd",
		"customer":       "cus_1",
		"customer_email": "a@b.com",
		"subscription":   "sub_1",
		"metadata":       map[string]string{"price_id": "price_1PmMonthly"},
	}
}

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	payload := eventJSON(t, "evt_1", "checkout.session.completed", checkoutObject())

	event, err := NewVerifier(testSecret).Verify(payload, sign(payload, testSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, domain.EventCheckoutCompleted, event.Kind)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), event.Created)

	p, ok := event.Payload.(*domain.CheckoutCompleted)
	require.True(t, ok)
	assert.Equal(t, "cs_test_1", p.SessionID)
	assert.Equal(t, int64(2000), p.AmountTotal)
	assert.Equal(t, "a@b.com", p.CustomerEmail)
	assert.Equal(t, "cus_1", p.ExternalCustomerID)
	assert.Equal(t, "sub_1", p.SubscriptionID)
	assert.Equal(t, "price_1PmMonthly", p.Metadata["price_id"])
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload := eventJSON(t, "evt_1", "checkout.session.completed", checkoutObject())
	header := sign(payload, testSecret)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '

	_, err := NewVerifier(testSecret).Verify(tampered, header)
	require.Error(t, err)
	assert.True(t, domain.IsVerificationError(err))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := eventJSON(t, "evt_1", "charge.refunded", map[string]interface{}{"id": "ch_1"})

	_, err := NewVerifier(testSecret).Verify(payload, sign(payload, "whsec_other"))
	require.Error(t, err)
	assert.True(t, domain.IsVerificationError(err))
	assert.NotContains(t, err.Error(), testSecret)
}

func TestVerifyRejectsMissingSecretOrHeader(t *testing.T) {
	payload := eventJSON(t, "evt_1", "charge.refunded", map[string]interface{}{"id": "ch_1"})

	_, err := NewVerifier("").Verify(payload, sign(payload, testSecret))
	assert.True(t, domain.IsVerificationError(err))

	_, err = NewVerifier(testSecret).Verify(payload, "")
	assert.True(t, domain.IsVerificationError(err))

	_, err = NewVerifier(testSecret).Verify(payload, "t=1,v1=deadbeef")
	assert.True(t, domain.IsVerificationError(err))
}

func TestVerifyRejectsMalformedObject(t *testing.T) {
	payload := eventJSON(t, "evt_1", "charge.refunded", map[string]interface{}{"id": "ch_1", "amount_refunded": "lots"})

	_, err := NewVerifier(testSecret).Verify(payload, sign(payload, testSecret))
	require.Error(t, err)
	assert.True(t, domain.IsVerificationError(err))
	assert.Contains(t, err.Error(), "malformed payload")
}
