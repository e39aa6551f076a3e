package stripe

import (
	"strings"

	"github.com/stripe/stripe-go/v75/webhook"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

// SignatureHeader carries the provider's timestamped HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

// Verifier authenticates webhook deliveries against the endpoint secret and
// turns them into typed domain events.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks signature against the exact bytes received. Nothing is
// decoded before the signature is accepted.
func (v *Verifier) Verify(payload []byte, signature string) (*domain.Event, error) {
	if v == nil || v.secret == "" {
		return nil, &domain.VerificationError{Reason: "webhook secret is not configured"}
	}
	if strings.TrimSpace(signature) == "" {
		return nil, &domain.VerificationError{Reason: "missing " + SignatureHeader + " header"}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &domain.VerificationError{Reason: "signature verification failed", Err: err}
	}

	return toDomainEvent(&event)
}
