package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// MetadataPriceID is stamped on sessions we create so the completion event
// can be resolved to a plan without listing line items.
const MetadataPriceID = "price_id"

var ErrMissingPrice = errors.New("price id is required")

// StripeConfig holds the API key for outbound calls and the endpoint secret
// the Verifier checks inbound signatures with.
type StripeConfig struct {
	AppKey     string
	WebhookKey string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type CreateCheckoutSessionInput struct {
	PriceID       string
	CustomerEmail string
}

// StripeService is the outbound half of the integration: hosted checkout
// and the line-item lookup used when a completion event arrives without
// expanded items.
type StripeService interface {
	CreateCheckoutSession(ctx context.Context, input *CreateCheckoutSessionInput) (*CheckoutSession, error)
	ListLineItemPriceIDs(ctx context.Context, sessionID string) ([]string, error)
}

type stripeImpl struct {
	api    *client.API
	config *StripeConfig
}

// NewStripe builds a client bound to config.AppKey. backends may be nil to
// use the live API.
func NewStripe(config *StripeConfig, backends *stripe.Backends) StripeService {
	api := &client.API{}
	api.Init(config.AppKey, backends)
	return &stripeImpl{api: api, config: config}
}

func (s *stripeImpl) CreateCheckoutSession(ctx context.Context, input *CreateCheckoutSessionInput) (*CheckoutSession, error) {
	if input == nil || strings.TrimSpace(input.PriceID) == "" {
		return nil, ErrMissingPrice
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(input.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
	}
	if input.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(input.CustomerEmail)
	}
	params.AddMetadata(MetadataPriceID, input.PriceID)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeImpl) ListLineItemPriceIDs(ctx context.Context, sessionID string) ([]string, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx

	iter := s.api.CheckoutSessions.ListLineItems(params)

	var result []string
	for iter.Next() {
		li := iter.LineItem()
		if li.Price != nil && li.Price.ID != "" {
			result = append(result, li.Price.ID)
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list line items for session %s: %w", sessionID, err)
	}

	return result, nil
}
