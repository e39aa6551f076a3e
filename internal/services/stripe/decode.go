package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v75"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

// DecodeEvent parses an event body without checking its signature. It is
// meant for bytes that were already verified at ingress, such as the
// payload handed to the reconciliation workflow.
func DecodeEvent(raw []byte) (*domain.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, &domain.VerificationError{Reason: "malformed payload", Err: err}
	}
	return toDomainEvent(&event)
}

func toDomainEvent(event *stripe.Event) (*domain.Event, error) {
	if event.ID == "" {
		return nil, &domain.VerificationError{Reason: "malformed payload: event id is empty"}
	}

	out := &domain.Event{
		ID:      event.ID,
		Kind:    domain.EventKind(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}

	payload, err := decodePayload(out.Kind, event.Data)
	if err != nil {
		return nil, &domain.VerificationError{
			Reason: fmt.Sprintf("malformed payload for %s", out.Kind),
			Err:    err,
		}
	}
	out.Payload = payload
	return out, nil
}

func decodePayload(kind domain.EventKind, data *stripe.EventData) (domain.EventPayload, error) {
	var raw json.RawMessage
	if data != nil {
		raw = data.Raw
	}

	switch kind {
	case domain.EventCheckoutCompleted, domain.EventCheckoutAsyncPaid:
		var s stripe.CheckoutSession
		if err := unmarshalObject(raw, &s); err != nil {
			return nil, err
		}
		return checkoutCompleted(&s), nil

	case domain.EventInvoicePaid, domain.EventInvoicePaidAlias:
		var inv stripe.Invoice
		if err := unmarshalObject(raw, &inv); err != nil {
			return nil, err
		}
		return &domain.InvoicePaid{
			InvoiceID:          inv.ID,
			ExternalCustomerID: customerID(inv.Customer),
			CustomerEmail:      inv.CustomerEmail,
			SubscriptionID:     subscriptionID(inv.Subscription),
			AmountPaid:         inv.AmountPaid,
			BillingReason:      string(inv.BillingReason),
			PriceID:            firstInvoicePrice(inv.Lines),
		}, nil

	case domain.EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := unmarshalObject(raw, &inv); err != nil {
			return nil, err
		}
		return &domain.InvoicePaymentFailed{
			InvoiceID:          inv.ID,
			ExternalCustomerID: customerID(inv.Customer),
			AmountDue:          inv.AmountDue,
			AttemptCount:       inv.AttemptCount,
		}, nil

	case domain.EventChargeRefunded:
		var ch stripe.Charge
		if err := unmarshalObject(raw, &ch); err != nil {
			return nil, err
		}
		return &domain.ChargeRefunded{
			ChargeID:           ch.ID,
			ExternalCustomerID: customerID(ch.Customer),
			AmountRefunded:     refundedSince(ch.AmountRefunded, data),
			TotalRefunded:      ch.AmountRefunded,
		}, nil

	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := unmarshalObject(raw, &sub); err != nil {
			return nil, err
		}
		return &domain.SubscriptionChanged{
			SubscriptionID:     sub.ID,
			ExternalCustomerID: customerID(sub.Customer),
			Status:             string(sub.Status),
			PriceID:            firstSubscriptionPrice(sub.Items),
		}, nil

	case domain.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := unmarshalObject(raw, &sub); err != nil {
			return nil, err
		}
		return &domain.SubscriptionDeleted{
			SubscriptionID:     sub.ID,
			ExternalCustomerID: customerID(sub.Customer),
		}, nil

	default:
		return &domain.Unhandled{Type: string(kind)}, nil
	}
}

func unmarshalObject(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("event has no data object")
	}
	return json.Unmarshal(raw, v)
}

// refundedSince is the part of total refunded by this event. Stripe reports
// the charge's cumulative amount_refunded and the prior total under
// previous_attributes; without a prior total the whole amount is new.
func refundedSince(total int64, data *stripe.EventData) int64 {
	if data == nil {
		return total
	}
	prev, ok := data.PreviousAttributes["amount_refunded"].(float64)
	if !ok || int64(prev) > total {
		return total
	}
	return total - int64(prev)
}

func checkoutCompleted(s *stripe.CheckoutSession) *domain.CheckoutCompleted {
	out := &domain.CheckoutCompleted{
		SessionID:          s.ID,
		CustomerEmail:      s.CustomerEmail,
		ExternalCustomerID: customerID(s.Customer),
		SubscriptionID:     subscriptionID(s.Subscription),
		AmountTotal:        s.AmountTotal,
		Currency:           string(s.Currency),
		PaymentStatus:      string(s.PaymentStatus),
		Metadata:           s.Metadata,
	}
	if d := s.CustomerDetails; d != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = d.Email
		}
		out.CustomerName = d.Name
	}
	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			if li == nil {
				continue
			}
			out.LineItemsTotal += li.AmountTotal
			if li.Price != nil && li.Price.ID != "" {
				out.PriceIDs = append(out.PriceIDs, li.Price.ID)
			}
		}
	}
	return out
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func firstInvoicePrice(lines *stripe.InvoiceLineItemList) string {
	if lines == nil {
		return ""
	}
	for _, line := range lines.Data {
		if line != nil && line.Price != nil && line.Price.ID != "" {
			return line.Price.ID
		}
	}
	return ""
}

func firstSubscriptionPrice(items *stripe.SubscriptionItemList) string {
	if items == nil {
		return ""
	}
	for _, item := range items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}
