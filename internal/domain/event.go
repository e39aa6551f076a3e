package domain

import (
	"fmt"
	"time"
)

type EventKind string

const (
	EventCheckoutCompleted    EventKind = "checkout.session.completed"
	EventCheckoutAsyncPaid    EventKind = "checkout.session.async_payment_succeeded"
	EventInvoicePaid          EventKind = "invoice.payment_succeeded"
	EventInvoicePaidAlias     EventKind = "invoice.paid"
	EventInvoicePaymentFailed EventKind = "invoice.payment_failed"
	EventChargeRefunded       EventKind = "charge.refunded"
	EventSubscriptionCreated  EventKind = "customer.subscription.created"
	EventSubscriptionUpdated  EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted  EventKind = "customer.subscription.deleted"
)

// Event is a verified provider event. Payload holds one of the variant
// structs in this file, selected by Kind.
type Event struct {
	ID      string
	Kind    EventKind
	Created time.Time
	Payload EventPayload
}

type EventPayload interface {
	Validate() error
}

type CheckoutCompleted struct {
	SessionID          string
	CustomerEmail      string
	CustomerName       string
	ExternalCustomerID string
	SubscriptionID     string
	AmountTotal        int64
	Currency           string
	PaymentStatus      string // "paid", "unpaid" or "no_payment_required"
	PriceIDs           []string
	LineItemsTotal     int64
	Metadata           map[string]string
}

// Settled reports whether the session's money has arrived. Sessions paid
// with delayed methods complete as unpaid and settle with a later
// async_payment_succeeded event. An absent status counts as settled.
func (p *CheckoutCompleted) Settled() bool {
	return p.PaymentStatus != "unpaid"
}

func (p *CheckoutCompleted) Validate() error {
	if p.SessionID == "" {
		return fmt.Errorf("%w: checkout session id is empty", ErrInvalidPayload)
	}
	if p.CustomerEmail == "" && p.ExternalCustomerID == "" {
		return fmt.Errorf("%w: checkout session %s has neither customer email nor customer", ErrInvalidPayload, p.SessionID)
	}
	return nil
}

type InvoicePaid struct {
	InvoiceID          string
	ExternalCustomerID string
	CustomerEmail      string
	SubscriptionID     string
	AmountPaid         int64
	BillingReason      string
	PriceID            string
}

func (p *InvoicePaid) Validate() error {
	if p.ExternalCustomerID == "" {
		return fmt.Errorf("%w: invoice %s has no customer", ErrInvalidPayload, p.InvoiceID)
	}
	return nil
}

type InvoicePaymentFailed struct {
	InvoiceID          string
	ExternalCustomerID string
	AmountDue          int64
	AttemptCount       int64
}

func (p *InvoicePaymentFailed) Validate() error {
	if p.ExternalCustomerID == "" {
		return fmt.Errorf("%w: invoice %s has no customer", ErrInvalidPayload, p.InvoiceID)
	}
	return nil
}

// ChargeRefunded carries one refund. AmountRefunded is what this event
// refunded; TotalRefunded is the charge's running total.
type ChargeRefunded struct {
	ChargeID           string
	ExternalCustomerID string
	AmountRefunded     int64
	TotalRefunded      int64
}

func (p *ChargeRefunded) Validate() error {
	if p.ExternalCustomerID == "" {
		return fmt.Errorf("%w: charge %s has no customer", ErrInvalidPayload, p.ChargeID)
	}
	if p.AmountRefunded <= 0 {
		return fmt.Errorf("%w: charge %s refunded amount %d", ErrInvalidPayload, p.ChargeID, p.AmountRefunded)
	}
	return nil
}

// SubscriptionChanged covers both created and updated subscription events.
type SubscriptionChanged struct {
	SubscriptionID     string
	ExternalCustomerID string
	Status             string // Provider status, e.g. "active", "past_due"
	PriceID            string
}

func (p *SubscriptionChanged) Validate() error {
	if p.ExternalCustomerID == "" {
		return fmt.Errorf("%w: subscription %s has no customer", ErrInvalidPayload, p.SubscriptionID)
	}
	if p.SubscriptionID == "" {
		return fmt.Errorf("%w: subscription id is empty", ErrInvalidPayload)
	}
	return nil
}

type SubscriptionDeleted struct {
	SubscriptionID     string
	ExternalCustomerID string
}

func (p *SubscriptionDeleted) Validate() error {
	if p.ExternalCustomerID == "" {
		return fmt.Errorf("%w: subscription %s has no customer", ErrInvalidPayload, p.SubscriptionID)
	}
	return nil
}

// Unhandled is the payload of any kind the router does not act on.
type Unhandled struct {
	Type string
}

func (p *Unhandled) Validate() error { return nil }

// SubscriptionAccountStatus maps a provider subscription status onto the
// account status enum.
func SubscriptionAccountStatus(providerStatus string) AccountStatus {
	switch providerStatus {
	case "active", "trialing":
		return AccountStatusActive
	case "past_due", "unpaid", "incomplete":
		return AccountStatusUnpaid
	default:
		return AccountStatusInactive
	}
}
