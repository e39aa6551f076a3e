package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

// billingReasonSubscriptionCreate marks the first invoice of a subscription.
// Its payment is already credited by the checkout completion.
const billingReasonSubscriptionCreate = "subscription_create"

// checkoutCompleted credits a settled session. An unpaid completion is
// credited by its async_payment_succeeded event instead.
func (r *Router) checkoutCompleted(ctx context.Context, event *domain.Event) error {
	p, err := payloadAs[*domain.CheckoutCompleted](event)
	if err != nil {
		return err
	}
	if !p.Settled() {
		r.logger.Info("checkout awaiting payment, not credited",
			zap.String("event_id", event.ID),
			zap.String("session_id", p.SessionID),
		)
		return nil
	}

	amount := p.AmountTotal
	if amount == 0 {
		amount = p.LineItemsTotal
	}

	plan := ""
	if price := checkoutPrice(p); price != "" {
		plan = r.catalog.Resolve(price)
	}

	acc, err := r.ledger.ApplyDelta(ctx, domain.DeltaInput{
		Identifier:         p.CustomerEmail,
		ExternalCustomerID: p.ExternalCustomerID,
		SubscriptionID:     p.SubscriptionID,
		PlanName:           plan,
		Name:               p.CustomerName,
		Amount:             amount,
	})
	if err != nil {
		return fmt.Errorf("checkout %s: %w", p.SessionID, err)
	}

	r.logger.Info("checkout credited",
		zap.String("event_id", event.ID),
		zap.String("account_id", acc.ID),
		zap.Int64("amount", amount),
		zap.String("plan", acc.PlanName),
	)
	return nil
}

func checkoutPrice(p *domain.CheckoutCompleted) string {
	for _, id := range p.PriceIDs {
		if id != "" {
			return id
		}
	}
	return p.Metadata["price_id"]
}

func (r *Router) invoicePaid(ctx context.Context, event *domain.Event) error {
	p, err := payloadAs[*domain.InvoicePaid](event)
	if err != nil {
		return err
	}

	plan := ""
	if p.PriceID != "" {
		plan = r.catalog.Resolve(p.PriceID)
	}

	if p.BillingReason == billingReasonSubscriptionCreate || p.AmountPaid == 0 {
		_, _, err := r.ledger.SetPlanAndStatus(ctx, p.ExternalCustomerID, plan, domain.AccountStatusActive, p.SubscriptionID)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", p.InvoiceID, err)
		}
		return nil
	}

	acc, err := r.ledger.ApplyDelta(ctx, domain.DeltaInput{
		Identifier:         p.CustomerEmail,
		ExternalCustomerID: p.ExternalCustomerID,
		SubscriptionID:     p.SubscriptionID,
		PlanName:           plan,
		Amount:             p.AmountPaid,
	})
	if err != nil {
		return fmt.Errorf("invoice %s: %w", p.InvoiceID, err)
	}

	if acc.Status != domain.AccountStatusActive && acc.ExternalCustomerID.Valid {
		if _, err := r.ledger.SetStatus(ctx, acc.ExternalCustomerID.String, domain.AccountStatusActive); err != nil {
			return fmt.Errorf("invoice %s: %w", p.InvoiceID, err)
		}
	}

	r.logger.Info("invoice credited",
		zap.String("event_id", event.ID),
		zap.String("account_id", acc.ID),
		zap.Int64("amount", p.AmountPaid),
	)
	return nil
}

func (r *Router) invoicePaymentFailed(ctx context.Context, event *domain.Event) error {
	p, err := payloadAs[*domain.InvoicePaymentFailed](event)
	if err != nil {
		return err
	}

	acc, err := r.ledger.SetStatus(ctx, p.ExternalCustomerID, domain.AccountStatusUnpaid)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", p.InvoiceID, err)
	}

	r.logger.Info("account flagged unpaid",
		zap.String("event_id", event.ID),
		zap.String("account_id", acc.ID),
		zap.Int64("amount_due", p.AmountDue),
		zap.Int64("attempt_count", p.AttemptCount),
	)
	return nil
}

// chargeRefunded debits an existing account. Refunds never provision.
func (r *Router) chargeRefunded(ctx context.Context, event *domain.Event) error {
	p, err := payloadAs[*domain.ChargeRefunded](event)
	if err != nil {
		return err
	}

	if _, err := r.repo.FindByExternalCustomerID(ctx, p.ExternalCustomerID); err != nil {
		return fmt.Errorf("refund %s: %w", p.ChargeID, err)
	}

	acc, err := r.ledger.ApplyDelta(ctx, domain.DeltaInput{
		ExternalCustomerID: p.ExternalCustomerID,
		Amount:             -p.AmountRefunded,
	})
	if err != nil {
		return fmt.Errorf("refund %s: %w", p.ChargeID, err)
	}

	r.logger.Info("refund debited",
		zap.String("event_id", event.ID),
		zap.String("account_id", acc.ID),
		zap.Int64("amount", p.AmountRefunded),
	)
	return nil
}

// subscriptionChanged applies created and updated events. A created
// subscription may take over the account's link; updates only touch the
// subscription the account holds.
func (r *Router) subscriptionChanged(ctx context.Context, event *domain.Event) error {
	p, err := payloadAs[*domain.SubscriptionChanged](event)
	if err != nil {
		return err
	}

	plan := ""
	if p.PriceID != "" {
		plan = r.catalog.Resolve(p.PriceID)
	}
	status := domain.SubscriptionAccountStatus(p.Status)

	apply := r.ledger.SetPlanAndStatus
	if event.Kind == domain.EventSubscriptionCreated {
		apply = r.ledger.SwitchSubscription
	}
	acc, applied, err := apply(ctx, p.ExternalCustomerID, plan, status, p.SubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", p.SubscriptionID, err)
	}
	if !applied {
		r.logger.Info("ignoring event for a subscription the account does not hold",
			zap.String("event_id", event.ID),
			zap.String("account_id", acc.ID),
			zap.String("subscription_id", p.SubscriptionID),
			zap.String("held_subscription_id", acc.SubscriptionID.String),
		)
		return nil
	}

	r.logger.Info("subscription applied",
		zap.String("event_id", event.ID),
		zap.String("account_id", acc.ID),
		zap.String("plan", acc.PlanName),
		zap.String("status", string(acc.Status)),
	)
	return nil
}

func (r *Router) subscriptionDeleted(ctx context.Context, event *domain.Event) error {
	p, err := payloadAs[*domain.SubscriptionDeleted](event)
	if err != nil {
		return err
	}

	acc, applied, err := r.ledger.EndSubscription(ctx, p.ExternalCustomerID, p.SubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", p.SubscriptionID, err)
	}
	if !applied {
		r.logger.Info("ignoring deletion of a subscription the account no longer holds",
			zap.String("event_id", event.ID),
			zap.String("account_id", acc.ID),
			zap.String("subscription_id", p.SubscriptionID),
		)
		return nil
	}

	r.logger.Info("subscription ended",
		zap.String("event_id", event.ID),
		zap.String("account_id", acc.ID),
	)
	return nil
}
