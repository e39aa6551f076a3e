package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/plans"
	"github.com/GalaDe/payments-webhooks/internal/services/ledger"
	stripesvc "github.com/GalaDe/payments-webhooks/internal/services/stripe"
	"github.com/GalaDe/payments-webhooks/internal/storage/memory"
)

var catalog = plans.NewCatalog(map[string]string{
	"price_1PmMonthly": "pro_m",
	"price_1PyYearly":  "pro_y",
})

type fakeLister struct {
	ids   []string
	err   error
	calls int32
}

func (f *fakeLister) ListLineItemPriceIDs(ctx context.Context, sessionID string) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.ids, f.err
}

// conflictingRepo fails the first n conditional updates as if another
// writer had won the race.
type conflictingRepo struct {
	*memory.Store
	remaining int32
}

func (c *conflictingRepo) UpdateIfVersion(ctx context.Context, acc *domain.Account) error {
	if atomic.AddInt32(&c.remaining, -1) >= 0 {
		return fmt.Errorf("update: %w", domain.ErrConcurrentUpdate)
	}
	return c.Store.UpdateIfVersion(ctx, acc)
}

type blockingTransactor struct{}

func (blockingTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	store  *memory.Store
	ledger *ledger.Ledger
	router *Router
}

func newFixture(t *testing.T, lister LineItemLister) *fixture {
	t.Helper()
	store := memory.New()
	l := ledger.New(store, zap.NewNop())
	return &fixture{
		store:  store,
		ledger: l,
		router: NewRouter(l, catalog, lister, store, store, zap.NewNop(), time.Second),
	}
}

func checkoutEvent(id string, amount int64) *domain.Event {
	return &domain.Event{
		ID:   id,
		Kind: domain.EventCheckoutCompleted,
		Payload: &domain.CheckoutCompleted{
			SessionID:          "cs_" + id,
			CustomerEmail:      "a@b.com",
			ExternalCustomerID: "cus_1",
			SubscriptionID:     "sub_1",
			AmountTotal:        amount,
			Metadata:           map[string]string{"price_id": "price_1PmMonthly"},
		},
	}
}

func invoiceEvent(id string, amount int64) *domain.Event {
	return &domain.Event{
		ID:   id,
		Kind: domain.EventInvoicePaid,
		Payload: &domain.InvoicePaid{
			InvoiceID:          "in_" + id,
			ExternalCustomerID: "cus_1",
			AmountPaid:         amount,
			BillingReason:      "subscription_cycle",
		},
	}
}

func refundEvent(id, customer string, amount int64) *domain.Event {
	return &domain.Event{
		ID:   id,
		Kind: domain.EventChargeRefunded,
		Payload: &domain.ChargeRefunded{
			ChargeID:           "ch_" + id,
			ExternalCustomerID: customer,
			AmountRefunded:     amount,
		},
	}
}

func (f *fixture) account(t *testing.T, key string) *domain.Account {
	t.Helper()
	acc, err := f.ledger.Get(context.Background(), key)
	require.NoError(t, err)
	return acc
}

func TestCheckoutCompletedScenario(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.router.Route(context.Background(), checkoutEvent("evt_1", 2000)))

	acc := f.account(t, "a@b.com")
	assert.Equal(t, "20.00", acc.BalanceDecimal())
	assert.Equal(t, "pro_m", acc.PlanName)
	assert.Equal(t, "cus_1", acc.ExternalCustomerID.String)
	assert.Equal(t, "sub_1", acc.SubscriptionID.String)
}

func TestCheckoutUsesLineItemLister(t *testing.T) {
	lister := &fakeLister{ids: []string{"price_1PyYearly"}}
	f := newFixture(t, lister)

	require.NoError(t, f.router.Route(context.Background(), checkoutEvent("evt_1", 9900)))

	assert.Equal(t, int32(1), lister.calls)
	assert.Equal(t, "pro_y", f.account(t, "cus_1").PlanName)
}

func TestCheckoutFallsBackToMetadataWhenListerFails(t *testing.T) {
	lister := &fakeLister{err: errors.New("stripe unavailable")}
	f := newFixture(t, lister)

	require.NoError(t, f.router.Route(context.Background(), checkoutEvent("evt_1", 100)))
	assert.Equal(t, "pro_m", f.account(t, "cus_1").PlanName)
}

func TestCheckoutUnknownPriceResolvesToFree(t *testing.T) {
	f := newFixture(t, nil)
	ev := checkoutEvent("evt_1", 100)
	ev.Payload.(*domain.CheckoutCompleted).Metadata = map[string]string{"price_id": "price_unknown"}

	require.NoError(t, f.router.Route(context.Background(), ev))
	assert.Equal(t, "free", f.account(t, "a@b.com").PlanName)
}

func TestDuplicateEventIsAppliedOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	assert.Equal(t, int64(2000), f.account(t, "a@b.com").Balance)
	assert.Equal(t, 1, f.store.Len())
}

func TestConcurrentDeltasAccumulate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.ledger.ApplyDelta(ctx, domain.DeltaInput{Identifier: "a@b.com", ExternalCustomerID: "cus_1"})
	require.NoError(t, err)

	events := []*domain.Event{
		invoiceEvent("evt_100", 100),
		invoiceEvent("evt_50", 50),
		refundEvent("evt_30", "cus_1", 30),
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(events)*2)
	for _, ev := range events {
		for i := 0; i < 2; i++ { // every event is delivered twice
			wg.Add(1)
			go func(ev *domain.Event) {
				defer wg.Done()
				errs <- f.router.Route(ctx, ev)
			}(ev)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(120), f.account(t, "cus_1").Balance)
}

func TestRetriesConcurrentUpdates(t *testing.T) {
	store := memory.New()
	repo := &conflictingRepo{Store: store, remaining: 2}
	l := ledger.New(repo, zap.NewNop())
	router := NewRouter(l, catalog, nil, store, repo, zap.NewNop(), time.Second)
	ctx := context.Background()

	_, err := ledger.New(store, zap.NewNop()).ApplyDelta(ctx, domain.DeltaInput{Identifier: "a@b.com", ExternalCustomerID: "cus_1"})
	require.NoError(t, err)

	require.NoError(t, router.Route(ctx, invoiceEvent("evt_1", 100)))

	acc, err := store.FindByExternalCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.Balance)
}

func TestRetryExhaustionRollsBackEventMark(t *testing.T) {
	store := memory.New()
	repo := &conflictingRepo{Store: store, remaining: DefaultMaxAttempts}
	router := NewRouter(ledger.New(repo, zap.NewNop()), catalog, nil, store, repo, zap.NewNop(), time.Second)
	ctx := context.Background()

	healthy := ledger.New(store, zap.NewNop())
	_, err := healthy.ApplyDelta(ctx, domain.DeltaInput{Identifier: "a@b.com", ExternalCustomerID: "cus_1"})
	require.NoError(t, err)

	err = router.Route(ctx, invoiceEvent("evt_1", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)

	// Redelivery after the contention clears is applied.
	require.NoError(t, router.Route(ctx, invoiceEvent("evt_1", 100)))
	acc, err := store.FindByExternalCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.Balance)
}

func TestStoreTimeoutIsUnavailable(t *testing.T) {
	store := memory.New()
	l := ledger.New(store, zap.NewNop())
	router := NewRouter(l, catalog, nil, blockingTransactor{}, store, zap.NewNop(), 10*time.Millisecond)

	err := router.Route(context.Background(), checkoutEvent("evt_1", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRefundForUnknownCustomerDoesNotProvision(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.router.Route(ctx, refundEvent("evt_1", "cus_unknown", 500)))
	assert.Equal(t, 0, f.store.Len())

	first, err := f.store.MarkEventProcessed(ctx, "evt_1", domain.EventChargeRefunded)
	require.NoError(t, err)
	assert.False(t, first, "anomalies keep their dedupe mark")
}

func TestInvoicePaymentFailedFlagsUnpaid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:      "evt_2",
		Kind:    domain.EventInvoicePaymentFailed,
		Payload: &domain.InvoicePaymentFailed{InvoiceID: "in_1", ExternalCustomerID: "cus_1", AmountDue: 990},
	}))

	acc := f.account(t, "cus_1")
	assert.Equal(t, domain.AccountStatusUnpaid, acc.Status)
	assert.Equal(t, int64(2000), acc.Balance)

	// A later successful payment restores the account.
	require.NoError(t, f.router.Route(ctx, invoiceEvent("evt_3", 990)))
	acc = f.account(t, "cus_1")
	assert.Equal(t, domain.AccountStatusActive, acc.Status)
	assert.Equal(t, int64(2990), acc.Balance)
}

func TestFirstSubscriptionInvoiceIsNotCredited(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:   "evt_2",
		Kind: domain.EventInvoicePaidAlias,
		Payload: &domain.InvoicePaid{
			InvoiceID:          "in_1",
			ExternalCustomerID: "cus_1",
			AmountPaid:         2000,
			BillingReason:      "subscription_create",
			PriceID:            "price_1PyYearly",
		},
	}))

	acc := f.account(t, "cus_1")
	assert.Equal(t, int64(2000), acc.Balance)
	assert.Equal(t, "pro_y", acc.PlanName)
}

func TestSubscriptionUpdatedMapsStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:   "evt_2",
		Kind: domain.EventSubscriptionUpdated,
		Payload: &domain.SubscriptionChanged{
			SubscriptionID:     "sub_1",
			ExternalCustomerID: "cus_1",
			Status:             "past_due",
			PriceID:            "price_1PyYearly",
		},
	}))

	acc := f.account(t, "cus_1")
	assert.Equal(t, domain.AccountStatusUnpaid, acc.Status)
	assert.Equal(t, "pro_y", acc.PlanName)
}

func TestSubscriptionCreatedNeverProvisions(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.router.Route(context.Background(), &domain.Event{
		ID:      "evt_1",
		Kind:    domain.EventSubscriptionCreated,
		Payload: &domain.SubscriptionChanged{SubscriptionID: "sub_1", ExternalCustomerID: "cus_1", Status: "active"},
	}))
	assert.Equal(t, 0, f.store.Len())
}

func TestSubscriptionDeletedScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:      "evt_2",
		Kind:    domain.EventSubscriptionDeleted,
		Payload: &domain.SubscriptionDeleted{SubscriptionID: "sub_1", ExternalCustomerID: "cus_1"},
	}))

	acc := f.account(t, "cus_1")
	assert.Equal(t, "free", acc.PlanName)
	assert.Equal(t, domain.AccountStatusInactive, acc.Status)
	assert.Equal(t, int64(2000), acc.Balance)
	assert.False(t, acc.SubscriptionID.Valid)
}

func TestUnhandledAndInvalidEventsAreAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.False(t, f.router.Handles("customer.created"))
	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:      "evt_1",
		Kind:    "customer.created",
		Payload: &domain.Unhandled{Type: "customer.created"},
	}))

	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:      "evt_2",
		Kind:    domain.EventCheckoutCompleted,
		Payload: &domain.CheckoutCompleted{SessionID: "cs_1", AmountTotal: 100},
	}))
	assert.Equal(t, 0, f.store.Len())

	assert.ErrorIs(t, f.router.Route(ctx, nil), domain.ErrInvalidPayload)
}

func decodedRefund(t *testing.T, id string, total, previous int64) *domain.Event {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    "charge.refunded",
		"created": 1700000000,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":              "ch_1",
				"object":          "charge",
				"customer":        "cus_1",
				"amount":          2000,
				"amount_refunded": total,
			},
			"previous_attributes": map[string]interface{}{"amount_refunded": previous},
		},
	})
	require.NoError(t, err)
	event, err := stripesvc.DecodeEvent(body)
	require.NoError(t, err)
	return event
}

func TestPartialRefundsDebitEachRefundOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	require.NoError(t, f.router.Route(ctx, decodedRefund(t, "evt_2", 500, 0)))
	require.NoError(t, f.router.Route(ctx, decodedRefund(t, "evt_3", 1000, 500)))
	// Redelivery of the second refund is a duplicate.
	require.NoError(t, f.router.Route(ctx, decodedRefund(t, "evt_3", 1000, 500)))

	assert.Equal(t, int64(1000), f.account(t, "cus_1").Balance)
}

func subscriptionEvent(id string, kind domain.EventKind, sub, status, price string) *domain.Event {
	return &domain.Event{
		ID:   id,
		Kind: kind,
		Payload: &domain.SubscriptionChanged{
			SubscriptionID:     sub,
			ExternalCustomerID: "cus_1",
			Status:             status,
			PriceID:            price,
		},
	}
}

func TestLateUpdateForEndedSubscriptionIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))
	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:      "evt_2",
		Kind:    domain.EventSubscriptionDeleted,
		Payload: &domain.SubscriptionDeleted{SubscriptionID: "sub_1", ExternalCustomerID: "cus_1"},
	}))
	require.NoError(t, f.router.Route(ctx, subscriptionEvent("evt_3", domain.EventSubscriptionCreated, "sub_2", "active", "price_1PyYearly")))
	require.NoError(t, f.router.Route(ctx, subscriptionEvent("evt_4", domain.EventSubscriptionUpdated, "sub_1", "canceled", "price_1PmMonthly")))

	acc := f.account(t, "cus_1")
	assert.Equal(t, "sub_2", acc.SubscriptionID.String)
	assert.Equal(t, "pro_y", acc.PlanName)
	assert.Equal(t, domain.AccountStatusActive, acc.Status)
	assert.Equal(t, int64(2000), acc.Balance)
}

func TestSubscriptionSwitchSurvivesReordering(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.router.Route(ctx, checkoutEvent("evt_1", 2000)))

	// The replacement arrives before the old subscription's updates and deletion.
	require.NoError(t, f.router.Route(ctx, subscriptionEvent("evt_2", domain.EventSubscriptionCreated, "sub_2", "active", "price_1PyYearly")))
	require.NoError(t, f.router.Route(ctx, subscriptionEvent("evt_3", domain.EventSubscriptionUpdated, "sub_1", "canceled", "price_1PmMonthly")))
	require.NoError(t, f.router.Route(ctx, &domain.Event{
		ID:      "evt_4",
		Kind:    domain.EventSubscriptionDeleted,
		Payload: &domain.SubscriptionDeleted{SubscriptionID: "sub_1", ExternalCustomerID: "cus_1"},
	}))

	acc := f.account(t, "cus_1")
	assert.Equal(t, "sub_2", acc.SubscriptionID.String)
	assert.Equal(t, "pro_y", acc.PlanName)
	assert.Equal(t, domain.AccountStatusActive, acc.Status)
}

func TestDelayedCheckoutCreditedWhenPaymentSettles(t *testing.T) {
	lister := &fakeLister{ids: []string{"price_1PyYearly"}}
	f := newFixture(t, lister)
	ctx := context.Background()

	completed := checkoutEvent("evt_1", 2000)
	completed.Payload.(*domain.CheckoutCompleted).PaymentStatus = "unpaid"
	require.NoError(t, f.router.Route(ctx, completed))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&lister.calls))

	settled := checkoutEvent("evt_2", 2000)
	settled.Kind = domain.EventCheckoutAsyncPaid
	settled.Payload.(*domain.CheckoutCompleted).PaymentStatus = "paid"
	require.NoError(t, f.router.Route(ctx, settled))

	acc := f.account(t, "a@b.com")
	assert.Equal(t, int64(2000), acc.Balance)
	assert.Equal(t, "pro_y", acc.PlanName)
}
