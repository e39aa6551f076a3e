package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/plans"
	"github.com/GalaDe/payments-webhooks/internal/services/ledger"
)

const (
	DefaultMaxAttempts  = 5
	DefaultStoreTimeout = 5 * time.Second
)

// LineItemLister fetches the price ids of a checkout session when the
// completion event arrived without expanded line items.
type LineItemLister interface {
	ListLineItemPriceIDs(ctx context.Context, sessionID string) ([]string, error)
}

type handlerFunc func(ctx context.Context, event *domain.Event) error

// Router dispatches verified events to the handler for their kind. Every
// event is applied at most once: the event id is recorded in the same
// transaction as the account writes it causes.
type Router struct {
	ledger       *ledger.Ledger
	catalog      *plans.Catalog
	lineItems    LineItemLister
	transactor   domain.Transactor
	repo         domain.AccountRepository
	logger       *zap.Logger
	storeTimeout time.Duration
	maxAttempts  int

	handlers map[domain.EventKind]handlerFunc
}

// NewRouter wires the handler table. lineItems may be nil.
func NewRouter(l *ledger.Ledger, catalog *plans.Catalog, lineItems LineItemLister,
	transactor domain.Transactor, repo domain.AccountRepository, logger *zap.Logger, storeTimeout time.Duration) *Router {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	r := &Router{
		ledger:       l,
		catalog:      catalog,
		lineItems:    lineItems,
		transactor:   transactor,
		repo:         repo,
		logger:       logger,
		storeTimeout: storeTimeout,
		maxAttempts:  DefaultMaxAttempts,
	}
	r.handlers = map[domain.EventKind]handlerFunc{
		domain.EventCheckoutCompleted:    r.checkoutCompleted,
		domain.EventCheckoutAsyncPaid:    r.checkoutCompleted,
		domain.EventInvoicePaid:          r.invoicePaid,
		domain.EventInvoicePaidAlias:     r.invoicePaid,
		domain.EventInvoicePaymentFailed: r.invoicePaymentFailed,
		domain.EventChargeRefunded:       r.chargeRefunded,
		domain.EventSubscriptionCreated:  r.subscriptionChanged,
		domain.EventSubscriptionUpdated:  r.subscriptionChanged,
		domain.EventSubscriptionDeleted:  r.subscriptionDeleted,
	}
	return r
}

// Handles reports whether kind has a handler.
func (r *Router) Handles(kind domain.EventKind) bool {
	_, ok := r.handlers[kind]
	return ok
}

// Route applies event. A nil return means the event may be acknowledged:
// it was applied, was a duplicate, was of a kind we ignore, or was an
// anomaly that redelivery cannot fix. Errors wrapping
// domain.ErrStoreUnavailable are worth redelivering.
func (r *Router) Route(ctx context.Context, event *domain.Event) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("route: %w: empty event", domain.ErrInvalidPayload)
	}

	logger := r.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Kind)),
	)

	handler, ok := r.handlers[event.Kind]
	if !ok {
		logger.Debug("ignoring unhandled event type")
		return nil
	}

	r.prepare(ctx, event, logger)

	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.attempt(ctx, event, handler, logger)
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			break
		}
		logger.Debug("concurrent account update, retrying", zap.Int("attempt", attempt))
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		logger.Warn("account store unavailable", zap.Error(err))
	default:
		logger.Error("failed to apply event", zap.Error(err))
	}
	return fmt.Errorf("route event %s: %w", event.ID, err)
}

func (r *Router) attempt(ctx context.Context, event *domain.Event, handler handlerFunc, logger *zap.Logger) error {
	actx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	err := r.transactor.WithinTransaction(actx, func(txCtx context.Context) error {
		first, err := r.repo.MarkEventProcessed(txCtx, event.ID, event.Kind)
		if err != nil {
			return err
		}
		if !first {
			logger.Info("duplicate event acknowledged")
			return nil
		}

		if err := event.Payload.Validate(); err != nil {
			logger.Warn("invalid event payload acknowledged", zap.Error(err))
			return nil
		}

		err = handler(txCtx, event)
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrInvalidPayload) {
			logger.Warn("event anomaly acknowledged", zap.Error(err))
			return nil
		}
		return err
	})

	if err != nil && !errors.Is(err, domain.ErrStoreUnavailable) && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}

// prepare performs provider lookups outside the store transaction.
func (r *Router) prepare(ctx context.Context, event *domain.Event, logger *zap.Logger) {
	p, ok := event.Payload.(*domain.CheckoutCompleted)
	if !ok || !p.Settled() || len(p.PriceIDs) > 0 || r.lineItems == nil || p.SessionID == "" {
		return
	}

	ids, err := r.lineItems.ListLineItemPriceIDs(ctx, p.SessionID)
	if err != nil {
		logger.Warn("failed to list checkout line items, falling back to metadata",
			zap.String("session_id", p.SessionID), zap.Error(err))
		return
	}
	p.PriceIDs = ids
}

func payloadAs[T domain.EventPayload](event *domain.Event) (T, error) {
	p, ok := event.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s carries %T", domain.ErrInvalidPayload, event.Kind, event.Payload)
	}
	return p, nil
}
