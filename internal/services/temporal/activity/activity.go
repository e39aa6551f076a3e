package activity

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/services/stripe"
)

// EventRouter applies a verified event to the account store.
type EventRouter interface {
	Route(ctx context.Context, event *domain.Event) error
}

type TemporalActivityPort struct {
	router EventRouter
	logger *zap.Logger
}

func NewTemporalActivityPort(router EventRouter, logger *zap.Logger) *TemporalActivityPort {
	return &TemporalActivityPort{
		router: router,
		logger: logger,
	}
}

const (
	ReconcileEventActivity = "ReconcileEventActivity"

	// ErrTypeMalformedEvent marks payloads that will never decode.
	ErrTypeMalformedEvent = "MalformedEvent"
)

func (a *TemporalActivityPort) RegisterActivities(w worker.ActivityRegistry) {
	w.RegisterActivityWithOptions(a.reconcileEventActivity, activity.RegisterOptions{Name: ReconcileEventActivity})
}

// ReconcileEventInput carries the raw event body. Its signature was checked
// when the webhook was received; the activity only decodes it.
type ReconcileEventInput struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Payload   []byte `json:"payload"`
}

/*
	Applies one provider event through the same router the HTTP endpoint uses
	in synchronous mode. Deduplication by event id makes retries safe.

	Errors:
		1. A payload that does not decode fails without retry.
		2. Store outages and lost races are returned as-is so the retry policy applies.
*/

func (a *TemporalActivityPort) reconcileEventActivity(ctx context.Context, input ReconcileEventInput) error {
	event, err := stripe.DecodeEvent(input.Payload)
	if err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("event %s does not decode", input.EventID), ErrTypeMalformedEvent, err)
	}

	info := activity.GetInfo(ctx)
	a.logger.Debug("reconciling event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Kind)),
		zap.Int32("attempt", info.Attempt),
	)

	if err := a.router.Route(ctx, event); err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeMalformedEvent, err)
		}
		return fmt.Errorf("reconcile event %s: %w", event.ID, err)
	}
	return nil
}
