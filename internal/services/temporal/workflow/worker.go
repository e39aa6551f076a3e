package workflow

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	temporaladapter "github.com/GalaDe/payments-webhooks/internal/services/temporal"
	activity "github.com/GalaDe/payments-webhooks/internal/services/temporal/activity"
)

type ContextKey string

const (
	DefaultActivityTimeout            = 30 * time.Second
	DefaultTaskQueue                  = "stripe-webhooks"
	ClientContextKey       ContextKey = "Client"

	// ReconcileRetryWindow matches how long Stripe keeps redelivering an
	// unacknowledged event.
	ReconcileRetryWindow = 72 * time.Hour
)

var (
	// RetryPolicyUntilApplied keeps retrying a store outage for the whole
	// retry window. Malformed events fail at once.
	RetryPolicyUntilApplied = &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        5 * time.Minute,
		MaximumAttempts:        0,
		NonRetryableErrorTypes: []string{activity.ErrTypeMalformedEvent},
	}
)

type TemporalConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
}

// Dial connects to the Temporal frontend, logging through logger.
func Dial(cfg TemporalConfig, logger *zap.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    temporaladapter.NewZapAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

func NewWorker(t client.Client, taskQueue string) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return worker.New(t, taskQueue, worker.Options{
		BackgroundActivityContext:        context.WithValue(context.Background(), ClientContextKey, t),
		MaxConcurrentActivityTaskPollers: 8, // Default is 2
		MaxConcurrentWorkflowTaskPollers: 8, // Default is 2
	})
}
