package workflow

import (
	"go.temporal.io/sdk/workflow"

	activity "github.com/GalaDe/payments-webhooks/internal/services/temporal/activity"
)

/*
 1. The webhook endpoint verifies the signature and starts this workflow
    with the raw event body, keyed by event id.
 2. The activity decodes the body and routes it, recording the event id in
    the same store transaction as the account writes.
*/
func reconcileEventWorkflow(ctx workflow.Context, input activity.ReconcileEventInput) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout:    DefaultActivityTimeout,
		ScheduleToCloseTimeout: ReconcileRetryWindow,
		RetryPolicy:            RetryPolicyUntilApplied,
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("reconciling stripe event", "event_id", input.EventID, "event_type", input.EventType)

	return workflow.ExecuteActivity(ctx, activity.ReconcileEventActivity, input).Get(ctx, nil)
}
