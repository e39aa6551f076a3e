package workflow

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	activity "github.com/GalaDe/payments-webhooks/internal/services/temporal/activity"
)

// Dispatcher hands verified events to the reconciliation workflow instead
// of applying them inline.
type Dispatcher struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

func NewDispatcher(c client.Client, taskQueue string, logger *zap.Logger) *Dispatcher {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Dispatcher{client: c, taskQueue: taskQueue, logger: logger}
}

func WorkflowID(eventID string) string {
	return "stripe-event-" + eventID
}

// Dispatch starts one workflow per event id. A delivery that finds a running
// or completed workflow for the id is treated as already accepted; a failed
// one is started again, and the store's processed-event mark keeps the
// rerun from applying the event twice.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.Event, payload []byte) error {
	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(event.ID),
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}
	input := activity.ReconcileEventInput{
		EventID:   event.ID,
		EventType: string(event.Kind),
		Payload:   payload,
	}

	we, err := d.client.ExecuteWorkflow(ctx, opts, ReconcileEventWorkflow, input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			d.logger.Info("duplicate event, workflow already started",
				zap.String("event_id", event.ID),
				zap.String("workflow_id", opts.ID),
			)
			return nil
		}
		return fmt.Errorf("%w: start workflow %s: %v", domain.ErrStoreUnavailable, opts.ID, err)
	}

	d.logger.Info("started reconcile workflow",
		zap.String("event_id", event.ID),
		zap.String("workflow_id", we.GetID()),
		zap.String("run_id", we.GetRunID()),
	)
	return nil
}
