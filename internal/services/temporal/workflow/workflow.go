package workflow

import (
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

const (
	ReconcileEventWorkflow = "ReconcileEventWorkflow"
)

func RegisterWorkflows(c worker.WorkflowRegistry) {
	c.RegisterWorkflowWithOptions(reconcileEventWorkflow, workflow.RegisterOptions{Name: ReconcileEventWorkflow})
}
