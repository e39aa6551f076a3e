package cmd

import (
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"

	"github.com/GalaDe/payments-webhooks/internal/services/temporal/activity"
	"github.com/GalaDe/payments-webhooks/internal/services/temporal/workflow"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker that applies queued webhook events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			zl := logger.Logger()

			a, err := wireApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			temporalClient, err := workflow.Dial(workflow.TemporalConfig{
				HostPort:  cfg.TemporalHostPort,
				Namespace: cfg.TemporalNamespace,
				TaskQueue: cfg.TemporalTaskQueue,
			}, zl)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			w := workflow.NewWorker(temporalClient, cfg.TemporalTaskQueue)
			workflow.RegisterWorkflows(w)

			activityPort := activity.NewTemporalActivityPort(a.router, zl)
			activityPort.RegisterActivities(w)

			return w.Run(worker.InterruptCh())
		},
	}
}
