package cmd

import "github.com/spf13/cobra"

const appName = "payments-webhooks"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Stripe webhook receiver that reconciles account balances and plans",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
	)

	return rootCmd
}
