package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GalaDe/payments-webhooks/internal/config"
	applog "github.com/GalaDe/payments-webhooks/internal/log/log"
	"github.com/GalaDe/payments-webhooks/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				names, err := postgres.MigrationNames()
				if err != nil {
					return err
				}
				for _, name := range names {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
						return err
					}
				}
				return nil
			}

			dsn, err := config.LoadDatabaseURL()
			if err != nil {
				return err
			}
			logger, err := applog.New(appName, os.Getenv("LOG_LEVEL"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := postgres.NewPostgresDB(cmd.Context(), dsn, postgres.WithLogger(logger.Logger()))
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(applied))
			return err
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "print the embedded migrations without connecting")
	return cmd
}
