package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/handlers"
	"github.com/GalaDe/payments-webhooks/internal/services/temporal/workflow"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server that receives Stripe webhooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			zl := logger.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := wireApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			deps := handlers.Dependencies{
				Verifier:       a.verifier,
				Router:         a.router,
				StripeService:  a.stripe,
				Catalog:        a.catalog,
				Accounts:       a.ledger,
				Health:         a.health,
				AdminJWTSecret: cfg.AdminJWTSecret,
			}

			if cfg.TemporalEnabled {
				temporalClient, err := workflow.Dial(workflow.TemporalConfig{
					HostPort:  cfg.TemporalHostPort,
					Namespace: cfg.TemporalNamespace,
					TaskQueue: cfg.TemporalTaskQueue,
				}, zl)
				if err != nil {
					return err
				}
				defer temporalClient.Close()
				deps.Dispatcher = workflow.NewDispatcher(temporalClient, cfg.TemporalTaskQueue, zl)
			}

			httpHandler := handlers.NewHttpServer(zl, deps)

			srv := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      handlers.RegisterRoutes(httpHandler, cfg.CORSAllowedOrigins),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}
			return runServer(ctx, srv, zl)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides PORT")
	return cmd
}

func runServer(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
