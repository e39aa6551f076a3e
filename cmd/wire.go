package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/config"
	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/handlers"
	applog "github.com/GalaDe/payments-webhooks/internal/log/log"
	"github.com/GalaDe/payments-webhooks/internal/plans"
	"github.com/GalaDe/payments-webhooks/internal/services/ledger"
	"github.com/GalaDe/payments-webhooks/internal/services/reconcile"
	"github.com/GalaDe/payments-webhooks/internal/services/stripe"
	"github.com/GalaDe/payments-webhooks/internal/storage/memory"
	"github.com/GalaDe/payments-webhooks/internal/storage/postgres"
)

type app struct {
	cfg        *config.Config
	logger     *applog.Logger
	catalog    *plans.Catalog
	repo       domain.AccountRepository
	transactor domain.Transactor
	health     handlers.HealthChecker
	ledger     *ledger.Ledger
	router     *reconcile.Router
	stripe     stripe.StripeService
	verifier   *stripe.Verifier
	closers    []func()
}

func wireApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*app, error) {
	zl := logger.Logger()

	catalog, err := plans.Load(cfg.PlansFile, cfg.PlanPriceMap)
	if err != nil {
		return nil, fmt.Errorf("wire plan catalog: %w", err)
	}
	zl.Info("plan catalog loaded", zap.Int("prices", catalog.Len()))

	a := &app{cfg: cfg, logger: logger, catalog: catalog}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.New()
		a.repo, a.transactor, a.health = store, store, store
		zl.Warn("using in-memory account store; balances are lost on restart")
	default:
		db, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL, postgres.WithLogger(zl))
		if err != nil {
			return nil, fmt.Errorf("wire postgres: %w", err)
		}
		transactor := postgres.NewPostgresTransactor(db, zl)
		a.repo = postgres.NewPostgresRepo(transactor)
		a.transactor = transactor
		a.health = db
		a.closers = append(a.closers, db.Close)
	}

	stripeCfg := &stripe.StripeConfig{
		AppKey:     cfg.StripeAPIKey,
		WebhookKey: cfg.StripeWebhookSecret,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	}
	a.stripe = stripe.NewStripe(stripeCfg, nil)
	a.verifier = stripe.NewVerifier(stripeCfg.WebhookKey)

	a.ledger = ledger.New(a.repo, zl)
	a.router = reconcile.NewRouter(a.ledger, catalog, a.stripe, a.transactor, a.repo, zl, cfg.StoreTimeout)

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.logger.Sync()
}

func loadRuntime() (*config.Config, *applog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := applog.New(appName, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
