package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/plans"
	"github.com/GalaDe/payments-webhooks/internal/services/stripe"
)

type EventVerifier interface {
	Verify(payload []byte, signature string) (*domain.Event, error)
}

// EventRouter applies an event inline.
type EventRouter interface {
	Route(ctx context.Context, event *domain.Event) error
}

// EventDispatcher queues an event for asynchronous application.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *domain.Event, payload []byte) error
}

type AccountReader interface {
	Get(ctx context.Context, key string) (*domain.Account, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of the HTTP surface. Dispatcher is
// optional; when set, webhooks are queued instead of routed inline.
type Dependencies struct {
	Verifier       EventVerifier
	Router         EventRouter
	Dispatcher     EventDispatcher
	StripeService  stripe.StripeService
	Catalog        *plans.Catalog
	Accounts       AccountReader
	Health         HealthChecker
	AdminJWTSecret string
}

type HttpServer struct {
	logger        *zap.Logger
	verifier      EventVerifier
	router        EventRouter
	dispatcher    EventDispatcher
	stripeService stripe.StripeService
	catalog       *plans.Catalog
	accounts      AccountReader
	health        HealthChecker
	adminSecret   []byte
}

func NewHttpServer(logger *zap.Logger, deps Dependencies) *HttpServer {
	return &HttpServer{
		logger:        logger,
		verifier:      deps.Verifier,
		router:        deps.Router,
		dispatcher:    deps.Dispatcher,
		stripeService: deps.StripeService,
		catalog:       deps.Catalog,
		accounts:      deps.Accounts,
		health:        deps.Health,
		adminSecret:   []byte(deps.AdminJWTSecret),
	}
}

func (h *HttpServer) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *HttpServer) respondWithError(w http.ResponseWriter, status int, message string) {
	h.respondWithJSON(w, status, map[string]string{"error": message})
}
