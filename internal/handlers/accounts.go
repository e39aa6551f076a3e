package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/services/ledger"
)

/*

| Endpoint                      | Description                                       |
| ----------------------------- | ------------------------------------------------- |
| `GET /accounts/{identifier}`  | Balance, plan and status by email or customer id  |
| `GET /healthz`                | Store reachability                                |

*/

type AccountResponse struct {
	*domain.Account
	BalanceDisplay string `json:"balance_display"`
	Placeholder    bool   `json:"placeholder_identifier"`
}

/*
	GET /accounts/{identifier}
*/

func (h *HttpServer) GetAccount(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "identifier")
	if key == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing account identifier")
		return
	}

	acc, err := h.accounts.Get(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			h.respondWithError(w, http.StatusNotFound, "Account not found")
		case errors.Is(err, domain.ErrStoreUnavailable):
			h.respondWithError(w, http.StatusServiceUnavailable, "Account store unavailable")
		default:
			h.logger.Error("failed to fetch account", zap.Error(err))
			h.respondWithError(w, http.StatusInternalServerError, "Failed to fetch account")
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, AccountResponse{
		Account:        acc,
		BalanceDisplay: acc.BalanceDecimal(),
		Placeholder:    ledger.IsPlaceholder(acc.Identifier),
	})
}

/*
	GET /healthz
*/

func (h *HttpServer) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		h.respondWithError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
