package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gobuffalo/nulls"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/services/stripe"
	"github.com/GalaDe/payments-webhooks/internal/utils"
)

/*
| Endpoint                         | Description                                      |
| -------------------------------- | ------------------------------------------------ |
| `POST /stripe/checkout-session`  | Start a hosted subscription checkout for a price |
*/

// CreateCheckoutSessionRequest names the price directly or through a plan
// from the catalog.
type CreateCheckoutSessionRequest struct {
	PriceID       nulls.String `json:"price_id"`
	Plan          nulls.String `json:"plan"`
	CustomerEmail nulls.String `json:"customer_email"`
}

/*
	POST /stripe/checkout-session
*/

func (h *HttpServer) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	priceID := utils.NullsStringValue(req.PriceID)
	if priceID == "" {
		plan := utils.NullsStringValue(req.Plan)
		if plan == "" {
			h.respondWithError(w, http.StatusBadRequest, "price_id or plan is required")
			return
		}
		var ok bool
		if priceID, ok = h.catalog.PriceFor(plan); !ok {
			h.respondWithError(w, http.StatusBadRequest, "unknown plan: "+plan)
			return
		}
	}

	input := &stripe.CreateCheckoutSessionInput{PriceID: priceID}
	if raw := utils.NullsStringValue(req.CustomerEmail); raw != "" {
		email, ok := domain.NormalizeEmail(raw)
		if !ok {
			h.respondWithError(w, http.StatusBadRequest, "invalid customer_email")
			return
		}
		input.CustomerEmail = email
	}

	sess, err := h.stripeService.CreateCheckoutSession(r.Context(), input)
	if err != nil {
		h.logger.Error("checkout session creation failed", zap.String("price_id", priceID), zap.Error(err))
		h.respondWithError(w, http.StatusBadGateway, "Stripe checkout session creation failed")
		return
	}

	h.respondWithJSON(w, http.StatusOK, sess)
}
