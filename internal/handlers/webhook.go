package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	"github.com/GalaDe/payments-webhooks/internal/services/stripe"
)

/*

| Endpoint                | Description                                              |
| ----------------------- | -------------------------------------------------------- |
| `POST /stripe/webhook`  | Verify and apply Stripe events (checkout, invoices, ...) |
| `POST /webhook/stripe`  | Same handler, kept for existing endpoint registrations   |

*/

// MaxWebhookBodyBytes caps the raw body read for signature verification.
const MaxWebhookBodyBytes = int64(65536)

func (h *HttpServer) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Webhook Error: request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Error reading webhook request", http.StatusServiceUnavailable)
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get(stripe.SignatureHeader))
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	logger := h.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Kind)),
	)

	if h.dispatcher != nil {
		err = h.dispatcher.Dispatch(r.Context(), event, payload)
	} else {
		err = h.router.Route(r.Context(), event)
	}

	switch {
	case err == nil:
		logger.Debug("webhook acknowledged")
		h.respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.respondWithError(w, http.StatusServiceUnavailable, "temporarily unable to process event")
	default:
		logger.Error("webhook processing failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "failed to process event")
	}
}
