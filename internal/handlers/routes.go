package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

func RegisterRoutes(h *HttpServer, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
	r.Use(corsMiddleware.Handler)

	// Health check or default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Payments webhooks service is running"))
	})
	r.Get("/healthz", h.Healthz)

	// Stripe routes
	r.Post("/stripe/checkout-session", h.CreateCheckoutSession)

	// Webhooks
	r.Post("/stripe/webhook", h.StripeWebhook)
	r.Post("/webhook/stripe", h.StripeWebhook)

	// Admin routes exist only when a signing secret is configured
	if len(h.adminSecret) > 0 {
		r.With(h.RequireAdmin).Get("/accounts/{identifier}", h.GetAccount)
	}

	return r
}
