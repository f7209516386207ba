/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the API
 * endpoints, associates them with their handlers, and applies middleware for
 * logging, panic recovery, timeouts, CORS and authentication.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for the browser frontend.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
	// RequestTimeout must exceed the worst case confirm: retries on every gateway
	// call plus compensation.
	RequestTimeout time.Duration
}

// NewRouter creates a new Chi router and registers the payment-service routes.
func NewRouter(h *PaymentHandlers, opts RouterOptions) *chi.Mux {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogContext)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	// Without configured origins no CORS headers are sent and browsers keep
	// cross-origin calls out.
	if corsOptions, ok := corsOptionsFor(opts.AllowedOrigins); ok {
		r.Use(cors.Handler(corsOptions))
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(opts.JWTSecret))

		r.Get("/accounts", h.ListAccountsHandler)
		r.Get("/services", h.ListServicesHandler)

		r.Route("/payments", func(r chi.Router) {
			r.Get("/lookup", h.LookupHandler)
			r.Post("/start", h.StartPaymentHandler)
			r.Get("/{id}", h.GetPaymentHandler)
			r.Post("/{id}/confirm", h.ConfirmPaymentHandler)
			r.Post("/{id}/reverse", h.ReversePaymentHandler)
		})

		r.Get("/transactions", h.ListTransactionsHandler)
		r.Get("/transactions/{id}", h.GetTransactionHandler)
	})

	return r
}

// corsOptionsFor allows exactly the listed origins. Credentials are never sent to
// a wildcard origin.
func corsOptionsFor(origins []string) (cors.Options, bool) {
	allowed := make([]string, 0, len(origins))
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if strings.Contains(origin, "*") {
			wildcard = true
		}
		allowed = append(allowed, origin)
	}
	if len(allowed) == 0 {
		return cors.Options{}, false
	}
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}, true
}
