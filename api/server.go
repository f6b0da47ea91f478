/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. requireAuth: Bearer-token session resolution on protected routes

ROUTE GROUPS:
  /api/auth/*           Registration, login, current account
  /api/wallet/*         Balances and audit trail
  /api/vouchers/*       Voucher sale and processing
  /api/ticket-types/*   Ticket catalogue management
  /api/tickets/*        Ticket issuance and validation
  /api/payouts/*        Payout requests and settings
  /api/admin/*          Account administration

AUTH:
  register and login are the only public endpoints. Everything else runs
  behind requireAuth, which resolves the Bearer token into a session and
  stashes it in the request context. Role enforcement happens in the
  engines, not here.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Token issuing and verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/voucher-engine/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/auth/me", h.Me)

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", h.GetWallet)
				r.Get("/entries", h.GetEntries)
			})

			r.Route("/vouchers", func(r chi.Router) {
				r.Post("/", h.CreateVoucher)
				r.Post("/process", h.ProcessVoucher)
				r.Get("/sold", h.ListSoldVouchers)
				r.Get("/bought", h.ListBoughtVouchers)
				r.Get("/{code}", h.GetVoucher)
			})

			r.Route("/ticket-types", func(r chi.Router) {
				r.Get("/", h.ListTicketTypes)
				r.Post("/", h.CreateTicketType)
				r.Put("/{id}", h.UpdateTicketType)
				r.Delete("/{id}", h.DeleteTicketType)
			})

			r.Route("/tickets", func(r chi.Router) {
				r.Post("/", h.IssueTickets)
				r.Get("/", h.ListTickets)
				r.Get("/validate/{code}", h.ValidateTicket)
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Post("/", h.CreatePayout)
				r.Get("/", h.ListPayouts)
				r.Get("/entitlement", h.GetEntitlement)
				r.Get("/settings", h.GetPayoutSettings)
				r.Put("/settings", h.UpdatePayoutSettings)
				r.Get("/{id}", h.GetPayout)
				r.Post("/{id}/approve", h.ApprovePayout)
				r.Post("/{id}/reject", h.RejectPayout)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/accounts/{id}/promote", h.PromoteAccount)
				r.Get("/agents", h.ListAgents)
				r.Get("/merchants", h.ListMerchants)
			})
		})
	})

	return r
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

type contextKey string

const sessionKey contextKey = "session"

// requireAuth resolves "Authorization: Bearer <token>" into a session.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "Missing bearer token",
				Code:  "unauthorized",
			})
			return
		}

		sess, err := h.Auth.ParseSession(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "Invalid or expired token",
				Code:  "unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// sessionFrom returns the session placed by requireAuth. Panics if called on
// an unauthenticated route; that is a routing bug, not a runtime condition.
func sessionFrom(r *http.Request) ledger.Session {
	return r.Context().Value(sessionKey).(ledger.Session)
}
