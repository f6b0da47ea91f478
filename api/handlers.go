/*
handlers.go - HTTP API handlers for the voucher platform

PURPOSE:
  Exposes the engines via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/register          Create an agent account
    POST   /api/auth/login             Exchange credentials for a token
    GET    /api/auth/me                Current account

  Wallet:
    GET    /api/wallet                 Current balances
    GET    /api/wallet/entries         Audit trail

  Vouchers:
    POST   /api/vouchers               Sell a voucher (agent/admin)
    POST   /api/vouchers/process       Process a voucher (merchant/admin)
    GET    /api/vouchers/sold          Vouchers sold by the caller
    GET    /api/vouchers/bought        Vouchers owned by the caller
    GET    /api/vouchers/{code}        Voucher details

  Tickets:
    GET    /api/ticket-types           List types
    POST   /api/ticket-types           Create type (admin)
    PUT    /api/ticket-types/{id}      Update type (admin)
    DELETE /api/ticket-types/{id}      Delete type (admin)
    POST   /api/tickets                Issue tickets (agent)
    GET    /api/tickets                Caller's issued tickets
    GET    /api/tickets/validate/{code} Check a ticket

  Payouts:
    POST   /api/payouts                Request a payout
    GET    /api/payouts                List requests
    GET    /api/payouts/entitlement    Current entitlement
    GET    /api/payouts/settings       Salary settings
    PUT    /api/payouts/settings       Update settings (admin)
    GET    /api/payouts/{id}           Request details
    POST   /api/payouts/{id}/approve   Approve (admin)
    POST   /api/payouts/{id}/reject    Reject (admin)

  Admin:
    POST   /api/admin/accounts/{id}/promote  Promote agent to merchant
    GET    /api/admin/agents                 List agents
    GET    /api/admin/merchants              List merchants

REQUEST FLOW:
  1. Auth middleware resolves the bearer token into a session
  2. Handler parses and decodes the request
  3. Engine runs the domain logic and enforces roles
  4. Handler serializes the response or maps the error

ERROR HANDLING:
  Domain errors map to HTTP status via writeDomainError:
  - 400: validation errors, invalid input
  - 401: missing/invalid credentials
  - 403: role not allowed
  - 404: resource not found
  - 409: already processed, conflicting state
  - 410: ticket type deleted
  - 422: insufficient balance
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/voucher-engine/auth"
	"github.com/warp/voucher-engine/ledger"
	"github.com/warp/voucher-engine/payout"
	"github.com/warp/voucher-engine/ticket"
	"github.com/warp/voucher-engine/voucher"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Auth     *auth.Service
	Vouchers *voucher.Engine
	Tickets  *ticket.Engine
	Payouts  *payout.Engine
}

// NewHandler wires the engines onto a shared store.
func NewHandler(store ledger.Store, authSvc *auth.Service) *Handler {
	return &Handler{
		Store:    store,
		Auth:     authSvc,
		Vouchers: voucher.NewEngine(store),
		Tickets:  ticket.NewEngine(store),
		Payouts:  payout.NewEngine(store),
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates a new agent account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account, err := h.Auth.Register(r.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// Login authenticates and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, account, err := h.Auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:   token,
		Account: toAccountDTO(account),
	})
}

// Me returns the calling account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	account, err := h.Auth.CurrentAccount(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// GetWallet returns the caller's balances.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	wallet, err := h.Store.GetWallet(r.Context(), sess.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(wallet))
}

// GetEntries returns the caller's audit trail, oldest first.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	entries, err := h.Store.Entries(r.Context(), sess.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// VOUCHER HANDLERS
// =============================================================================

// CreateVoucher sells a voucher to a merchant (or, for admins, anyone).
func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req CreateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	v, err := h.Vouchers.Create(r.Context(), sessionFrom(r), ledger.AccountID(req.BuyerID), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(v))
}

// ProcessVoucher redeems a voucher and accrues the seller bonus.
func (h *Handler) ProcessVoucher(w http.ResponseWriter, r *http.Request) {
	var req ProcessVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	v, err := h.Vouchers.Process(r.Context(), sessionFrom(r), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(v))
}

// GetVoucher returns voucher details. Only the owner, the seller, and admins
// may look a voucher up.
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	code := chi.URLParam(r, "code")

	v, err := h.Vouchers.Details(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	allowed := ledger.IsAdmin(sess) ||
		v.OwnerID == sess.AccountID ||
		(v.SellerID != nil && *v.SellerID == sess.AccountID)
	if !allowed {
		writeDomainError(w, &ledger.ForbiddenError{Role: sess.Role, Operation: "view voucher"})
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(v))
}

// ListSoldVouchers returns vouchers the caller sold.
func (h *Handler) ListSoldVouchers(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	vouchers, err := h.Vouchers.Sold(r.Context(), sess.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTOs(vouchers))
}

// ListBoughtVouchers returns vouchers the caller owns.
func (h *Handler) ListBoughtVouchers(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	vouchers, err := h.Vouchers.Bought(r.Context(), sess.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTOs(vouchers))
}

func toVoucherDTOs(vouchers []ledger.Voucher) []VoucherDTO {
	dtos := make([]VoucherDTO, len(vouchers))
	for i := range vouchers {
		dtos[i] = toVoucherDTO(&vouchers[i])
	}
	return dtos
}

// =============================================================================
// TICKET TYPE HANDLERS
// =============================================================================

// ListTicketTypes returns the catalogue. Non-admins only see unexpired types.
func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Tickets.ListTypes(r.Context(), sessionFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TicketTypeDTO, len(types))
	for i := range types {
		dtos[i] = toTicketTypeDTO(&types[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTicketType adds a type to the catalogue.
func (h *Handler) CreateTicketType(w http.ResponseWriter, r *http.Request) {
	req, unitPrice, expiresAt, ok := h.decodeTicketType(w, r)
	if !ok {
		return
	}

	tt, err := h.Tickets.CreateType(r.Context(), sessionFrom(r),
		req.Name, req.Description, unitPrice, expiresAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketTypeDTO(tt))
}

// UpdateTicketType edits a type; moving the expiration restamps all of its
// issued tickets.
func (h *Handler) UpdateTicketType(w http.ResponseWriter, r *http.Request) {
	req, unitPrice, expiresAt, ok := h.decodeTicketType(w, r)
	if !ok {
		return
	}
	id := ledger.TicketTypeID(chi.URLParam(r, "id"))

	tt, err := h.Tickets.UpdateType(r.Context(), sessionFrom(r), id,
		req.Name, req.Description, unitPrice, expiresAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketTypeDTO(tt))
}

// DeleteTicketType removes a type; its issued tickets survive detached.
func (h *Handler) DeleteTicketType(w http.ResponseWriter, r *http.Request) {
	id := ledger.TicketTypeID(chi.URLParam(r, "id"))
	if err := h.Tickets.DeleteType(r.Context(), sessionFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeTicketType(w http.ResponseWriter, r *http.Request) (TicketTypeRequest, decimal.Decimal, time.Time, bool) {
	var req TicketTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, decimal.Zero, time.Time{}, false
	}
	unitPrice, err := parseAmount("unit_price", req.UnitPrice)
	if err != nil {
		writeDomainError(w, err)
		return req, decimal.Zero, time.Time{}, false
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expires_at format (use RFC 3339)", err)
		return req, decimal.Zero, time.Time{}, false
	}
	return req, unitPrice, expiresAt, true
}

// =============================================================================
// TICKET HANDLERS
// =============================================================================

// IssueTickets sells tickets to a walk-in buyer, debiting the agent's
// voucher balance.
func (h *Handler) IssueTickets(w http.ResponseWriter, r *http.Request) {
	var req IssueTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Tickets.Create(r.Context(), sessionFrom(r),
		ledger.TicketTypeID(req.TypeID), req.BuyerName, req.BuyerContact, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIssueTicketsResponse(res))
}

// ListTickets returns the caller's issued tickets, optionally bounded by
// ?from= and ?to= (RFC 3339).
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from format (use RFC 3339)", err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to format (use RFC 3339)", err)
		return
	}

	tickets, err := h.Tickets.ListAgentTickets(r.Context(), sessionFrom(r), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TicketDTO, len(tickets))
	for i := range tickets {
		dtos[i] = toTicketDTO(&tickets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ValidateTicket checks a ticket code and reports whether it is still valid.
func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	v, err := h.Tickets.Validate(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationDTO(v))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// CreatePayout submits a payout request against the caller's bonus balance.
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pr, err := h.Payouts.Request(r.Context(), sessionFrom(r), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutRequestDTO(pr))
}

// ListPayouts returns payout requests, pending first. Admins see everyone's;
// others see their own. ?status= filters.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	var status *ledger.PayoutStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := ledger.PayoutStatus(s)
		status = &st
	}

	requests, err := h.Payouts.List(r.Context(), sessionFrom(r), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PayoutRequestDTO, len(requests))
	for i := range requests {
		dtos[i] = toPayoutRequestDTO(&requests[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayout returns one payout request.
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	pr, err := h.Payouts.Get(r.Context(), sessionFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutRequestDTO(pr))
}

// ApprovePayout approves a pending request and debits the bonus balance.
func (h *Handler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	h.decidePayout(w, r, h.Payouts.Approve)
}

// RejectPayout rejects a pending request; balances are untouched.
func (h *Handler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	h.decidePayout(w, r, h.Payouts.Reject)
}

func (h *Handler) decidePayout(w http.ResponseWriter, r *http.Request,
	decide func(ctx context.Context, sess ledger.Session, id ledger.PaymentID) (*ledger.PayoutRequest, error)) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	pr, err := decide(r.Context(), sessionFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutRequestDTO(pr))
}

// GetEntitlement reports what the caller could request right now.
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	entitlement, sold, err := h.Payouts.EntitlementFor(r.Context(), sessionFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	start, end := payout.CurrentPeriod(time.Now())
	writeJSON(w, http.StatusOK, EntitlementDTO{
		Entitlement: entitlement.String(),
		TicketsSold: sold,
		PeriodStart: start.Format(time.RFC3339),
		PeriodEnd:   end.Format(time.RFC3339),
	})
}

// GetPayoutSettings returns the salary settings.
func (h *Handler) GetPayoutSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Payouts.Settings(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutSettingsDTO(settings))
}

// UpdatePayoutSettings replaces the salary settings.
func (h *Handler) UpdatePayoutSettings(w http.ResponseWriter, r *http.Request) {
	var req PayoutSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	fullSalary, err := parseAmount("full_salary", req.FullSalary)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	partialPct, err := parseAmount("partial_salary_percentage", req.PartialSalaryPercentage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bonusRate, err := parseAmount("bonus_rate", req.BonusRate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := h.Payouts.UpdateSettings(r.Context(), sessionFrom(r), ledger.PayoutSettings{
		MonthlyQuota:            req.MonthlyQuota,
		FullSalary:              fullSalary,
		PartialSalaryPercentage: partialPct,
		BonusRate:               bonusRate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutSettingsDTO(*updated))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// PromoteAccount upgrades an agent to merchant.
func (h *Handler) PromoteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	account, err := h.Auth.PromoteToMerchant(r.Context(), sessionFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// ListAgents returns all agent accounts.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	h.listAccountsByRole(w, r, ledger.RoleAgent)
}

// ListMerchants returns all merchant accounts.
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	h.listAccountsByRole(w, r, ledger.RoleMerchant)
}

func (h *Handler) listAccountsByRole(w http.ResponseWriter, r *http.Request, role ledger.Role) {
	sess := sessionFrom(r)
	if err := ledger.Require(sess, "list accounts", ledger.RoleAdmin); err != nil {
		writeDomainError(w, err)
		return
	}
	accounts, err := h.Store.ListAccountsByRole(r.Context(), role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, ledger.Validationf(field, "%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ledger.Validationf(field, "%s is not a valid decimal", field)
	}
	return d, nil
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *ledger.ValidationError
		forbiddenErr  *ledger.ForbiddenError
		balanceErr    *ledger.InsufficientBalanceError
		transitionErr *ledger.TransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   validationErr.Error(),
			Code:    "validation_failed",
			Details: map[string]string{"field": validationErr.Field},
		})
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Invalid credentials",
			Code:  "unauthorized",
		})
	case errors.As(err, &forbiddenErr), errors.Is(err, ledger.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error: err.Error(),
			Code:  "forbidden",
		})
	case errors.Is(err, ledger.ErrGone):
		writeJSON(w, http.StatusGone, ErrorResponse{
			Error: "Ticket type deleted",
			Code:  "ticket_type_deleted",
		})
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "not_found",
		})
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Voucher already processed",
			Code:  "already_processed",
		})
	case errors.As(err, &transitionErr), errors.Is(err, ledger.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "invalid_transition",
		})
	case errors.Is(err, ledger.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "conflict",
		})
	case errors.As(err, &balanceErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: balanceErr.Error(),
			Code:  "insufficient_balance",
			Details: map[string]string{
				"field":     string(balanceErr.Field),
				"available": balanceErr.Available.String(),
				"requested": balanceErr.Requested.String(),
				"shortfall": balanceErr.Shortfall().String(),
			},
		})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
