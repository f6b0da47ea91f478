/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Monetary values travel as decimal strings, never floats, so clients do
  not see floating point artifacts.

VALIDATION:
  Validation is done in the engines, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/voucher-engine/ledger"
	"github.com/warp/voucher-engine/ticket"
)

// =============================================================================
// AUTH
// =============================================================================

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Login    string `json:"login"` // email or login ID
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string     `json:"token"`
	Account AccountDTO `json:"account"`
}

type AccountDTO struct {
	ID        string `json:"id"`
	LoginID   string `json:"login_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// WALLET
// =============================================================================

type WalletDTO struct {
	AccountID      string `json:"account_id"`
	VoucherBalance string `json:"voucher_balance"`
	BonusBalance   string `json:"bonus_balance"`
}

type EntryDTO struct {
	ID          string `json:"id"`
	Field       string `json:"field"`
	Delta       string `json:"delta"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// VOUCHERS
// =============================================================================

type CreateVoucherRequest struct {
	BuyerID string `json:"buyer_id"`
	Amount  string `json:"amount"`
}

type ProcessVoucherRequest struct {
	Code string `json:"code"`
}

type VoucherDTO struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	OwnerID   string  `json:"owner_id"`
	SellerID  *string `json:"seller_id,omitempty"`
	Amount    string  `json:"amount"`
	Processed bool    `json:"processed"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// =============================================================================
// TICKETS
// =============================================================================

type TicketTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	ExpiresAt   string `json:"expires_at"` // RFC 3339
}

type TicketTypeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitPrice   string `json:"unit_price"`
	ExpiresAt   string `json:"expires_at"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type IssueTicketsRequest struct {
	TypeID       string `json:"type_id"`
	BuyerName    string `json:"buyer_name"`
	BuyerContact string `json:"buyer_contact"`
	Quantity     int    `json:"quantity"`
}

type TicketDTO struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	TypeID       *string `json:"type_id,omitempty"`
	AgentID      string  `json:"agent_id"`
	BuyerName    string  `json:"buyer_name"`
	BuyerContact string  `json:"buyer_contact,omitempty"`
	ValidUntil   string  `json:"valid_until"`
	CreatedAt    string  `json:"created_at"`
}

type IssueTicketsResponse struct {
	Tickets          []TicketDTO   `json:"tickets"`
	TicketType       TicketTypeDTO `json:"ticket_type"`
	TotalCost        string        `json:"total_cost"`
	RemainingBalance string        `json:"remaining_balance"`
}

type TicketValidationDTO struct {
	Ticket     TicketDTO      `json:"ticket"`
	TicketType *TicketTypeDTO `json:"ticket_type,omitempty"`
	Valid      bool           `json:"valid"`
}

// =============================================================================
// PAYOUTS
// =============================================================================

type CreatePayoutRequest struct {
	Amount string `json:"amount"`
}

type PayoutRequestDTO struct {
	PaymentID   string  `json:"payment_id"`
	AccountID   string  `json:"account_id"`
	Amount      string  `json:"amount"`
	Status      string  `json:"status"`
	RequestedAt string  `json:"requested_at"`
	DecidedBy   *string `json:"decided_by,omitempty"`
	DecidedAt   *string `json:"decided_at,omitempty"`
}

type EntitlementDTO struct {
	Entitlement string `json:"entitlement"`
	TicketsSold int    `json:"tickets_sold"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type PayoutSettingsRequest struct {
	MonthlyQuota            int    `json:"monthly_quota"`
	FullSalary              string `json:"full_salary"`
	PartialSalaryPercentage string `json:"partial_salary_percentage"`
	BonusRate               string `json:"bonus_rate"`
}

type PayoutSettingsDTO struct {
	MonthlyQuota            int    `json:"monthly_quota"`
	FullSalary              string `json:"full_salary"`
	PartialSalaryPercentage string `json:"partial_salary_percentage"`
	BonusRate               string `json:"bonus_rate"`
	UpdatedAt               string `json:"updated_at,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		LoginID:   a.LoginID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func toWalletDTO(w *ledger.Wallet) WalletDTO {
	return WalletDTO{
		AccountID:      string(w.AccountID),
		VoucherBalance: w.VoucherBalance.String(),
		BonusBalance:   w.BonusBalance.String(),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:          string(e.ID),
		Field:       string(e.Field),
		Delta:       e.Delta.String(),
		Type:        string(e.Type),
		ReferenceID: e.ReferenceID,
		Reason:      e.Reason,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toVoucherDTO(v *ledger.Voucher) VoucherDTO {
	dto := VoucherDTO{
		ID:        string(v.ID),
		Code:      v.Code,
		OwnerID:   string(v.OwnerID),
		Amount:    v.Amount.String(),
		Processed: v.Processed,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.Format(time.RFC3339),
	}
	if v.SellerID != nil {
		s := string(*v.SellerID)
		dto.SellerID = &s
	}
	return dto
}

func toTicketTypeDTO(tt *ledger.TicketType) TicketTypeDTO {
	return TicketTypeDTO{
		ID:          string(tt.ID),
		Name:        tt.Name,
		Description: tt.Description,
		UnitPrice:   tt.UnitPrice.String(),
		ExpiresAt:   tt.ExpiresAt.Format(time.RFC3339),
		CreatedAt:   tt.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   tt.UpdatedAt.Format(time.RFC3339),
	}
}

func toTicketDTO(t *ledger.Ticket) TicketDTO {
	dto := TicketDTO{
		ID:           string(t.ID),
		Code:         t.Code,
		AgentID:      string(t.AgentID),
		BuyerName:    t.BuyerName,
		BuyerContact: t.BuyerContact,
		ValidUntil:   t.ValidUntil.Format(time.RFC3339),
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if t.TypeID != nil {
		s := string(*t.TypeID)
		dto.TypeID = &s
	}
	return dto
}

func toIssueTicketsResponse(res *ticket.IssueResult) IssueTicketsResponse {
	tickets := make([]TicketDTO, len(res.Tickets))
	for i := range res.Tickets {
		tickets[i] = toTicketDTO(&res.Tickets[i])
	}
	return IssueTicketsResponse{
		Tickets:          tickets,
		TicketType:       toTicketTypeDTO(&res.TicketType),
		TotalCost:        res.TotalCost.String(),
		RemainingBalance: res.RemainingBalance.String(),
	}
}

func toValidationDTO(v *ticket.Validation) TicketValidationDTO {
	dto := TicketValidationDTO{
		Ticket: toTicketDTO(&v.Ticket),
		Valid:  v.Valid,
	}
	if v.TicketType != nil {
		tt := toTicketTypeDTO(v.TicketType)
		dto.TicketType = &tt
	}
	return dto
}

func toPayoutRequestDTO(r *ledger.PayoutRequest) PayoutRequestDTO {
	dto := PayoutRequestDTO{
		PaymentID:   string(r.PaymentID),
		AccountID:   string(r.AccountID),
		Amount:      r.Amount.String(),
		Status:      string(r.Status),
		RequestedAt: r.RequestedAt.Format(time.RFC3339),
	}
	if r.DecidedBy != nil {
		s := string(*r.DecidedBy)
		dto.DecidedBy = &s
	}
	if r.DecidedAt != nil {
		s := r.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

func toPayoutSettingsDTO(s ledger.PayoutSettings) PayoutSettingsDTO {
	dto := PayoutSettingsDTO{
		MonthlyQuota:            s.MonthlyQuota,
		FullSalary:              s.FullSalary.String(),
		PartialSalaryPercentage: s.PartialSalaryPercentage.String(),
		BonusRate:               s.BonusRate.String(),
	}
	if !s.UpdatedAt.IsZero() {
		dto.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}
