/*
Package ledger holds the durable data model and balance rules shared by the
voucher, ticket, and payout engines.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: a user with a role (Agent, Merchant, Admin) and exactly one Wallet
  - Wallet: the two balances every engine settles against
  - Entry: an immutable audit record for every balance change
  - Voucher / TicketType / Ticket / PayoutRequest: the persisted entities

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float
  2. Type safety: distinct ID types so account/voucher/ticket IDs can't mix
  3. Auditability: every credit/debit appends an Entry with reference and reason

SEE ALSO:
  - errors.go: Error taxonomy used across engines
  - ledger.go: Credit/Debit over a WalletStore
  - store.go: Persistence contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type VoucherID string
type TicketTypeID string
type TicketID string
type PaymentID string
type EntryID string

// =============================================================================
// ROLES & SESSIONS
// =============================================================================

type Role string

const (
	RoleAgent    Role = "Agent"
	RoleMerchant Role = "Merchant"
	RoleAdmin    Role = "Admin"
)

// Session identifies the caller of an engine operation. It is always passed
// explicitly; engines never read identity from ambient state.
type Session struct {
	AccountID AccountID
	Role      Role
}

// =============================================================================
// ACCOUNT & WALLET
// =============================================================================

type Account struct {
	ID           AccountID
	LoginID      string // human-facing short ID, e.g. "KQD-042"
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// BalanceField names one of the two wallet balances. The voucher and ticket
// engines settle against VoucherBalance; the payout engine against BonusBalance.
type BalanceField string

const (
	VoucherBalance BalanceField = "voucher_balance"
	BonusBalance   BalanceField = "bonus_balance"
)

// Wallet holds the materialized balances for one account.
// INVARIANT: both balances are always >= 0. Debits that would break this are
// rejected atomically by the store.
type Wallet struct {
	AccountID      AccountID
	VoucherBalance decimal.Decimal
	BonusBalance   decimal.Decimal
}

// Balance returns the named field's current value.
func (w *Wallet) Balance(field BalanceField) decimal.Decimal {
	if field == BonusBalance {
		return w.BonusBalance
	}
	return w.VoucherBalance
}

// =============================================================================
// ENTRY - Append-only audit record for wallet mutations
// =============================================================================

type EntryType string

const (
	EntryVoucherIssued   EntryType = "voucher_issued"   // buyer credited at voucher creation
	EntryProcessingBonus EntryType = "processing_bonus" // owner's bonus credited when a voucher is processed
	EntryTicketPurchase  EntryType = "ticket_purchase"  // agent debited for issued tickets
	EntryPayout          EntryType = "payout"           // bonus debited on payout approval
	EntryAdjustment      EntryType = "adjustment"       // manual admin correction
)

// Entry records a single balance change. Entries are append-only: corrections
// are new entries with opposite sign, never edits.
type Entry struct {
	ID          EntryID
	AccountID   AccountID
	Field       BalanceField
	Delta       decimal.Decimal // signed: positive credit, negative debit
	Type        EntryType
	ReferenceID string // voucher code, ticket code, payment ID...
	Reason      string
	CreatedAt   time.Time
}

// =============================================================================
// VOUCHER
// =============================================================================

// Voucher is a stored-value transfer from a seller to a buyer (the owner).
// Lifecycle: created (credits the owner's voucher balance) -> processed exactly
// once -> never deleted.
type Voucher struct {
	ID        VoucherID
	Code      string // opaque token, unique, exact-match lookup only
	OwnerID   AccountID
	SellerID  *AccountID // nil when issued by an admin; displayed as "ADMIN"
	Amount    decimal.Decimal
	Processed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// TICKETS
// =============================================================================

type TicketType struct {
	ID          TicketTypeID
	Name        string
	UnitPrice   decimal.Decimal
	Description string
	ExpiresAt   time.Time // no new tickets may be issued past this instant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the type can no longer be used for issuance.
func (tt *TicketType) Expired(now time.Time) bool {
	return !now.Before(tt.ExpiresAt)
}

// Ticket is issued by an agent against a TicketType. TypeID becomes nil if the
// type is later deleted; such tickets are reported as Gone at validation.
type Ticket struct {
	ID           TicketID
	Code         string
	TypeID       *TicketTypeID
	AgentID      AccountID
	BuyerName    string
	BuyerContact string
	ValidUntil   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// PAYOUTS
// =============================================================================

type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutApproved PayoutStatus = "approved"
	PayoutRejected PayoutStatus = "rejected"
)

// Terminal reports whether no further transition is permitted.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutApproved || s == PayoutRejected
}

type PayoutRequest struct {
	PaymentID   PaymentID
	AccountID   AccountID
	Amount      decimal.Decimal
	Status      PayoutStatus
	RequestedAt time.Time
	DecidedBy   *AccountID
	DecidedAt   *time.Time
}

// PayoutSettings is the admin-configured singleton driving entitlement:
// meeting MonthlyQuota pays FullSalary, meeting half of it pays
// FullSalary * PartialSalaryPercentage / 100, anything less pays nothing.
// BonusRate is the percentage of a processed voucher's amount credited to the
// owner's bonus balance.
type PayoutSettings struct {
	MonthlyQuota            int
	FullSalary              decimal.Decimal
	PartialSalaryPercentage decimal.Decimal // 0..100
	BonusRate               decimal.Decimal // 0..100
	UpdatedAt               time.Time
}

// DefaultPayoutSettings returns the settings in effect before an admin has
// configured any.
func DefaultPayoutSettings() PayoutSettings {
	return PayoutSettings{
		MonthlyQuota:            0,
		FullSalary:              decimal.Zero,
		PartialSalaryPercentage: decimal.Zero,
		BonusRate:               decimal.NewFromInt(5),
	}
}

// MustDecimal parses s or returns zero. Intended for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
