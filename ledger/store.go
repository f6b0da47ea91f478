/*
store.go - Persistence contract for all engines

PURPOSE:
  Defines the interface between the engines and the database. Implementations
  live in store/memory (tests/dev) and store/sqlite (production).

ATOMICITY:
  Every externally-facing operation runs its read-check-write sequence inside
  WithTx, so a concurrent caller can never observe the check and the write as
  two separate steps. Conditional mutators (ApplyDelta, MarkVoucherProcessed,
  TransitionPayout) fail instead of applying partially.

AUDIT:
  Wallet mutations go through ApplyDelta, which adjusts the balance and
  appends the audit Entry in one atomic step. There is no way to change a
  balance without leaving an Entry.

SEE ALSO:
  - ledger.go: Credit/Debit built on WalletStore
  - store/memory: in-memory implementation
  - store/sqlite: SQLite implementation
*/
package ledger

import (
	"context"
	"time"
)

// Store aggregates all persistence capabilities. WithTx executes fn against a
// transactional view of the same Store; if fn returns an error nothing is
// committed.
type Store interface {
	AccountStore
	WalletStore
	VoucherStore
	TicketStore
	PayoutStore

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountStore interface {
	// SaveAccount inserts a new account. Fails with ErrConflict if the email
	// or login ID is already taken.
	SaveAccount(ctx context.Context, a Account) error

	// GetAccount returns the account or ErrNotFound.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// FindAccountByLogin resolves an email or a login ID, exact match only.
	FindAccountByLogin(ctx context.Context, emailOrLoginID string) (*Account, error)

	// LoginIDExists reports whether the short login ID is taken.
	LoginIDExists(ctx context.Context, loginID string) (bool, error)

	ListAccountsByRole(ctx context.Context, role Role) ([]Account, error)

	// SetAccountRole updates the role. ErrNotFound if the account is unknown.
	SetAccountRole(ctx context.Context, id AccountID, role Role) error
}

// =============================================================================
// WALLETS
// =============================================================================

type WalletStore interface {
	// CreateWallet initializes a zero-balance wallet for the account.
	CreateWallet(ctx context.Context, accountID AccountID) error

	// GetWallet returns the wallet or ErrNotFound.
	GetWallet(ctx context.Context, accountID AccountID) (*Wallet, error)

	// ApplyDelta adjusts one balance field by entry.Delta and appends entry,
	// as a single atomic unit. A negative delta that would drive the balance
	// below zero fails with *InsufficientBalanceError and changes nothing.
	ApplyDelta(ctx context.Context, entry Entry) error

	// Entries returns the audit trail for an account, oldest first.
	Entries(ctx context.Context, accountID AccountID) ([]Entry, error)
}

// =============================================================================
// VOUCHERS
// =============================================================================

type VoucherStore interface {
	SaveVoucher(ctx context.Context, v Voucher) error

	// GetVoucherByCode is an exact-match lookup; ErrNotFound if unknown.
	GetVoucherByCode(ctx context.Context, code string) (*Voucher, error)

	VoucherCodeExists(ctx context.Context, code string) (bool, error)

	// MarkVoucherProcessed flips processed false->true. Exactly one caller
	// succeeds: returns ErrNotFound for unknown codes and ErrAlreadyProcessed
	// if the flag was already set.
	MarkVoucherProcessed(ctx context.Context, code string, at time.Time) error

	ListVouchersBySeller(ctx context.Context, sellerID AccountID) ([]Voucher, error)
	ListVouchersByOwner(ctx context.Context, ownerID AccountID) ([]Voucher, error)
}

// =============================================================================
// TICKETS
// =============================================================================

type TicketStore interface {
	SaveTicketType(ctx context.Context, tt TicketType) error
	GetTicketType(ctx context.Context, id TicketTypeID) (*TicketType, error)
	ListTicketTypes(ctx context.Context) ([]TicketType, error)

	// DeleteTicketType removes the type. Issued tickets keep their code and
	// buyer info but must already have been detached via DetachTicketsFromType.
	DeleteTicketType(ctx context.Context, id TicketTypeID) error

	// DetachTicketsFromType nulls the type reference on every ticket of the
	// type, putting them in the distinguished "deleted ticket type" state.
	DetachTicketsFromType(ctx context.Context, id TicketTypeID) (int, error)

	// RestampTickets sets valid_until on every ticket of the type. Used when
	// an admin moves a type's expiration.
	RestampTickets(ctx context.Context, id TicketTypeID, validUntil time.Time) error

	// InsertTickets persists a batch atomically.
	InsertTickets(ctx context.Context, ts []Ticket) error

	GetTicketByCode(ctx context.Context, code string) (*Ticket, error)

	// ListTicketsByAgent returns the agent's tickets, optionally bounded by
	// creation time. Nil bounds mean unbounded.
	ListTicketsByAgent(ctx context.Context, agentID AccountID, from, to *time.Time) ([]Ticket, error)

	// CountTicketsByAgent counts tickets the agent issued in [from, to).
	CountTicketsByAgent(ctx context.Context, agentID AccountID, from, to time.Time) (int, error)
}

// =============================================================================
// PAYOUTS
// =============================================================================

type PayoutStore interface {
	SavePayoutRequest(ctx context.Context, r PayoutRequest) error
	GetPayoutRequest(ctx context.Context, id PaymentID) (*PayoutRequest, error)

	// ListPayoutRequests filters by account and/or status; nil means no
	// filter. Pending requests sort before decided ones, newest first within
	// each group.
	ListPayoutRequests(ctx context.Context, accountID *AccountID, status *PayoutStatus) ([]PayoutRequest, error)

	// TransitionPayout moves a request from exactly `from` to `to`, recording
	// the deciding admin. Returns ErrNotFound for unknown IDs and
	// *TransitionError if the current status is not `from`.
	TransitionPayout(ctx context.Context, id PaymentID, from, to PayoutStatus, by AccountID, at time.Time) error

	// GetPayoutSettings returns the singleton, or the defaults if an admin
	// has never configured it.
	GetPayoutSettings(ctx context.Context) (PayoutSettings, error)

	SavePayoutSettings(ctx context.Context, s PayoutSettings) error
}
