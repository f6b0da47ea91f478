/*
Package payout implements payout requests against accrued bonus balances.

REQUEST FLOW:

  agent/merchant requests ──▶ validated against entitlement and bonus balance
                               │
                               ▼
                         ┌──────────┐
                         │ pending  │
                         └──────────┘
                          │        │
              admin approves     admin rejects
                          │        │
                          ▼        ▼
                    ┌──────────┐ ┌──────────┐
                    │ approved │ │ rejected │   (both terminal)
                    └──────────┘ └──────────┘

The bonus balance is only debited on approval, inside the same transaction as
the status flip; rejection has no balance effect. Once terminal, a request
cannot be re-processed.
*/
package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/voucher-engine/ledger"
)

// Engine coordinates payout operations against the store.
type Engine struct {
	Store ledger.Store

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewEngine(store ledger.Store) *Engine {
	return &Engine{Store: store, Now: time.Now}
}

// =============================================================================
// REQUEST
// =============================================================================

// Request creates a pending payout for the calling account. The amount must
// not exceed the caller's entitlement for the current month nor their bonus
// balance; each violation is reported with its own named reason. No balance
// is touched until an admin approves.
func (e *Engine) Request(ctx context.Context, sess ledger.Session, amount decimal.Decimal) (*ledger.PayoutRequest, error) {
	if err := ledger.Require(sess, "request payouts", ledger.RoleAgent, ledger.RoleMerchant); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ledger.Validationf("amount", "payout amount must be positive, got %s", amount)
	}

	var req *ledger.PayoutRequest
	err := e.Store.WithTx(ctx, func(tx ledger.Store) error {
		now := e.Now().UTC()

		settings, err := tx.GetPayoutSettings(ctx)
		if err != nil {
			return err
		}
		from, to := CurrentPeriod(now)
		sold, err := tx.CountTicketsByAgent(ctx, sess.AccountID, from, to)
		if err != nil {
			return err
		}
		entitlement := Entitlement(settings, sold)
		if amount.GreaterThan(entitlement) {
			return ledger.Validationf("amount",
				"amount exceeds entitlement: requested %s, entitled to %s (%d tickets sold this month)",
				amount, entitlement, sold)
		}

		w, err := tx.GetWallet(ctx, sess.AccountID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(w.BonusBalance) {
			return &ledger.InsufficientBalanceError{
				AccountID: sess.AccountID,
				Field:     ledger.BonusBalance,
				Available: w.BonusBalance,
				Requested: amount,
			}
		}

		r := ledger.PayoutRequest{
			PaymentID:   ledger.PaymentID("PAY-" + uuid.NewString()),
			AccountID:   sess.AccountID,
			Amount:      amount,
			Status:      ledger.PayoutPending,
			RequestedAt: now,
		}
		if err := tx.SavePayoutRequest(ctx, r); err != nil {
			return err
		}
		req = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// =============================================================================
// APPROVAL STATE MACHINE (admin)
// =============================================================================

// Approve moves a pending request to approved and debits the requester's
// bonus balance in the same transaction. Terminal requests fail with
// ErrInvalidTransition; a debit failure rolls the transition back.
func (e *Engine) Approve(ctx context.Context, sess ledger.Session, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	return e.decide(ctx, sess, id, ledger.PayoutApproved)
}

// Reject moves a pending request to rejected. No balance effect.
func (e *Engine) Reject(ctx context.Context, sess ledger.Session, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	return e.decide(ctx, sess, id, ledger.PayoutRejected)
}

func (e *Engine) decide(ctx context.Context, sess ledger.Session, id ledger.PaymentID, to ledger.PayoutStatus) (*ledger.PayoutRequest, error) {
	if err := ledger.Require(sess, "decide payouts", ledger.RoleAdmin); err != nil {
		return nil, err
	}

	var decided *ledger.PayoutRequest
	err := e.Store.WithTx(ctx, func(tx ledger.Store) error {
		r, err := tx.GetPayoutRequest(ctx, id)
		if err != nil {
			return err
		}
		now := e.Now().UTC()
		if err := tx.TransitionPayout(ctx, id, ledger.PayoutPending, to, sess.AccountID, now); err != nil {
			return err
		}
		if to == ledger.PayoutApproved {
			if err := ledger.Debit(ctx, tx, r.AccountID, ledger.BonusBalance, r.Amount,
				ledger.EntryPayout, string(id), "payout approved"); err != nil {
				return err
			}
		}
		r.Status = to
		r.DecidedBy = &sess.AccountID
		r.DecidedAt = &now
		decided = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// =============================================================================
// READS
// =============================================================================

// List returns payout requests. Admins see everyone's (pending first); other
// roles only their own. An optional status narrows the result.
func (e *Engine) List(ctx context.Context, sess ledger.Session, status *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	if ledger.IsAdmin(sess) {
		return e.Store.ListPayoutRequests(ctx, nil, status)
	}
	id := sess.AccountID
	return e.Store.ListPayoutRequests(ctx, &id, status)
}

// Get returns one request by payment ID. Non-admins may only read their own.
func (e *Engine) Get(ctx context.Context, sess ledger.Session, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	r, err := e.Store.GetPayoutRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ledger.IsAdmin(sess) && r.AccountID != sess.AccountID {
		return nil, &ledger.ForbiddenError{Role: sess.Role, Operation: "read another account's payout"}
	}
	return r, nil
}

// EntitlementFor computes the caller's live entitlement and tickets sold for
// the current month. Read-only; used by the request form.
func (e *Engine) EntitlementFor(ctx context.Context, sess ledger.Session) (decimal.Decimal, int, error) {
	settings, err := e.Store.GetPayoutSettings(ctx)
	if err != nil {
		return decimal.Zero, 0, err
	}
	from, to := CurrentPeriod(e.Now())
	sold, err := e.Store.CountTicketsByAgent(ctx, sess.AccountID, from, to)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return Entitlement(settings, sold), sold, nil
}

// =============================================================================
// SETTINGS (admin)
// =============================================================================

// Settings returns the singleton payout settings.
func (e *Engine) Settings(ctx context.Context) (ledger.PayoutSettings, error) {
	return e.Store.GetPayoutSettings(ctx)
}

// UpdateSettings replaces the singleton atomically after range-checking every
// field.
func (e *Engine) UpdateSettings(ctx context.Context, sess ledger.Session, s ledger.PayoutSettings) (*ledger.PayoutSettings, error) {
	if err := ledger.Require(sess, "update payout settings", ledger.RoleAdmin); err != nil {
		return nil, err
	}
	if s.MonthlyQuota < 0 {
		return nil, ledger.Validationf("monthly_quota", "monthly quota must be >= 0, got %d", s.MonthlyQuota)
	}
	if s.FullSalary.IsNegative() {
		return nil, ledger.Validationf("full_salary", "full salary must be >= 0, got %s", s.FullSalary)
	}
	if err := checkPercent("partial_salary_percentage", s.PartialSalaryPercentage); err != nil {
		return nil, err
	}
	if err := checkPercent("bonus_rate", s.BonusRate); err != nil {
		return nil, err
	}
	s.UpdatedAt = e.Now().UTC()
	if err := e.Store.SavePayoutSettings(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

func checkPercent(field string, d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return ledger.Validationf(field, "must be between 0 and 100, got %s", d)
	}
	return nil
}
