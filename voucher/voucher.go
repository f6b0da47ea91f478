/*
Package voucher implements the voucher lifecycle: creation (which credits the
buyer's voucher balance), exactly-once processing (which accrues the owner's
bonus), and read-only lookups.

LIFECYCLE:

  seller creates ──▶ owner's voucher_balance credited, processed=false
        │
        ▼
  owner/admin processes ──▶ processed=true (irreversible, exactly once)
                            owner's bonus_balance credited at the bonus rate

RULES:
  - Agents sell only to Merchants; admin-issued vouchers carry a nil seller
    (rendered as "ADMIN" at the presentation layer)
  - Processing is restricted to the voucher's owner (Merchant) or an Admin
  - Code lookup is exact-match; codes are opaque 10-character tokens
*/
package voucher

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/voucher-engine/ledger"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const codeLength = 10

// Engine coordinates voucher operations against the store.
type Engine struct {
	Store ledger.Store
}

func NewEngine(store ledger.Store) *Engine {
	return &Engine{Store: store}
}

// =============================================================================
// CREATE
// =============================================================================

// Create issues a voucher from the calling seller to buyerID and credits the
// buyer's voucher balance by amount, atomically. Admin-issued vouchers record
// no seller. Returns the voucher including its generated code.
func (e *Engine) Create(ctx context.Context, sess ledger.Session, buyerID ledger.AccountID, amount decimal.Decimal) (*ledger.Voucher, error) {
	if err := ledger.Require(sess, "create vouchers", ledger.RoleAgent, ledger.RoleAdmin); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ledger.Validationf("amount", "voucher amount must be positive, got %s", amount)
	}

	buyer, err := e.Store.GetAccount(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("resolving buyer: %w", err)
	}

	var sellerID *ledger.AccountID
	if sess.Role == ledger.RoleAgent {
		if buyer.Role != ledger.RoleMerchant {
			return nil, ledger.Validationf("buyer", "agents may only issue vouchers to merchants")
		}
		id := sess.AccountID
		sellerID = &id
	}
	// Admin-issued vouchers keep sellerID nil.

	now := time.Now().UTC()
	v := ledger.Voucher{
		ID:        ledger.VoucherID(uuid.NewString()),
		OwnerID:   buyer.ID,
		SellerID:  sellerID,
		Amount:    amount,
		Processed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = e.Store.WithTx(ctx, func(tx ledger.Store) error {
		code, err := uniqueCode(ctx, tx)
		if err != nil {
			return err
		}
		v.Code = code

		if err := tx.SaveVoucher(ctx, v); err != nil {
			return err
		}
		return ledger.Credit(ctx, tx, buyer.ID, ledger.VoucherBalance, amount,
			ledger.EntryVoucherIssued, v.Code, "voucher issued")
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// =============================================================================
// PROCESS
// =============================================================================

// Process marks the voucher processed, exactly once, and credits the owner's
// bonus balance by amount times the configured bonus rate. Two concurrent
// calls on the same code yield one success and one ErrAlreadyProcessed.
func (e *Engine) Process(ctx context.Context, sess ledger.Session, code string) (*ledger.Voucher, error) {
	if err := ledger.Require(sess, "process vouchers", ledger.RoleMerchant, ledger.RoleAdmin); err != nil {
		return nil, err
	}

	var processed *ledger.Voucher
	err := e.Store.WithTx(ctx, func(tx ledger.Store) error {
		v, err := tx.GetVoucherByCode(ctx, code)
		if err != nil {
			return err
		}
		if sess.Role == ledger.RoleMerchant && v.OwnerID != sess.AccountID {
			return &ledger.ForbiddenError{Role: sess.Role, Operation: "process a voucher owned by another account"}
		}

		now := time.Now().UTC()
		if err := tx.MarkVoucherProcessed(ctx, code, now); err != nil {
			return err
		}

		settings, err := tx.GetPayoutSettings(ctx)
		if err != nil {
			return err
		}
		bonus := v.Amount.Mul(settings.BonusRate).Div(decimal.NewFromInt(100))
		if bonus.IsPositive() {
			if err := ledger.Credit(ctx, tx, v.OwnerID, ledger.BonusBalance, bonus,
				ledger.EntryProcessingBonus, v.Code, "voucher processing bonus"); err != nil {
				return err
			}
		}

		v.Processed = true
		v.UpdatedAt = now
		processed = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}

// =============================================================================
// READS
// =============================================================================

// Details returns the voucher for an exact code match. No side effects.
func (e *Engine) Details(ctx context.Context, code string) (*ledger.Voucher, error) {
	return e.Store.GetVoucherByCode(ctx, code)
}

// Sold lists vouchers the account sold, newest first.
func (e *Engine) Sold(ctx context.Context, accountID ledger.AccountID) ([]ledger.Voucher, error) {
	return e.Store.ListVouchersBySeller(ctx, accountID)
}

// Bought lists vouchers the account owns, newest first.
func (e *Engine) Bought(ctx context.Context, accountID ledger.AccountID) ([]ledger.Voucher, error) {
	return e.Store.ListVouchersByOwner(ctx, accountID)
}

// uniqueCode generates a code and retries on the (unlikely) collision.
func uniqueCode(ctx context.Context, s ledger.VoucherStore) (string, error) {
	for {
		code := generateCode()
		exists, err := s.VoucherCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
}

func generateCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
