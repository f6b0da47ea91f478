/*
ledger.go - Credit/Debit over a WalletStore

PURPOSE:
  The single place balances are mutated. Engines never write wallet fields
  directly; they call Credit or Debit, which validate the amount, apply the
  signed delta, and leave an audit Entry, all through the store's atomic
  ApplyDelta.

INVARIANTS:
  1. Amounts passed to Credit/Debit are strictly positive
  2. No debit may drive a balance negative (enforced by the store)
  3. Every mutation is paired with exactly one Entry
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit increases the named balance of the account by amount.
func Credit(ctx context.Context, s WalletStore, accountID AccountID, field BalanceField, amount decimal.Decimal, typ EntryType, referenceID, reason string) error {
	if !amount.IsPositive() {
		return Validationf("amount", "credit amount must be positive, got %s", amount)
	}
	return s.ApplyDelta(ctx, Entry{
		ID:          EntryID(uuid.NewString()),
		AccountID:   accountID,
		Field:       field,
		Delta:       amount,
		Type:        typ,
		ReferenceID: referenceID,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	})
}

// Debit decreases the named balance of the account by amount. Fails with
// *InsufficientBalanceError if amount exceeds the current balance; the wallet
// is left untouched in that case.
func Debit(ctx context.Context, s WalletStore, accountID AccountID, field BalanceField, amount decimal.Decimal, typ EntryType, referenceID, reason string) error {
	if !amount.IsPositive() {
		return Validationf("amount", "debit amount must be positive, got %s", amount)
	}
	return s.ApplyDelta(ctx, Entry{
		ID:          EntryID(uuid.NewString()),
		AccountID:   accountID,
		Field:       field,
		Delta:       amount.Neg(),
		Type:        typ,
		ReferenceID: referenceID,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	})
}
