package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/voucher-engine/ledger"
	"github.com/warp/voucher-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedWallet(t *testing.T, store ledger.Store, id string) ledger.AccountID {
	t.Helper()
	ctx := context.Background()
	err := store.SaveAccount(ctx, ledger.Account{
		ID:        ledger.AccountID(id),
		LoginID:   id,
		FirstName: id,
		Email:     id + "@example.com",
		Role:      ledger.RoleAgent,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateWallet(ctx, ledger.AccountID(id)))
	return ledger.AccountID(id)
}

// =============================================================================
// WALLET AND ENTRIES
// =============================================================================

func TestApplyDelta_RejectsOverdraft(t *testing.T) {
	// GIVEN: A wallet holding 10
	// WHEN: A 25 debit is applied
	// THEN: The balance is untouched and no entry is written

	store := newTestStore(t)
	ctx := context.Background()
	id := seedWallet(t, store, "agent-1")

	credit := ledger.Entry{
		ID:        "e-1",
		AccountID: id,
		Field:     ledger.VoucherBalance,
		Delta:     ledger.MustDecimal("10"),
		Type:      ledger.EntryAdjustment,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.ApplyDelta(ctx, credit))

	debit := credit
	debit.ID = "e-2"
	debit.Delta = ledger.MustDecimal("-25")
	err := store.ApplyDelta(ctx, debit)

	var bErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &bErr)
	assert.True(t, bErr.Available.Equal(ledger.MustDecimal("10")))
	assert.True(t, bErr.Requested.Equal(ledger.MustDecimal("25")))

	wallet, err := store.GetWallet(ctx, id)
	require.NoError(t, err)
	assert.True(t, wallet.VoucherBalance.Equal(ledger.MustDecimal("10")))

	entries, err := store.Entries(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the failed debit left no entry")
}

func TestInMemoryDB_ConcurrentReads(t *testing.T) {
	// An in-memory database must stay a single database even when concurrent
	// reads pull a second connection from the pool.

	store := newTestStore(t)
	ctx := context.Background()
	id := seedWallet(t, store, "agent-1")

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.GetWallet(ctx, id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestEntries_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := seedWallet(t, store, "agent-1")

	base := time.Now().UTC().Truncate(time.Second)
	for i, amount := range []string{"1", "2", "3"} {
		require.NoError(t, store.ApplyDelta(ctx, ledger.Entry{
			ID:        ledger.EntryID("e-" + amount),
			AccountID: id,
			Field:     ledger.BonusBalance,
			Delta:     ledger.MustDecimal(amount),
			Type:      ledger.EntryAdjustment,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := store.Entries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ledger.EntryID("e-1"), entries[0].ID)
	assert.Equal(t, ledger.EntryID("e-3"), entries[2].ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := seedWallet(t, store, "agent-1")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.ApplyDelta(ctx, ledger.Entry{
			ID:        "e-1",
			AccountID: id,
			Field:     ledger.BonusBalance,
			Delta:     ledger.MustDecimal("50"),
			Type:      ledger.EntryAdjustment,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	wallet, err := store.GetWallet(ctx, id)
	require.NoError(t, err)
	assert.True(t, wallet.BonusBalance.IsZero(), "credit rolled back with the tx")

	entries, err := store.Entries(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := seedWallet(t, store, "agent-1")

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		return tx.ApplyDelta(ctx, ledger.Entry{
			ID:        "e-1",
			AccountID: id,
			Field:     ledger.BonusBalance,
			Delta:     ledger.MustDecimal("50"),
			Type:      ledger.EntryAdjustment,
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	wallet, err := store.GetWallet(ctx, id)
	require.NoError(t, err)
	assert.True(t, wallet.BonusBalance.Equal(ledger.MustDecimal("50")))
}

// =============================================================================
// CONDITIONAL MUTATORS
// =============================================================================

func TestMarkVoucherProcessed_ExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := seedWallet(t, store, "merchant-1")

	now := time.Now().UTC()
	require.NoError(t, store.SaveVoucher(ctx, ledger.Voucher{
		ID:        "v-1",
		Code:      "CODE123456",
		OwnerID:   owner,
		Amount:    ledger.MustDecimal("100"),
		CreatedAt: now,
	}))

	require.NoError(t, store.MarkVoucherProcessed(ctx, "CODE123456", now))

	err := store.MarkVoucherProcessed(ctx, "CODE123456", now)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)

	err = store.MarkVoucherProcessed(ctx, "NOSUCHCODE", now)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	v, err := store.GetVoucherByCode(ctx, "CODE123456")
	require.NoError(t, err)
	assert.True(t, v.Processed)
}

func TestTransitionPayout_GuardsCurrentStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent := seedWallet(t, store, "agent-1")
	admin := seedWallet(t, store, "admin-1")

	now := time.Now().UTC()
	require.NoError(t, store.SavePayoutRequest(ctx, ledger.PayoutRequest{
		PaymentID:   "PAY-1",
		AccountID:   agent,
		Amount:      ledger.MustDecimal("50"),
		Status:      ledger.PayoutPending,
		RequestedAt: now,
	}))

	err := store.TransitionPayout(ctx, "PAY-1", ledger.PayoutPending, ledger.PayoutApproved, admin, now)
	require.NoError(t, err)

	// A second decision finds the request no longer pending.
	err = store.TransitionPayout(ctx, "PAY-1", ledger.PayoutPending, ledger.PayoutRejected, admin, now)
	var tErr *ledger.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, ledger.PayoutApproved, tErr.From)

	err = store.TransitionPayout(ctx, "PAY-missing", ledger.PayoutPending, ledger.PayoutApproved, admin, now)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListPayoutRequests_PendingFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent := seedWallet(t, store, "agent-1")
	admin := seedWallet(t, store, "admin-1")

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []ledger.PaymentID{"PAY-1", "PAY-2", "PAY-3"} {
		require.NoError(t, store.SavePayoutRequest(ctx, ledger.PayoutRequest{
			PaymentID:   id,
			AccountID:   agent,
			Amount:      ledger.MustDecimal("10"),
			Status:      ledger.PayoutPending,
			RequestedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.TransitionPayout(ctx, "PAY-3", ledger.PayoutPending, ledger.PayoutRejected, admin, base))

	all, err := store.ListPayoutRequests(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.PaymentID("PAY-2"), all[0].PaymentID, "newest pending first")
	assert.Equal(t, ledger.PaymentID("PAY-1"), all[1].PaymentID)
	assert.Equal(t, ledger.PaymentID("PAY-3"), all[2].PaymentID, "decided requests sink")

	pending := ledger.PayoutPending
	onlyPending, err := store.ListPayoutRequests(ctx, nil, &pending)
	require.NoError(t, err)
	assert.Len(t, onlyPending, 2)
}

// =============================================================================
// SETTINGS AND CONSTRAINTS
// =============================================================================

func TestPayoutSettings_DefaultsUntilSaved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.GetPayoutSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settings.MonthlyQuota)
	assert.True(t, settings.BonusRate.Equal(ledger.MustDecimal("5")))

	saved := ledger.PayoutSettings{
		MonthlyQuota:            12,
		FullSalary:              ledger.MustDecimal("2000"),
		PartialSalaryPercentage: ledger.MustDecimal("60"),
		BonusRate:               ledger.MustDecimal("7"),
		UpdatedAt:               time.Now().UTC(),
	}
	require.NoError(t, store.SavePayoutSettings(ctx, saved))

	settings, err = store.GetPayoutSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, settings.MonthlyQuota)
	assert.True(t, settings.FullSalary.Equal(ledger.MustDecimal("2000")))
}

func TestSaveAccount_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedWallet(t, store, "agent-1")

	err := store.SaveAccount(ctx, ledger.Account{
		ID:        "agent-2",
		LoginID:   "agent-2",
		FirstName: "Dup",
		Email:     "agent-1@example.com",
		Role:      ledger.RoleAgent,
		CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestDetachTickets_SurviveTypeDeletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent := seedWallet(t, store, "agent-1")

	now := time.Now().UTC().Truncate(time.Second)
	typeID := ledger.TicketTypeID("tt-1")
	require.NoError(t, store.SaveTicketType(ctx, ledger.TicketType{
		ID:        typeID,
		Name:      "Day Pass",
		UnitPrice: ledger.MustDecimal("25"),
		ExpiresAt: now.AddDate(0, 1, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, store.InsertTickets(ctx, []ledger.Ticket{{
		ID:         "t-1",
		Code:       "T-000000000001",
		TypeID:     &typeID,
		AgentID:    agent,
		BuyerName:  "Buyer",
		ValidUntil: now.AddDate(0, 1, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}}))

	detached, err := store.DetachTicketsFromType(ctx, typeID)
	require.NoError(t, err)
	assert.Equal(t, 1, detached)
	require.NoError(t, store.DeleteTicketType(ctx, typeID))

	ticket, err := store.GetTicketByCode(ctx, "T-000000000001")
	require.NoError(t, err)
	assert.Nil(t, ticket.TypeID, "the ticket outlives its type")
}
