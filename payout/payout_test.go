package payout_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/voucher-engine/ledger"
	"github.com/warp/voucher-engine/payout"
	"github.com/warp/voucher-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*payout.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	return payout.NewEngine(store), store
}

func seedAccount(t *testing.T, store ledger.Store, id string, role ledger.Role) ledger.Session {
	t.Helper()
	ctx := context.Background()
	err := store.SaveAccount(ctx, ledger.Account{
		ID:        ledger.AccountID(id),
		LoginID:   id,
		FirstName: id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateWallet(ctx, ledger.AccountID(id)))
	return ledger.Session{AccountID: ledger.AccountID(id), Role: role}
}

func fundBonus(t *testing.T, store ledger.Store, id ledger.AccountID, amount string) {
	t.Helper()
	err := ledger.Credit(context.Background(), store, id, ledger.BonusBalance,
		dec(amount), ledger.EntryAdjustment, "", "test funding")
	require.NoError(t, err)
}

// sellTickets records n tickets issued by the agent right now.
func sellTickets(t *testing.T, store ledger.Store, agentID ledger.AccountID, n int) {
	t.Helper()
	now := time.Now().UTC()
	tickets := make([]ledger.Ticket, n)
	for i := range tickets {
		tickets[i] = ledger.Ticket{
			ID:         ledger.TicketID(uuid.NewString()),
			Code:       fmt.Sprintf("T-%s-%d", agentID, i),
			AgentID:    agentID,
			BuyerName:  "Buyer",
			ValidUntil: now.AddDate(0, 1, 0),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	require.NoError(t, store.InsertTickets(context.Background(), tickets))
}

// configure sets quota 10, full salary 1000, partial 50%, bonus rate 5%.
func configure(t *testing.T, engine *payout.Engine, store ledger.Store) ledger.Session {
	t.Helper()
	admin := seedAccount(t, store, "admin-1", ledger.RoleAdmin)
	_, err := engine.UpdateSettings(context.Background(), admin, ledger.PayoutSettings{
		MonthlyQuota:            10,
		FullSalary:              dec("1000"),
		PartialSalaryPercentage: dec("50"),
		BonusRate:               dec("5"),
	})
	require.NoError(t, err)
	return admin
}

func dec(s string) decimal.Decimal {
	return ledger.MustDecimal(s)
}

// =============================================================================
// ENTITLEMENT POLICY
// =============================================================================

func TestEntitlement_StepFunction(t *testing.T) {
	settings := ledger.PayoutSettings{
		MonthlyQuota:            10,
		FullSalary:              dec("1000"),
		PartialSalaryPercentage: dec("50"),
	}

	cases := []struct {
		sold int
		want string
	}{
		{0, "0"},
		{4, "0"},
		{5, "500"},  // half quota -> partial
		{9, "500"},  // still partial
		{10, "1000"}, // quota met -> full
		{25, "1000"},
	}
	for _, tc := range cases {
		got := payout.Entitlement(settings, tc.sold)
		assert.True(t, got.Equal(dec(tc.want)), "sold=%d: want %s, got %s", tc.sold, tc.want, got)
	}
}

func TestEntitlement_OddQuotaHalf(t *testing.T) {
	settings := ledger.PayoutSettings{
		MonthlyQuota:            5,
		FullSalary:              dec("1000"),
		PartialSalaryPercentage: dec("40"),
	}

	// Half of 5 is 2.5: two sales miss it, three clear it.
	assert.True(t, payout.Entitlement(settings, 2).IsZero())
	assert.True(t, payout.Entitlement(settings, 3).Equal(dec("400")))
}

func TestEntitlement_ZeroQuotaIsTriviallyMet(t *testing.T) {
	// A zero quota is satisfied by any sales count, including zero.
	settings := ledger.PayoutSettings{
		MonthlyQuota:            0,
		FullSalary:              dec("50000"),
		PartialSalaryPercentage: dec("20"),
	}
	assert.True(t, payout.Entitlement(settings, 10).Equal(dec("50000")))
	assert.True(t, payout.Entitlement(settings, 0).Equal(dec("50000")))

	// The unconfigured defaults still owe nothing: the default salary is zero.
	assert.True(t, payout.Entitlement(ledger.DefaultPayoutSettings(), 10).IsZero())
}

func TestEntitlement_MonotonicInSales(t *testing.T) {
	settings := ledger.PayoutSettings{
		MonthlyQuota:            7,
		FullSalary:              dec("900"),
		PartialSalaryPercentage: dec("30"),
	}
	prev := decimal.Zero
	for sold := 0; sold <= 20; sold++ {
		cur := payout.Entitlement(settings, sold)
		assert.True(t, cur.GreaterThanOrEqual(prev), "entitlement dropped at sold=%d", sold)
		prev = cur
	}
}

func TestCurrentPeriod_CalendarMonth(t *testing.T) {
	now := time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC)
	start, end := payout.CurrentPeriod(now)

	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), end)
}

// =============================================================================
// REQUEST
// =============================================================================

func TestRequest_WithinEntitlementAndBalance(t *testing.T) {
	// GIVEN: An agent who met the quota, holding 100 bonus
	// WHEN: They request an 80 payout
	// THEN: A pending request is created and nothing is debited yet

	engine, store := newTestEngine(t)
	ctx := context.Background()
	configure(t, engine, store)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 10)
	fundBonus(t, store, agent.AccountID, "100")

	r, err := engine.Request(ctx, agent, dec("80"))
	require.NoError(t, err)

	assert.Regexp(t, `^PAY-`, string(r.PaymentID))
	assert.Equal(t, ledger.PayoutPending, r.Status)
	assert.True(t, r.Amount.Equal(dec("80")))

	wallet, err := store.GetWallet(ctx, agent.AccountID)
	require.NoError(t, err)
	assert.True(t, wallet.BonusBalance.Equal(dec("100")), "request alone never debits")
}

func TestRequest_ExceedsEntitlement(t *testing.T) {
	engine, store := newTestEngine(t)
	configure(t, engine, store)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 5) // partial: entitled to 500
	fundBonus(t, store, agent.AccountID, "10000")

	_, err := engine.Request(context.Background(), agent, dec("501"))

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)
}

func TestRequest_ExceedsBonusBalance(t *testing.T) {
	engine, store := newTestEngine(t)
	configure(t, engine, store)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 10)
	fundBonus(t, store, agent.AccountID, "30")

	_, err := engine.Request(context.Background(), agent, dec("50"))

	var bErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, ledger.BonusBalance, bErr.Field)
	assert.True(t, bErr.Shortfall().Equal(dec("20")))
}

func TestRequest_BelowQuotaGetsNothing(t *testing.T) {
	engine, store := newTestEngine(t)
	configure(t, engine, store)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 2)
	fundBonus(t, store, agent.AccountID, "1000")

	_, err := engine.Request(context.Background(), agent, dec("1"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRequest_AdminForbidden(t *testing.T) {
	engine, store := newTestEngine(t)
	admin := configure(t, engine, store)

	_, err := engine.Request(context.Background(), admin, dec("10"))
	var fErr *ledger.ForbiddenError
	assert.ErrorAs(t, err, &fErr)
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

func submitRequest(t *testing.T, engine *payout.Engine, store ledger.Store, agentID string, amount string) (*ledger.PayoutRequest, ledger.Session) {
	t.Helper()
	agent := seedAccount(t, store, agentID, ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 10)
	fundBonus(t, store, agent.AccountID, "100")
	r, err := engine.Request(context.Background(), agent, dec(amount))
	require.NoError(t, err)
	return r, agent
}

func TestApprove_DebitsBonus(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := configure(t, engine, store)
	r, agent := submitRequest(t, engine, store, "agent-1", "80")

	decided, err := engine.Approve(ctx, admin, r.PaymentID)
	require.NoError(t, err)

	assert.Equal(t, ledger.PayoutApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, admin.AccountID, *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)

	wallet, err := store.GetWallet(ctx, agent.AccountID)
	require.NoError(t, err)
	assert.True(t, wallet.BonusBalance.Equal(dec("20")))

	entries, err := store.Entries(ctx, agent.AccountID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, ledger.EntryPayout, last.Type)
	assert.True(t, last.Delta.Equal(dec("-80")))
	assert.Equal(t, string(r.PaymentID), last.ReferenceID)
}

func TestReject_LeavesBalanceAlone(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := configure(t, engine, store)
	r, agent := submitRequest(t, engine, store, "agent-1", "80")

	decided, err := engine.Reject(ctx, admin, r.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutRejected, decided.Status)

	wallet, err := store.GetWallet(ctx, agent.AccountID)
	require.NoError(t, err)
	assert.True(t, wallet.BonusBalance.Equal(dec("100")))
}

func TestDecide_TerminalStatesAreFinal(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := configure(t, engine, store)
	r, _ := submitRequest(t, engine, store, "agent-1", "80")

	_, err := engine.Approve(ctx, admin, r.PaymentID)
	require.NoError(t, err)

	// Neither a second approve nor a reject may move it again.
	_, err = engine.Approve(ctx, admin, r.PaymentID)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	_, err = engine.Reject(ctx, admin, r.PaymentID)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestDecide_AdminOnly(t *testing.T) {
	engine, store := newTestEngine(t)
	configure(t, engine, store)
	r, agent := submitRequest(t, engine, store, "agent-1", "80")

	_, err := engine.Approve(context.Background(), agent, r.PaymentID)
	var fErr *ledger.ForbiddenError
	assert.ErrorAs(t, err, &fErr)
}

func TestApprove_InsufficientBalanceRollsBack(t *testing.T) {
	// GIVEN: Two pending 60 requests against a 100 bonus balance
	// WHEN: Both are approved
	// THEN: The second approval fails entirely and the request stays pending

	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := configure(t, engine, store)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 10)
	fundBonus(t, store, agent.AccountID, "100")

	r1, err := engine.Request(ctx, agent, dec("60"))
	require.NoError(t, err)
	r2, err := engine.Request(ctx, agent, dec("60"))
	require.NoError(t, err)

	_, err = engine.Approve(ctx, admin, r1.PaymentID)
	require.NoError(t, err)

	_, err = engine.Approve(ctx, admin, r2.PaymentID)
	var bErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &bErr)

	// The failed approval left no trace.
	got, err := store.GetPayoutRequest(ctx, r2.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutPending, got.Status)

	wallet, err := store.GetWallet(ctx, agent.AccountID)
	require.NoError(t, err)
	assert.True(t, wallet.BonusBalance.Equal(dec("40")))
}

func TestDecide_UnknownRequest(t *testing.T) {
	engine, store := newTestEngine(t)
	admin := configure(t, engine, store)

	_, err := engine.Approve(context.Background(), admin, "PAY-missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// READS
// =============================================================================

func TestListAndGet_Visibility(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := configure(t, engine, store)
	r1, agent1 := submitRequest(t, engine, store, "agent-1", "10")
	_, agent2 := submitRequest(t, engine, store, "agent-2", "20")

	// Admin sees both; an agent only their own.
	all, err := engine.List(ctx, admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := engine.List(ctx, agent1, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r1.PaymentID, mine[0].PaymentID)

	_, err = engine.Get(ctx, agent2, r1.PaymentID)
	var fErr *ledger.ForbiddenError
	assert.ErrorAs(t, err, &fErr)

	got, err := engine.Get(ctx, admin, r1.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, r1.PaymentID, got.PaymentID)
}

func TestList_PendingFirst(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := configure(t, engine, store)
	r1, _ := submitRequest(t, engine, store, "agent-1", "10")
	r2, _ := submitRequest(t, engine, store, "agent-2", "20")

	_, err := engine.Reject(ctx, admin, r1.PaymentID)
	require.NoError(t, err)

	all, err := engine.List(ctx, admin, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r2.PaymentID, all[0].PaymentID, "pending sorts before decided")
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestEntitlementFor(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	configure(t, engine, store)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)
	sellTickets(t, store, agent.AccountID, 6)

	entitlement, sold, err := engine.EntitlementFor(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 6, sold)
	assert.True(t, entitlement.Equal(dec("500")))
}

func TestSettings_DefaultsBeforeConfiguration(t *testing.T) {
	engine, _ := newTestEngine(t)

	settings, err := engine.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, settings.MonthlyQuota)
	assert.True(t, settings.BonusRate.Equal(dec("5")), "bonus accrual works out of the box")
}

func TestUpdateSettings_Validation(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := seedAccount(t, store, "admin-1", ledger.RoleAdmin)
	agent := seedAccount(t, store, "agent-1", ledger.RoleAgent)

	base := ledger.PayoutSettings{
		MonthlyQuota:            10,
		FullSalary:              dec("1000"),
		PartialSalaryPercentage: dec("50"),
		BonusRate:               dec("5"),
	}

	_, err := engine.UpdateSettings(ctx, agent, base)
	var fErr *ledger.ForbiddenError
	assert.ErrorAs(t, err, &fErr)

	bad := base
	bad.MonthlyQuota = -1
	_, err = engine.UpdateSettings(ctx, admin, bad)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	bad = base
	bad.PartialSalaryPercentage = dec("101")
	_, err = engine.UpdateSettings(ctx, admin, bad)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	bad = base
	bad.BonusRate = dec("-1")
	_, err = engine.UpdateSettings(ctx, admin, bad)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	updated, err := engine.UpdateSettings(ctx, admin, base)
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.IsZero())
}
