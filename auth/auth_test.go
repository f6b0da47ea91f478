package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/voucher-engine/auth"
	"github.com/warp/voucher-engine/ledger"
	"github.com/warp/voucher-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*auth.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return auth.NewService(store, "test-secret"), store
}

func registerAgent(t *testing.T, svc *auth.Service, email string) *ledger.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), auth.RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "hunter2024",
	})
	require.NoError(t, err)
	return account
}

// =============================================================================
// REGISTER
// =============================================================================

func TestRegister_CreatesAgentWithWallet(t *testing.T) {
	// GIVEN: A fresh service
	// WHEN: Someone signs up
	// THEN: They get an agent account, a login ID, and an empty wallet

	svc, store := newTestService(t)
	ctx := context.Background()

	account := registerAgent(t, svc, "Ada@Example.com")

	assert.Equal(t, ledger.RoleAgent, account.Role)
	assert.Equal(t, "ada@example.com", account.Email, "emails are stored lowercased")
	assert.Regexp(t, `^[A-Z]{3}-\d{3}$`, account.LoginID)
	assert.NotEqual(t, "hunter2024", account.PasswordHash, "password is hashed at rest")

	wallet, err := store.GetWallet(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, wallet.VoucherBalance.IsZero())
	assert.True(t, wallet.BonusBalance.IsZero())
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    auth.RegisterInput
		field string
	}{
		{"missing first name", auth.RegisterInput{Email: "a@b.com", Password: "hunter2024"}, "first_name"},
		{"bad email", auth.RegisterInput{FirstName: "Ada", Email: "not-an-email", Password: "hunter2024"}, "email"},
		{"short password", auth.RegisterInput{FirstName: "Ada", Email: "a@b.com", Password: "ab1"}, "password"},
		{"password without digit", auth.RegisterInput{FirstName: "Ada", Email: "a@b.com", Password: "longenoughpw"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			var vErr *ledger.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	registerAgent(t, svc, "ada@example.com")

	_, err := svc.Register(context.Background(), auth.RegisterInput{
		FirstName: "Ada",
		Email:     "ADA@example.com",
		Password:  "hunter2024",
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_ByEmailAndByLoginID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := registerAgent(t, svc, "ada@example.com")

	token, got, err := svc.Login(ctx, "ada@example.com", "hunter2024")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, account.ID, got.ID)

	token, got, err = svc.Login(ctx, account.LoginID, "hunter2024")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, account.ID, got.ID)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerAgent(t, svc, "ada@example.com")

	_, _, err := svc.Login(ctx, "ada@example.com", "wrongpass99")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter2024")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestParseSession_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := registerAgent(t, svc, "ada@example.com")

	token, _, err := svc.Login(ctx, "ada@example.com", "hunter2024")
	require.NoError(t, err)

	sess, err := svc.ParseSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, sess.AccountID)
	assert.Equal(t, ledger.RoleAgent, sess.Role)

	current, err := svc.CurrentAccount(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, account.Email, current.Email)
}

func TestParseSession_RejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ParseSession(ctx, "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// Token signed with a different secret.
	other := auth.NewService(memory.New(), "other-secret")
	registerAgent(t, other, "ada@example.com")
	token, _, err := other.Login(ctx, "ada@example.com", "hunter2024")
	require.NoError(t, err)

	_, err = svc.ParseSession(ctx, token)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// =============================================================================
// PROMOTION
// =============================================================================

func seedAdmin(t *testing.T, store ledger.Store) ledger.Session {
	t.Helper()
	ctx := context.Background()
	err := store.SaveAccount(ctx, ledger.Account{
		ID:      "admin-1",
		LoginID: "ADM-000",
		Email:   "admin@example.com",
		Role:    ledger.RoleAdmin,
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateWallet(ctx, "admin-1"))
	return ledger.Session{AccountID: "admin-1", Role: ledger.RoleAdmin}
}

func TestPromoteToMerchant(t *testing.T) {
	// GIVEN: A registered agent
	// WHEN: An admin promotes them
	// THEN: The next parsed session already carries the merchant role

	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, store)
	account := registerAgent(t, svc, "ada@example.com")

	token, _, err := svc.Login(ctx, "ada@example.com", "hunter2024")
	require.NoError(t, err)

	promoted, err := svc.PromoteToMerchant(ctx, admin, account.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleMerchant, promoted.Role)

	sess, err := svc.ParseSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleMerchant, sess.Role, "promotion applies without a fresh login")
}

func TestPromoteToMerchant_Guards(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, store)
	account := registerAgent(t, svc, "ada@example.com")
	agentSess := ledger.Session{AccountID: account.ID, Role: ledger.RoleAgent}

	_, err := svc.PromoteToMerchant(ctx, agentSess, account.ID)
	var fErr *ledger.ForbiddenError
	assert.ErrorAs(t, err, &fErr)

	_, err = svc.PromoteToMerchant(ctx, admin, "no-such-account")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.PromoteToMerchant(ctx, admin, account.ID)
	require.NoError(t, err)
	_, err = svc.PromoteToMerchant(ctx, admin, account.ID)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.PromoteToMerchant(ctx, admin, admin.AccountID)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
