/*
Package auth handles registration, login, and session tokens.

Registration always creates an Agent with a zero-balance wallet and a
generated short login ID (three letters, dash, three digits). Promotion to
Merchant is a one-way, admin-only transition. Sessions are HS256 JWTs carrying
the account ID and role; the API layer turns a verified token into a
ledger.Session for the role gate.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/voucher-engine/ledger"
)

// ErrInvalidCredentials is returned for a bad login or an unverifiable token.
// Deliberately vague: it never reveals whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service issues accounts and session tokens.
type Service struct {
	Store         ledger.Store
	jwtSecret     []byte
	tokenDuration time.Duration
}

func NewService(store ledger.Store, jwtSecret string) *Service {
	return &Service{
		Store:         store,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour,
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterInput carries the sign-up form fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates an Agent account plus its wallet atomically and returns
// the account (including the generated login ID).
func (s *Service) Register(ctx context.Context, in RegisterInput) (*ledger.Account, error) {
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, ledger.Validationf("email", "a valid email is required")
	}
	if in.FirstName == "" {
		return nil, ledger.Validationf("first_name", "first name is required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var account *ledger.Account
	err = s.Store.WithTx(ctx, func(tx ledger.Store) error {
		loginID, err := uniqueLoginID(ctx, tx)
		if err != nil {
			return err
		}
		a := ledger.Account{
			ID:           ledger.AccountID(uuid.NewString()),
			LoginID:      loginID,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        strings.ToLower(in.Email),
			PasswordHash: string(hash),
			Role:         ledger.RoleAgent,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		if err := tx.CreateWallet(ctx, a.ID); err != nil {
			return err
		}
		account = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Passwords need at least 8 characters and one digit.
func checkPassword(pw string) error {
	if len(pw) < 8 {
		return ledger.Validationf("password", "password must be at least 8 characters")
	}
	hasDigit := false
	for _, r := range pw {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return ledger.Validationf("password", "password must contain at least one digit")
	}
	return nil
}

// =============================================================================
// LOGIN & SESSIONS
// =============================================================================

// Login authenticates by email or login ID and returns a signed session token
// plus the account.
func (s *Service) Login(ctx context.Context, emailOrLoginID, password string) (string, *ledger.Account, error) {
	a, err := s.Store.FindAccountByLogin(ctx, emailOrLoginID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  string(a.ID),
		"role": string(a.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenDuration).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return token, a, nil
}

// ParseSession verifies a token and rebuilds the caller's session. The role
// is re-read from the store so a promotion takes effect immediately, not at
// next login.
func (s *Service) ParseSession(ctx context.Context, tokenString string) (ledger.Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ledger.Session{}, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ledger.Session{}, ErrInvalidCredentials
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return ledger.Session{}, ErrInvalidCredentials
	}

	a, err := s.Store.GetAccount(ctx, ledger.AccountID(sub))
	if err != nil {
		return ledger.Session{}, ErrInvalidCredentials
	}
	return ledger.Session{AccountID: a.ID, Role: a.Role}, nil
}

// CurrentAccount resolves the session's account record.
func (s *Service) CurrentAccount(ctx context.Context, sess ledger.Session) (*ledger.Account, error) {
	return s.Store.GetAccount(ctx, sess.AccountID)
}

// =============================================================================
// PROMOTION
// =============================================================================

// PromoteToMerchant upgrades an Agent to Merchant. One-way: merchants never
// revert, and promoting one again is an error.
func (s *Service) PromoteToMerchant(ctx context.Context, sess ledger.Session, id ledger.AccountID) (*ledger.Account, error) {
	if err := ledger.Require(sess, "promote accounts", ledger.RoleAdmin); err != nil {
		return nil, err
	}

	var promoted *ledger.Account
	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		a, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if a.Role == ledger.RoleMerchant {
			return ledger.Validationf("role", "account is already a merchant")
		}
		if a.Role == ledger.RoleAdmin {
			return ledger.Validationf("role", "admins cannot be demoted to merchant")
		}
		if err := tx.SetAccountRole(ctx, id, ledger.RoleMerchant); err != nil {
			return err
		}
		a.Role = ledger.RoleMerchant
		promoted = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// =============================================================================
// LOGIN ID GENERATION
// =============================================================================

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Login IDs look like "KQD-042".
func uniqueLoginID(ctx context.Context, s ledger.AccountStore) (string, error) {
	for {
		id := fmt.Sprintf("%c%c%c-%03d",
			letters[rand.Intn(26)], letters[rand.Intn(26)], letters[rand.Intn(26)],
			rand.Intn(1000))
		exists, err := s.LoginIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
}
