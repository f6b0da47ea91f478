/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Durable persistence for accounts, wallets, the audit ledger, vouchers,
  tickets, and payout requests. The same patterns apply to PostgreSQL with
  minor dialect changes.

AUDIT ENFORCEMENT:
  ApplyDelta is the only write path touching wallet balances; it updates the
  balance and inserts the audit entry inside one SQL transaction. There are
  no UPDATE or DELETE statements on the entries table.

CONDITIONAL MUTATORS:
  MarkVoucherProcessed and TransitionPayout use guarded UPDATEs
  (WHERE ... AND processed = 0 / AND status = ?) and inspect RowsAffected,
  so exactly one concurrent caller wins.

CONCURRENCY:
  A sync.RWMutex serializes writers on top of SQLite. WAL mode keeps
  readers from blocking.

WAL MODE:
  The database is opened with _journal_mode=WAL and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/vouchers.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/voucher-engine/ledger"
)

// Store implements ledger.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single pooled connection: ":memory:" gives every connection its own
	// database, and the store serializes writes anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		login_id TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role);

	CREATE TABLE IF NOT EXISTS wallets (
		account_id TEXT PRIMARY KEY REFERENCES accounts(id),
		voucher_balance TEXT NOT NULL DEFAULT '0',
		bonus_balance TEXT NOT NULL DEFAULT '0'
	);

	-- Append-only audit trail of every balance change.
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		field TEXT NOT NULL,
		delta TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id, created_at);

	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		seller_id TEXT,
		amount TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vouchers_owner ON vouchers(owner_id);
	CREATE INDEX IF NOT EXISTS idx_vouchers_seller ON vouchers(seller_id) WHERE seller_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS ticket_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- type_id is NULL once the type has been deleted; the ticket survives in
	-- the distinguished "type gone" state.
	CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		type_id TEXT,
		agent_id TEXT NOT NULL,
		buyer_name TEXT NOT NULL,
		buyer_contact TEXT NOT NULL DEFAULT '',
		valid_until TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_agent ON tickets(agent_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_tickets_type ON tickets(type_id) WHERE type_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS payout_requests (
		payment_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		requested_at TEXT NOT NULL,
		decided_by TEXT,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payout_requests_account ON payout_requests(account_id);
	CREATE INDEX IF NOT EXISTS idx_payout_requests_status ON payout_requests(status);

	-- Singleton row.
	CREATE TABLE IF NOT EXISTS payout_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		monthly_quota INTEGER NOT NULL,
		full_salary TEXT NOT NULL,
		partial_salary_percentage TEXT NOT NULL,
		bonus_rate TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx, so every operation can
// run either standalone or inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a transaction-bound view of the store. Nothing is
// committed if fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the view handed to WithTx callbacks. The parent already holds
// the write lock, so methods go straight to the helpers.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

// Nested WithTx joins the surrounding transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(ts)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func (ts *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func saveAccount(ctx context.Context, q querier, a ledger.Account) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (id, login_id, first_name, last_name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(a.ID), a.LoginID, a.FirstName, a.LastName,
		strings.ToLower(a.Email), a.PasswordHash, string(a.Role),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email or login ID already in use", ledger.ErrConflict)
		}
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

const accountColumns = `id, login_id, first_name, last_name, email, password_hash, role, created_at`

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func getAccount(ctx context.Context, q querier, id ledger.AccountID) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, string(id))
	return scanAccount(row)
}

func (s *Store) FindAccountByLogin(ctx context.Context, emailOrLoginID string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findAccountByLogin(ctx, s.db, emailOrLoginID)
}

func (ts *txStore) FindAccountByLogin(ctx context.Context, emailOrLoginID string) (*ledger.Account, error) {
	return findAccountByLogin(ctx, ts.tx, emailOrLoginID)
}

func findAccountByLogin(ctx context.Context, q querier, emailOrLoginID string) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ? OR login_id = ?`,
		strings.ToLower(emailOrLoginID), emailOrLoginID)
	return scanAccount(row)
}

func (s *Store) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loginIDExists(ctx, s.db, loginID)
}

func (ts *txStore) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	return loginIDExists(ctx, ts.tx, loginID)
}

func loginIDExists(ctx context.Context, q querier, loginID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE login_id = ?`, loginID).Scan(&count)
	return count > 0, err
}

func (s *Store) ListAccountsByRole(ctx context.Context, role ledger.Role) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccountsByRole(ctx, s.db, role)
}

func (ts *txStore) ListAccountsByRole(ctx context.Context, role ledger.Role) ([]ledger.Account, error) {
	return listAccountsByRole(ctx, ts.tx, role)
}

func listAccountsByRole(ctx context.Context, q querier, role ledger.Role) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = ? ORDER BY created_at ASC`,
		string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *Store) SetAccountRole(ctx context.Context, id ledger.AccountID, role ledger.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setAccountRole(ctx, s.db, id, role)
}

func (ts *txStore) SetAccountRole(ctx context.Context, id ledger.AccountID, role ledger.Role) error {
	return setAccountRole(ctx, ts.tx, id, role)
}

func setAccountRole(ctx context.Context, q querier, id ledger.AccountID, role ledger.Role) error {
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET role = ? WHERE id = ?`, string(role), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func scanAccount(row *sql.Row) (*ledger.Account, error) {
	var a ledger.Account
	var createdAt string
	err := row.Scan(&a.ID, &a.LoginID, &a.FirstName, &a.LastName,
		&a.Email, &a.PasswordHash, &a.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account: %w", ledger.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

func scanAccountRow(rows *sql.Rows) (*ledger.Account, error) {
	var a ledger.Account
	var createdAt string
	err := rows.Scan(&a.ID, &a.LoginID, &a.FirstName, &a.LastName,
		&a.Email, &a.PasswordHash, &a.Role, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

// =============================================================================
// WALLETS & AUDIT ENTRIES
// =============================================================================

func (s *Store) CreateWallet(ctx context.Context, accountID ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createWallet(ctx, s.db, accountID)
}

func (ts *txStore) CreateWallet(ctx context.Context, accountID ledger.AccountID) error {
	return createWallet(ctx, ts.tx, accountID)
}

func createWallet(ctx context.Context, q querier, accountID ledger.AccountID) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO wallets (account_id, voucher_balance, bonus_balance) VALUES (?, '0', '0')`,
		string(accountID))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: wallet already exists", ledger.ErrConflict)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWallet(ctx context.Context, accountID ledger.AccountID) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getWallet(ctx, s.db, accountID)
}

func (ts *txStore) GetWallet(ctx context.Context, accountID ledger.AccountID) (*ledger.Wallet, error) {
	return getWallet(ctx, ts.tx, accountID)
}

func getWallet(ctx context.Context, q querier, accountID ledger.AccountID) (*ledger.Wallet, error) {
	var voucherBal, bonusBal string
	err := q.QueryRowContext(ctx,
		`SELECT voucher_balance, bonus_balance FROM wallets WHERE account_id = ?`,
		string(accountID)).Scan(&voucherBal, &bonusBal)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("wallet %s: %w", accountID, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ledger.Wallet{
		AccountID:      accountID,
		VoucherBalance: parseDecimal(voucherBal),
		BonusBalance:   parseDecimal(bonusBal),
	}, nil
}

// ApplyDelta outside WithTx gets its own SQL transaction so the balance
// update and the entry insert commit together.
func (s *Store) ApplyDelta(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := applyDelta(ctx, sqlTx, entry); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (ts *txStore) ApplyDelta(ctx context.Context, entry ledger.Entry) error {
	return applyDelta(ctx, ts.tx, entry)
}

func applyDelta(ctx context.Context, q querier, entry ledger.Entry) error {
	column, err := balanceColumn(entry.Field)
	if err != nil {
		return err
	}

	var current string
	err = q.QueryRowContext(ctx,
		`SELECT `+column+` FROM wallets WHERE account_id = ?`,
		string(entry.AccountID)).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("wallet %s: %w", entry.AccountID, ledger.ErrNotFound)
	}
	if err != nil {
		return err
	}

	next := parseDecimal(current).Add(entry.Delta)
	if next.IsNegative() {
		return &ledger.InsufficientBalanceError{
			AccountID: entry.AccountID,
			Field:     entry.Field,
			Available: parseDecimal(current),
			Requested: entry.Delta.Neg(),
		}
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE wallets SET `+column+` = ? WHERE account_id = ?`,
		next.String(), string(entry.AccountID)); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO entries (id, account_id, field, delta, entry_type, reference_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(entry.ID), string(entry.AccountID), string(entry.Field),
		entry.Delta.String(), string(entry.Type),
		nullString(entry.ReferenceID), nullString(entry.Reason),
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func balanceColumn(field ledger.BalanceField) (string, error) {
	switch field {
	case ledger.VoucherBalance:
		return "voucher_balance", nil
	case ledger.BonusBalance:
		return "bonus_balance", nil
	default:
		return "", ledger.Validationf("field", "unknown balance field %q", field)
	}
}

func (s *Store) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntries(ctx, s.db, accountID)
}

func (ts *txStore) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	return listEntries(ctx, ts.tx, accountID)
}

func listEntries(ctx context.Context, q querier, accountID ledger.AccountID) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, field, delta, entry_type, reference_id, reason, created_at
		FROM entries
		WHERE account_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, string(accountID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var delta, createdAt string
		var referenceID, reason sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Field, &delta, &e.Type,
			&referenceID, &reason, &createdAt); err != nil {
			return nil, err
		}
		e.Delta = parseDecimal(delta)
		e.ReferenceID = referenceID.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (s *Store) SaveVoucher(ctx context.Context, v ledger.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveVoucher(ctx, s.db, v)
}

func (ts *txStore) SaveVoucher(ctx context.Context, v ledger.Voucher) error {
	return saveVoucher(ctx, ts.tx, v)
}

func saveVoucher(ctx context.Context, q querier, v ledger.Voucher) error {
	var sellerID any
	if v.SellerID != nil {
		sellerID = string(*v.SellerID)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO vouchers (id, code, owner_id, seller_id, amount, processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(v.ID), v.Code, string(v.OwnerID), sellerID,
		v.Amount.String(), boolToInt(v.Processed),
		v.CreatedAt.UTC().Format(time.RFC3339),
		v.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: voucher code already exists", ledger.ErrConflict)
		}
		return fmt.Errorf("failed to save voucher: %w", err)
	}
	return nil
}

const voucherColumns = `id, code, owner_id, seller_id, amount, processed, created_at, updated_at`

func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVoucherByCode(ctx, s.db, code)
}

func (ts *txStore) GetVoucherByCode(ctx context.Context, code string) (*ledger.Voucher, error) {
	return getVoucherByCode(ctx, ts.tx, code)
}

func getVoucherByCode(ctx context.Context, q querier, code string) (*ledger.Voucher, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = ?`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("voucher: %w", ledger.ErrNotFound)
	}
	return scanVoucher(rows)
}

func (s *Store) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return voucherCodeExists(ctx, s.db, code)
}

func (ts *txStore) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	return voucherCodeExists(ctx, ts.tx, code)
}

func voucherCodeExists(ctx context.Context, q querier, code string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vouchers WHERE code = ?`, code).Scan(&count)
	return count > 0, err
}

func (s *Store) MarkVoucherProcessed(ctx context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markVoucherProcessed(ctx, s.db, code, at)
}

func (ts *txStore) MarkVoucherProcessed(ctx context.Context, code string, at time.Time) error {
	return markVoucherProcessed(ctx, ts.tx, code, at)
}

func markVoucherProcessed(ctx context.Context, q querier, code string, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE vouchers SET processed = 1, updated_at = ? WHERE code = ? AND processed = 0`,
		at.UTC().Format(time.RFC3339), code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either the code is unknown or it was processed first.
	exists, err := voucherCodeExists(ctx, q, code)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("voucher: %w", ledger.ErrNotFound)
	}
	return ledger.ErrAlreadyProcessed
}

func (s *Store) ListVouchersBySeller(ctx context.Context, sellerID ledger.AccountID) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVouchers(ctx, s.db, `seller_id = ?`, string(sellerID))
}

func (ts *txStore) ListVouchersBySeller(ctx context.Context, sellerID ledger.AccountID) ([]ledger.Voucher, error) {
	return listVouchers(ctx, ts.tx, `seller_id = ?`, string(sellerID))
}

func (s *Store) ListVouchersByOwner(ctx context.Context, ownerID ledger.AccountID) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVouchers(ctx, s.db, `owner_id = ?`, string(ownerID))
}

func (ts *txStore) ListVouchersByOwner(ctx context.Context, ownerID ledger.AccountID) ([]ledger.Voucher, error) {
	return listVouchers(ctx, ts.tx, `owner_id = ?`, string(ownerID))
}

func listVouchers(ctx context.Context, q querier, where string, args ...any) ([]ledger.Voucher, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE `+where+` ORDER BY created_at DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []ledger.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, rows.Err()
}

func scanVoucher(rows *sql.Rows) (*ledger.Voucher, error) {
	var v ledger.Voucher
	var sellerID sql.NullString
	var amount, createdAt, updatedAt string
	var processed int
	if err := rows.Scan(&v.ID, &v.Code, &v.OwnerID, &sellerID,
		&amount, &processed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if sellerID.Valid {
		id := ledger.AccountID(sellerID.String)
		v.SellerID = &id
	}
	v.Amount = parseDecimal(amount)
	v.Processed = processed != 0
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

// =============================================================================
// TICKET TYPES & TICKETS
// =============================================================================

func (s *Store) SaveTicketType(ctx context.Context, tt ledger.TicketType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTicketType(ctx, s.db, tt)
}

func (ts *txStore) SaveTicketType(ctx context.Context, tt ledger.TicketType) error {
	return saveTicketType(ctx, ts.tx, tt)
}

func saveTicketType(ctx context.Context, q querier, tt ledger.TicketType) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ticket_types (id, name, unit_price, description, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit_price = excluded.unit_price,
			description = excluded.description,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`,
		string(tt.ID), tt.Name, tt.UnitPrice.String(), tt.Description,
		tt.ExpiresAt.UTC().Format(time.RFC3339),
		tt.CreatedAt.UTC().Format(time.RFC3339),
		tt.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save ticket type: %w", err)
	}
	return nil
}

const ticketTypeColumns = `id, name, unit_price, description, expires_at, created_at, updated_at`

func (s *Store) GetTicketType(ctx context.Context, id ledger.TicketTypeID) (*ledger.TicketType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTicketType(ctx, s.db, id)
}

func (ts *txStore) GetTicketType(ctx context.Context, id ledger.TicketTypeID) (*ledger.TicketType, error) {
	return getTicketType(ctx, ts.tx, id)
}

func getTicketType(ctx context.Context, q querier, id ledger.TicketTypeID) (*ledger.TicketType, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ticket type %s: %w", id, ledger.ErrNotFound)
	}
	return scanTicketType(rows)
}

func (s *Store) ListTicketTypes(ctx context.Context) ([]ledger.TicketType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTicketTypes(ctx, s.db)
}

func (ts *txStore) ListTicketTypes(ctx context.Context) ([]ledger.TicketType, error) {
	return listTicketTypes(ctx, ts.tx)
}

func listTicketTypes(ctx context.Context, q querier) ([]ledger.TicketType, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []ledger.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *tt)
	}
	return types, rows.Err()
}

func (s *Store) DeleteTicketType(ctx context.Context, id ledger.TicketTypeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteTicketType(ctx, s.db, id)
}

func (ts *txStore) DeleteTicketType(ctx context.Context, id ledger.TicketTypeID) error {
	return deleteTicketType(ctx, ts.tx, id)
}

func deleteTicketType(ctx context.Context, q querier, id ledger.TicketTypeID) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM ticket_types WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ticket type %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (s *Store) DetachTicketsFromType(ctx context.Context, id ledger.TicketTypeID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return detachTicketsFromType(ctx, s.db, id)
}

func (ts *txStore) DetachTicketsFromType(ctx context.Context, id ledger.TicketTypeID) (int, error) {
	return detachTicketsFromType(ctx, ts.tx, id)
}

func detachTicketsFromType(ctx context.Context, q querier, id ledger.TicketTypeID) (int, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE tickets SET type_id = NULL, updated_at = ? WHERE type_id = ?`,
		time.Now().UTC().Format(time.RFC3339), string(id))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) RestampTickets(ctx context.Context, id ledger.TicketTypeID, validUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return restampTickets(ctx, s.db, id, validUntil)
}

func (ts *txStore) RestampTickets(ctx context.Context, id ledger.TicketTypeID, validUntil time.Time) error {
	return restampTickets(ctx, ts.tx, id, validUntil)
}

func restampTickets(ctx context.Context, q querier, id ledger.TicketTypeID, validUntil time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE tickets SET valid_until = ?, updated_at = ? WHERE type_id = ?`,
		validUntil.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		string(id))
	return err
}

func (s *Store) InsertTickets(ctx context.Context, tickets []ledger.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertTickets(ctx, sqlTx, tickets); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (ts *txStore) InsertTickets(ctx context.Context, tickets []ledger.Ticket) error {
	return insertTickets(ctx, ts.tx, tickets)
}

func insertTickets(ctx context.Context, q querier, tickets []ledger.Ticket) error {
	for _, t := range tickets {
		var typeID any
		if t.TypeID != nil {
			typeID = string(*t.TypeID)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO tickets (id, code, type_id, agent_id, buyer_name, buyer_contact, valid_until, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			string(t.ID), t.Code, typeID, string(t.AgentID),
			t.BuyerName, t.BuyerContact,
			t.ValidUntil.UTC().Format(time.RFC3339),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: ticket code already exists", ledger.ErrConflict)
			}
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
	}
	return nil
}

const ticketColumns = `id, code, type_id, agent_id, buyer_name, buyer_contact, valid_until, created_at, updated_at`

func (s *Store) GetTicketByCode(ctx context.Context, code string) (*ledger.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTicketByCode(ctx, s.db, code)
}

func (ts *txStore) GetTicketByCode(ctx context.Context, code string) (*ledger.Ticket, error) {
	return getTicketByCode(ctx, ts.tx, code)
}

func getTicketByCode(ctx context.Context, q querier, code string) (*ledger.Ticket, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE code = ?`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ticket: %w", ledger.ErrNotFound)
	}
	return scanTicket(rows)
}

func (s *Store) ListTicketsByAgent(ctx context.Context, agentID ledger.AccountID, from, to *time.Time) ([]ledger.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTicketsByAgent(ctx, s.db, agentID, from, to)
}

func (ts *txStore) ListTicketsByAgent(ctx context.Context, agentID ledger.AccountID, from, to *time.Time) ([]ledger.Ticket, error) {
	return listTicketsByAgent(ctx, ts.tx, agentID, from, to)
}

func listTicketsByAgent(ctx context.Context, q querier, agentID ledger.AccountID, from, to *time.Time) ([]ledger.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE agent_id = ?`
	args := []any{string(agentID)}
	if from != nil {
		query += ` AND created_at >= ?`
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		query += ` AND created_at < ?`
		args = append(args, to.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []ledger.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *Store) CountTicketsByAgent(ctx context.Context, agentID ledger.AccountID, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countTicketsByAgent(ctx, s.db, agentID, from, to)
}

func (ts *txStore) CountTicketsByAgent(ctx context.Context, agentID ledger.AccountID, from, to time.Time) (int, error) {
	return countTicketsByAgent(ctx, ts.tx, agentID, from, to)
}

func countTicketsByAgent(ctx context.Context, q querier, agentID ledger.AccountID, from, to time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets
		WHERE agent_id = ? AND created_at >= ? AND created_at < ?
	`,
		string(agentID),
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
	).Scan(&count)
	return count, err
}

func scanTicketType(rows *sql.Rows) (*ledger.TicketType, error) {
	var tt ledger.TicketType
	var unitPrice, expiresAt, createdAt, updatedAt string
	if err := rows.Scan(&tt.ID, &tt.Name, &unitPrice, &tt.Description,
		&expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	tt.UnitPrice = parseDecimal(unitPrice)
	tt.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	tt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tt.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &tt, nil
}

func scanTicket(rows *sql.Rows) (*ledger.Ticket, error) {
	var t ledger.Ticket
	var typeID sql.NullString
	var validUntil, createdAt, updatedAt string
	if err := rows.Scan(&t.ID, &t.Code, &typeID, &t.AgentID,
		&t.BuyerName, &t.BuyerContact, &validUntil, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if typeID.Valid {
		id := ledger.TicketTypeID(typeID.String)
		t.TypeID = &id
	}
	t.ValidUntil, _ = time.Parse(time.RFC3339, validUntil)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

func (s *Store) SavePayoutRequest(ctx context.Context, r ledger.PayoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePayoutRequest(ctx, s.db, r)
}

func (ts *txStore) SavePayoutRequest(ctx context.Context, r ledger.PayoutRequest) error {
	return savePayoutRequest(ctx, ts.tx, r)
}

func savePayoutRequest(ctx context.Context, q querier, r ledger.PayoutRequest) error {
	var decidedBy, decidedAt any
	if r.DecidedBy != nil {
		decidedBy = string(*r.DecidedBy)
	}
	if r.DecidedAt != nil {
		decidedAt = r.DecidedAt.UTC().Format(time.RFC3339)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO payout_requests (payment_id, account_id, amount, status, requested_at, decided_by, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(r.PaymentID), string(r.AccountID), r.Amount.String(),
		string(r.Status), r.RequestedAt.UTC().Format(time.RFC3339),
		decidedBy, decidedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: payment ID already exists", ledger.ErrConflict)
		}
		return fmt.Errorf("failed to save payout request: %w", err)
	}
	return nil
}

const payoutColumns = `payment_id, account_id, amount, status, requested_at, decided_by, decided_at`

func scanPayoutRequest(rows *sql.Rows) (*ledger.PayoutRequest, error) {
	var r ledger.PayoutRequest
	var amount, requestedAt string
	var decidedBy, decidedAt sql.NullString
	if err := rows.Scan(&r.PaymentID, &r.AccountID, &amount, &r.Status,
		&requestedAt, &decidedBy, &decidedAt); err != nil {
		return nil, err
	}
	r.Amount = parseDecimal(amount)
	r.RequestedAt, _ = time.Parse(time.RFC3339, requestedAt)
	if decidedBy.Valid {
		id := ledger.AccountID(decidedBy.String)
		r.DecidedBy = &id
	}
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339, decidedAt.String)
		r.DecidedAt = &t
	}
	return &r, nil
}

func (s *Store) GetPayoutRequest(ctx context.Context, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayoutRequest(ctx, s.db, id)
}

func (ts *txStore) GetPayoutRequest(ctx context.Context, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	return getPayoutRequest(ctx, ts.tx, id)
}

func getPayoutRequest(ctx context.Context, q querier, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE payment_id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payout request %s: %w", id, ledger.ErrNotFound)
	}
	return scanPayoutRequest(rows)
}

func (s *Store) ListPayoutRequests(ctx context.Context, accountID *ledger.AccountID, status *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPayoutRequests(ctx, s.db, accountID, status)
}

func (ts *txStore) ListPayoutRequests(ctx context.Context, accountID *ledger.AccountID, status *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	return listPayoutRequests(ctx, ts.tx, accountID, status)
}

func listPayoutRequests(ctx context.Context, q querier, accountID *ledger.AccountID, status *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests`
	var where []string
	var args []any
	if accountID != nil {
		where = append(where, `account_id = ?`)
		args = append(args, string(*accountID))
	}
	if status != nil {
		where = append(where, `status = ?`)
		args = append(args, string(*status))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY CASE WHEN status = 'pending' THEN 0 ELSE 1 END, requested_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ledger.PayoutRequest
	for rows.Next() {
		r, err := scanPayoutRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (s *Store) TransitionPayout(ctx context.Context, id ledger.PaymentID, from, to ledger.PayoutStatus, by ledger.AccountID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transitionPayout(ctx, s.db, id, from, to, by, at)
}

func (ts *txStore) TransitionPayout(ctx context.Context, id ledger.PaymentID, from, to ledger.PayoutStatus, by ledger.AccountID, at time.Time) error {
	return transitionPayout(ctx, ts.tx, id, from, to, by, at)
}

func transitionPayout(ctx context.Context, q querier, id ledger.PaymentID, from, to ledger.PayoutStatus, by ledger.AccountID, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payout_requests SET status = ?, decided_by = ?, decided_at = ?
		WHERE payment_id = ? AND status = ?
	`,
		string(to), string(by), at.UTC().Format(time.RFC3339),
		string(id), string(from),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either unknown or not in the expected status.
	var current string
	err = q.QueryRowContext(ctx,
		`SELECT status FROM payout_requests WHERE payment_id = ?`, string(id)).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("payout request %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return &ledger.TransitionError{
		PaymentID: id,
		From:      ledger.PayoutStatus(current),
		To:        to,
	}
}

func (s *Store) GetPayoutSettings(ctx context.Context) (ledger.PayoutSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayoutSettings(ctx, s.db)
}

func (ts *txStore) GetPayoutSettings(ctx context.Context) (ledger.PayoutSettings, error) {
	return getPayoutSettings(ctx, ts.tx)
}

func getPayoutSettings(ctx context.Context, q querier) (ledger.PayoutSettings, error) {
	var set ledger.PayoutSettings
	var fullSalary, partialPct, bonusRate, updatedAt string
	err := q.QueryRowContext(ctx, `
		SELECT monthly_quota, full_salary, partial_salary_percentage, bonus_rate, updated_at
		FROM payout_settings WHERE id = 1
	`).Scan(&set.MonthlyQuota, &fullSalary, &partialPct, &bonusRate, &updatedAt)
	if err == sql.ErrNoRows {
		return ledger.DefaultPayoutSettings(), nil
	}
	if err != nil {
		return set, err
	}
	set.FullSalary = parseDecimal(fullSalary)
	set.PartialSalaryPercentage = parseDecimal(partialPct)
	set.BonusRate = parseDecimal(bonusRate)
	set.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return set, nil
}

func (s *Store) SavePayoutSettings(ctx context.Context, set ledger.PayoutSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePayoutSettings(ctx, s.db, set)
}

func (ts *txStore) SavePayoutSettings(ctx context.Context, set ledger.PayoutSettings) error {
	return savePayoutSettings(ctx, ts.tx, set)
}

func savePayoutSettings(ctx context.Context, q querier, set ledger.PayoutSettings) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payout_settings (id, monthly_quota, full_salary, partial_salary_percentage, bonus_rate, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			monthly_quota = excluded.monthly_quota,
			full_salary = excluded.full_salary,
			partial_salary_percentage = excluded.partial_salary_percentage,
			bonus_rate = excluded.bonus_rate,
			updated_at = excluded.updated_at
	`,
		set.MonthlyQuota, set.FullSalary.String(),
		set.PartialSalaryPercentage.String(), set.BonusRate.String(),
		set.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
