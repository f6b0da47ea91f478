// Package memory provides an in-memory ledger.Store for tests and development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/voucher-engine/ledger"
)

// Store keeps everything in maps guarded by a single RWMutex. WithTx is
// simulated with a snapshot + rollback on error, which is enough to give
// tests the same all-or-nothing semantics as the SQLite store.
type Store struct {
	mu sync.RWMutex

	accounts  map[ledger.AccountID]ledger.Account
	byEmail   map[string]ledger.AccountID
	byLoginID map[string]ledger.AccountID

	wallets map[ledger.AccountID]ledger.Wallet
	entries map[ledger.AccountID][]ledger.Entry

	vouchers    map[string]ledger.Voucher // keyed by code
	ticketTypes map[ledger.TicketTypeID]ledger.TicketType
	tickets     map[string]ledger.Ticket // keyed by code

	payouts  map[ledger.PaymentID]ledger.PayoutRequest
	settings *ledger.PayoutSettings
}

func New() *Store {
	return &Store{
		accounts:    make(map[ledger.AccountID]ledger.Account),
		byEmail:     make(map[string]ledger.AccountID),
		byLoginID:   make(map[string]ledger.AccountID),
		wallets:     make(map[ledger.AccountID]ledger.Wallet),
		entries:     make(map[ledger.AccountID][]ledger.Entry),
		vouchers:    make(map[string]ledger.Voucher),
		ticketTypes: make(map[ledger.TicketTypeID]ledger.TicketType),
		tickets:     make(map[string]ledger.Ticket),
		payouts:     make(map[ledger.PaymentID]ledger.PayoutRequest),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx holds the write lock for the whole function and restores a snapshot
// if fn fails, so concurrent callers see either all of fn's writes or none.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&txView{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	accounts    map[ledger.AccountID]ledger.Account
	byEmail     map[string]ledger.AccountID
	byLoginID   map[string]ledger.AccountID
	wallets     map[ledger.AccountID]ledger.Wallet
	entries     map[ledger.AccountID][]ledger.Entry
	vouchers    map[string]ledger.Voucher
	ticketTypes map[ledger.TicketTypeID]ledger.TicketType
	tickets     map[string]ledger.Ticket
	payouts     map[ledger.PaymentID]ledger.PayoutRequest
	settings    *ledger.PayoutSettings
}

func (s *Store) snapshot() snapshotState {
	snap := snapshotState{
		accounts:    make(map[ledger.AccountID]ledger.Account, len(s.accounts)),
		byEmail:     make(map[string]ledger.AccountID, len(s.byEmail)),
		byLoginID:   make(map[string]ledger.AccountID, len(s.byLoginID)),
		wallets:     make(map[ledger.AccountID]ledger.Wallet, len(s.wallets)),
		entries:     make(map[ledger.AccountID][]ledger.Entry, len(s.entries)),
		vouchers:    make(map[string]ledger.Voucher, len(s.vouchers)),
		ticketTypes: make(map[ledger.TicketTypeID]ledger.TicketType, len(s.ticketTypes)),
		tickets:     make(map[string]ledger.Ticket, len(s.tickets)),
		payouts:     make(map[ledger.PaymentID]ledger.PayoutRequest, len(s.payouts)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.byEmail {
		snap.byEmail[k] = v
	}
	for k, v := range s.byLoginID {
		snap.byLoginID[k] = v
	}
	for k, v := range s.wallets {
		snap.wallets[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = append([]ledger.Entry(nil), v...)
	}
	for k, v := range s.vouchers {
		snap.vouchers[k] = v
	}
	for k, v := range s.ticketTypes {
		snap.ticketTypes[k] = v
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	for k, v := range s.payouts {
		snap.payouts[k] = v
	}
	if s.settings != nil {
		cp := *s.settings
		snap.settings = &cp
	}
	return snap
}

func (s *Store) restore(snap snapshotState) {
	s.accounts = snap.accounts
	s.byEmail = snap.byEmail
	s.byLoginID = snap.byLoginID
	s.wallets = snap.wallets
	s.entries = snap.entries
	s.vouchers = snap.vouchers
	s.ticketTypes = snap.ticketTypes
	s.tickets = snap.tickets
	s.payouts = snap.payouts
	s.settings = snap.settings
}

// txView exposes the unlocked internals to the function running under WithTx.
type txView struct{ s *Store }

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccountLocked(a)
}

func (s *Store) saveAccountLocked(a ledger.Account) error {
	email := strings.ToLower(a.Email)
	if _, ok := s.byEmail[email]; ok {
		return ledger.ErrConflict
	}
	if _, ok := s.byLoginID[a.LoginID]; ok {
		return ledger.ErrConflict
	}
	s.accounts[a.ID] = a
	s.byEmail[email] = a.ID
	s.byLoginID[a.LoginID] = a.ID
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccountLocked(id)
}

func (s *Store) getAccountLocked(id ledger.AccountID) (*ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindAccountByLogin(ctx context.Context, emailOrLoginID string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findAccountByLoginLocked(emailOrLoginID)
}

func (s *Store) findAccountByLoginLocked(emailOrLoginID string) (*ledger.Account, error) {
	if id, ok := s.byEmail[strings.ToLower(emailOrLoginID)]; ok {
		return s.getAccountLocked(id)
	}
	if id, ok := s.byLoginID[emailOrLoginID]; ok {
		return s.getAccountLocked(id)
	}
	return nil, ledger.ErrNotFound
}

func (s *Store) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byLoginID[loginID]
	return ok, nil
}

func (s *Store) ListAccountsByRole(ctx context.Context, role ledger.Role) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAccountsByRoleLocked(role)
}

func (s *Store) listAccountsByRoleLocked(role ledger.Role) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range s.accounts {
		if a.Role == role {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetAccountRole(ctx context.Context, id ledger.AccountID, role ledger.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAccountRoleLocked(id, role)
}

func (s *Store) setAccountRoleLocked(id ledger.AccountID, role ledger.Role) error {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.ErrNotFound
	}
	a.Role = role
	s.accounts[id] = a
	return nil
}

// =============================================================================
// WALLETS
// =============================================================================

func (s *Store) CreateWallet(ctx context.Context, accountID ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWalletLocked(accountID)
}

func (s *Store) createWalletLocked(accountID ledger.AccountID) error {
	if _, ok := s.wallets[accountID]; ok {
		return ledger.ErrConflict
	}
	s.wallets[accountID] = ledger.Wallet{AccountID: accountID}
	return nil
}

func (s *Store) GetWallet(ctx context.Context, accountID ledger.AccountID) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getWalletLocked(accountID)
}

func (s *Store) getWalletLocked(accountID ledger.AccountID) (*ledger.Wallet, error) {
	w, ok := s.wallets[accountID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &w, nil
}

func (s *Store) ApplyDelta(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyDeltaLocked(entry)
}

func (s *Store) applyDeltaLocked(entry ledger.Entry) error {
	w, ok := s.wallets[entry.AccountID]
	if !ok {
		return ledger.ErrNotFound
	}
	next := w.Balance(entry.Field).Add(entry.Delta)
	if next.IsNegative() {
		return &ledger.InsufficientBalanceError{
			AccountID: entry.AccountID,
			Field:     entry.Field,
			Available: w.Balance(entry.Field),
			Requested: entry.Delta.Neg(),
		}
	}
	if entry.Field == ledger.BonusBalance {
		w.BonusBalance = next
	} else {
		w.VoucherBalance = next
	}
	s.wallets[entry.AccountID] = w
	s.entries[entry.AccountID] = append(s.entries[entry.AccountID], entry)
	return nil
}

func (s *Store) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.Entry(nil), s.entries[accountID]...), nil
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (s *Store) SaveVoucher(ctx context.Context, v ledger.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveVoucherLocked(v)
}

func (s *Store) saveVoucherLocked(v ledger.Voucher) error {
	if _, ok := s.vouchers[v.Code]; ok {
		return ledger.ErrConflict
	}
	s.vouchers[v.Code] = v
	return nil
}

func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getVoucherByCodeLocked(code)
}

func (s *Store) getVoucherByCodeLocked(code string) (*ledger.Voucher, error) {
	v, ok := s.vouchers[code]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &v, nil
}

func (s *Store) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vouchers[code]
	return ok, nil
}

func (s *Store) MarkVoucherProcessed(ctx context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markVoucherProcessedLocked(code, at)
}

func (s *Store) markVoucherProcessedLocked(code string, at time.Time) error {
	v, ok := s.vouchers[code]
	if !ok {
		return ledger.ErrNotFound
	}
	if v.Processed {
		return ledger.ErrAlreadyProcessed
	}
	v.Processed = true
	v.UpdatedAt = at
	s.vouchers[code] = v
	return nil
}

func (s *Store) ListVouchersBySeller(ctx context.Context, sellerID ledger.AccountID) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listVouchersBySellerLocked(sellerID)
}

func (s *Store) listVouchersBySellerLocked(sellerID ledger.AccountID) ([]ledger.Voucher, error) {
	var out []ledger.Voucher
	for _, v := range s.vouchers {
		if v.SellerID != nil && *v.SellerID == sellerID {
			out = append(out, v)
		}
	}
	sortVouchers(out)
	return out, nil
}

func (s *Store) ListVouchersByOwner(ctx context.Context, ownerID ledger.AccountID) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listVouchersByOwnerLocked(ownerID)
}

func (s *Store) listVouchersByOwnerLocked(ownerID ledger.AccountID) ([]ledger.Voucher, error) {
	var out []ledger.Voucher
	for _, v := range s.vouchers {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	sortVouchers(out)
	return out, nil
}

func sortVouchers(vs []ledger.Voucher) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].CreatedAt.After(vs[j].CreatedAt) })
}

// =============================================================================
// TICKETS
// =============================================================================

func (s *Store) SaveTicketType(ctx context.Context, tt ledger.TicketType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveTicketTypeLocked(tt)
}

func (s *Store) saveTicketTypeLocked(tt ledger.TicketType) error {
	s.ticketTypes[tt.ID] = tt
	return nil
}

func (s *Store) GetTicketType(ctx context.Context, id ledger.TicketTypeID) (*ledger.TicketType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTicketTypeLocked(id)
}

func (s *Store) getTicketTypeLocked(id ledger.TicketTypeID) (*ledger.TicketType, error) {
	tt, ok := s.ticketTypes[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tt, nil
}

func (s *Store) ListTicketTypes(ctx context.Context) ([]ledger.TicketType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTicketTypesLocked()
}

func (s *Store) listTicketTypesLocked() ([]ledger.TicketType, error) {
	out := make([]ledger.TicketType, 0, len(s.ticketTypes))
	for _, tt := range s.ticketTypes {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteTicketType(ctx context.Context, id ledger.TicketTypeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTicketTypeLocked(id)
}

func (s *Store) deleteTicketTypeLocked(id ledger.TicketTypeID) error {
	if _, ok := s.ticketTypes[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.ticketTypes, id)
	return nil
}

func (s *Store) DetachTicketsFromType(ctx context.Context, id ledger.TicketTypeID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detachTicketsFromTypeLocked(id)
}

func (s *Store) detachTicketsFromTypeLocked(id ledger.TicketTypeID) (int, error) {
	n := 0
	for code, t := range s.tickets {
		if t.TypeID != nil && *t.TypeID == id {
			t.TypeID = nil
			s.tickets[code] = t
			n++
		}
	}
	return n, nil
}

func (s *Store) RestampTickets(ctx context.Context, id ledger.TicketTypeID, validUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restampTicketsLocked(id, validUntil)
}

func (s *Store) restampTicketsLocked(id ledger.TicketTypeID, validUntil time.Time) error {
	for code, t := range s.tickets {
		if t.TypeID != nil && *t.TypeID == id {
			t.ValidUntil = validUntil
			t.UpdatedAt = time.Now().UTC()
			s.tickets[code] = t
		}
	}
	return nil
}

func (s *Store) InsertTickets(ctx context.Context, ts []ledger.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTicketsLocked(ts)
}

func (s *Store) insertTicketsLocked(ts []ledger.Ticket) error {
	for _, t := range ts {
		if _, ok := s.tickets[t.Code]; ok {
			return ledger.ErrConflict
		}
	}
	for _, t := range ts {
		s.tickets[t.Code] = t
	}
	return nil
}

func (s *Store) GetTicketByCode(ctx context.Context, code string) (*ledger.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTicketByCodeLocked(code)
}

func (s *Store) getTicketByCodeLocked(code string) (*ledger.Ticket, error) {
	t, ok := s.tickets[code]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTicketsByAgent(ctx context.Context, agentID ledger.AccountID, from, to *time.Time) ([]ledger.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTicketsByAgentLocked(agentID, from, to)
}

func (s *Store) listTicketsByAgentLocked(agentID ledger.AccountID, from, to *time.Time) ([]ledger.Ticket, error) {
	var out []ledger.Ticket
	for _, t := range s.tickets {
		if t.AgentID != agentID {
			continue
		}
		if from != nil && t.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !t.CreatedAt.Before(*to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountTicketsByAgent(ctx context.Context, agentID ledger.AccountID, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTicketsByAgentLocked(agentID, from, to)
}

func (s *Store) countTicketsByAgentLocked(agentID ledger.AccountID, from, to time.Time) (int, error) {
	n := 0
	for _, t := range s.tickets {
		if t.AgentID == agentID && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

func (s *Store) SavePayoutRequest(ctx context.Context, r ledger.PayoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePayoutRequestLocked(r)
}

func (s *Store) savePayoutRequestLocked(r ledger.PayoutRequest) error {
	if _, ok := s.payouts[r.PaymentID]; ok {
		return ledger.ErrConflict
	}
	s.payouts[r.PaymentID] = r
	return nil
}

func (s *Store) GetPayoutRequest(ctx context.Context, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPayoutRequestLocked(id)
}

func (s *Store) getPayoutRequestLocked(id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	r, ok := s.payouts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListPayoutRequests(ctx context.Context, accountID *ledger.AccountID, status *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPayoutRequestsLocked(accountID, status)
}

func (s *Store) listPayoutRequestsLocked(accountID *ledger.AccountID, status *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	var out []ledger.PayoutRequest
	for _, r := range s.payouts {
		if accountID != nil && r.AccountID != *accountID {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		// pending first, then newest first
		if (out[i].Status == ledger.PayoutPending) != (out[j].Status == ledger.PayoutPending) {
			return out[i].Status == ledger.PayoutPending
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (s *Store) TransitionPayout(ctx context.Context, id ledger.PaymentID, from, to ledger.PayoutStatus, by ledger.AccountID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionPayoutLocked(id, from, to, by, at)
}

func (s *Store) transitionPayoutLocked(id ledger.PaymentID, from, to ledger.PayoutStatus, by ledger.AccountID, at time.Time) error {
	r, ok := s.payouts[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if r.Status != from {
		return &ledger.TransitionError{PaymentID: id, From: r.Status, To: to}
	}
	r.Status = to
	r.DecidedBy = &by
	r.DecidedAt = &at
	s.payouts[id] = r
	return nil
}

func (s *Store) GetPayoutSettings(ctx context.Context) (ledger.PayoutSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPayoutSettingsLocked()
}

func (s *Store) getPayoutSettingsLocked() (ledger.PayoutSettings, error) {
	if s.settings == nil {
		return ledger.DefaultPayoutSettings(), nil
	}
	return *s.settings, nil
}

func (s *Store) SavePayoutSettings(ctx context.Context, set ledger.PayoutSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &set
	return nil
}

// =============================================================================
// TRANSACTIONAL VIEW - unlocked delegates used inside WithTx
// =============================================================================

func (v *txView) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	// Already inside a transaction; just run against the same view.
	return fn(v)
}

func (v *txView) SaveAccount(ctx context.Context, a ledger.Account) error {
	return v.s.saveAccountLocked(a)
}
func (v *txView) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return v.s.getAccountLocked(id)
}
func (v *txView) FindAccountByLogin(ctx context.Context, e string) (*ledger.Account, error) {
	return v.s.findAccountByLoginLocked(e)
}
func (v *txView) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	_, ok := v.s.byLoginID[loginID]
	return ok, nil
}
func (v *txView) ListAccountsByRole(ctx context.Context, role ledger.Role) ([]ledger.Account, error) {
	return v.s.listAccountsByRoleLocked(role)
}
func (v *txView) SetAccountRole(ctx context.Context, id ledger.AccountID, role ledger.Role) error {
	return v.s.setAccountRoleLocked(id, role)
}
func (v *txView) CreateWallet(ctx context.Context, id ledger.AccountID) error {
	return v.s.createWalletLocked(id)
}
func (v *txView) GetWallet(ctx context.Context, id ledger.AccountID) (*ledger.Wallet, error) {
	return v.s.getWalletLocked(id)
}
func (v *txView) ApplyDelta(ctx context.Context, e ledger.Entry) error {
	return v.s.applyDeltaLocked(e)
}
func (v *txView) Entries(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	return append([]ledger.Entry(nil), v.s.entries[id]...), nil
}
func (v *txView) SaveVoucher(ctx context.Context, vc ledger.Voucher) error {
	return v.s.saveVoucherLocked(vc)
}
func (v *txView) GetVoucherByCode(ctx context.Context, code string) (*ledger.Voucher, error) {
	return v.s.getVoucherByCodeLocked(code)
}
func (v *txView) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	_, ok := v.s.vouchers[code]
	return ok, nil
}
func (v *txView) MarkVoucherProcessed(ctx context.Context, code string, at time.Time) error {
	return v.s.markVoucherProcessedLocked(code, at)
}
func (v *txView) ListVouchersBySeller(ctx context.Context, id ledger.AccountID) ([]ledger.Voucher, error) {
	return v.s.listVouchersBySellerLocked(id)
}
func (v *txView) ListVouchersByOwner(ctx context.Context, id ledger.AccountID) ([]ledger.Voucher, error) {
	return v.s.listVouchersByOwnerLocked(id)
}
func (v *txView) SaveTicketType(ctx context.Context, tt ledger.TicketType) error {
	return v.s.saveTicketTypeLocked(tt)
}
func (v *txView) GetTicketType(ctx context.Context, id ledger.TicketTypeID) (*ledger.TicketType, error) {
	return v.s.getTicketTypeLocked(id)
}
func (v *txView) ListTicketTypes(ctx context.Context) ([]ledger.TicketType, error) {
	return v.s.listTicketTypesLocked()
}
func (v *txView) DeleteTicketType(ctx context.Context, id ledger.TicketTypeID) error {
	return v.s.deleteTicketTypeLocked(id)
}
func (v *txView) DetachTicketsFromType(ctx context.Context, id ledger.TicketTypeID) (int, error) {
	return v.s.detachTicketsFromTypeLocked(id)
}
func (v *txView) RestampTickets(ctx context.Context, id ledger.TicketTypeID, t time.Time) error {
	return v.s.restampTicketsLocked(id, t)
}
func (v *txView) InsertTickets(ctx context.Context, ts []ledger.Ticket) error {
	return v.s.insertTicketsLocked(ts)
}
func (v *txView) GetTicketByCode(ctx context.Context, code string) (*ledger.Ticket, error) {
	return v.s.getTicketByCodeLocked(code)
}
func (v *txView) ListTicketsByAgent(ctx context.Context, id ledger.AccountID, from, to *time.Time) ([]ledger.Ticket, error) {
	return v.s.listTicketsByAgentLocked(id, from, to)
}
func (v *txView) CountTicketsByAgent(ctx context.Context, id ledger.AccountID, from, to time.Time) (int, error) {
	return v.s.countTicketsByAgentLocked(id, from, to)
}
func (v *txView) SavePayoutRequest(ctx context.Context, r ledger.PayoutRequest) error {
	return v.s.savePayoutRequestLocked(r)
}
func (v *txView) GetPayoutRequest(ctx context.Context, id ledger.PaymentID) (*ledger.PayoutRequest, error) {
	return v.s.getPayoutRequestLocked(id)
}
func (v *txView) ListPayoutRequests(ctx context.Context, a *ledger.AccountID, st *ledger.PayoutStatus) ([]ledger.PayoutRequest, error) {
	return v.s.listPayoutRequestsLocked(a, st)
}
func (v *txView) TransitionPayout(ctx context.Context, id ledger.PaymentID, from, to ledger.PayoutStatus, by ledger.AccountID, at time.Time) error {
	return v.s.transitionPayoutLocked(id, from, to, by, at)
}
func (v *txView) GetPayoutSettings(ctx context.Context) (ledger.PayoutSettings, error) {
	return v.s.getPayoutSettingsLocked()
}
func (v *txView) SavePayoutSettings(ctx context.Context, set ledger.PayoutSettings) error {
	v.s.settings = &set
	return nil
}
