/*
Package ticket implements the ticket-type catalog and ticket issuance.

ISSUANCE:
  An agent issues quantity tickets against a type; the total cost
  (quantity x unit price) is debited from the agent's voucher balance in the
  same transaction that persists the tickets. Each ticket gets its own code;
  valid_until is stamped from the type's expiration at issuance time.

CATALOG:
  Ticket types are admin-managed. Moving a type's expiration re-stamps the
  valid_until of every ticket already issued against it. Deleting a type
  detaches its tickets: they keep their code and buyer info, but validating
  them reports the distinguished "deleted ticket type" condition (Gone),
  never a generic not-found.
*/
package ticket

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/voucher-engine/ledger"
)

// Engine coordinates catalog and issuance operations against the store.
type Engine struct {
	Store ledger.Store
}

func NewEngine(store ledger.Store) *Engine {
	return &Engine{Store: store}
}

// =============================================================================
// TICKET TYPE CATALOG (admin)
// =============================================================================

// CreateType adds a ticket type. The expiration must be in the future and the
// unit price positive.
func (e *Engine) CreateType(ctx context.Context, sess ledger.Session, name, description string, unitPrice decimal.Decimal, expiresAt time.Time) (*ledger.TicketType, error) {
	if err := ledger.Require(sess, "create ticket types", ledger.RoleAdmin); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ledger.Validationf("name", "name is required")
	}
	if !unitPrice.IsPositive() {
		return nil, ledger.Validationf("unit_price", "unit price must be positive, got %s", unitPrice)
	}
	if expiresAt.IsZero() {
		return nil, ledger.Validationf("expiration", "expiration date and time are required")
	}
	if !expiresAt.After(time.Now()) {
		return nil, ledger.Validationf("expiration", "expiration must be in the future")
	}

	now := time.Now().UTC()
	tt := ledger.TicketType{
		ID:          ledger.TicketTypeID(uuid.NewString()),
		Name:        name,
		UnitPrice:   unitPrice,
		Description: description,
		ExpiresAt:   expiresAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.SaveTicketType(ctx, tt); err != nil {
		return nil, err
	}
	return &tt, nil
}

// UpdateType edits a type. When the expiration moves, every ticket already
// issued against the type is re-stamped with the new valid_until.
func (e *Engine) UpdateType(ctx context.Context, sess ledger.Session, id ledger.TicketTypeID, name, description string, unitPrice decimal.Decimal, expiresAt time.Time) (*ledger.TicketType, error) {
	if err := ledger.Require(sess, "update ticket types", ledger.RoleAdmin); err != nil {
		return nil, err
	}
	if !unitPrice.IsPositive() {
		return nil, ledger.Validationf("unit_price", "unit price must be positive, got %s", unitPrice)
	}
	if expiresAt.IsZero() {
		return nil, ledger.Validationf("expiration", "expiration date and time are required")
	}
	if !expiresAt.After(time.Now()) {
		return nil, ledger.Validationf("expiration", "expiration must be in the future")
	}

	var updated *ledger.TicketType
	err := e.Store.WithTx(ctx, func(tx ledger.Store) error {
		tt, err := tx.GetTicketType(ctx, id)
		if err != nil {
			return err
		}
		restamp := !tt.ExpiresAt.Equal(expiresAt.UTC())
		if name != "" {
			tt.Name = name
		}
		if description != "" {
			tt.Description = description
		}
		tt.UnitPrice = unitPrice
		tt.ExpiresAt = expiresAt.UTC()
		tt.UpdatedAt = time.Now().UTC()
		if err := tx.SaveTicketType(ctx, *tt); err != nil {
			return err
		}
		if restamp {
			if err := tx.RestampTickets(ctx, id, tt.ExpiresAt); err != nil {
				return err
			}
		}
		updated = tt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteType removes a type and detaches its issued tickets in one
// transaction. Detached tickets validate as Gone from then on.
func (e *Engine) DeleteType(ctx context.Context, sess ledger.Session, id ledger.TicketTypeID) error {
	if err := ledger.Require(sess, "delete ticket types", ledger.RoleAdmin); err != nil {
		return err
	}
	return e.Store.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetTicketType(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DetachTicketsFromType(ctx, id); err != nil {
			return err
		}
		return tx.DeleteTicketType(ctx, id)
	})
}

// ListTypes returns the catalog. Admins see everything including expired
// types; other roles only see types still open for issuance.
func (e *Engine) ListTypes(ctx context.Context, sess ledger.Session) ([]ledger.TicketType, error) {
	all, err := e.Store.ListTicketTypes(ctx)
	if err != nil {
		return nil, err
	}
	if ledger.IsAdmin(sess) {
		return all, nil
	}
	now := time.Now()
	var open []ledger.TicketType
	for _, tt := range all {
		if !tt.Expired(now) {
			open = append(open, tt)
		}
	}
	return open, nil
}

// =============================================================================
// ISSUANCE
// =============================================================================

// IssueResult is what an agent gets back after issuing tickets.
type IssueResult struct {
	Tickets          []ledger.Ticket
	TicketType       ledger.TicketType
	TotalCost        decimal.Decimal
	RemainingBalance decimal.Decimal
}

// Create issues quantity tickets against a type, debiting the agent's voucher
// balance by quantity x unit price. The debit and the ticket inserts commit or
// roll back together, so two concurrent issuances can never jointly overdraw
// the balance.
func (e *Engine) Create(ctx context.Context, sess ledger.Session, typeID ledger.TicketTypeID, buyerName, buyerContact string, quantity int) (*IssueResult, error) {
	if err := ledger.Require(sess, "issue tickets", ledger.RoleAgent); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, ledger.Validationf("quantity", "quantity must be at least 1, got %d", quantity)
	}
	if buyerName == "" {
		return nil, ledger.Validationf("buyer_name", "buyer name is required")
	}

	var result *IssueResult
	err := e.Store.WithTx(ctx, func(tx ledger.Store) error {
		tt, err := tx.GetTicketType(ctx, typeID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if tt.Expired(now) {
			return ledger.Validationf("ticket_type", "ticket type %q expired at %s", tt.Name, tt.ExpiresAt.Format(time.RFC3339))
		}

		totalCost := tt.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))

		tickets := make([]ledger.Ticket, quantity)
		for i := range tickets {
			code, err := uniqueTicketCode(ctx, tx)
			if err != nil {
				return err
			}
			id := tt.ID
			tickets[i] = ledger.Ticket{
				ID:           ledger.TicketID(uuid.NewString()),
				Code:         code,
				TypeID:       &id,
				AgentID:      sess.AccountID,
				BuyerName:    buyerName,
				BuyerContact: buyerContact,
				ValidUntil:   tt.ExpiresAt,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
		}

		if err := ledger.Debit(ctx, tx, sess.AccountID, ledger.VoucherBalance, totalCost,
			ledger.EntryTicketPurchase, tickets[0].Code, fmt.Sprintf("%d x %s", quantity, tt.Name)); err != nil {
			return err
		}
		if err := tx.InsertTickets(ctx, tickets); err != nil {
			return err
		}

		w, err := tx.GetWallet(ctx, sess.AccountID)
		if err != nil {
			return err
		}
		result = &IssueResult{
			Tickets:          tickets,
			TicketType:       *tt,
			TotalCost:        totalCost,
			RemainingBalance: w.VoucherBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// VALIDATION (read-only)
// =============================================================================

// Validation is the outcome of checking a ticket code.
type Validation struct {
	Ticket     ledger.Ticket
	TicketType *ledger.TicketType
	Valid      bool // now <= valid_until
}

// Validate looks a ticket up by exact code. It never mutates. A ticket whose
// type was deleted yields ErrGone; an unknown code yields ErrNotFound.
func (e *Engine) Validate(ctx context.Context, code string) (*Validation, error) {
	t, err := e.Store.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if t.TypeID == nil {
		return nil, fmt.Errorf("ticket %s: ticket type deleted: %w", code, ledger.ErrGone)
	}
	tt, err := e.Store.GetTicketType(ctx, *t.TypeID)
	if err != nil {
		// The type can disappear between the two reads.
		if ledger.IsNotFound(err) {
			return nil, fmt.Errorf("ticket %s: ticket type deleted: %w", code, ledger.ErrGone)
		}
		return nil, err
	}
	return &Validation{
		Ticket:     *t,
		TicketType: tt,
		Valid:      !time.Now().After(t.ValidUntil),
	}, nil
}

// ListAgentTickets returns the calling agent's tickets, optionally bounded by
// creation time.
func (e *Engine) ListAgentTickets(ctx context.Context, sess ledger.Session, from, to *time.Time) ([]ledger.Ticket, error) {
	if err := ledger.Require(sess, "list issued tickets", ledger.RoleAgent, ledger.RoleAdmin); err != nil {
		return nil, err
	}
	return e.Store.ListTicketsByAgent(ctx, sess.AccountID, from, to)
}

const ticketCodeDigits = 12

// Ticket codes are numeric strings, easy to read out over a phone.
func uniqueTicketCode(ctx context.Context, s ledger.TicketStore) (string, error) {
	for {
		b := make([]byte, ticketCodeDigits)
		for i := range b {
			b[i] = byte('0' + rand.Intn(10))
		}
		code := "T-" + string(b)
		if _, err := s.GetTicketByCode(ctx, code); err != nil {
			if ledger.IsNotFound(err) {
				return code, nil
			}
			return "", err
		}
	}
}
