package service

import (
	"context"
	"fmt"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Ledger owns account balances. All mutations go through a LedgerSession
// bound to the caller's unit of work.
type Ledger struct {
	accounts ports.AccountRepository
}

// NewLedger creates a ledger over the account repository.
func NewLedger(accounts ports.AccountRepository) *Ledger {
	return &Ledger{accounts: accounts}
}

// Session binds the ledger to tx.
func (l *Ledger) Session(tx pgx.Tx) *LedgerSession {
	return &LedgerSession{accounts: l.accounts, tx: tx}
}

// LedgerSession mutates balances inside one transaction.
type LedgerSession struct {
	accounts ports.AccountRepository
	tx       pgx.Tx
}

// Lock acquires the given accounts in id order and refreshes them in place
// with the locked balance and version.
func (s *LedgerSession) Lock(ctx context.Context, accounts ...*domain.Account) error {
	ids := make([]uuid.UUID, 0, len(accounts))
	seen := make(map[uuid.UUID]bool, len(accounts))
	for _, acc := range accounts {
		if acc == nil || seen[acc.ID] {
			continue
		}
		seen[acc.ID] = true
		ids = append(ids, acc.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	locked, err := s.accounts.LockForUpdate(ctx, s.tx, ids...)
	if err != nil {
		return fmt.Errorf("locking accounts: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.Account, len(locked))
	for _, acc := range locked {
		byID[acc.ID] = acc
	}
	for _, acc := range accounts {
		if acc == nil {
			continue
		}
		fresh, ok := byID[acc.ID]
		if !ok {
			return apperror.ErrAccountNotFound()
		}
		*acc = *fresh
	}
	return nil
}

// Credit adds amount to the account balance and persists it under the account's version.
func (s *LedgerSession) Credit(ctx context.Context, account *domain.Account, amount decimal.Decimal) error {
	if account == nil {
		return apperror.ErrMissingAccount("Target")
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	return s.persist(ctx, account, account.Balance.Add(amount))
}

// Debit subtracts amount from the account balance and persists it under the account's version.
func (s *LedgerSession) Debit(ctx context.Context, account *domain.Account, amount decimal.Decimal) error {
	if account == nil {
		return apperror.ErrMissingAccount("Source")
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if !account.CanDebit(amount) {
		return apperror.ErrInsufficientFunds()
	}
	return s.persist(ctx, account, account.Balance.Sub(amount))
}

func (s *LedgerSession) persist(ctx context.Context, account *domain.Account, balance decimal.Decimal) error {
	if err := s.accounts.UpdateBalance(ctx, s.tx, account.ID, balance, account.Version); err != nil {
		return fmt.Errorf("updating balance of account %s: %w", account.ID, err)
	}
	account.Balance = balance
	account.Version++
	return nil
}
