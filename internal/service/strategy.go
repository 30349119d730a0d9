package service

import (
	"context"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/pkg/apperror"

	"github.com/shopspring/decimal"
)

// BalanceMutator is the part of the ledger a strategy may touch.
type BalanceMutator interface {
	Credit(ctx context.Context, account *domain.Account, amount decimal.Decimal) error
	Debit(ctx context.Context, account *domain.Account, amount decimal.Decimal) error
}

// Strategy applies one operation kind to the ledger.
// Deposits use the source slot as the account being credited.
type Strategy func(ctx context.Context, ledger BalanceMutator, amount decimal.Decimal, source, destination *domain.Account) error

var strategies = map[domain.OperationKind]Strategy{
	domain.OperationKindDeposit:    depositStrategy,
	domain.OperationKindWithdrawal: withdrawalStrategy,
	domain.OperationKindTransfer:   transferStrategy,
}

// SelectStrategy returns the strategy for kind.
func SelectStrategy(kind domain.OperationKind) Strategy {
	if s, ok := strategies[kind]; ok {
		return s
	}
	return func(context.Context, BalanceMutator, decimal.Decimal, *domain.Account, *domain.Account) error {
		return apperror.ErrInvalidKind(string(kind))
	}
}

func depositStrategy(ctx context.Context, ledger BalanceMutator, amount decimal.Decimal, target, _ *domain.Account) error {
	if target == nil {
		return apperror.ErrMissingAccount("Target")
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	return ledger.Credit(ctx, target, amount)
}

func withdrawalStrategy(ctx context.Context, ledger BalanceMutator, amount decimal.Decimal, source, _ *domain.Account) error {
	if source == nil {
		return apperror.ErrMissingAccount("Source")
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if !source.CanDebit(amount) {
		return apperror.ErrInsufficientFunds()
	}
	return ledger.Debit(ctx, source, amount)
}

// transferStrategy debits before it credits. Both legs share the caller's
// transaction, so a failed credit rolls the debit back with it.
func transferStrategy(ctx context.Context, ledger BalanceMutator, amount decimal.Decimal, source, destination *domain.Account) error {
	if source == nil {
		return apperror.ErrMissingAccount("Source")
	}
	if destination == nil {
		return apperror.ErrMissingAccount("Destination")
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if source.ID == destination.ID {
		return apperror.ErrSameAccount()
	}
	if !source.CanDebit(amount) {
		return apperror.ErrInsufficientFunds()
	}
	if err := ledger.Debit(ctx, source, amount); err != nil {
		return err
	}
	return ledger.Credit(ctx, destination, amount)
}
