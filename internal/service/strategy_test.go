package service

import (
	"context"
	"errors"
	"testing"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger applies mutations in memory and records their order.
type fakeLedger struct {
	calls     []string
	creditErr error
}

func (f *fakeLedger) Credit(_ context.Context, acc *domain.Account, amount decimal.Decimal) error {
	f.calls = append(f.calls, "credit:"+acc.AccountNumber)
	if f.creditErr != nil {
		return f.creditErr
	}
	acc.Balance = acc.Balance.Add(amount)
	return nil
}

func (f *fakeLedger) Debit(_ context.Context, acc *domain.Account, amount decimal.Decimal) error {
	f.calls = append(f.calls, "debit:"+acc.AccountNumber)
	acc.Balance = acc.Balance.Sub(amount)
	return nil
}

func testAccount(number, balance string) *domain.Account {
	return &domain.Account{ID: uuid.New(), AccountNumber: number, Balance: dec(balance), Version: 1}
}

func TestSelectStrategy_KnownKinds(t *testing.T) {
	for _, kind := range []domain.OperationKind{
		domain.OperationKindDeposit,
		domain.OperationKindWithdrawal,
		domain.OperationKindTransfer,
	} {
		assert.NotNil(t, SelectStrategy(kind), kind)
	}

	err := SelectStrategy("LOAN")(context.Background(), &fakeLedger{}, dec("1"), testAccount("A", "0"), nil)
	assert.Equal(t, apperror.CodeInvalidKind, apperror.CodeOf(err))
}

func TestDepositStrategy(t *testing.T) {
	ctx := context.Background()
	deposit := SelectStrategy(domain.OperationKindDeposit)

	acc := testAccount("A", "100")
	l := &fakeLedger{}
	require.NoError(t, deposit(ctx, l, dec("5000"), acc, nil))
	assert.True(t, dec("5100").Equal(acc.Balance))
	assert.Equal(t, []string{"credit:A"}, l.calls)

	err := deposit(ctx, l, dec("5"), nil, nil)
	assert.Equal(t, apperror.CodeMissingAccount, apperror.CodeOf(err))

	err = deposit(ctx, l, decimal.Zero, acc, nil)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(err))
}

func TestWithdrawalStrategy(t *testing.T) {
	ctx := context.Background()
	withdraw := SelectStrategy(domain.OperationKindWithdrawal)

	acc := testAccount("A", "1000")
	l := &fakeLedger{}

	err := withdraw(ctx, l, dec("2000"), acc, nil)
	assert.Equal(t, apperror.CodeInsufficientFunds, apperror.CodeOf(err))
	assert.True(t, dec("1000").Equal(acc.Balance), "failed withdrawal leaves balance unchanged")
	assert.Empty(t, l.calls)

	// Retrying without fixing the cause fails identically.
	err = withdraw(ctx, l, dec("2000"), acc, nil)
	assert.Equal(t, apperror.CodeInsufficientFunds, apperror.CodeOf(err))

	require.NoError(t, withdraw(ctx, l, dec("1000"), acc, nil))
	assert.True(t, acc.Balance.IsZero())

	assert.Equal(t, apperror.CodeMissingAccount, apperror.CodeOf(withdraw(ctx, l, dec("1"), nil, nil)))
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(withdraw(ctx, l, dec("-1"), acc, nil)))
}

func TestTransferStrategy(t *testing.T) {
	ctx := context.Background()
	transfer := SelectStrategy(domain.OperationKindTransfer)

	t.Run("debits then credits and conserves funds", func(t *testing.T) {
		src := testAccount("SRC", "50000")
		dst := testAccount("DST", "1000")
		l := &fakeLedger{}

		require.NoError(t, transfer(ctx, l, dec("5000"), src, dst))
		assert.Equal(t, []string{"debit:SRC", "credit:DST"}, l.calls)
		assert.True(t, dec("45000").Equal(src.Balance))
		assert.True(t, dec("6000").Equal(dst.Balance))
		assert.True(t, dec("51000").Equal(src.Balance.Add(dst.Balance)))
	})

	t.Run("validation", func(t *testing.T) {
		src := testAccount("SRC", "100")
		dst := testAccount("DST", "0")
		l := &fakeLedger{}

		assert.Equal(t, apperror.CodeMissingAccount, apperror.CodeOf(transfer(ctx, l, dec("1"), nil, dst)))
		assert.Equal(t, apperror.CodeMissingAccount, apperror.CodeOf(transfer(ctx, l, dec("1"), src, nil)))
		assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(transfer(ctx, l, dec("0"), src, dst)))
		assert.Equal(t, apperror.CodeSameAccount, apperror.CodeOf(transfer(ctx, l, dec("1"), src, src)))
		assert.Equal(t, apperror.CodeInsufficientFunds, apperror.CodeOf(transfer(ctx, l, dec("101"), src, dst)))
		assert.Empty(t, l.calls)
	})

	t.Run("credit failure propagates", func(t *testing.T) {
		src := testAccount("SRC", "100")
		dst := testAccount("DST", "0")
		boom := errors.New("write failed")
		l := &fakeLedger{creditErr: boom}

		err := transfer(ctx, l, dec("10"), src, dst)
		assert.ErrorIs(t, err, boom)
	})
}
