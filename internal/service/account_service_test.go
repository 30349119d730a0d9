package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports/mocks"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAccountService_OpenAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	svc := NewAccountService(repo, newTestLogger())
	ctx := context.Background()
	owner := uuid.New()

	repo.EXPECT().GetByOwnerID(ctx, owner).Return(nil, nil)
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, acc *domain.Account) error {
		assert.Len(t, acc.AccountNumber, domain.AccountNumberLength)
		assert.NotEqual(t, byte('0'), acc.AccountNumber[0])
		assert.True(t, acc.Balance.IsZero())
		assert.Equal(t, int64(1), acc.Version)
		return nil
	})

	acc, err := svc.OpenAccount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, acc.OwnerID)
}

func TestAccountService_OpenAccount_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	svc := NewAccountService(repo, newTestLogger())
	ctx := context.Background()
	owner := uuid.New()

	repo.EXPECT().GetByOwnerID(ctx, owner).Return(&domain.Account{OwnerID: owner}, nil)

	_, err := svc.OpenAccount(ctx, owner)
	assert.Equal(t, apperror.CodeAccountExists, apperror.CodeOf(err))
}

func TestAccountService_OpenAccount_RetriesNumberCollision(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	svc := NewAccountService(repo, newTestLogger())
	ctx := context.Background()
	owner := uuid.New()

	gomock.InOrder(
		repo.EXPECT().GetByOwnerID(ctx, owner).Return(nil, nil),
		repo.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("insert: %w", domain.ErrDuplicate)),
		repo.EXPECT().GetByOwnerID(ctx, owner).Return(nil, nil),
		repo.EXPECT().Create(ctx, gomock.Any()).Return(nil),
	)

	_, err := svc.OpenAccount(ctx, owner)
	require.NoError(t, err)
}

func TestAccountService_GetAccountByOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	svc := NewAccountService(repo, newTestLogger())
	ctx := context.Background()
	owner := uuid.New()

	repo.EXPECT().GetByOwnerID(ctx, owner).Return(nil, nil)
	_, err := svc.GetAccountByOwner(ctx, owner)
	assert.Equal(t, apperror.CodeAccountNotFound, apperror.CodeOf(err))

	repo.EXPECT().GetByOwnerID(ctx, owner).Return(nil, errors.New("db down"))
	_, err = svc.GetAccountByOwner(ctx, owner)
	assert.Equal(t, "SYS_001", apperror.CodeOf(err))
}

func TestGenerateAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n, err := generateAccountNumber()
		require.NoError(t, err)
		assert.Len(t, n, domain.AccountNumberLength)
		assert.Regexp(t, `^[1-9][0-9]{15}$`, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 95)
}
