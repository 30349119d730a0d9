package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxAccountNumberAttempts = 5

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	accounts ports.AccountRepository
	log      zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(accounts ports.AccountRepository, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, log: log}
}

// OpenAccount creates the single account of ownerID with a zero balance.
func (s *AccountServiceImpl) OpenAccount(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	existing, err := s.accounts.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by owner: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrAccountExists()
	}

	for attempt := 0; attempt < maxAccountNumberAttempts; attempt++ {
		number, err := generateAccountNumber()
		if err != nil {
			return nil, apperror.InternalError(err)
		}

		now := time.Now().UTC()
		account := &domain.Account{
			ID:            uuid.New(),
			AccountNumber: number,
			Balance:       decimal.Zero,
			OwnerID:       ownerID,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = s.accounts.Create(ctx, account)
		if err == nil {
			s.log.Info().
				Str("account_id", account.ID.String()).
				Str("owner_id", ownerID.String()).
				Msg("account opened")
			return account, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
		}

		// Either the number collided or the owner raced us.
		if existing, err := s.accounts.GetByOwnerID(ctx, ownerID); err == nil && existing != nil {
			return nil, apperror.ErrAccountExists()
		}
	}

	return nil, apperror.InternalError(errors.New("could not allocate a unique account number"))
}

// GetAccountByOwner returns the account of ownerID.
func (s *AccountServiceImpl) GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by owner: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

// generateAccountNumber returns a random number with AccountNumberLength digits
// and no leading zero.
func generateAccountNumber() (string, error) {
	lower := new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.AccountNumberLength-1), nil)
	span := new(big.Int).Mul(lower, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generating account number: %w", err)
	}
	return n.Add(n, lower).String(), nil
}
