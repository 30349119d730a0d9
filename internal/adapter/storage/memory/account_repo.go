package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository over a Store.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

// Create inserts an account. Owner and account number are unique.
func (r *AccountRepo) Create(_ context.Context, account *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.ID == account.ID || existing.OwnerID == account.OwnerID || existing.AccountNumber == account.AccountNumber {
			return fmt.Errorf("insert account: %w", domain.ErrDuplicate)
		}
	}
	if account.Version == 0 {
		account.Version = 1
	}
	s.accounts[account.ID] = *account
	return nil
}

// GetByID returns nil, nil when the account does not exist.
func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// GetByOwnerID returns nil, nil when the owner has no account.
func (r *AccountRepo) GetByOwnerID(_ context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.OwnerID == ownerID }), nil
}

// GetByNumber returns nil, nil when no account has the number.
func (r *AccountRepo) GetByNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.AccountNumber == accountNumber }), nil
}

func (r *AccountRepo) find(match func(domain.Account) bool) *domain.Account {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if match(acc) {
			found := acc
			return &found
		}
	}
	return nil
}

// LockForUpdate returns the accounts as seen by tx, ordered by id.
// Conflicts are detected at commit rather than by blocking.
func (r *AccountRepo) LockForUpdate(_ context.Context, tx pgx.Tx, ids ...uuid.UUID) ([]*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	out := make([]*domain.Account, 0, len(sorted))
	for _, id := range sorted {
		if w, ok := t.accounts[id]; ok {
			acc := w.account
			out = append(out, &acc)
			continue
		}
		if acc, ok := s.accounts[id]; ok {
			out = append(out, &acc)
		}
	}
	return out, nil
}

// UpdateBalance stages a balance write guarded by expectedVersion.
func (r *AccountRepo) UpdateBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	w, staged := t.accounts[id]
	if !staged {
		s := r.store
		s.mu.RLock()
		cur, ok := s.accounts[id]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
		w = &stagedAccount{account: cur, base: cur.Version}
	}
	if w.account.Version != expectedVersion {
		return fmt.Errorf("account %s: %w", id, domain.ErrVersionConflict)
	}

	w.account.Balance = balance
	w.account.Version = expectedVersion + 1
	w.account.UpdatedAt = time.Now().UTC()
	t.accounts[id] = w
	return nil
}
