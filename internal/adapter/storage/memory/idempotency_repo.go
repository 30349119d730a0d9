package memory

import (
	"context"
	"fmt"

	"bank-backoffice/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository over a Store.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

// Create claims rec.Key for tx. The key is rejected with domain.ErrDuplicate
// when it is committed or held by another open transaction.
func (r *IdempotencyRepo) Create(_ context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idempotency[rec.Key]; exists {
		return fmt.Errorf("idempotency key %q: %w", rec.Key, domain.ErrDuplicate)
	}
	if holder, held := s.claims[rec.Key]; held && holder != t {
		return fmt.Errorf("idempotency key %q in flight: %w", rec.Key, domain.ErrDuplicate)
	}
	if _, dup := t.idempotency[rec.Key]; dup {
		return fmt.Errorf("idempotency key %q: %w", rec.Key, domain.ErrDuplicate)
	}
	staged := *rec
	t.idempotency[rec.Key] = &staged
	s.claims[rec.Key] = t
	return nil
}

// SetResponse stages the response for a key claimed by tx.
func (r *IdempotencyRepo) SetResponse(_ context.Context, tx pgx.Tx, key string, response []byte) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.idempotency[key]
	if !ok {
		return fmt.Errorf("idempotency key %q: %w", key, domain.ErrNotFound)
	}
	rec.ResponseJSON = append([]byte(nil), response...)
	return nil
}

// Get returns the committed record for key or nil, nil.
func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
