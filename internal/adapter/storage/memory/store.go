// Package memory is a transactional in-process implementation of the
// storage ports. Writes made through a Tx are staged and applied on Commit
// only if every row still has the version the transaction read.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds committed rows.
type Store struct {
	mu         sync.RWMutex
	accounts   map[uuid.UUID]domain.Account
	operations map[uuid.UUID]domain.Operation
	documents  map[uuid.UUID]domain.Document // keyed by operation id
	audit      []domain.AuditLog

	idempotency map[string]domain.IdempotencyRecord
	claims      map[string]*Tx // idempotency keys held by open transactions
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:   make(map[uuid.UUID]domain.Account),
		operations: make(map[uuid.UUID]domain.Operation),
		documents:  make(map[uuid.UUID]domain.Document),

		idempotency: make(map[string]domain.IdempotencyRecord),
		claims:      make(map[string]*Tx),
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{
		store:      s,
		accounts:   make(map[uuid.UUID]*stagedAccount),
		created:    make(map[uuid.UUID]*domain.Operation),
		operations: make(map[uuid.UUID]*stagedOperation),

		idempotency: make(map[string]*domain.IdempotencyRecord),
	}, nil
}

type stagedAccount struct {
	account domain.Account
	base    int64 // committed version the first write was based on
}

type stagedOperation struct {
	op   domain.Operation
	base int64
}

// Tx is a unit of work over a Store. Only Commit and Rollback are
// implemented; the embedded pgx.Tx is nil and must not be used.
type Tx struct {
	pgx.Tx

	store      *Store
	mu         sync.Mutex
	accounts   map[uuid.UUID]*stagedAccount
	created    map[uuid.UUID]*domain.Operation
	createdSeq []uuid.UUID
	operations map[uuid.UUID]*stagedOperation
	closed     bool

	idempotency map[string]*domain.IdempotencyRecord
}

// Commit applies staged writes if no row changed since it was read.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.releaseClaims(t)

	for key := range t.idempotency {
		if _, exists := s.idempotency[key]; exists {
			return fmt.Errorf("idempotency key %q: %w", key, domain.ErrDuplicate)
		}
	}
	for id, w := range t.accounts {
		cur, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
		if cur.Version != w.base {
			return fmt.Errorf("account %s: %w", id, domain.ErrVersionConflict)
		}
	}
	for id, w := range t.operations {
		cur, ok := s.operations[id]
		if !ok {
			return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
		}
		if cur.Version != w.base {
			return fmt.Errorf("operation %s: %w", id, domain.ErrVersionConflict)
		}
	}
	for _, id := range t.createdSeq {
		if _, exists := s.operations[id]; exists {
			return fmt.Errorf("operation %s: %w", id, domain.ErrDuplicate)
		}
	}

	for id, w := range t.accounts {
		s.accounts[id] = w.account
	}
	for _, id := range t.createdSeq {
		s.operations[id] = stripReadFields(*t.created[id])
	}
	for id, w := range t.operations {
		cur := s.operations[id]
		cur.Status = w.op.Status
		cur.ValidatedAt = w.op.ValidatedAt
		cur.ExecutedAt = w.op.ExecutedAt
		cur.Version = w.op.Version
		s.operations[id] = cur
	}
	for key, rec := range t.idempotency {
		s.idempotency[key] = *rec
	}
	return nil
}

// Rollback discards staged writes.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	t.store.mu.Lock()
	t.store.releaseClaims(t)
	t.store.mu.Unlock()
	return nil
}

// releaseClaims frees the idempotency keys held by t. Caller holds s.mu.
func (s *Store) releaseClaims(t *Tx) {
	for key := range t.idempotency {
		if s.claims[key] == t {
			delete(s.claims, key)
		}
	}
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("memory store: unsupported transaction %T", tx)
	}
	return t, nil
}

// stripReadFields clears the joined fields that are computed on read.
func stripReadFields(op domain.Operation) domain.Operation {
	op.SourceAccountNumber = ""
	op.DestinationAccountNumber = nil
	op.HasDocument = false
	return op
}

// fillReadFields resolves account numbers and the document flag. Caller holds s.mu.
func (s *Store) fillReadFields(op *domain.Operation) {
	if acc, ok := s.accounts[op.SourceAccountID]; ok {
		op.SourceAccountNumber = acc.AccountNumber
	}
	if op.DestinationAccountID != nil {
		if acc, ok := s.accounts[*op.DestinationAccountID]; ok {
			number := acc.AccountNumber
			op.DestinationAccountNumber = &number
		}
	}
	_, op.HasDocument = s.documents[op.ID]
}

// HealthCheck implements ports.HealthChecker for the memory store.
type HealthCheck struct{}

// Ping always succeeds.
func (HealthCheck) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }
