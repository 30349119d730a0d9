package memory

import (
	"context"
	"fmt"
	"sort"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OperationRepo implements ports.OperationRepository over a Store.
type OperationRepo struct {
	store *Store
}

// NewOperationRepo creates a new OperationRepo.
func NewOperationRepo(store *Store) *OperationRepo {
	return &OperationRepo{store: store}
}

// Create stages a new operation in tx.
func (r *OperationRepo) Create(_ context.Context, tx pgx.Tx, op *domain.Operation) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.created[op.ID]; dup {
		return fmt.Errorf("operation %s: %w", op.ID, domain.ErrDuplicate)
	}
	staged := *op
	t.created[op.ID] = &staged
	t.createdSeq = append(t.createdSeq, op.ID)
	return nil
}

// GetByID returns the committed operation or nil, nil.
func (r *OperationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Operation, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operations[id]
	if !ok {
		return nil, nil
	}
	s.fillReadFields(&op)
	return &op, nil
}

// UpdateState stages status and timestamps guarded by op.Version.
func (r *OperationRepo) UpdateState(_ context.Context, tx pgx.Tx, op *domain.Operation) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if created, ok := t.created[op.ID]; ok {
		if created.Version != op.Version {
			return fmt.Errorf("operation %s: %w", op.ID, domain.ErrVersionConflict)
		}
		created.Status = op.Status
		created.ValidatedAt = op.ValidatedAt
		created.ExecutedAt = op.ExecutedAt
		created.Version++
		op.Version = created.Version
		return nil
	}

	w, staged := t.operations[op.ID]
	if !staged {
		s := r.store
		s.mu.RLock()
		cur, ok := s.operations[op.ID]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("operation %s: %w", op.ID, domain.ErrNotFound)
		}
		w = &stagedOperation{op: cur, base: cur.Version}
	}
	if w.op.Version != op.Version {
		return fmt.Errorf("operation %s: %w", op.ID, domain.ErrVersionConflict)
	}

	w.op.Status = op.Status
	w.op.ValidatedAt = op.ValidatedAt
	w.op.ExecutedAt = op.ExecutedAt
	w.op.Version++
	t.operations[op.ID] = w
	op.Version = w.op.Version
	return nil
}

// UpdateAnnotation writes the annotation directly; the version is unchanged.
func (r *OperationRepo) UpdateAnnotation(_ context.Context, id uuid.UUID, annotation string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	op.AdvisoryAnnotation = &annotation
	s.operations[id] = op
	return nil
}

// ListByAccount returns operations involving the account, newest first.
func (r *OperationRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]domain.Operation, error) {
	ops := r.filter(func(op *domain.Operation) bool { return op.Involves(accountID) })
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].CreatedAt.After(ops[j].CreatedAt) })
	return ops, nil
}

// ListByStatus returns operations in status, oldest first.
func (r *OperationRepo) ListByStatus(_ context.Context, status domain.OperationStatus) ([]domain.Operation, error) {
	ops := r.filter(func(op *domain.Operation) bool { return op.Status == status })
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].CreatedAt.Before(ops[j].CreatedAt) })
	return ops, nil
}

func (r *OperationRepo) filter(match func(*domain.Operation) bool) []domain.Operation {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Operation, 0)
	for _, op := range s.operations {
		if !match(&op) {
			continue
		}
		s.fillReadFields(&op)
		out = append(out, op)
	}
	// Stable base order so equal timestamps list deterministically.
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}
