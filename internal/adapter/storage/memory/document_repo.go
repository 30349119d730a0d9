package memory

import (
	"context"
	"fmt"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
)

// DocumentRepo implements ports.DocumentRepository over a Store.
type DocumentRepo struct {
	store *Store
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(store *Store) *DocumentRepo {
	return &DocumentRepo{store: store}
}

// Create stores a document; one per operation.
func (r *DocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.operations[doc.OperationID]; !ok {
		return fmt.Errorf("operation %s: %w", doc.OperationID, domain.ErrNotFound)
	}
	if _, dup := s.documents[doc.OperationID]; dup {
		return fmt.Errorf("document for operation %s: %w", doc.OperationID, domain.ErrDuplicate)
	}
	s.documents[doc.OperationID] = *doc
	return nil
}

// GetByOperationID returns nil, nil when no document is attached.
func (r *DocumentRepo) GetByOperationID(_ context.Context, operationID uuid.UUID) (*domain.Document, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[operationID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// AuditRepo implements ports.AuditRepository over a Store.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

// Create appends an audit entry.
func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}

// Entries returns a copy of the recorded audit trail.
func (r *AuditRepo) Entries() []domain.AuditLog {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.audit...)
}
