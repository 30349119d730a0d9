package ports

import (
	"context"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside the caller's unit of work.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
	GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	// LockForUpdate returns the requested accounts ordered by id, locked until tx ends.
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) ([]*domain.Account, error)
	// UpdateBalance writes balance only if the stored version equals expectedVersion,
	// otherwise it returns domain.ErrVersionConflict.
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error
}

// OperationRepository defines persistence operations for operations.
type OperationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, op *domain.Operation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	// UpdateState persists status and timestamps guarded by op.Version and
	// increments op.Version on success.
	UpdateState(ctx context.Context, tx pgx.Tx, op *domain.Operation) error
	// UpdateAnnotation stores the advisory annotation without touching the version.
	UpdateAnnotation(ctx context.Context, id uuid.UUID, annotation string) error
	// ListByAccount returns operations where the account is source or destination, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Operation, error)
	// ListByStatus returns operations in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.OperationStatus) ([]domain.Operation, error)
}

// DocumentRepository defines persistence for operation documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByOperationID(ctx context.Context, operationID uuid.UUID) (*domain.Document, error)
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// IdempotencyRepository is the durable idempotency layer. Create claims the
// key inside tx and returns domain.ErrDuplicate when another request already
// holds it; SetResponse stores the view returned to the claiming request.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error
	SetResponse(ctx context.Context, tx pgx.Tx, key string, response []byte) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
