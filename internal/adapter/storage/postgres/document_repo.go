package postgres

import (
	"context"
	"errors"
	"fmt"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// foreignKeyViolation is the SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

// DocumentRepo implements ports.DocumentRepository.
type DocumentRepo struct {
	pool Pool
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(pool Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// Create inserts document metadata. The unique index on operation_id turns a
// second upload into domain.ErrDuplicate.
func (r *DocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	query := `INSERT INTO documents (id, operation_id, file_name, file_type, size_bytes, storage_path, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		doc.ID, doc.OperationID, doc.FileName, doc.FileType, doc.SizeBytes, doc.StoragePath, doc.UploadedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return fmt.Errorf("insert document: %w", domain.ErrDuplicate)
			case foreignKeyViolation:
				return fmt.Errorf("insert document: operation %s: %w", doc.OperationID, domain.ErrNotFound)
			}
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByOperationID fetches the document attached to an operation.
func (r *DocumentRepo) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*domain.Document, error) {
	query := `SELECT id, operation_id, file_name, file_type, size_bytes, storage_path, uploaded_at
		FROM documents WHERE operation_id = $1`

	d := &domain.Document{}
	err := r.pool.QueryRow(ctx, query, operationID).Scan(
		&d.ID, &d.OperationID, &d.FileName, &d.FileType, &d.SizeBytes, &d.StoragePath, &d.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by operation: %w", err)
	}
	return d, nil
}
