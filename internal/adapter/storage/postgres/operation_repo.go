package postgres

import (
	"context"
	"errors"
	"fmt"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// operationSelect joins the account numbers and the document flag that make
// up the operation read model.
const operationSelect = `SELECT o.id, o.kind, o.amount, o.status, o.created_at, o.validated_at, o.executed_at,
		o.source_account_id, o.destination_account_id, o.advisory_annotation, o.version,
		sa.account_number, da.account_number,
		EXISTS (SELECT 1 FROM documents d WHERE d.operation_id = o.id)
	FROM operations o
	JOIN accounts sa ON sa.id = o.source_account_id
	LEFT JOIN accounts da ON da.id = o.destination_account_id`

// OperationRepo implements ports.OperationRepository.
type OperationRepo struct {
	pool Pool
}

// NewOperationRepo creates a new OperationRepo.
func NewOperationRepo(pool Pool) *OperationRepo {
	return &OperationRepo{pool: pool}
}

// Create inserts a new operation within tx.
func (r *OperationRepo) Create(ctx context.Context, tx pgx.Tx, op *domain.Operation) error {
	query := `INSERT INTO operations (id, kind, amount, status, created_at, validated_at, executed_at,
		source_account_id, destination_account_id, advisory_annotation, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		op.ID, string(op.Kind), op.Amount, string(op.Status), op.CreatedAt, op.ValidatedAt, op.ExecutedAt,
		op.SourceAccountID, op.DestinationAccountID, op.AdvisoryAnnotation, op.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert operation: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// GetByID fetches an operation with its read-model fields.
func (r *OperationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	op, err := scanOperation(r.pool.QueryRow(ctx, operationSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get operation by id: %w", err)
	}
	return op, nil
}

// UpdateState writes status and timestamps if the row is still at op.Version,
// then advances op.Version.
func (r *OperationRepo) UpdateState(ctx context.Context, tx pgx.Tx, op *domain.Operation) error {
	query := `UPDATE operations SET status = $1, validated_at = $2, executed_at = $3, version = version + 1
		WHERE id = $4 AND version = $5`

	tag, err := tx.Exec(ctx, query, string(op.Status), op.ValidatedAt, op.ExecutedAt, op.ID, op.Version)
	if err != nil {
		return fmt.Errorf("update operation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operation %s at version %d: %w", op.ID, op.Version, domain.ErrVersionConflict)
	}
	op.Version++
	return nil
}

// UpdateAnnotation stores the advisory annotation. The version is left alone
// so an annotation never races with a reviewer decision.
func (r *OperationRepo) UpdateAnnotation(ctx context.Context, id uuid.UUID, annotation string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE operations SET advisory_annotation = $1 WHERE id = $2`, annotation, id)
	if err != nil {
		return fmt.Errorf("update operation annotation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByAccount returns operations where the account is source or destination, newest first.
func (r *OperationRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Operation, error) {
	query := operationSelect + `
	WHERE o.source_account_id = $1 OR o.destination_account_id = $1
	ORDER BY o.created_at DESC, o.id`
	return r.list(ctx, "list operations by account", query, accountID)
}

// ListByStatus returns operations in the given status, oldest first.
func (r *OperationRepo) ListByStatus(ctx context.Context, status domain.OperationStatus) ([]domain.Operation, error) {
	query := operationSelect + `
	WHERE o.status = $1
	ORDER BY o.created_at ASC, o.id`
	return r.list(ctx, "list operations by status", query, string(status))
}

func (r *OperationRepo) list(ctx context.Context, op, query string, arg any) ([]domain.Operation, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ops := make([]domain.Operation, 0)
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ops = append(ops, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ops, nil
}

func scanOperation(row rowScanner) (*domain.Operation, error) {
	var (
		o      domain.Operation
		kind   string
		status string
	)
	err := row.Scan(
		&o.ID, &kind, &o.Amount, &status, &o.CreatedAt, &o.ValidatedAt, &o.ExecutedAt,
		&o.SourceAccountID, &o.DestinationAccountID, &o.AdvisoryAnnotation, &o.Version,
		&o.SourceAccountNumber, &o.DestinationAccountNumber, &o.HasDocument,
	)
	if err != nil {
		return nil, err
	}
	o.Kind = domain.OperationKind(kind)
	o.Status = domain.OperationStatus(status)
	return &o, nil
}
