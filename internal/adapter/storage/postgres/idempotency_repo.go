package postgres

import (
	"context"
	"errors"
	"fmt"

	"bank-backoffice/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create claims rec.Key within tx. A concurrent insert of the same key
// blocks on the primary key until the holder ends, then fails with
// domain.ErrDuplicate if the holder committed.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_keys (key, operation_id, response_json, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, rec.Key, rec.OperationID, nullableJSON(rec.ResponseJSON), rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert idempotency key: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert idempotency key: %w", err)
	}
	return nil
}

// SetResponse stores the view returned for key within tx.
func (r *IdempotencyRepo) SetResponse(ctx context.Context, tx pgx.Tx, key string, response []byte) error {
	tag, err := tx.Exec(ctx, `UPDATE idempotency_keys SET response_json = $1 WHERE key = $2`, response, key)
	if err != nil {
		return fmt.Errorf("update idempotency response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency key %q: %w", key, domain.ErrNotFound)
	}
	return nil
}

// Get returns the committed record for key, or nil if none exists.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, operation_id, response_json, created_at FROM idempotency_keys WHERE key = $1`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.OperationID, &rec.ResponseJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return rec, nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}
