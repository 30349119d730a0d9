package service

import (
	"errors"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes Postgres uses for serialization failures and deadlocks.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateError maps storage and domain failures onto the error taxonomy.
// AppErrors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var transitionErr *domain.TransitionError
	if errors.As(err, &transitionErr) {
		return apperror.ErrInvalidStateTransition(transitionErr.Error())
	}

	if errors.Is(err, domain.ErrVersionConflict) {
		return apperror.ErrConcurrencyConflict(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return apperror.ErrConcurrencyConflict(err)
		}
	}

	return apperror.InternalError(err)
}
