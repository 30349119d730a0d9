package postgres

import (
	"context"
	"testing"
	"time"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument() *domain.Document {
	return &domain.Document{
		ID:          uuid.New(),
		OperationID: uuid.New(),
		FileName:    "payslip.pdf",
		FileType:    "application/pdf",
		SizeBytes:   2048,
		StoragePath: "uploads/payslip.pdf",
		UploadedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func documentArgs(d *domain.Document) []any {
	return []any{d.ID, d.OperationID, d.FileName, d.FileType, d.SizeBytes, d.StoragePath, d.UploadedAt}
}

func TestDocumentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepo(mock)
	d := newTestDocument()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(documentArgs(d)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepo_Create_ConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"second document for operation", "23505", domain.ErrDuplicate},
		{"unknown operation", "23503", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewDocumentRepo(mock)
			d := newTestDocument()

			mock.ExpectExec("INSERT INTO documents").
				WithArgs(documentArgs(d)...).
				WillReturnError(&pgconn.PgError{Code: tt.code})

			err = repo.Create(context.Background(), d)
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDocumentRepo_GetByOperationID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepo(mock)
	d := newTestDocument()
	cols := []string{"id", "operation_id", "file_name", "file_type", "size_bytes", "storage_path", "uploaded_at"}

	mock.ExpectQuery("SELECT .+ FROM documents WHERE operation_id").
		WithArgs(d.OperationID).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(documentArgs(d)...))
	mock.ExpectQuery("SELECT .+ FROM documents WHERE operation_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByOperationID(context.Background(), d.OperationID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, d.ID, result.ID)
	assert.Equal(t, d.StoragePath, result.StoragePath)
	assert.Equal(t, int64(2048), result.SizeBytes)

	missing, err := repo.GetByOperationID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       domain.AuditActionApproveOperation,
		ResourceType: "operation",
		ResourceID:   uuid.NewString(),
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, "APPROVE_OPERATION", "operation",
			entry.ResourceID, (*string)(nil), "10.0.0.1", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginsReadCommitted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	mock.ExpectRollback()

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1 FROM accounts LIMIT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
