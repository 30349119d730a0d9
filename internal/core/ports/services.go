package ports

import (
	"context"
	"io"
	"time"

	"bank-backoffice/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(identity domain.Identity) (string, time.Time, error)
	Validate(tokenString string) (*domain.Identity, error)
}

// IdempotencyCache is the Redis-layer idempotency check.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AdvisoryOracle produces a non-binding risk assessment for a documented operation.
type AdvisoryOracle interface {
	Assess(ctx context.Context, req AssessmentRequest) (*domain.Assessment, error)
}

// AssessmentRequest is the input handed to the oracle.
type AssessmentRequest struct {
	Amount        decimal.Decimal
	Kind          domain.OperationKind
	DocumentKind  string
	ExtractedText string
}

// TextExtractor pulls readable text out of an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, contentType string, content []byte) (string, error)
}

// DocumentStorage stores document blobs.
type DocumentStorage interface {
	Save(ctx context.Context, name string, content io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// --- Service Ports (Business Logic) ---

// OperationService is the operation lifecycle engine.
type OperationService interface {
	CreateOperation(ctx context.Context, req CreateOperationRequest) (*domain.OperationView, error)
	ListOperations(ctx context.Context, actor domain.Identity) ([]domain.OperationView, error)
	ListPending(ctx context.Context) ([]domain.OperationView, error)
	Approve(ctx context.Context, operationID uuid.UUID) (*domain.OperationView, error)
	Reject(ctx context.Context, operationID uuid.UUID) (*domain.OperationView, error)
}

// CreateOperationRequest holds validated input for operation creation.
type CreateOperationRequest struct {
	Kind                     domain.OperationKind
	Amount                   decimal.Decimal
	DestinationAccountNumber string
	Actor                    domain.Identity
	IdempotencyKey           string
}

// DocumentService handles supporting documents and their advisory assessment.
type DocumentService interface {
	Upload(ctx context.Context, req UploadDocumentRequest) (*domain.Document, error)
	GetDocument(ctx context.Context, operationID uuid.UUID) (*domain.Document, error)
	OpenDocument(ctx context.Context, operationID uuid.UUID) (*domain.Document, io.ReadCloser, error)
}

// UploadDocumentRequest holds one uploaded file.
type UploadDocumentRequest struct {
	OperationID uuid.UUID
	Actor       domain.Identity
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// AccountService handles account onboarding and lookup.
type AccountService interface {
	OpenAccount(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
	GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
}

// AuditService records audit trail entries.
type AuditService interface {
	// Log records an entry without blocking the caller.
	Log(ctx context.Context, entry *domain.AuditLog)
}
