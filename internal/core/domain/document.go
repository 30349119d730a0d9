package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is a supporting file attached to an operation (at most one per operation).
type Document struct {
	ID          uuid.UUID `json:"id"`
	OperationID uuid.UUID `json:"operation_id"`
	FileName    string    `json:"file_name"`
	FileType    string    `json:"file_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
