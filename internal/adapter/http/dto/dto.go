package dto

import (
	"time"

	"bank-backoffice/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreateOperationRequest is the request body for a new operation.
// Kind is checked by the service so an unknown kind reports OPS_010.
type CreateOperationRequest struct {
	Kind                     string          `json:"kind" binding:"required"`
	Amount                   decimal.Decimal `json:"amount" binding:"positive_decimal"`
	DestinationAccountNumber string          `json:"destination_account_number,omitempty" binding:"omitempty,account_number"`
}

// OpenAccountRequest is the request body for opening a customer account.
type OpenAccountRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
}

// AccountResponse is the customer-facing account view.
type AccountResponse struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	OwnerID       string          `json:"owner_id"`
	CreatedAt     string          `json:"created_at"`
}

// NewAccountResponse builds an AccountResponse.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.AccountNumber,
		Balance:       a.Balance,
		OwnerID:       a.OwnerID.String(),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

// DocumentResponse is the metadata of an attached document.
type DocumentResponse struct {
	ID          string `json:"id"`
	OperationID string `json:"operation_id"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	SizeBytes   int64  `json:"size_bytes"`
	UploadedAt  string `json:"uploaded_at"`
}

// NewDocumentResponse builds a DocumentResponse.
func NewDocumentResponse(d *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:          d.ID.String(),
		OperationID: d.OperationID.String(),
		FileName:    d.FileName,
		FileType:    d.FileType,
		SizeBytes:   d.SizeBytes,
		UploadedAt:  d.UploadedAt.Format(time.RFC3339),
	}
}

// OperationListResponse wraps a list of operations.
type OperationListResponse struct {
	Items []domain.OperationView `json:"items"`
	Total int                    `json:"total"`
}
