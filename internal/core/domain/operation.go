package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationKind is the closed set of balance-changing actions.
type OperationKind string

const (
	OperationKindDeposit    OperationKind = "DEPOSIT"
	OperationKindWithdrawal OperationKind = "WITHDRAWAL"
	OperationKindTransfer   OperationKind = "TRANSFER"
)

// Valid reports whether k is one of the known kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationKindDeposit, OperationKindWithdrawal, OperationKindTransfer:
		return true
	}
	return false
}

// OperationStatus is the lifecycle state of an operation.
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "PENDING"
	OperationStatusExecuted  OperationStatus = "EXECUTED"
	OperationStatusCancelled OperationStatus = "CANCELLED"
)

// IsTerminal returns true for EXECUTED and CANCELLED.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusExecuted || s == OperationStatusCancelled
}

// Operation is an append-only record of a requested movement of funds.
// ExecutedAt is set if and only if Status is EXECUTED.
type Operation struct {
	ID                   uuid.UUID       `json:"id"`
	Kind                 OperationKind   `json:"kind"`
	Amount               decimal.Decimal `json:"amount"`
	Status               OperationStatus `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	ValidatedAt          *time.Time      `json:"validated_at,omitempty"`
	ExecutedAt           *time.Time      `json:"executed_at,omitempty"`
	SourceAccountID      uuid.UUID       `json:"source_account_id"`
	DestinationAccountID *uuid.UUID      `json:"destination_account_id,omitempty"`
	AdvisoryAnnotation   *string         `json:"advisory_annotation,omitempty"`
	Version              int64           `json:"-"`

	// Read-model fields filled in by queries, never written back.
	SourceAccountNumber      string  `json:"source_account_number"`
	DestinationAccountNumber *string `json:"destination_account_number,omitempty"`
	HasDocument              bool    `json:"has_document"`
}

// NewOperation builds a PENDING operation between the given accounts.
// destination is only recorded for transfers.
func NewOperation(kind OperationKind, amount decimal.Decimal, source, destination *Account, now time.Time) *Operation {
	op := &Operation{
		ID:                  uuid.New(),
		Kind:                kind,
		Amount:              amount,
		Status:              OperationStatusPending,
		CreatedAt:           now,
		SourceAccountID:     source.ID,
		SourceAccountNumber: source.AccountNumber,
		Version:             1,
	}
	if kind == OperationKindTransfer && destination != nil {
		id := destination.ID
		number := destination.AccountNumber
		op.DestinationAccountID = &id
		op.DestinationAccountNumber = &number
	}
	return op
}

// TransitionError reports a status change attempted from a non-PENDING state.
// It matches ErrInvalidTransition with errors.Is.
type TransitionError struct {
	Action string
	From   OperationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("only pending operations can be %s (current status %s)", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Approve records the reviewer's validation. Only PENDING operations can be approved.
func (o *Operation) Approve(now time.Time) error {
	if o.Status != OperationStatusPending {
		return &TransitionError{Action: "approved", From: o.Status}
	}
	o.ValidatedAt = &now
	return nil
}

// Reject cancels a PENDING operation.
func (o *Operation) Reject(now time.Time) error {
	if o.Status != OperationStatusPending {
		return &TransitionError{Action: "rejected", From: o.Status}
	}
	o.Status = OperationStatusCancelled
	o.ValidatedAt = &now
	return nil
}

// MarkExecuted moves a PENDING operation to EXECUTED.
func (o *Operation) MarkExecuted(now time.Time) error {
	if o.Status != OperationStatusPending {
		return &TransitionError{Action: "executed", From: o.Status}
	}
	o.Status = OperationStatusExecuted
	o.ExecutedAt = &now
	return nil
}

// Involves reports whether the account is the source or destination.
func (o *Operation) Involves(accountID uuid.UUID) bool {
	if o.SourceAccountID == accountID {
		return true
	}
	return o.DestinationAccountID != nil && *o.DestinationAccountID == accountID
}

// OperationView is the representation handed to callers.
type OperationView struct {
	ID                       uuid.UUID       `json:"id"`
	Kind                     OperationKind   `json:"kind"`
	Amount                   decimal.Decimal `json:"amount"`
	Status                   OperationStatus `json:"status"`
	CreatedAt                time.Time       `json:"created_at"`
	ValidatedAt              *time.Time      `json:"validated_at,omitempty"`
	ExecutedAt               *time.Time      `json:"executed_at,omitempty"`
	SourceAccountNumber      string          `json:"source_account_number"`
	DestinationAccountNumber *string         `json:"destination_account_number,omitempty"`
	HasAttachedDocument      bool            `json:"has_attached_document"`
	AdvisoryAnnotation       *string         `json:"advisory_annotation,omitempty"`
}

// View projects the operation for callers.
func (o *Operation) View() OperationView {
	return OperationView{
		ID:                       o.ID,
		Kind:                     o.Kind,
		Amount:                   o.Amount,
		Status:                   o.Status,
		CreatedAt:                o.CreatedAt,
		ValidatedAt:              o.ValidatedAt,
		ExecutedAt:               o.ExecutedAt,
		SourceAccountNumber:      o.SourceAccountNumber,
		DestinationAccountNumber: o.DestinationAccountNumber,
		HasAttachedDocument:      o.HasDocument,
		AdvisoryAnnotation:       o.AdvisoryAnnotation,
	}
}
