package service

import "github.com/shopspring/decimal"

// Classification is the validator's verdict on an amount.
type Classification int

const (
	ExecutableNow Classification = iota
	NeedsReview
)

func (c Classification) String() string {
	if c == ExecutableNow {
		return "EXECUTABLE_NOW"
	}
	return "NEEDS_REVIEW"
}

// TransactionValidator applies the review threshold. Amounts equal to the
// threshold still execute immediately.
type TransactionValidator struct {
	threshold decimal.Decimal
}

// NewTransactionValidator creates a validator for the configured threshold.
func NewTransactionValidator(threshold decimal.Decimal) *TransactionValidator {
	return &TransactionValidator{threshold: threshold}
}

// Classify returns ExecutableNow for amounts up to the threshold.
func (v *TransactionValidator) Classify(amount decimal.Decimal) Classification {
	if amount.LessThanOrEqual(v.threshold) {
		return ExecutableNow
	}
	return NeedsReview
}

// RequiresManualReview reports whether amount must wait for an agent.
func (v *TransactionValidator) RequiresManualReview(amount decimal.Decimal) bool {
	return v.Classify(amount) == NeedsReview
}

// Threshold returns the configured threshold.
func (v *TransactionValidator) Threshold() decimal.Decimal {
	return v.threshold
}
