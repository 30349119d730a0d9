package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionValidator_Classify(t *testing.T) {
	v := NewTransactionValidator(dec("10000"))

	tests := []struct {
		name   string
		amount string
		want   Classification
	}{
		{"small", "0.01", ExecutableNow},
		{"typical", "5000", ExecutableNow},
		{"exactly threshold", "10000", ExecutableNow},
		{"just above threshold", "10000.01", NeedsReview},
		{"large", "15000", NeedsReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Classify(dec(tt.amount)))
			assert.Equal(t, tt.want == NeedsReview, v.RequiresManualReview(dec(tt.amount)))
		})
	}
}

func TestTransactionValidator_ConfiguredThreshold(t *testing.T) {
	v := NewTransactionValidator(dec("250.50"))
	assert.Equal(t, ExecutableNow, v.Classify(dec("250.50")))
	assert.Equal(t, NeedsReview, v.Classify(dec("250.51")))
	assert.True(t, dec("250.50").Equal(v.Threshold()))
	assert.Equal(t, "NEEDS_REVIEW", NeedsReview.String())
}
