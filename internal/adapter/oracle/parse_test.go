package oracle

import (
	"testing"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		decision  domain.AdvisoryDecision
		rationale string
	}{
		{"approve", "DECISION: APPROVE\nREASONING: invoice matches", domain.AdvisoryApprove, "invoice matches"},
		{"reject", "DECISION: REJECT REASONING: amount contradicts payslip", domain.AdvisoryReject, "amount contradicts payslip"},
		{"bracketed label", "DECISION: [NEED_HUMAN_REVIEW]\nREASONING: image only", domain.AdvisoryNeedHumanReview, "image only"},
		{"lower case label", "decision: approve", domain.AdvisoryNeedHumanReview, "unparseable oracle reply: decision: approve"},
		{"missing reasoning", "DECISION: APPROVE", domain.AdvisoryApprove, noReasoning},
		{"unknown decision", "DECISION: MAYBE\nREASONING: unsure", domain.AdvisoryNeedHumanReview, "unparseable oracle reply: DECISION: MAYBE\nREASONING: unsure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAssessment(tt.reply)
			assert.Equal(t, tt.decision, got.Decision)
			assert.Equal(t, tt.rationale, got.Rationale)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(ports.AssessmentRequest{
		Amount:        decimal.RequireFromString("52000.50"),
		Kind:          domain.OperationKindTransfer,
		DocumentKind:  "image/png",
		ExtractedText: "No content extracted",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Operation kind: TRANSFER")
	assert.Contains(t, prompt, "Amount: 52000.5 DH")
	assert.Contains(t, prompt, "Document type: image/png")
	assert.Contains(t, prompt, `"No content extracted"`)
	assert.Contains(t, prompt, "DECISION: [APPROVE|REJECT|NEED_HUMAN_REVIEW]")
}
