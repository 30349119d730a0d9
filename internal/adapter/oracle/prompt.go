package oracle

import (
	"bytes"
	"text/template"

	"bank-backoffice/internal/core/ports"
)

var promptTemplate = template.Must(template.New("risk").Parse(`You are a risk analyst for a retail bank.
Analyze the following operation:
- Operation kind: {{.Kind}}
- Amount: {{.Amount}} DH
- Document type: {{.DocumentKind}}
- Document content (extracted text):
"{{.ExtractedText}}"

Rules:
1. Verify if the document content supports the operation amount.
2. If the document mentions an amount, it MUST match the operation amount (within 5% tolerance).
3. If the document is an image or the text is unreadable, flag it for human review.
4. If amount < 50000 and the document is a payslip or an invoice and its content matches the amount, recommend APPROVE.
5. If amount >= 50000, always recommend NEED_HUMAN_REVIEW.
6. If the document is suspicious or its content contradicts the amount, recommend REJECT.
7. If amount >= 20000 and amount < 50000 and the content matches, recommend APPROVE.

Respond in the following format:
DECISION: [APPROVE|REJECT|NEED_HUMAN_REVIEW]
REASONING: [One sentence explaining why, citing specific content from the document if possible]
`))

// BuildPrompt renders the risk-analysis prompt for req.
func BuildPrompt(req ports.AssessmentRequest) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Kind          string
		Amount        string
		DocumentKind  string
		ExtractedText string
	}{
		Kind:          string(req.Kind),
		Amount:        req.Amount.String(),
		DocumentKind:  req.DocumentKind,
		ExtractedText: req.ExtractedText,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
