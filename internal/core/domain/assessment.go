package domain

import "fmt"

// AdvisoryDecision is the non-binding verdict of the risk oracle.
type AdvisoryDecision string

const (
	AdvisoryApprove         AdvisoryDecision = "APPROVE"
	AdvisoryReject          AdvisoryDecision = "REJECT"
	AdvisoryNeedHumanReview AdvisoryDecision = "NEED_HUMAN_REVIEW"
)

// ParseAdvisoryDecision maps a label to a decision.
func ParseAdvisoryDecision(s string) (AdvisoryDecision, bool) {
	switch d := AdvisoryDecision(s); d {
	case AdvisoryApprove, AdvisoryReject, AdvisoryNeedHumanReview:
		return d, true
	}
	return "", false
}

// Assessment is the oracle's output. It is stored as an annotation only.
type Assessment struct {
	Decision  AdvisoryDecision `json:"decision"`
	Rationale string           `json:"rationale"`
}

// Annotation renders the assessment for storage on the operation.
func (a Assessment) Annotation() string {
	return fmt.Sprintf("%s: %s", a.Decision, a.Rationale)
}

// FailedAssessmentAnnotation renders an oracle failure for storage on the operation.
func FailedAssessmentAnnotation(err error) string {
	return "advisory assessment failed: " + err.Error()
}
