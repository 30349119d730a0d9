package oracle

import (
	"strings"

	"bank-backoffice/internal/core/domain"
)

const noReasoning = "No reasoning provided"

// ParseAssessment reads a "DECISION: ... REASONING: ..." reply.
// Replies that do not name a known decision become NEED_HUMAN_REVIEW with
// the raw reply as rationale.
func ParseAssessment(reply string) domain.Assessment {
	reply = strings.TrimSpace(reply)

	head, reasoning, found := strings.Cut(reply, "REASONING:")
	label := strings.TrimSpace(strings.Replace(head, "DECISION:", "", 1))
	label = strings.Trim(label, "[]* \t\r\n")

	decision, ok := domain.ParseAdvisoryDecision(strings.ToUpper(label))
	if !ok {
		return domain.Assessment{
			Decision:  domain.AdvisoryNeedHumanReview,
			Rationale: "unparseable oracle reply: " + reply,
		}
	}

	rationale := strings.TrimSpace(reasoning)
	if !found || rationale == "" {
		rationale = noReasoning
	}
	return domain.Assessment{Decision: decision, Rationale: rationale}
}
