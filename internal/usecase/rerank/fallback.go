package rerank

import (
	"fmt"
	"strings"

	"github.com/appscout/appscout/internal/domain"
)

const (
	// Heuristic judgments carry a fixed moderate confidence: enough to
	// clear the acceptance threshold, too low for the confidence bonus.
	fallbackConfidence = 0.5

	// Fused score to 0-10 scale. Retrieval already vouched for these
	// candidates, so the heuristic stays in the mid band.
	fallbackBaseScore = 5.0
	fallbackSpan      = 3.0
)

// fallbackJudgment scores a candidate without the model. normRetrieval
// is the candidate's fused score normalized to 0-1 over the judged set.
func fallbackJudgment(c domain.Candidate, query string, normRetrieval float64) judgment {
	return judgment{
		ItemID:      c.ItemID,
		Relevance:   fallbackBaseScore + fallbackSpan*normRetrieval,
		OneLiner:    fallbackOneLiner(c, query),
		Explanation: fallbackExplanation(c),
		Confidence:  fallbackConfidence,
	}
}

func fallbackOneLiner(c domain.Candidate, query string) string {
	topic := strings.TrimSpace(query)
	if topic == "" {
		topic = "what you described"
	}
	if c.Category != "" {
		return fmt.Sprintf("A solid %s pick for %s.", strings.ToLower(c.Category), topic)
	}
	return fmt.Sprintf("A solid pick for %s.", topic)
}

func fallbackExplanation(c domain.Candidate) string {
	if len(c.MatchedTerms) > 0 {
		return fmt.Sprintf("Matched on %s.", strings.Join(c.MatchedTerms, ", "))
	}
	if c.SemanticSimilarity > 0 {
		return "Semantically close to your description."
	}
	return "Surfaced by retrieval."
}
