package rerank

import (
	"fmt"
	"strings"

	"github.com/appscout/appscout/internal/domain"
)

const systemPrompt = `You judge how well mobile apps match a user's need.
For each app respond with a JSON array only, no markdown, one object per
app with fields: "item_id" (string, copied exactly), "relevance_score"
(0-10), "personalized_oneliner" (one sentence addressed to the user),
"match_explanation" (at most 25 words), "confidence" (0-1).`

// buildBatchPrompt renders one batch of candidates plus the user context
// into the judgment prompt.
func buildBatchPrompt(query string, user domain.UserContext, batch []domain.Candidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User need: %q\n", query)
	if len(user.Interests) > 0 {
		fmt.Fprintf(&b, "User interests: %s\n", strings.Join(user.Interests, ", "))
	}
	if len(user.Lifestyle) > 0 {
		fmt.Fprintf(&b, "User lifestyle: %s\n", strings.Join(user.Lifestyle, ", "))
	}
	if user.Complexity != "" {
		fmt.Fprintf(&b, "Preferred complexity: %s\n", user.Complexity)
	}

	b.WriteString("\nApps to judge:\n")
	for i, c := range batch {
		fmt.Fprintf(&b, "%d. item_id=%s title=%q category=%q", i+1, c.ItemID, c.Title, c.Category)
		if c.Rating > 0 {
			fmt.Fprintf(&b, " rating=%.1f", c.Rating)
		}
		if len(c.MatchedTerms) > 0 {
			fmt.Fprintf(&b, " matched_terms=%s", strings.Join(c.MatchedTerms, ","))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
