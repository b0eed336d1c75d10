package domain

// Candidate is an item surfaced by one or both retrievers.
// Deduplication by ItemID is owned by the fusion stage.
type Candidate struct {
	ItemID             string
	Title              string
	Category           string
	Rating             float64
	SemanticSimilarity float64  // 0-1, 0 when the item came from keywords only
	KeywordRelevance   float64  // unbounded non-negative, normalized before blending
	MatchedTerms       []string // keywords that contributed to KeywordRelevance
	FusedScore         float64  // set by the fusion stage
}

// RankedResult is a terminal, immutable pipeline output entry.
type RankedResult struct {
	ItemID            string  `json:"item_id"`
	Title             string  `json:"title"`
	FinalScore        float64 `json:"final_score"`
	Explanation       string  `json:"explanation"`
	PersonalizedPitch string  `json:"personalized_pitch,omitempty"`
	Confidence        float64 `json:"confidence"`
	Rank              int     `json:"rank"` // 1-based, dense, ties broken by item_id
}

// UserContext carries optional personalization signals into the reranker.
type UserContext struct {
	Interests  []string `json:"interests,omitempty"`
	Lifestyle  []string `json:"lifestyle,omitempty"`
	Complexity string   `json:"complexity,omitempty"` // "simple", "moderate", "advanced"
}
