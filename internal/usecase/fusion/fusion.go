package fusion

import (
	"sort"

	"github.com/appscout/appscout/internal/domain"
)

// Config holds the fusion weights. RRFK is the reciprocal-rank smoothing
// constant; the three boost weights reattach magnitude, diversity, and
// quality signal that pure rank fusion discards.
type Config struct {
	RRFK            int
	MagnitudeWeight float64
	DiversityBoost  float64
	RatingWeight    float64
}

// Fuser merges the two retrievers' candidate lists with reciprocal rank
// fusion. It is a pure function of its inputs: no I/O, no randomness,
// identical inputs produce identical output.
type Fuser struct {
	cfg Config
}

// New creates a fuser.
func New(cfg Config) *Fuser {
	return &Fuser{cfg: cfg}
}

// Fuse deduplicates by item id, sums 1/(k+rank) contributions per source
// list, applies the magnitude, diversity, and rating adjustments in that
// order, and returns candidates sorted by fused score descending with
// item id as the tiebreak.
func (f *Fuser) Fuse(vector, keyword []domain.Candidate) []domain.Candidate {
	merged := make(map[string]*domain.Candidate, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))

	absorb := func(list []domain.Candidate) {
		for rank, c := range list {
			rrf := 1.0 / float64(f.cfg.RRFK+rank+1)
			if have, ok := merged[c.ItemID]; ok {
				have.FusedScore += rrf
				mergeSignals(have, c)
				continue
			}
			cp := c
			cp.FusedScore = rrf
			merged[c.ItemID] = &cp
			order = append(order, c.ItemID)
		}
	}
	absorb(vector)
	absorb(keyword)

	out := make([]domain.Candidate, 0, len(order))
	maxKeyword := maxKeywordRelevance(merged)
	for _, id := range order {
		c := *merged[id]
		c.FusedScore += f.magnitudeBoost(c, maxKeyword)
		c.FusedScore += c.Rating * f.cfg.RatingWeight
		out = append(out, c)
	}

	sortCandidates(out)
	f.applyDiversityBoost(out)
	sortCandidates(out)
	return out
}

// mergeSignals folds a duplicate sighting's retriever-specific fields
// into the candidate kept from the first sighting.
func mergeSignals(dst *domain.Candidate, src domain.Candidate) {
	if src.SemanticSimilarity > dst.SemanticSimilarity {
		dst.SemanticSimilarity = src.SemanticSimilarity
	}
	if src.KeywordRelevance > dst.KeywordRelevance {
		dst.KeywordRelevance = src.KeywordRelevance
	}
	if len(dst.MatchedTerms) == 0 {
		dst.MatchedTerms = src.MatchedTerms
	}
}

// magnitudeBoost reattaches score magnitude that rank fusion throws
// away. Keyword relevance is unbounded, so it is normalized by the
// batch maximum before blending with the 0-1 similarity.
func (f *Fuser) magnitudeBoost(c domain.Candidate, maxKeyword float64) float64 {
	signal := c.SemanticSimilarity
	if maxKeyword > 0 {
		norm := c.KeywordRelevance / maxKeyword
		if norm > signal {
			signal = norm
		}
	}
	return signal * f.cfg.MagnitudeWeight
}

// applyDiversityBoost rewards the best-ranked item of each category so a
// single category does not monopolize the top of the list. Candidates
// must already be sorted.
func (f *Fuser) applyDiversityBoost(candidates []domain.Candidate) {
	seen := make(map[string]bool)
	for i := range candidates {
		cat := candidates[i].Category
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		candidates[i].FusedScore += f.cfg.DiversityBoost
	}
}

func maxKeywordRelevance(merged map[string]*domain.Candidate) float64 {
	var max float64
	for _, c := range merged {
		if c.KeywordRelevance > max {
			max = c.KeywordRelevance
		}
	}
	return max
}

func sortCandidates(c []domain.Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].FusedScore != c[j].FusedScore {
			return c[i].FusedScore > c[j].FusedScore
		}
		return c[i].ItemID < c[j].ItemID
	})
}
