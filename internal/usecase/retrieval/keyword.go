package retrieval

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/appscout/appscout/internal/domain"
	"github.com/appscout/appscout/internal/metrics"
)

const (
	// Relative importance of the intent's term lists. Focus terms are
	// picked for matching, concepts are broader.
	focusImportance   = 1.0
	conceptImportance = 0.7

	// Taxonomy synonyms match less precisely than the user's own words.
	synonymDiscount = 0.8

	// Base contribution for a category-tag match with no explicit
	// keyword weight on the item.
	categoryBaseWeight = 0.5

	// Substring matching gates. Short tokens collide with unrelated
	// words ("era" inside "Everand"), so unanchored containment needs a
	// longer token than a prefix match.
	minPrefixLen    = 3
	minContainsLen  = 6
	scanFetchFactor = 4
)

// KeywordConfig holds the lexical scoring knobs.
type KeywordConfig struct {
	MinScore           float64 // drop items scoring below this
	CategoryMultiplier float64 // boost for category-tag matches
	SubstringPenalty   float64 // discount for non-exact matches
	RatingBonus        float64 // per-star additive quality bonus
	ScanCap            int     // upper bound on the scan-fallback fetch, 0 for none
}

// KeywordRetriever scores items by overlap between intent terms and each
// item's keyword-weight map and category tags. A text-index failure
// degrades to a substring scan over the catalog instead of failing the
// request.
type KeywordRetriever struct {
	catalog Catalog
	cfg     KeywordConfig
	logger  *zap.Logger
}

// NewKeyword creates a keyword retriever.
func NewKeyword(catalog Catalog, cfg KeywordConfig, logger *zap.Logger) *KeywordRetriever {
	return &KeywordRetriever{catalog: catalog, cfg: cfg, logger: logger}
}

// weightedTerm is an intent term expanded through the taxonomy. The
// slice keeps term order stable so tests and logs are deterministic.
type weightedTerm struct {
	term       string
	importance float64
}

// Retrieve returns up to limit lexically scored candidates, best first.
// The bool reports degraded mode (substring-scan fallback used).
func (r *KeywordRetriever) Retrieve(ctx context.Context, intent domain.QueryIntent, limit int) ([]domain.Candidate, bool, error) {
	terms, categories := expandTerms(intent)
	if len(terms) == 0 {
		return nil, false, nil
	}

	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = t.term
	}

	items, err := r.catalog.ItemsByKeywordMatch(ctx, names, categories, limit*2)
	if err != nil {
		r.logger.Warn("keyword text search failed, falling back to catalog scan", zap.Error(err))
		metrics.StageDegradedTotal.WithLabelValues("keyword").Inc()
		return r.scanFallback(ctx, terms, limit)
	}
	if len(items) == 0 {
		metrics.CandidatesReturned.WithLabelValues("keyword").Observe(0)
		return nil, false, nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	weights, err := r.catalog.GetKeywordWeights(ctx, ids)
	if err != nil {
		// Scoring still works on category tags and substring matches
		// against the (empty) weight maps.
		r.logger.Warn("keyword weights unavailable, scoring on tags only", zap.Error(err))
		weights = nil
	}

	candidates := make([]domain.Candidate, 0, len(items))
	for _, item := range items {
		score, matched := r.scoreItem(item, weights[item.ID], terms)
		if score < r.cfg.MinScore {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ItemID:           item.ID,
			Title:            item.Title,
			Category:         item.Category,
			Rating:           item.Rating,
			KeywordRelevance: score,
			MatchedTerms:     matched,
		})
	}

	sortAndTrim(&candidates, limit)
	metrics.CandidatesReturned.WithLabelValues("keyword").Observe(float64(len(candidates)))
	return candidates, false, nil
}

// scoreItem accumulates weight(term) x importance over the item's
// keyword-weight map. Category-tag matches are multiplied up, substring
// matches are penalized, and a small rating bonus rewards quality.
func (r *KeywordRetriever) scoreItem(item domain.Item, kw domain.KeywordWeights, terms []weightedTerm) (float64, []string) {
	var score float64
	var matched []string

	for _, t := range terms {
		contrib := 0.0

		switch {
		case kw.Weight(t.term) > 0:
			contrib = kw.Weight(t.term) * t.importance
			if matchesCategory(item, t.term) {
				contrib *= r.cfg.CategoryMultiplier
			}
		case matchesCategory(item, t.term):
			contrib = categoryBaseWeight * t.importance * r.cfg.CategoryMultiplier
		default:
			if w := bestSubstringWeight(kw, t.term); w > 0 {
				contrib = w * t.importance * r.cfg.SubstringPenalty
			}
		}

		if contrib > 0 {
			score += contrib
			matched = append(matched, t.term)
		}
	}

	if score > 0 && item.Rating > 0 {
		score += item.Rating * r.cfg.RatingBonus
	}
	return score, matched
}

// bestSubstringWeight finds the highest-weight key the term partially
// matches. Prefix matches need minPrefixLen characters, unanchored
// containment needs minContainsLen.
func bestSubstringWeight(kw domain.KeywordWeights, term string) float64 {
	var best float64
	for key, w := range kw {
		if key == term || w <= best {
			continue
		}
		if len(term) >= minContainsLen && strings.Contains(key, term) {
			best = w
			continue
		}
		if len(term) >= minPrefixLen && strings.HasPrefix(key, term) {
			best = w
		}
	}
	return best
}

// scanFallback substring-matches terms against title and description of
// a bounded catalog scan. Coarse, but keeps lexical recall alive when
// the text index is down.
func (r *KeywordRetriever) scanFallback(ctx context.Context, terms []weightedTerm, limit int) ([]domain.Candidate, bool, error) {
	fetch := limit * scanFetchFactor
	if r.cfg.ScanCap > 0 && fetch > r.cfg.ScanCap {
		fetch = r.cfg.ScanCap
	}
	items, err := r.catalog.ScanItems(ctx, fetch)
	if err != nil {
		return nil, true, err
	}

	candidates := make([]domain.Candidate, 0, limit)
	for _, item := range items {
		haystack := strings.ToLower(item.Title + " " + item.Description)

		var score float64
		var matched []string
		for _, t := range terms {
			if len(t.term) < minPrefixLen || !strings.Contains(haystack, t.term) {
				continue
			}
			score += t.importance
			matched = append(matched, t.term)
		}
		if score == 0 {
			continue
		}
		if item.Rating > 0 {
			score += item.Rating * r.cfg.RatingBonus
		}
		candidates = append(candidates, domain.Candidate{
			ItemID:           item.ID,
			Title:            item.Title,
			Category:         item.Category,
			Rating:           item.Rating,
			KeywordRelevance: score,
			MatchedTerms:     matched,
		})
	}

	sortAndTrim(&candidates, limit)
	metrics.CandidatesReturned.WithLabelValues("keyword").Observe(float64(len(candidates)))
	return candidates, true, nil
}

// expandTerms flattens the intent's term lists through the taxonomy into
// a deduplicated, importance-weighted term slice plus the category
// filters the taxonomy implies. A term present in both lists keeps the
// higher importance.
func expandTerms(intent domain.QueryIntent) ([]weightedTerm, []string) {
	terms := make([]weightedTerm, 0, 2*(len(intent.SearchFocus)+len(intent.KeyConcepts)))
	index := make(map[string]int)
	catSeen := make(map[string]bool)
	var categories []string

	add := func(raw string, importance float64) {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			return
		}
		if i, ok := index[term]; ok {
			if importance > terms[i].importance {
				terms[i].importance = importance
			}
			return
		}
		index[term] = len(terms)
		terms = append(terms, weightedTerm{term: term, importance: importance})

		entry, ok := lookupTaxonomy(term)
		if !ok {
			return
		}
		if !catSeen[entry.Category] {
			catSeen[entry.Category] = true
			categories = append(categories, entry.Category)
		}
		for _, syn := range entry.Synonyms {
			if _, ok := index[syn]; ok {
				continue
			}
			index[syn] = len(terms)
			terms = append(terms, weightedTerm{term: syn, importance: importance * synonymDiscount})
		}
	}

	for _, t := range intent.SearchFocus {
		add(t, focusImportance)
	}
	for _, t := range intent.KeyConcepts {
		add(t, conceptImportance)
	}
	return terms, categories
}

func matchesCategory(item domain.Item, term string) bool {
	if strings.EqualFold(item.Category, term) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.EqualFold(tag, term) {
			return true
		}
	}
	return false
}

func sortAndTrim(candidates *[]domain.Candidate, limit int) {
	c := *candidates
	sort.Slice(c, func(i, j int) bool {
		if c[i].KeywordRelevance != c[j].KeywordRelevance {
			return c[i].KeywordRelevance > c[j].KeywordRelevance
		}
		return c[i].ItemID < c[j].ItemID
	})
	if len(c) > limit {
		c = c[:limit]
	}
	*candidates = c
}
