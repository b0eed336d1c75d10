package domain

// KeyPrefix namespaces all AppScout keys in the store.
const KeyPrefix = "appscout:"

// Item is a catalog entry for a single app. Items are written by the
// ingestion pipeline and read-only inside the search subsystem.
type Item struct {
	ID          string
	Title       string
	Category    string   // primary category
	Tags        []string // secondary taxonomy tags
	Rating      float64  // 0.0-5.0, 0 when absent
	Description string
	IconRef     string
}

// KeywordWeights maps a lowercase keyword or category tag to a non-negative
// TF-IDF style weight. Absent keys imply weight zero.
type KeywordWeights map[string]float64

// Weight returns the weight for a keyword, zero when absent.
func (w KeywordWeights) Weight(keyword string) float64 {
	return w[keyword]
}
