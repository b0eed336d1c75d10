package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Categories   []string // optional @category tag pre-filter
	ReturnFields []string
}

// TextQuery is the input for full-text term search.
type TextQuery struct {
	IndexName    string
	Terms        []string // OR-joined search terms
	Categories   []string // optional @category tag pre-filter
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64 // similarity in [0,1] for KNN, BM25 score for text
	Fields map[string]string
}
