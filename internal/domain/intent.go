package domain

// QueryIntent is the structured interpretation of a raw user query.
// Produced once per request by the intent analyzer and immutable afterwards.
type QueryIntent struct {
	MainTopic     string
	KeyConcepts   []string // 3-5 ordered concepts
	SearchFocus   []string // 3-5 ordered keyword-scoring terms
	SemanticQuery string   // rewritten for embedding, may differ from the raw query
	Confidence    float64  // 0-1, from the model path; 0 in fallback
	Degraded      bool     // true when the local heuristic produced this intent
}
