package domain

// Neighbor is a vector-search hit: the item, its cosine similarity to the
// query in [0,1], and the stored embedding for exact rescoring.
type Neighbor struct {
	Item       Item
	Similarity float64
	Vector     []float32
}
