package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/appscout/appscout/internal/domain"
	"github.com/appscout/appscout/internal/metrics"
)

// VectorRetriever scores catalog items by embedding similarity to the
// intent's semantic query. Index hits are rescored with exact cosine
// similarity when the stored vector comes back with the hit.
type VectorRetriever struct {
	embedder      Embedder
	catalog       Catalog
	dim           int
	minSimilarity float64
	logger        *zap.Logger
}

// NewVector creates a vector retriever. dim is the catalog's embedding
// dimensionality; a query embedding of any other length is a
// configuration error, never a silent empty result.
func NewVector(embedder Embedder, catalog Catalog, dim int, minSimilarity float64, logger *zap.Logger) *VectorRetriever {
	return &VectorRetriever{
		embedder:      embedder,
		catalog:       catalog,
		dim:           dim,
		minSimilarity: minSimilarity,
		logger:        logger,
	}
}

// Retrieve embeds the semantic query and returns up to limit candidates
// above the similarity floor, best first. The bool reports degraded mode:
// an embedding-provider failure yields (nil, true, nil), the pipeline
// continues on keywords alone. Only a dimension mismatch or a catalog
// error is returned to the caller.
func (r *VectorRetriever) Retrieve(ctx context.Context, intent domain.QueryIntent, limit int) ([]domain.Candidate, bool, error) {
	res, err := r.embedder.Embed(ctx, intent.SemanticQuery)
	if err != nil {
		if errors.Is(err, domain.ErrVectorDimMismatch) {
			return nil, false, err
		}
		r.logger.Warn("query embedding failed, skipping vector retrieval", zap.Error(err))
		metrics.StageDegradedTotal.WithLabelValues("vector").Inc()
		return nil, true, nil
	}
	if len(res.Embedding) != r.dim {
		return nil, false, fmt.Errorf("%w: query embedding has %d dimensions, index expects %d",
			domain.ErrVectorDimMismatch, len(res.Embedding), r.dim)
	}

	neighbors, err := r.catalog.NearestNeighbors(ctx, res.Embedding, limit)
	if err != nil {
		return nil, true, err
	}

	candidates := make([]domain.Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		sim := n.Similarity
		if len(n.Vector) == r.dim {
			sim = Cosine(res.Embedding, n.Vector)
		}
		if sim < r.minSimilarity {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ItemID:             n.Item.ID,
			Title:              n.Item.Title,
			Category:           n.Item.Category,
			Rating:             n.Item.Rating,
			SemanticSimilarity: sim,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SemanticSimilarity != candidates[j].SemanticSimilarity {
			return candidates[i].SemanticSimilarity > candidates[j].SemanticSimilarity
		}
		return candidates[i].ItemID < candidates[j].ItemID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	metrics.CandidatesReturned.WithLabelValues("vector").Observe(float64(len(candidates)))
	return candidates, false, nil
}
