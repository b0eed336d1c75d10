package retrieval

import (
	"context"

	"github.com/appscout/appscout/internal/domain"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Catalog is the storage contract for both retrievers.
type Catalog interface {
	NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]domain.Neighbor, error)
	ItemsByKeywordMatch(ctx context.Context, terms, categories []string, limit int) ([]domain.Item, error)
	GetKeywordWeights(ctx context.Context, ids []string) (map[string]domain.KeywordWeights, error)
	ScanItems(ctx context.Context, limit int) ([]domain.Item, error)
}
