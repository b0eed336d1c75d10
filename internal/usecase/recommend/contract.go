package recommend

import (
	"context"

	"github.com/appscout/appscout/internal/domain"
)

// IntentAnalyzer turns a raw query into a structured intent. It never
// fails; degraded intents carry the Degraded flag.
type IntentAnalyzer interface {
	Analyze(ctx context.Context, query string) domain.QueryIntent
}

// Retriever is the shared contract of the vector and keyword stages.
// The bool reports degraded mode; a returned error is either fatal
// (dimension mismatch) or a catalog failure the orchestrator weighs
// against the other retriever's outcome.
type Retriever interface {
	Retrieve(ctx context.Context, intent domain.QueryIntent, limit int) ([]domain.Candidate, bool, error)
}

// Fuser merges the two retrievers' candidate lists.
type Fuser interface {
	Fuse(vector, keyword []domain.Candidate) []domain.Candidate
}

// Reranker refines fused candidates into final ranked results. The bool
// reports that at least one batch used the heuristic fallback.
type Reranker interface {
	Rerank(ctx context.Context, query string, user domain.UserContext, candidates []domain.Candidate) ([]domain.RankedResult, bool)
}
