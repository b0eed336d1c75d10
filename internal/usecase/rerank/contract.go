package rerank

import "context"

// Completer is the relevance-judgment model call used per batch.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
