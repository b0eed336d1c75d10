package intent

import "context"

// Completer produces raw model text for an intent-analysis prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
