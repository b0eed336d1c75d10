package domain

import "errors"

// Sentinel errors for the recommendation pipeline.
var (
	// ErrInvalidQuery signals an empty or malformed query string.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrQueryTooLong signals a query exceeding the maximum length.
	ErrQueryTooLong = errors.New("query too long")
	// ErrLimitOutOfRange signals a result limit outside the allowed bounds.
	ErrLimitOutOfRange = errors.New("limit out of range")
	// ErrItemNotFound signals a missing catalog item.
	ErrItemNotFound = errors.New("item not found")
	// ErrCatalogUnavailable signals that the catalog store cannot be reached.
	// Unlike provider failures, a catalog outage is fatal for the whole request.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrVectorDimMismatch signals an embedding dimension mismatch.
	// This is a configuration error, never a normal miss.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
)
