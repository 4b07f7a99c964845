package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// For index probes it means the item was never indexed.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigInvalid indicates the configuration failed validation.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrUnknownSearchType indicates an unsupported index backend was configured.
	ErrUnknownSearchType = errors.New("unknown search type")

	// ErrUnknownHandler indicates an attachment handler kind that is not registered.
	ErrUnknownHandler = errors.New("unknown attachment handler")

	// ErrUnsupportedMediaType indicates no handler exists for a media type.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Connectivity Errors. These abort a pass.

	// ErrIndexUnavailable indicates the search index could not be reached or rejected a request.
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrSourceUnavailable indicates the source system could not be reached or rejected credentials.
	ErrSourceUnavailable = errors.New("source unavailable")
)
