package driving

import "context"

// IndexAdmin manages the lifecycle of the search index.
type IndexAdmin interface {
	// CreateOrUpdateSchema creates the index or updates its schema.
	CreateOrUpdateSchema(ctx context.Context) error

	// Drop deletes the index with all its records.
	Drop(ctx context.Context) error
}
