package driven

import (
	"context"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// SearchIndex stores index records, one per chunk, keyed by record ID.
type SearchIndex interface {
	// GetMetadata returns the dates recorded on a record.
	// Returns domain.ErrNotFound when no record has the ID.
	GetMetadata(ctx context.Context, recordID string) (*domain.IndexMetadata, error)

	// Search returns every record matching the filter.
	Search(ctx context.Context, filter domain.RecordFilter) ([]domain.IndexRecord, error)

	// Upsert creates or replaces one record.
	Upsert(ctx context.Context, record domain.IndexRecord) error

	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// CreateOrUpdateSchema ensures the index exists with the record schema. Idempotent.
	CreateOrUpdateSchema(ctx context.Context) error

	// Drop deletes the index and every record in it.
	Drop(ctx context.Context) error

	// Query ranks records against text and/or a vector.
	Query(ctx context.Context, query domain.Query) ([]domain.SearchHit, error)

	// Close releases resources.
	Close() error
}

// SearchEngine provides full-text search operations over records.
// Backed by Bleve for BM25 keyword search.
type SearchEngine interface {
	// Index adds or updates a record in the search index.
	Index(ctx context.Context, record domain.IndexRecord) error

	// Delete removes records from the search index.
	Delete(ctx context.Context, recordIDs []string) error

	// Search performs a keyword search and returns matching record IDs with scores.
	// A non-empty space restricts matches to that space.
	Search(ctx context.Context, query, space string, limit int) ([]SearchHit, error)

	// Close releases resources.
	Close() error
}

// SearchHit represents a search result from the engine.
type SearchHit struct {
	// RecordID is the matched record.
	RecordID string

	// Score is the relevance score (e.g., BM25).
	Score float64
}
