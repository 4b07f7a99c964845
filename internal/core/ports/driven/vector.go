package driven

import "context"

// VectorIndex provides semantic similarity search operations.
// Backed by an in-process HNSW graph for approximate nearest neighbour search.
type VectorIndex interface {
	// Add inserts or replaces the vector for the given record ID.
	Add(ctx context.Context, recordID string, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, recordID string) error

	// Search finds the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// RecordID is the matched record.
	RecordID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
