package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Space restricts results to one Confluence space.
	Space string

	// KeywordOnly skips query embedding and ranks by full-text relevance alone.
	KeywordOnly bool
}

// Query is a retrieval request against the index.
type Query struct {
	// Text is matched with full-text search. Empty disables keyword matching.
	Text string

	// Vector is matched against chunk vectors. Nil disables vector matching.
	Vector []float32

	// Space restricts hits to one space when set.
	Space string

	// Limit caps the number of hits.
	Limit int
}

// SearchHit is one ranked record returned by a query.
type SearchHit struct {
	// Record is the matched chunk.
	Record IndexRecord

	// Score is the relevance score. Higher is better; scales differ per backend.
	Score float64
}
