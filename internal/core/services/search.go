package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultSearchLimit is used when a query sets no limit.
const DefaultSearchLimit = 10

// SearchService queries the index with text and, when available, a query embedding.
type SearchService struct {
	index    driven.SearchIndex
	embedder driven.EmbeddingService
}

// NewSearchService creates a search service. The embedder is optional.
func NewSearchService(index driven.SearchIndex, embedder driven.EmbeddingService) *SearchService {
	return &SearchService{
		index:    index,
		embedder: embedder,
	}
}

// Search ranks records against the query.
// If the query cannot be embedded the search degrades to keyword only.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	q := domain.Query{
		Text:  query,
		Space: opts.Space,
		Limit: limit,
	}

	if !opts.KeywordOnly && s.embedder != nil {
		logger.Debug("Generating query embedding...")
		vector, err := s.embedder.Embed(ctx, query)
		if err != nil {
			logger.Warn("Query embedding failed, using keyword search only: %v", err)
		} else {
			q.Vector = vector
		}
	}

	hits, err := s.index.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrIndexUnavailable, err)
	}
	logger.Debug("Search %q: %d hits", query, len(hits))

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
