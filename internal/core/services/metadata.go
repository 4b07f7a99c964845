package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// MetadataReader reads what the index remembers about a page or attachment.
type MetadataReader struct {
	index driven.SearchIndex
}

// NewMetadataReader creates a metadata reader over the index.
func NewMetadataReader(index driven.SearchIndex) *MetadataReader {
	return &MetadataReader{index: index}
}

// Read probes chunk 0 of the item.
// Returns domain.ErrNotFound when the item was never indexed. Any other
// failure is wrapped in domain.ErrIndexUnavailable.
func (m *MetadataReader) Read(ctx context.Context, itemID string) (domain.IndexMetadata, error) {
	meta, err := m.index.GetMetadata(ctx, domain.RecordID(itemID, 0))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.IndexMetadata{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.IndexMetadata{}, fmt.Errorf("%w: probe %s: %w", domain.ErrIndexUnavailable, itemID, err)
	}
	if meta == nil {
		return domain.IndexMetadata{}, domain.ErrNotFound
	}
	return *meta, nil
}
