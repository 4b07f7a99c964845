package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexAdmin = (*IndexService)(nil)

// IndexService manages the search index lifecycle.
type IndexService struct {
	index driven.SearchIndex
}

// NewIndexService creates an index service.
func NewIndexService(index driven.SearchIndex) *IndexService {
	return &IndexService{index: index}
}

// CreateOrUpdateSchema creates the index or updates its schema.
func (s *IndexService) CreateOrUpdateSchema(ctx context.Context) error {
	if err := s.index.CreateOrUpdateSchema(ctx); err != nil {
		return fmt.Errorf("%w: create or update schema: %w", domain.ErrIndexUnavailable, err)
	}
	logger.Info("Index schema is up to date")
	return nil
}

// Drop deletes the index.
func (s *IndexService) Drop(ctx context.Context) error {
	if err := s.index.Drop(ctx); err != nil {
		return fmt.Errorf("%w: drop index: %w", domain.ErrIndexUnavailable, err)
	}
	logger.Info("Index dropped")
	return nil
}
