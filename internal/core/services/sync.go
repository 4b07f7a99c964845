package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// Ensure SyncService implements the interface.
var _ driving.SyncService = (*SyncService)(nil)

// SyncConfig holds the configured defaults of a pass.
type SyncConfig struct {
	// SpaceFilter selects spaces when a pass names none. Empty means all spaces.
	SpaceFilter []string

	// FullReindex rewrites every indexed page on every pass.
	FullReindex bool

	// PurgeOrphans runs the orphan attachment purge after each pass.
	PurgeOrphans bool
}

// SyncService coordinates reconciliation passes.
type SyncService struct {
	source     driven.SourceProvider
	index      driven.SearchIndex
	reconciler *Reconciler
	config     SyncConfig
	now        func() time.Time
}

// NewSyncService creates a sync service.
func NewSyncService(
	source driven.SourceProvider,
	index driven.SearchIndex,
	reconciler *Reconciler,
	config SyncConfig,
) *SyncService {
	return &SyncService{
		source:     source,
		index:      index,
		reconciler: reconciler,
		config:     config,
		now:        time.Now,
	}
}

// Sync runs one reconciliation pass.
func (s *SyncService) Sync(ctx context.Context, opts driving.SyncOptions) (*domain.Diagnostics, error) {
	spaces := opts.Spaces
	if len(spaces) == 0 {
		spaces = s.config.SpaceFilter
	}

	pass := domain.NewPass(uuid.NewString(), s.now())
	pass.FullReindex = s.config.FullReindex || opts.FullReindex

	logger.Section("Sync")
	logger.Info("Starting pass %s (full reindex: %t)", pass.ID, pass.FullReindex)

	docs, err := s.source.ListDocuments(ctx, spaces)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	cs := domain.NewChangeset(docs)
	logger.Debug("Listed %d pages: %d current, %d removed", len(docs), len(cs.Upsert), len(cs.Remove))

	if err := s.index.CreateOrUpdateSchema(ctx); err != nil {
		return nil, fmt.Errorf("%w: create or update schema: %w", domain.ErrIndexUnavailable, err)
	}

	if err := s.reconciler.Reconcile(ctx, pass, cs); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	if s.config.PurgeOrphans && !opts.SkipPurge {
		for _, space := range cs.Spaces() {
			if err := s.reconciler.PurgeAttachments(ctx, pass, space); err != nil {
				return nil, fmt.Errorf("purge attachments: %w", err)
			}
		}
	}

	d := pass.Diagnostics()
	logger.Info("Pass %s complete: create=%d update=%d remove=%d attachment-create=%d attachment-update=%d failed=%d",
		pass.ID, d.Create, d.Update, d.Remove, d.AttachmentCreate, d.AttachmentUpdate, d.Failed)
	return &d, nil
}

// PurgeAttachments purges orphan attachment records of one space outside a pass.
// No attachment is remembered, so every record is checked against the wiki.
func (s *SyncService) PurgeAttachments(ctx context.Context, space string) (*domain.Diagnostics, error) {
	if space == "" {
		return nil, fmt.Errorf("%w: space is required", domain.ErrInvalidInput)
	}

	pass := domain.NewPass(uuid.NewString(), s.now())
	if err := s.reconciler.PurgeAttachments(ctx, pass, space); err != nil {
		return nil, err
	}
	d := pass.Diagnostics()
	return &d, nil
}
