package driving

import (
	"context"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// SyncService runs reconciliation passes between the wiki and the index.
type SyncService interface {
	// Sync runs one pass and returns its diagnostics.
	// Configuration and connectivity failures abort the pass with an error
	// and no diagnostics.
	Sync(ctx context.Context, opts SyncOptions) (*domain.Diagnostics, error)

	// PurgeAttachments deletes attachment records of a space whose
	// attachments no longer exist in the wiki.
	PurgeAttachments(ctx context.Context, space string) (*domain.Diagnostics, error)
}

// SyncOptions configures a single pass.
type SyncOptions struct {
	// Spaces overrides the configured space filter when non-empty.
	Spaces []string

	// FullReindex forces every found document to be rewritten.
	// It is combined with the configured full_reindex setting.
	FullReindex bool

	// SkipPurge disables the orphan attachment purge after the pass.
	SkipPurge bool
}
