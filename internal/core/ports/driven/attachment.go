package driven

import (
	"context"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// AttachmentHandler extracts chunks from one kind of attachment file.
type AttachmentHandler interface {
	// Name returns the handler kind (e.g., "pdf").
	Name() string

	// Extract reads the file at path and returns its chunks.
	Extract(ctx context.Context, path, mediaType string) ([]domain.Chunk, error)
}

// AttachmentRegistry maps media types to attachment handlers.
type AttachmentRegistry interface {
	// CanHandle reports whether a handler is registered for the media type.
	CanHandle(mediaType string) bool

	// Extract runs the handler for the media type. Failures are logged and
	// yield no chunks; they never abort a pass.
	Extract(ctx context.Context, path, mediaType string) []domain.Chunk
}
