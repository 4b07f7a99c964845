package attachments

import (
	"context"
	"fmt"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Handler implements the interface.
var _ driven.AttachmentHandler = (*Handler)(nil)

// Handler extracts chunks from a file with a normaliser and a pipeline.
type Handler struct {
	name       string
	normaliser driven.Normaliser
	pipeline   driven.PostProcessorPipeline
}

// NewHandler creates a handler.
func NewHandler(name string, normaliser driven.Normaliser, pipeline driven.PostProcessorPipeline) *Handler {
	return &Handler{
		name:       name,
		normaliser: normaliser,
		pipeline:   pipeline,
	}
}

// Name returns the handler kind.
func (h *Handler) Name() string {
	return h.name
}

// Extract normalises the file and splits its text into chunks.
func (h *Handler) Extract(ctx context.Context, path, mediaType string) ([]domain.Chunk, error) {
	result, err := h.normaliser.Normalise(ctx, &domain.RawDocument{
		URI:      path,
		MIMEType: mediaType,
		Path:     path,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: normalise: %w", h.name, err)
	}

	chunks, err := h.pipeline.Process(ctx, result.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: chunk: %w", h.name, err)
	}
	return chunks, nil
}
