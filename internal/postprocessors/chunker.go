package postprocessors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure PageChunker implements the interface.
var _ driven.Chunker = (*PageChunker)(nil)

// PageChunker turns page markup into chunks: a normaliser strips the markup
// and a pipeline splits the text.
type PageChunker struct {
	normaliser driven.Normaliser
	pipeline   driven.PostProcessorPipeline
}

// NewPageChunker creates a chunker from a normaliser and a pipeline.
func NewPageChunker(normaliser driven.Normaliser, pipeline driven.PostProcessorPipeline) *PageChunker {
	return &PageChunker{
		normaliser: normaliser,
		pipeline:   pipeline,
	}
}

// Chunk returns the ordered, non-empty chunks of the markup.
func (c *PageChunker) Chunk(ctx context.Context, markup string) ([]domain.Chunk, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, nil
	}

	result, err := c.normaliser.Normalise(ctx, &domain.RawDocument{
		MIMEType: "text/html",
		Content:  []byte(markup),
	})
	if err != nil {
		return nil, fmt.Errorf("normalise markup: %w", err)
	}

	chunks, err := c.pipeline.Process(ctx, result.Content)
	if err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}
	return chunks, nil
}
