package driven

import (
	"context"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// PostProcessor processes normalised text to produce chunks.
// PostProcessors are chained in a pipeline (e.g., sectioning, then splitting).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes the text and the chunks of the previous step and returns chunks.
	// The first processor receives nil chunks and creates them from text.
	Process(ctx context.Context, text string, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the text through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, text string) ([]domain.Chunk, error)
}

// Chunker splits page markup into ordered text chunks.
// Output is deterministic for a given input and configuration.
type Chunker interface {
	Chunk(ctx context.Context, markup string) ([]domain.Chunk, error)
}
