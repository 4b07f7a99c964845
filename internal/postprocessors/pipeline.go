// Package postprocessors turns normalised text into chunks.
//
// A Pipeline runs processors in order: the first one creates chunks from
// the text, the following ones refine them. PageChunker puts a normaliser
// in front of a pipeline to chunk page markup.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains processors. It is immutable once built.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running the processors in the given order.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs the text through every processor. A processor that yields
// no chunks ends the pipeline with no chunks.
func (p *Pipeline) Process(ctx context.Context, text string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := processor.Process(ctx, text, chunks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", processor.Name(), err)
		}
		if len(out) == 0 {
			return nil, nil
		}
		chunks = out
	}
	return chunks, nil
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, processor := range p.processors {
		names[i] = processor.Name()
	}
	return names
}
