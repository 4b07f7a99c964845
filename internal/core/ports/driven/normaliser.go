package driven

import (
	"context"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// Normaliser turns raw content into text ready for chunking.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise extracts the text of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// Text formats produced by normalisers.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// NormaliseResult contains the output of normalisation.
// Chunking is handled by the PostProcessor pipeline.
type NormaliseResult struct {
	// Content is the extracted text.
	Content string

	// Format is FormatText or FormatMarkdown.
	Format string
}
