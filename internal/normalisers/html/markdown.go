package html

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure MarkdownNormaliser implements the interface.
var _ driven.Normaliser = (*MarkdownNormaliser)(nil)

// MarkdownNormaliser converts HTML documents to Markdown.
type MarkdownNormaliser struct {
	converter *md.Converter
}

// NewMarkdown creates a normaliser that converts HTML to Markdown.
func NewMarkdown() *MarkdownNormaliser {
	return &MarkdownNormaliser{
		converter: md.NewConverter("", true, nil),
	}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *MarkdownNormaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Normalise converts the HTML body to Markdown text.
func (n *MarkdownNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	data, err := raw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	markdown, err := n.converter.ConvertString(string(data))
	if err != nil {
		return nil, fmt.Errorf("convert html to markdown: %w", err)
	}

	return &driven.NormaliseResult{
		Content: strings.TrimSpace(markdown),
		Format:  driven.FormatMarkdown,
	}, nil
}
