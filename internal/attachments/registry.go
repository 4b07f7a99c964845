package attachments

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
	"github.com/custodia-labs/wikisync/internal/normalisers/docx"
	"github.com/custodia-labs/wikisync/internal/normalisers/html"
	"github.com/custodia-labs/wikisync/internal/normalisers/markdown"
	"github.com/custodia-labs/wikisync/internal/normalisers/pdf"
	"github.com/custodia-labs/wikisync/internal/normalisers/plaintext"
	"github.com/custodia-labs/wikisync/internal/postprocessors"
)

// Ensure Registry implements the interface.
var _ driven.AttachmentRegistry = (*Registry)(nil)

// Handler kinds accepted in configuration.
const (
	KindPDF      = "pdf"
	KindDOCX     = "docx"
	KindMarkdown = "markdown"
	KindHTML     = "html"
	KindText     = "text"
)

// kind describes how to build one handler kind.
type kind struct {
	normaliser func() driven.Normaliser
	processors []string
}

// kinds is the registration table of handler kinds.
var kinds = map[string]kind{
	KindPDF: {
		normaliser: func() driven.Normaliser { return pdf.New() },
		processors: []string{postprocessors.Chunker},
	},
	KindDOCX: {
		normaliser: func() driven.Normaliser { return docx.New() },
		processors: []string{postprocessors.Chunker},
	},
	KindMarkdown: {
		normaliser: func() driven.Normaliser { return markdown.New() },
		processors: []string{postprocessors.Sections, postprocessors.Chunker},
	},
	KindHTML: {
		normaliser: func() driven.Normaliser { return html.NewMarkdown() },
		processors: []string{postprocessors.Sections, postprocessors.Chunker},
	},
	KindText: {
		normaliser: func() driven.Normaliser { return plaintext.New() },
		processors: []string{postprocessors.Chunker},
	},
}

// Kinds returns the names of all handler kinds in sorted order.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultHandlers returns the handler bindings used when none are configured.
func DefaultHandlers() []domain.HandlerSettings {
	return []domain.HandlerSettings{
		{MediaType: "application/pdf", Handler: KindPDF},
		{MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Handler: KindDOCX},
		{MediaType: "text/markdown", Handler: KindMarkdown},
		{MediaType: "text/html", Handler: KindHTML},
		{MediaType: "text/plain", Handler: KindText},
	}
}

// Registry maps media types to handlers.
type Registry struct {
	handlers map[string]driven.AttachmentHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]driven.AttachmentHandler),
	}
}

// Build creates a registry from handler bindings.
// Returns domain.ErrUnknownHandler when a binding names an unknown kind.
func Build(bindings []domain.HandlerSettings, chunking domain.ChunkingSettings) (*Registry, error) {
	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	cfg := postprocessors.ConfigFrom(chunking)

	r := NewRegistry()
	built := make(map[string]driven.AttachmentHandler)
	for _, binding := range bindings {
		name := strings.ToLower(strings.TrimSpace(binding.Handler))
		k, ok := kinds[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", domain.ErrUnknownHandler, binding.Handler, binding.MediaType)
		}

		handler, ok := built[name]
		if !ok {
			pipeline, err := processors.BuildPipeline(cfg, k.processors...)
			if err != nil {
				return nil, fmt.Errorf("build %s pipeline: %w", name, err)
			}
			handler = NewHandler(name, k.normaliser(), pipeline)
			built[name] = handler
		}
		r.Register(binding.MediaType, handler)
	}
	return r, nil
}

// Register binds a media type to a handler, replacing any previous binding.
func (r *Registry) Register(mediaType string, handler driven.AttachmentHandler) {
	r.handlers[normaliseMediaType(mediaType)] = handler
}

// MediaTypes returns the registered media types in sorted order.
func (r *Registry) MediaTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for mt := range r.handlers {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// CanHandle reports whether a handler is registered for the media type.
func (r *Registry) CanHandle(mediaType string) bool {
	_, ok := r.handlers[normaliseMediaType(mediaType)]
	return ok
}

// Extract runs the handler for the media type.
// Failures are logged and produce no chunks.
func (r *Registry) Extract(ctx context.Context, path, mediaType string) []domain.Chunk {
	handler, ok := r.handlers[normaliseMediaType(mediaType)]
	if !ok {
		logger.Warn("No attachment handler for %s", mediaType)
		return nil
	}

	chunks, err := handler.Extract(ctx, path, mediaType)
	if err != nil {
		logger.Warn("Failed to extract %s (%s): %v", path, mediaType, err)
		return nil
	}

	logger.Debug("Extracted %d chunks from %s with %s handler", len(chunks), path, handler.Name())
	return chunks
}

// normaliseMediaType lowercases the type and drops parameters such as charset.
func normaliseMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	return strings.ToLower(mediaType)
}
