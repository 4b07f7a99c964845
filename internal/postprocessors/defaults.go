package postprocessors

import (
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/postprocessors/chunker"
	"github.com/custodia-labs/wikisync/internal/postprocessors/sections"
)

// Names of the built-in processors.
const (
	Chunker  = "chunker"
	Sections = "sections"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register(Chunker, func(cfg Config) (driven.PostProcessor, error) {
		return chunker.New(
			chunker.WithChunkSize(cfg.ChunkSize),
			chunker.WithOverlap(cfg.ChunkOverlap),
		), nil
	})
	r.Register(Sections, func(cfg Config) (driven.PostProcessor, error) {
		return sections.New(sections.WithMaxLevel(cfg.MaxHeaderLevel)), nil
	})
}
