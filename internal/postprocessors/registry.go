package postprocessors

import (
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// ErrUnknownProcessor is returned when a pipeline names an unregistered processor.
var ErrUnknownProcessor = errors.New("unknown processor")

// Config is shared by every processor of a pipeline.
type Config struct {
	// ChunkSize is the maximum chunk length in runes. 0 keeps the default.
	ChunkSize int

	// ChunkOverlap is the number of runes repeated between neighbouring chunks.
	ChunkOverlap int

	// MaxHeaderLevel is the deepest Markdown heading that starts a section. 0 keeps the default.
	MaxHeaderLevel int
}

// ConfigFrom maps chunking settings onto a processor config.
func ConfigFrom(s domain.ChunkingSettings) Config {
	return Config{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
	}
}

// BuilderFunc creates a PostProcessor from the pipeline config.
type BuilderFunc func(cfg Config) (driven.PostProcessor, error)

// Registry maps processor names to their builders, so pipelines can be
// declared as a list of names.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry. See RegisterDefaults.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register binds a name to a builder, replacing any previous binding.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates the named processor.
func (r *Registry) Build(name string, cfg Config) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}
	return builder(cfg)
}

// BuildPipeline creates a pipeline running the named processors in order.
func (r *Registry) BuildPipeline(cfg Config, names ...string) (*Pipeline, error) {
	processors := make([]driven.PostProcessor, 0, len(names))
	for _, name := range names {
		processor, err := r.Build(name, cfg)
		if err != nil {
			return nil, err
		}
		processors = append(processors, processor)
	}
	return NewPipeline(processors...), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
