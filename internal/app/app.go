package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/wikisync/internal/adapters/driven/confluence"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/index/azure"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/index/local"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/wikisync/internal/attachments"
	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/core/services"
	"github.com/custodia-labs/wikisync/internal/logger"
	"github.com/custodia-labs/wikisync/internal/normalisers/html"
	"github.com/custodia-labs/wikisync/internal/postprocessors"
)

// DefaultDataDir holds the local index when no directory is configured.
const DefaultDataDir = ".wikisync"

// App holds the wired services of one process.
type App struct {
	Settings domain.Settings

	// Sync is nil unless the source was requested.
	Sync   *services.SyncService
	Index  *services.IndexService
	Search *services.SearchService

	index    driven.SearchIndex
	embedder driven.EmbeddingService
}

// Options selects the optional parts of the wiring.
type Options struct {
	// WithSource builds the Confluence source and the sync service.
	WithSource bool
}

// New wires the services described by settings.
func New(ctx context.Context, settings domain.Settings, opts Options) (*App, error) {
	logger.SetLevel(settings.Log.Level)

	embedder, err := NewEmbedder(settings.Embedding)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(settings.Index, embedder); err != nil {
		_ = embedder.Close()
		return nil, err
	}

	index, err := NewIndex(ctx, settings.Index)
	if err != nil {
		if embedder != nil {
			_ = embedder.Close()
		}
		return nil, err
	}

	a := &App{
		Settings: settings,
		Index:    services.NewIndexService(index),
		Search:   services.NewSearchService(index, embedder),
		index:    index,
		embedder: embedder,
	}

	if opts.WithSource {
		a.Sync, err = newSyncService(settings, index, embedder)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// checkDimensions rejects an embedder whose vectors would not fit the index.
// The memory index accepts any size.
func checkDimensions(s domain.IndexSettings, embedder driven.EmbeddingService) error {
	if embedder == nil || domain.ParseSearchType(string(s.SearchType)) == domain.SearchTypeMemory {
		return nil
	}
	got := embedder.Dimensions()
	if got == 0 || s.Dimensions == 0 || got == s.Dimensions {
		return nil
	}
	return fmt.Errorf("%w: embedding model %s produces %d dimensions but index.dimensions is %d",
		domain.ErrConfigInvalid, embedder.ModelName(), got, s.Dimensions)
}

// Load reads settings from store and wires them with New.
func Load(ctx context.Context, store driven.ConfigStore, opts Options) (*App, error) {
	settings, err := store.Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded configuration from %q", store.Path())
	return New(ctx, *settings, opts)
}

// Close releases the index and the embedder.
func (a *App) Close() error {
	var errs []error
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	errs = append(errs, a.index.Close())
	return errors.Join(errs...)
}

// NewIndex opens the index backend selected by the search type.
func NewIndex(ctx context.Context, s domain.IndexSettings) (driven.SearchIndex, error) {
	switch domain.ParseSearchType(string(s.SearchType)) {
	case domain.SearchTypeAzure:
		return azure.New(ctx, azure.Config{
			Endpoint:     s.Endpoint,
			Name:         s.Name,
			APIVersion:   s.APIVersion,
			Dimensions:   s.Dimensions,
			Key:          s.Key,
			TenantID:     s.TenantID,
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
		})
	case domain.SearchTypeLocal:
		dir := s.DataDir
		if dir == "" {
			dir = DefaultDataDir
		}
		return local.Open(ctx, dir, s.Dimensions)
	case domain.SearchTypeMemory:
		logger.Warn("Using the in-memory index, records are lost when the process exits")
		return memory.NewIndex(), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSearchType, s.SearchType)
	}
}

// NewEmbedder builds the configured embedding service wrapped in a cache.
// OpenAI providers without an API key yield a nil service: records are then
// written without vectors and search is keyword only.
func NewEmbedder(s domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	timeout := time.Duration(s.TimeoutSeconds) * time.Second

	var inner driven.EmbeddingService
	switch s.Provider {
	case domain.EmbeddingProviderOpenAI, domain.EmbeddingProviderAzureOpenAI:
		if s.APIKey == "" {
			logger.Warn("No embedding API key configured, vectors are disabled")
			return nil, nil
		}
		cfg := openai.Config{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			APIVersion: s.APIVersion,
			Timeout:    timeout,
			Dimensions: s.Dimensions,
		}
		if s.Provider == domain.EmbeddingProviderAzureOpenAI {
			cfg.Deployment = s.Deployment
		}
		svc, err := openai.NewEmbeddingService(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
		}
		inner = svc
	case domain.EmbeddingProviderOllama:
		inner = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Timeout:    timeout,
			Dimensions: s.Dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfigInvalid, s.Provider)
	}

	if s.CacheSize <= 0 {
		return inner, nil
	}
	cached, err := cache.New(inner, s.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return cached, nil
}

// NewChunker builds the page chunker: markup stripping followed by the splitter.
func NewChunker(s domain.ChunkingSettings) (driven.Chunker, error) {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(postprocessors.ConfigFrom(s), postprocessors.Chunker)
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}
	return postprocessors.NewPageChunker(html.New(), pipeline), nil
}

// NewSource builds the Confluence source.
func NewSource(s domain.Settings) (*confluence.Source, error) {
	if s.Confluence.URL == "" {
		return nil, fmt.Errorf("%w: confluence.url is required", domain.ErrConfigInvalid)
	}
	client := confluence.NewClient(s.Confluence.URL, s.Confluence.UserName, s.Confluence.Password,
		confluence.WithTimeout(time.Duration(s.Confluence.TimeoutSeconds)*time.Second),
		confluence.WithRateLimit(s.Confluence.RequestsPerSecond),
	)
	return confluence.NewSource(client,
		confluence.WithPageSize(s.Confluence.PageSize),
		confluence.WithAttachments(s.Attachments.Enabled),
	), nil
}

func newSyncService(s domain.Settings, index driven.SearchIndex, embedder driven.EmbeddingService) (*services.SyncService, error) {
	source, err := NewSource(s)
	if err != nil {
		return nil, err
	}

	chunker, err := NewChunker(s.Chunking)
	if err != nil {
		return nil, err
	}

	var registry driven.AttachmentRegistry
	if s.Attachments.Enabled {
		bindings := s.Attachments.Handlers
		if len(bindings) == 0 {
			bindings = attachments.DefaultHandlers()
		}
		r, err := attachments.Build(bindings, s.Chunking)
		if err != nil {
			return nil, err
		}
		logger.Debug("Attachment handlers: %v", r.MediaTypes())
		registry = r
	}

	reconciler := services.NewReconciler(source, index, chunker, embedder, registry, services.ReconcilerOptions{
		Workers:          s.Sync.Workers,
		EmbedConcurrency: s.Sync.EmbedConcurrency,
	})
	return services.NewSyncService(source, index, reconciler, services.SyncConfig{
		SpaceFilter:  s.Confluence.SpaceFilter,
		FullReindex:  s.Index.FullReindex,
		PurgeOrphans: s.Attachments.Enabled && s.Attachments.PurgeOrphans,
	}), nil
}
