package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/index/azure"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/index/local"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/wikisync/internal/core/domain"
)

func memorySettings() domain.Settings {
	s := domain.DefaultSettings()
	s.Index.SearchType = domain.SearchTypeMemory
	s.Confluence.URL = "https://acme.atlassian.net/wiki"
	return s
}

func TestNewIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		index, err := NewIndex(ctx, domain.IndexSettings{SearchType: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &memory.Index{}, index)
	})

	t.Run("local", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "index")
		index, err := NewIndex(ctx, domain.IndexSettings{SearchType: domain.SearchTypeLocal, DataDir: dir, Dimensions: 4})
		require.NoError(t, err)
		defer index.Close()
		assert.IsType(t, &local.Index{}, index)
		assert.DirExists(t, dir)
	})

	t.Run("azure", func(t *testing.T) {
		index, err := NewIndex(ctx, domain.IndexSettings{
			SearchType: domain.SearchTypeAzure,
			Endpoint:   "https://acme.search.windows.net",
			Key:        "secret",
			Name:       "confluence",
			APIVersion: domain.DefaultAPIVersion,
			Dimensions: domain.DefaultDimensions,
		})
		require.NoError(t, err)
		assert.IsType(t, &azure.Index{}, index)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewIndex(ctx, domain.IndexSettings{SearchType: "ELASTIC"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnknownSearchType)
		assert.Contains(t, err.Error(), "ELASTIC")
	})
}

func TestNewEmbedder_NoKey(t *testing.T) {
	embedder, err := NewEmbedder(domain.EmbeddingSettings{Provider: domain.EmbeddingProviderOpenAI})

	require.NoError(t, err)
	assert.Nil(t, embedder)
}

func TestNewEmbedder_Cached(t *testing.T) {
	embedder, err := NewEmbedder(domain.EmbeddingSettings{
		Provider:  domain.EmbeddingProviderOpenAI,
		APIKey:    "sk-test",
		CacheSize: 10,
	})

	require.NoError(t, err)
	assert.IsType(t, &cache.EmbeddingService{}, embedder)
	assert.Equal(t, "text-embedding-ada-002", embedder.ModelName())
	assert.Equal(t, 1536, embedder.Dimensions())
}

func TestNewEmbedder_Uncached(t *testing.T) {
	embedder, err := NewEmbedder(domain.EmbeddingSettings{
		Provider:   domain.EmbeddingProviderOllama,
		Dimensions: 384,
	})

	require.NoError(t, err)
	assert.IsType(t, &ollama.EmbeddingService{}, embedder)
	assert.Equal(t, 384, embedder.Dimensions())
}

func TestNewEmbedder_AzureWithoutBaseURL(t *testing.T) {
	_, err := NewEmbedder(domain.EmbeddingSettings{
		Provider:   domain.EmbeddingProviderAzureOpenAI,
		APIKey:     "key",
		Deployment: "embeddings",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(domain.EmbeddingSettings{Provider: "bert"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestNewSource_RequiresURL(t *testing.T) {
	settings := memorySettings()
	settings.Confluence.URL = ""

	_, err := NewSource(settings)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "confluence.url")
}

func TestNewChunker(t *testing.T) {
	chunker, err := NewChunker(domain.ChunkingSettings{ChunkSize: 20, ChunkOverlap: 0})
	require.NoError(t, err)

	chunks, err := chunker.Chunk(context.Background(), "<p>first paragraph</p><p>second paragraph</p>")

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first paragraph", chunks[0].Content)
	assert.Equal(t, "second paragraph", chunks[1].Content)
}

func TestNew_WithoutSource(t *testing.T) {
	a, err := New(context.Background(), memorySettings(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Sync)
	assert.NotNil(t, a.Index)
	assert.NotNil(t, a.Search)
}

func TestNew_WithSource(t *testing.T) {
	settings := memorySettings()
	settings.Attachments.Enabled = true

	a, err := New(context.Background(), settings, Options{WithSource: true})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Sync)
}

func TestNew_UnknownHandler(t *testing.T) {
	settings := memorySettings()
	settings.Attachments.Enabled = true
	settings.Attachments.Handlers = []domain.HandlerSettings{{MediaType: "image/png", Handler: "vision"}}

	_, err := New(context.Background(), settings, Options{WithSource: true})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownHandler)
}

func TestNew_SourceNotConfigured(t *testing.T) {
	settings := memorySettings()
	settings.Confluence.URL = ""

	_, err := New(context.Background(), settings, Options{WithSource: true})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad(t *testing.T) {
	store := memory.NewConfigStore(domain.DefaultSettings())
	store.Set(memorySettings())

	a, err := Load(context.Background(), store, Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, domain.SearchTypeMemory, a.Settings.Index.SearchType)
}

func TestLoad_StoreError(t *testing.T) {
	store := memory.NewConfigStore(memorySettings())
	store.SetError(domain.ErrConfigInvalid)

	_, err := Load(context.Background(), store, Options{})

	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestNew_DimensionMismatch(t *testing.T) {
	settings := memorySettings()
	settings.Index.SearchType = domain.SearchTypeLocal
	settings.Index.DataDir = filepath.Join(t.TempDir(), "index")
	settings.Index.Dimensions = 1536
	settings.Embedding.Provider = domain.EmbeddingProviderOllama
	settings.Embedding.Dimensions = 768

	_, err := New(context.Background(), settings, Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "768")
	assert.NoDirExists(t, settings.Index.DataDir)
}

func TestNew_MatchingDimensions(t *testing.T) {
	settings := memorySettings()
	settings.Index.SearchType = domain.SearchTypeLocal
	settings.Index.DataDir = filepath.Join(t.TempDir(), "index")
	settings.Index.Dimensions = 768
	settings.Embedding.Provider = domain.EmbeddingProviderOllama
	settings.Embedding.Dimensions = 768

	a, err := New(context.Background(), settings, Options{})
	require.NoError(t, err)
	defer a.Close()
}

func TestNew_MemoryIndexAcceptsAnyDimensions(t *testing.T) {
	settings := memorySettings()
	settings.Embedding.Provider = domain.EmbeddingProviderOllama
	settings.Embedding.Dimensions = 768

	a, err := New(context.Background(), settings, Options{})
	require.NoError(t, err)
	defer a.Close()
}
