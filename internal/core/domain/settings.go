package domain

import "strings"

// SearchType selects the index backend.
type SearchType string

// Available index backends.
const (
	// SearchTypeAzure is Azure AI Search (formerly Cognitive Search).
	SearchTypeAzure SearchType = "AZURE_COGNITIVE_SEARCH"

	// SearchTypeLocal is the embedded SQLite + Bleve + HNSW index.
	SearchTypeLocal SearchType = "LOCAL"

	// SearchTypeMemory keeps the index in memory for the lifetime of the process.
	SearchTypeMemory SearchType = "MEMORY"
)

// ParseSearchType normalises a configured search type.
func ParseSearchType(s string) SearchType {
	return SearchType(strings.ToUpper(strings.TrimSpace(s)))
}

// IsValid returns true if the search type is recognised.
func (t SearchType) IsValid() bool {
	switch t {
	case SearchTypeAzure, SearchTypeLocal, SearchTypeMemory:
		return true
	default:
		return false
	}
}

// EmbeddingProvider identifies the service that computes vectors.
type EmbeddingProvider string

// Available embedding providers.
const (
	EmbeddingProviderOpenAI      EmbeddingProvider = "openai"
	EmbeddingProviderAzureOpenAI EmbeddingProvider = "azure-openai"
	EmbeddingProviderOllama      EmbeddingProvider = "ollama"
)

// Default values applied when the configuration leaves a setting empty.
const (
	DefaultChunkSize        = 8000
	DefaultChunkOverlap     = 200
	DefaultIndexName        = "confluence"
	DefaultAPIVersion       = "2023-11-01"
	DefaultDimensions       = 1536
	DefaultPageSize         = 100
	DefaultRequestsPerSec   = 10
	DefaultTimeoutSeconds   = 60
	DefaultEmbedCacheSize   = 1000
	DefaultWorkers          = 1
	DefaultEmbedConcurrency = 1
)

// Settings is the full application configuration.
type Settings struct {
	Log         LogSettings        `toml:"log"`
	Confluence  ConfluenceSettings `toml:"confluence"`
	Index       IndexSettings      `toml:"index"`
	Embedding   EmbeddingSettings  `toml:"embedding"`
	Chunking    ChunkingSettings   `toml:"chunking"`
	Attachments AttachmentSettings `toml:"attachments"`
	Sync        SyncSettings       `toml:"sync"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// ConfluenceSettings configures the source system.
type ConfluenceSettings struct {
	URL               string   `toml:"url" validate:"omitempty,url"`
	UserName          string   `toml:"user_name"`
	Password          string   `toml:"password"`
	SpaceFilter       []string `toml:"space_filter"`
	PageSize          int      `toml:"page_size" validate:"gte=1,lte=250"`
	RequestsPerSecond float64  `toml:"requests_per_second" validate:"gt=0"`
	TimeoutSeconds    int      `toml:"timeout_seconds" validate:"gt=0"`
}

// IndexSettings configures the search index.
type IndexSettings struct {
	SearchType  SearchType `toml:"search_type"`
	Endpoint    string     `toml:"endpoint" validate:"required_if=SearchType AZURE_COGNITIVE_SEARCH,omitempty,url"`
	Key         string     `toml:"key"`
	APIVersion  string     `toml:"api_version"`
	Name        string     `toml:"name" validate:"required"`
	FullReindex bool       `toml:"full_reindex"`
	Dimensions  int        `toml:"dimensions" validate:"gt=0"`

	// DataDir holds the local index files.
	DataDir string `toml:"data_dir"`

	// Azure AD client credentials, used when Key is empty.
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// EmbeddingSettings configures the embedding service.
type EmbeddingSettings struct {
	Provider       EmbeddingProvider `toml:"provider" validate:"oneof=openai azure-openai ollama"`
	BaseURL        string            `toml:"base_url" validate:"omitempty,url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Deployment     string            `toml:"deployment" validate:"required_if=Provider azure-openai"`
	APIVersion     string            `toml:"api_version"`
	Dimensions     int               `toml:"dimensions" validate:"gte=0"`
	CacheSize      int               `toml:"cache_size" validate:"gte=0"`
	TimeoutSeconds int               `toml:"timeout_seconds" validate:"gt=0"`
}

// ChunkingSettings configures the page chunker.
type ChunkingSettings struct {
	ChunkSize    int `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// AttachmentSettings configures attachment indexing.
type AttachmentSettings struct {
	Enabled      bool              `toml:"enabled"`
	PurgeOrphans bool              `toml:"purge_orphans"`
	Handlers     []HandlerSettings `toml:"handlers" validate:"dive"`
}

// HandlerSettings binds one media type to a handler kind.
type HandlerSettings struct {
	MediaType string `toml:"media_type" validate:"required"`
	Handler   string `toml:"handler" validate:"required"`
}

// SyncSettings configures pass execution.
type SyncSettings struct {
	// Workers is the number of documents created or updated concurrently.
	Workers int `toml:"workers" validate:"gte=1"`

	// EmbedConcurrency is the number of chunks of one document embedded concurrently.
	EmbedConcurrency int `toml:"embed_concurrency" validate:"gte=1"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		Log: LogSettings{Level: "warning"},
		Confluence: ConfluenceSettings{
			PageSize:          DefaultPageSize,
			RequestsPerSecond: DefaultRequestsPerSec,
			TimeoutSeconds:    DefaultTimeoutSeconds,
		},
		Index: IndexSettings{
			SearchType: SearchTypeAzure,
			APIVersion: DefaultAPIVersion,
			Name:       DefaultIndexName,
			Dimensions: DefaultDimensions,
		},
		Embedding: EmbeddingSettings{
			Provider:       EmbeddingProviderOpenAI,
			CacheSize:      DefaultEmbedCacheSize,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Chunking: ChunkingSettings{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Attachments: AttachmentSettings{
			PurgeOrphans: true,
		},
		Sync: SyncSettings{
			Workers:          DefaultWorkers,
			EmbedConcurrency: DefaultEmbedConcurrency,
		},
	}
}
