package file

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "wikisync.toml"

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore loads settings from a TOML file and the environment.
type ConfigStore struct {
	filePath string
	explicit bool
	lookup   func(string) (string, bool)
}

// NewConfigStore creates a store for the file at path. With an empty path
// DefaultPath is used and may be missing; an explicit path must exist.
func NewConfigStore(path string) *ConfigStore {
	s := &ConfigStore{filePath: path, explicit: path != "", lookup: os.LookupEnv}
	if path == "" {
		s.filePath = DefaultPath
	}
	return s
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load reads the file, applies environment overrides and defaults, and validates the result.
func (s *ConfigStore) Load() (*domain.Settings, error) {
	settings := domain.DefaultSettings()

	data, err := os.ReadFile(s.filePath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &settings); err != nil {
			var decodeErr *toml.DecodeError
			if errors.As(err, &decodeErr) {
				row, col := decodeErr.Position()
				return nil, fmt.Errorf("%w: %s:%d:%d: %s", domain.ErrConfigInvalid, s.filePath, row, col, decodeErr.Error())
			}
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfigInvalid, s.filePath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !s.explicit:
		// No config file, environment only
	default:
		return nil, fmt.Errorf("reading %s: %w", s.filePath, err)
	}

	if err := s.applyEnv(&settings); err != nil {
		return nil, err
	}
	applyDefaults(&settings)

	if err := validate(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// applyEnv overrides settings with the environment variables that are set.
func (s *ConfigStore) applyEnv(settings *domain.Settings) error {
	str := func(name string, dst *string) {
		if v, ok := s.lookup(name); ok && v != "" {
			*dst = v
		}
	}

	var searchType string
	str("SEARCH_TYPE", &searchType)
	if searchType != "" {
		settings.Index.SearchType = domain.SearchType(searchType)
	}
	str("AZURE_SEARCH_ENDPOINT", &settings.Index.Endpoint)
	str("AZURE_SEARCH_KEY", &settings.Index.Key)
	str("AZURE_SEARCH_API_VERSION", &settings.Index.APIVersion)
	str("AZURE_SEARCH_CONFLUENCE_INDEX", &settings.Index.Name)
	str("AZURE_TENANT_ID", &settings.Index.TenantID)
	str("AZURE_CLIENT_ID", &settings.Index.ClientID)
	str("AZURE_CLIENT_SECRET", &settings.Index.ClientSecret)
	str("LOCAL_INDEX_DIR", &settings.Index.DataDir)

	if v, ok := s.lookup("AZURE_SEARCH_FULL_REINDEX"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: AZURE_SEARCH_FULL_REINDEX=%q is not a boolean", domain.ErrConfigInvalid, v)
		}
		settings.Index.FullReindex = b
	}

	var model string
	str("AZURE_SEARCH_EMBEDDING_MODEL", &model)
	if model != "" {
		settings.Embedding.Model = model
		settings.Embedding.Deployment = model
	}
	var apiType string
	str("OPENAI_API_TYPE", &apiType)
	if strings.EqualFold(apiType, "azure") {
		settings.Embedding.Provider = domain.EmbeddingProviderAzureOpenAI
	}
	str("OPENAI_API_KEY", &settings.Embedding.APIKey)
	str("OPENAI_API_BASE", &settings.Embedding.BaseURL)
	str("OPENAI_API_VERSION", &settings.Embedding.APIVersion)

	str("CONFLUENCE_URL", &settings.Confluence.URL)
	str("CONFLUENCE_USER_NAME", &settings.Confluence.UserName)
	str("CONFLUENCE_PASSWORD", &settings.Confluence.Password)
	if v, ok := s.lookup("CONFLUENCE_SPACE_FILTER"); ok && v != "" {
		settings.Confluence.SpaceFilter = splitList(v)
	}

	str("LOG_LEVEL", &settings.Log.Level)
	return nil
}

// applyDefaults fills settings the file or environment cleared.
func applyDefaults(settings *domain.Settings) {
	defaults := domain.DefaultSettings()

	settings.Index.SearchType = domain.ParseSearchType(string(settings.Index.SearchType))
	if settings.Index.SearchType == "" {
		settings.Index.SearchType = defaults.Index.SearchType
	}
	if settings.Index.APIVersion == "" {
		settings.Index.APIVersion = defaults.Index.APIVersion
	}
	if settings.Index.Name == "" {
		settings.Index.Name = defaults.Index.Name
	}
	if settings.Index.Dimensions == 0 {
		settings.Index.Dimensions = defaults.Index.Dimensions
	}
	if settings.Index.DataDir == "" && settings.Index.SearchType == domain.SearchTypeLocal {
		settings.Index.DataDir = ".wikisync"
	}

	settings.Embedding.Provider = domain.EmbeddingProvider(strings.ToLower(string(settings.Embedding.Provider)))
	if settings.Embedding.Provider == "" {
		settings.Embedding.Provider = defaults.Embedding.Provider
	}
	if settings.Embedding.TimeoutSeconds == 0 {
		settings.Embedding.TimeoutSeconds = defaults.Embedding.TimeoutSeconds
	}

	if settings.Confluence.PageSize == 0 {
		settings.Confluence.PageSize = defaults.Confluence.PageSize
	}
	if settings.Confluence.RequestsPerSecond == 0 {
		settings.Confluence.RequestsPerSecond = defaults.Confluence.RequestsPerSecond
	}
	if settings.Confluence.TimeoutSeconds == 0 {
		settings.Confluence.TimeoutSeconds = defaults.Confluence.TimeoutSeconds
	}
	settings.Confluence.URL = strings.TrimRight(settings.Confluence.URL, "/")

	if settings.Chunking.ChunkSize == 0 {
		settings.Chunking.ChunkSize = defaults.Chunking.ChunkSize
	}
	if settings.Sync.Workers == 0 {
		settings.Sync.Workers = defaults.Sync.Workers
	}
	if settings.Sync.EmbedConcurrency == 0 {
		settings.Sync.EmbedConcurrency = defaults.Sync.EmbedConcurrency
	}
	settings.Log.Level = strings.ToLower(settings.Log.Level)
}

// validate checks struct tags and reports every failing field.
func validate(settings *domain.Settings) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(tomlName)

	var msgs []string
	if !settings.Index.SearchType.IsValid() {
		msgs = append(msgs, fmt.Sprintf("index.search_type must be one of [%s %s %s], got %q",
			domain.SearchTypeAzure, domain.SearchTypeLocal, domain.SearchTypeMemory, settings.Index.SearchType))
	}

	err := v.Struct(settings)
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
	default:
		return fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
	}

	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrConfigInvalid, strings.Join(msgs, "; "))
}

// describe renders one validation failure with the TOML key path.
func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Settings.")
	switch fe.Tag() {
	case "required", "required_if":
		return key + " is required"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", key, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
