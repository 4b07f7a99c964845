package driven

import "github.com/custodia-labs/wikisync/internal/core/domain"

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files), environment
// overrides and validation.
type ConfigStore interface {
	// Load reads the configuration and returns validated settings.
	Load() (*domain.Settings, error)

	// Path returns the configuration file path.
	Path() string
}
