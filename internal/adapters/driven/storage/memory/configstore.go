package memory

import (
	"sync"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore hands out fixed settings, e.g. for embedding wikisync in
// another program or for tests.
type ConfigStore struct {
	mu       sync.RWMutex
	settings domain.Settings
	err      error
}

// NewConfigStore creates a config store holding the given settings.
func NewConfigStore(settings domain.Settings) *ConfigStore {
	return &ConfigStore{settings: settings}
}

// Load returns a copy of the stored settings, or the configured error.
func (s *ConfigStore) Load() (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	settings := s.settings
	return &settings, nil
}

// Path returns an empty path; nothing is persisted.
func (s *ConfigStore) Path() string {
	return ""
}

// Set replaces the stored settings.
func (s *ConfigStore) Set(settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.err = nil
}

// SetError makes Load fail with err.
func (s *ConfigStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
