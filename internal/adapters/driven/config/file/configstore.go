package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/alazoor/Mimachat/internal/adapters/driven/config"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

const fileName = "config.toml"

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a TOML file. In memory every value sits
// under its dotted key; on disk "model.backend" becomes backend in [model].
type ConfigStore struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// DefaultDir is ~/.mima.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home: %w", err)
	}
	return filepath.Join(home, ".mima"), nil
}

// NewConfigStore opens dir/config.toml, creating dir when needed.
// An empty dir selects DefaultDir.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	s := &ConfigStore{path: filepath.Join(dir, fileName)}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	return config.AsString(v)
}

func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	return config.AsInt(v)
}

func (s *ConfigStore) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	return config.AsFloat(v)
}

// Set writes through to disk. On a failed write the previous value is restored.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.values[key]
	s.values[key] = value
	err := s.writeLocked()
	if err == nil {
		return nil
	}
	if existed {
		s.values[key] = old
	} else {
		delete(s.values, key)
	}
	return err
}

func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

// writeLocked replaces the file through a temp file in the same directory.
func (s *ConfigStore) writeLocked() error {
	body, err := toml.Marshal(config.Nest(s.values))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), fileName+".*")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Load re-reads the file. A missing file means no settings.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		raw = nil
	case err != nil:
		return fmt.Errorf("reading config: %w", err)
	}

	tree := map[string]any{}
	if len(raw) > 0 {
		if err := toml.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("parsing %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.values = config.Flatten(tree, "")
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) Path() string { return s.path }
