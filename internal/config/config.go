// Package config provides configuration types, defaults, and persistence for
// the repository server and CLI.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kevinsdooapp/modeshape/internal/telemetry"
)

// StoreConfig holds the persistent store settings.
type StoreConfig struct {
	// Name identifies the source in logs and diagnostics.
	Name string `mapstructure:"name"`

	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `mapstructure:"path"`

	// Workspaces are created on startup when missing.
	Workspaces []string `mapstructure:"workspaces"`
}

// TypesConfig holds node type registry settings.
type TypesConfig struct {
	// File is a YAML node type definition file loaded on startup.
	// Empty leaves only the built-in types registered.
	File string `mapstructure:"file"`

	// Watch reloads the type file when it changes on disk.
	Watch bool `mapstructure:"watch"`

	// WatchDebounce coalesces rapid file events into one reload.
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// CacheConfig holds caching knobs.
type CacheConfig struct {
	// WorkspaceListTTL bounds the staleness of cached workspace listings.
	// Zero disables the cache.
	WorkspaceListTTL time.Duration `mapstructure:"workspace_list_ttl"`
}

// Config holds all configuration options.
type Config struct {
	// DefaultWorkspace is the workspace sessions bind to when the caller
	// names none.
	DefaultWorkspace string `mapstructure:"default_workspace"`

	Store   StoreConfig      `mapstructure:"store"`
	Types   TypesConfig      `mapstructure:"types"`
	Cache   CacheConfig      `mapstructure:"cache"`
	Tracing telemetry.Config `mapstructure:"tracing"`

	// LogPath is the debug log file. Empty disables file logging.
	LogPath string `mapstructure:"log_path"`
}

// DefaultStorePath returns ~/.modeshape/repository.db, or a relative
// fallback when the home directory is unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "repository.db"
	}
	return filepath.Join(home, ".modeshape", "repository.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DefaultWorkspace: "default",
		Store: StoreConfig{
			Name:       "repository",
			Path:       DefaultStorePath(),
			Workspaces: []string{"default"},
		},
		Types: TypesConfig{
			Watch:         false,
			WatchDebounce: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			WorkspaceListTTL: 30 * time.Second,
		},
		Tracing: telemetry.DefaultConfig(),
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with
// comments.
func DefaultConfigTemplate() string {
	return `# modeshape configuration

# Workspace sessions bind to when none is named.
default_workspace: default

store:
  name: repository
  # SQLite database file. Comment out to use an in-memory store.
  # path: ~/.modeshape/repository.db
  workspaces:
    - default

types:
  # YAML node type definitions loaded on startup.
  # file: types.yaml
  watch: false
  watch_debounce: 500ms

cache:
  workspace_list_ttl: 30s

tracing:
  enabled: false
  exporter: file         # none, file, stdout, otlp
  # file_path: ~/.modeshape/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

# log_path: ~/.modeshape/debug.log
`
}

// WriteDefaultConfig writes the commented default config to path, creating
// parent directories as needed. Fails if the file already exists.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.ErrExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(DefaultConfigTemplate()), 0600)
}
