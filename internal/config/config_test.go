package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "default", cfg.DefaultWorkspace)
	require.Equal(t, []string{"default"}, cfg.Store.Workspaces)
	require.NotEmpty(t, cfg.Store.Path)
	require.Equal(t, 500*time.Millisecond, cfg.Types.WatchDebounce)
	require.Equal(t, 30*time.Second, cfg.Cache.WorkspaceListTTL)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	err := WriteDefaultConfig(path)
	require.ErrorIs(t, err, os.ErrExist)
}

// The written template must load back through the same viper pipeline the
// CLI uses.
func TestDefaultConfigTemplateRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	require.Equal(t, "default", cfg.DefaultWorkspace)
	require.Equal(t, "repository", cfg.Store.Name)
	require.Equal(t, []string{"default"}, cfg.Store.Workspaces)
	require.Equal(t, 500*time.Millisecond, cfg.Types.WatchDebounce)
	require.Equal(t, 30*time.Second, cfg.Cache.WorkspaceListTTL)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.InDelta(t, 1.0, cfg.Tracing.SampleRate, 0.0001)
}
