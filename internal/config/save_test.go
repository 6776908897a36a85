package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readConfig(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestWriteDefaultConfig_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".suiteloader", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteDefaultConfig_RoundTripsThroughViper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	cfg := readConfig(t, path)
	defaults := Defaults()
	assert.Equal(t, defaults.ProjectsDir, cfg.ProjectsDir)
	assert.Equal(t, defaults.Debounce, cfg.Debounce)
	assert.Equal(t, defaults.Store.CacheTTL, cfg.Store.CacheTTL)
	assert.Equal(t, defaults.Tracing.Exporter, cfg.Tracing.Exporter)
	assert.InDelta(t, defaults.Tracing.SampleRate, cfg.Tracing.SampleRate, 0.0001)
	assert.NoError(t, cfg.Validate())
}

func TestWriteDefaultConfig_HasComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# Suiteloader Configuration")
	assert.Contains(t, content, "debounce: 500ms")
	assert.Contains(t, content, "# none, file, stdout or otlp")
}

func TestSaveValue_CreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveValue(path, "projects_dir", "/srv/suites"))

	cfg := readConfig(t, path)
	assert.Equal(t, "/srv/suites", cfg.ProjectsDir)
}

func TestSaveValue_PreservesOtherSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveValue(path, "projects_dir", "/srv/suites"))
	require.NoError(t, SaveValue(path, "watch", true))

	cfg := readConfig(t, path)
	assert.Equal(t, "/srv/suites", cfg.ProjectsDir)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Suiteloader Configuration")
	assert.Contains(t, string(data), "# list keeps watching projects_dir and prints changes")
}

func TestSaveValue_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects_dir: [unclosed"), 0o600))

	err := SaveValue(path, "watch", true)
	require.ErrorContains(t, err, "parsing config")
}

func TestSaveValue_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))

	err := SaveValue(path, "watch", true)
	require.ErrorContains(t, err, "not a mapping")
}
