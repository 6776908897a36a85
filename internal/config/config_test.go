package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, ".", cfg.ProjectsDir)
	require.Equal(t, 500*time.Millisecond, cfg.Debounce)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestValidate_EmptyProjectsDir(t *testing.T) {
	cfg := Defaults()
	cfg.ProjectsDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "projects_dir")
}

func TestValidate_NegativeDebounce(t *testing.T) {
	cfg := Defaults()
	cfg.Debounce = -time.Second
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "debounce")
}

func TestValidate_ZeroDebounce(t *testing.T) {
	cfg := Defaults()
	cfg.Debounce = 0
	require.NoError(t, cfg.Validate())
}

func TestValidate_NegativeCacheTTL(t *testing.T) {
	cfg := Defaults()
	cfg.Store.CacheTTL = -time.Minute
	require.ErrorContains(t, cfg.Validate(), "store.cache_ttl")
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "stdout", mutate: func(c *Config) { c.Tracing.Enabled, c.Tracing.Exporter = true, "stdout" }},
		{name: "empty exporter", mutate: func(c *Config) { c.Tracing.Exporter = "" }},
		{name: "unknown exporter", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }, wantErr: "tracing.exporter"},
		{name: "sample rate high", mutate: func(c *Config) { c.Tracing.SampleRate = 1.5 }, wantErr: "sample_rate"},
		{name: "sample rate low", mutate: func(c *Config) { c.Tracing.SampleRate = -0.1 }, wantErr: "sample_rate"},
		{
			name:    "file without path",
			mutate:  func(c *Config) { c.Tracing.Enabled, c.Tracing.Exporter, c.Tracing.FilePath = true, "file", "" },
			wantErr: "file_path",
		},
		{
			name:   "file without path disabled",
			mutate: func(c *Config) { c.Tracing.Exporter, c.Tracing.FilePath = "file", "" },
		},
		{
			name:    "otlp without endpoint",
			mutate:  func(c *Config) { c.Tracing.Enabled, c.Tracing.Exporter, c.Tracing.OTLPEndpoint = true, "otlp", "" },
			wantErr: "otlp_endpoint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLookupPaths_ProjectFirst(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	paths := LookupPaths()
	require.Len(t, paths, 2)
	require.Equal(t, ".suiteloader/config.yaml", paths[0])
	require.Contains(t, paths[1], ".config/suiteloader/config.yaml")
}
