// Package config provides configuration types, defaults and validation for suiteloader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/zjrosen/suiteloader/internal/tracing"
)

// DirName is the per-project and per-user configuration directory name.
const DirName = ".suiteloader"

// Config holds all suiteloader configuration.
type Config struct {
	// ProjectsDir is the directory scanned for item definition files.
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`

	// Watch makes the list command keep watching ProjectsDir and print changes.
	Watch bool `mapstructure:"watch" yaml:"watch"`

	// Debounce is the quiet period before a burst of file changes is applied.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`

	Store   StoreConfig    `mapstructure:"store" yaml:"store"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing"`

	Debug   bool   `mapstructure:"debug" yaml:"debug"`
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// StoreConfig configures the SQLite item store.
type StoreConfig struct {
	// Path is the database file. Empty disables persistence.
	Path string `mapstructure:"path" yaml:"path"`

	// CacheTTL is how long item reads are cached. Zero disables the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		ProjectsDir: ".",
		Watch:       false,
		Debounce:    500 * time.Millisecond,
		Store: StoreConfig{
			Path:     DefaultStorePath(),
			CacheTTL: 5 * time.Minute,
		},
		Tracing: tracing.DefaultConfig(),
		LogFile: "debug.log",
	}
}

// UserConfigDir returns ~/.config/suiteloader, or "" if the home directory is unknown.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "suiteloader")
}

// DefaultStorePath returns the default item database location.
func DefaultStorePath() string {
	dir := UserConfigDir()
	if dir == "" {
		return filepath.Join(DirName, "items.db")
	}
	return filepath.Join(dir, "items.db")
}

// DefaultTracesFilePath returns the default output of the file trace exporter.
func DefaultTracesFilePath() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// LookupPaths returns candidate config files in lookup order.
func LookupPaths() []string {
	paths := []string{filepath.Join(DirName, "config.yaml")}
	if dir := UserConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, "config.yaml"))
	}
	return paths
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.ProjectsDir == "" {
		return fmt.Errorf("projects_dir is required")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.Store.CacheTTL < 0 {
		return fmt.Errorf("store.cache_ttl must not be negative, got %s", c.Store.CacheTTL)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" && !slices.Contains(tracing.Exporters, t.Exporter) {
		return fmt.Errorf("tracing.exporter must be one of %v, got %q", tracing.Exporters, t.Exporter)
	}

	// Path requirements only matter when tracing is on
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}
