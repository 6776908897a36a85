package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/suiteloader/internal/config"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/metadata"
	"github.com/zjrosen/suiteloader/internal/observer"
	"github.com/zjrosen/suiteloader/internal/registry"
	"github.com/zjrosen/suiteloader/internal/store"
	"github.com/zjrosen/suiteloader/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "suiteloader",
	Short: "Load and track test suite metadata from a projects directory",
	Long: `Suiteloader discovers test metadata files (tags, translation template
bundles, test objects, executable test suites and test run templates) below a
projects directory, builds them in dependency order and keeps them current as
files change.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.suiteloader/config.yaml, then ~/.config/suiteloader/config.yaml)")
	rootCmd.PersistentFlags().StringP("projects-dir", "p", "",
		"directory containing item definition files")
	rootCmd.PersistentFlags().String("store", "",
		"item database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also SUITELOADER_DEBUG=1)")

	_ = viper.BindPFlag("projects_dir", rootCmd.PersistentFlags().Lookup("projects-dir"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("projects_dir", defaults.ProjectsDir)
	viper.SetDefault("watch", defaults.Watch)
	viper.SetDefault("debounce", defaults.Debounce)
	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("store.cache_ttl", defaults.Store.CacheTTL)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", config.DefaultTracesFilePath())
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("log_file", defaults.LogFile)

	// Config lookup order:
	// 1. --config flag
	// 2. .suiteloader/config.yaml (current directory)
	// 3. ~/.config/suiteloader/config.yaml (user config)
	configFile := cfgFile
	if configFile == "" {
		for _, p := range config.LookupPaths() {
			if _, err := os.Stat(p); err == nil {
				configFile = p
				break
			}
		}
	}

	if configFile == "" {
		// No config file found anywhere - create the project default
		defaultPath := config.LookupPaths()[0]
		if err := config.WriteDefaultConfig(defaultPath); err == nil {
			configFile = defaultPath
		}
		// If write fails, just continue with defaults (no config file)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: reading config %s: %v\n", configFile, err)
		}
	}

	cfg = config.Config{}
	_ = viper.Unmarshal(&cfg)
}

// cleanups registered by setup, run in reverse order when the command returns.
var cleanups []func()

func setup(cmd *cobra.Command, _ []string) error {
	if debugFlag || cfg.Debug || os.Getenv(log.EnvDebug) != "" {
		cleanup, err := log.Init(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		cleanups = append(cleanups, cleanup)
		log.Info(log.CatConfig, "Suiteloader starting", "version", version, "config", viper.ConfigFileUsed())
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// session is an initialized catalog with everything it owns.
type session struct {
	catalog  *metadata.Catalog
	observer *observer.Observer
	items    *store.Items
	db       *store.DB
	tracing  *tracing.Provider
}

// openSession builds the catalog for cfg.ProjectsDir. With watch set the
// observer keeps the catalog current until the session is closed.
func openSession(ctx context.Context, watch bool) (*session, error) {
	s := &session{}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		log.ErrorErr(log.CatConfig, "Tracing disabled", err)
		provider = tracing.Noop()
	}
	s.tracing = provider

	opts := []observer.Option{observer.WithTracer(provider.Tracer())}
	if watch {
		opts = append(opts, observer.WithWatch(cfg.Debounce))
	}
	s.observer = observer.New(opts...)

	var catalogOpts []metadata.Option
	if cfg.Store.Path != "" {
		db, err := store.NewDB(cfg.Store.Path)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("opening item store: %w", err)
		}
		s.db = db
		s.items = db.Items(cfg.Store.CacheTTL)
		catalogOpts = append(catalogOpts, metadata.WithStore(s.items))
	}

	s.catalog = metadata.NewCatalog(registry.New(), s.observer, catalogOpts...)
	if err := s.catalog.Init(ctx, cfg.ProjectsDir); err != nil {
		s.close()
		return nil, fmt.Errorf("loading %s: %w", cfg.ProjectsDir, err)
	}
	return s, nil
}

func (s *session) close() {
	if s.catalog != nil {
		s.catalog.Close()
	}
	if s.observer != nil {
		s.observer.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.ErrorErr(log.CatStore, "Closing item store", err)
		}
	}
	if s.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracing.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.ErrorErr(log.CatConfig, "Flushing traces", err)
		}
	}
}

// Execute runs the root command
func Execute() error {
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		cleanups = nil
	}()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
