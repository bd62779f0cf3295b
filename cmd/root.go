// Package cmd implements the modeshape command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kevinsdooapp/modeshape/internal/config"
	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/graph/memory"
	"github.com/kevinsdooapp/modeshape/internal/graph/sqlite"
	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/repository"
	"github.com/kevinsdooapp/modeshape/internal/telemetry"
)

var (
	version   = "dev"
	cfgFile   string
	workspace string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "modeshape",
	Short:   "A hierarchical, path-addressable content repository",
	Long:    `modeshape stores trees of typed, property-carrying nodes in named workspaces and supports cloning, copying, and moving subtrees within and across them.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/modeshape/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "",
		"workspace to operate on (default: from config)")
	rootCmd.PersistentFlags().String("store", "",
		"path to the repository database file")

	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("default_workspace", defaults.DefaultWorkspace)
	viper.SetDefault("store.name", defaults.Store.Name)
	viper.SetDefault("store.workspaces", defaults.Store.Workspaces)
	viper.SetDefault("types.watch_debounce", defaults.Types.WatchDebounce)
	viper.SetDefault("cache.workspace_list_ttl", defaults.Cache.WorkspaceListTTL)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".config", "modeshape"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Continue with defaults when no config file exists.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
		}
	}

	cfg = config.Defaults()
	_ = viper.Unmarshal(&cfg)

	if cfg.LogPath != "" {
		if _, err := log.Init(cfg.LogPath); err != nil {
			fmt.Fprintf(os.Stderr, "initializing log: %v\n", err)
		} else {
			log.SetEnabled(true)
		}
	}
}

// openRepository assembles the repository from the loaded config. The
// returned cleanup closes the repository and flushes traces.
func openRepository() (*repository.Repository, func(), error) {
	var source graph.Source
	if cfg.Store.Path == "" {
		source = memory.NewSource(cfg.Store.Name, nodetype.NameRoot, cfg.Store.Workspaces...)
	} else {
		var err error
		source, err = sqlite.Open(cfg.Store.Name, cfg.Store.Path, nodetype.NameRoot, cfg.Store.Workspaces...)
		if err != nil {
			return nil, nil, err
		}
	}

	provider, err := telemetry.NewProvider(cfg.Tracing)
	if err != nil {
		_ = source.Close()
		return nil, nil, err
	}

	types := nodetype.NewRegistry()
	repo, err := repository.New(repository.Config{
		Source:           source,
		Types:            types,
		Tracer:           provider.Tracer(),
		WorkspaceListTTL: cfg.Cache.WorkspaceListTTL,
	})
	if err != nil {
		_ = source.Close()
		return nil, nil, err
	}

	var watcher *nodetype.Watcher
	if cfg.Types.File != "" {
		loaded, err := nodetype.LoadTypesFile(cfg.Types.File, repo.Namespaces())
		if err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		if _, err := types.Replace(loaded); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		if cfg.Types.Watch {
			watcher, err = nodetype.WatchFile(types, cfg.Types.File, repo.Namespaces(), cfg.Types.WatchDebounce)
			if err != nil {
				_ = repo.Close()
				return nil, nil, err
			}
		}
	}

	cleanup := func() {
		if watcher != nil {
			_ = watcher.Stop()
		}
		_ = repo.Close()
		_ = provider.Shutdown(context.Background())
	}
	return repo, cleanup, nil
}

// login opens a session on the selected workspace.
func login(repo *repository.Repository) (*repository.Session, error) {
	name := workspace
	if name == "" {
		name = cfg.DefaultWorkspace
	}
	return repo.Login(context.Background(), name, nil)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string displayed by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
