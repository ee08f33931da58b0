// Package cli implements the graphpatch command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphpatch/internal/config"
	"github.com/matzehuels/graphpatch/pkg/buildinfo"
	"github.com/matzehuels/graphpatch/pkg/cache"
	"github.com/matzehuels/graphpatch/pkg/httputil"
	"github.com/matzehuels/graphpatch/pkg/observability"
	"github.com/matzehuels/graphpatch/pkg/overrides"
	"github.com/matzehuels/graphpatch/pkg/pipeline"
	"github.com/matzehuels/graphpatch/pkg/session"
	"github.com/matzehuels/graphpatch/pkg/source"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "graphpatch"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	ConfigPath string

	logOut io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), logOut: w}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Graphpatch snaps edits onto a street network",
		Long:         `Graphpatch loads a base street network from GeoJSON, snaps clicked points to its nodes and edges, and records user-drawn nodes and edges as an override layer that can be saved and reloaded.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")

	root.AddCommand(c.snapCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Workspace Factory
// =============================================================================

// workspaceFlags are the flags shared by every command that opens a workspace.
type workspaceFlags struct {
	noCache   bool
	refresh   bool
	tolerance float64
}

func (f *workspaceFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching of fetched base graphs")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass the cache when fetching base graphs")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 0, "snap tolerance in meters (default from config)")
}

// loadConfig reads the config file and applies validation.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openWorkspace builds every collaborator from cfg and opens a workspace,
// showing a spinner on the log stream while the base graph loads. The returned close function
// releases the cache and override store.
func (c *CLI) openWorkspace(ctx context.Context, cfg *config.Config, flags workspaceFlags, renderer session.Renderer) (*pipeline.Workspace, func(), error) {
	runner, closeFn, err := c.newRunner(ctx, cfg, flags)
	if err != nil {
		return nil, nil, err
	}
	runner.Renderer = renderer

	spinner := newSpinnerWithContext(ctx, "Loading base graph...")
	spinner.out = c.logOut
	spinner.next = observability.Load()
	runner.Loader.Hooks = spinner
	spinner.Start()

	ws, err := runner.Open(ctx)
	if err != nil {
		spinner.StopWithError("Base graph unavailable")
		closeFn()
		return nil, nil, err
	}
	spinner.StopWithWorkspace(ws)
	return ws, closeFn, nil
}

// newRunner wires a pipeline runner from configuration.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, flags workspaceFlags) (*pipeline.Runner, func(), error) {
	fetchCache, err := newCache(ctx, cfg.Cache, flags.noCache)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize cache: %w", err)
	}
	store, err := newOverrideStore(ctx, cfg.Overrides)
	if err != nil {
		fetchCache.Close()
		return nil, nil, fmt.Errorf("initialize override store: %w", err)
	}

	client := httputil.NewClient(fetchCache, cfg.Cache.TTL.Duration, nil)
	loader := source.NewLoader(cfg.Base.Sources, client, c.Logger)
	loader.Refresh = flags.refresh
	if cfg.Cache.Prefix != "" {
		loader.Keyer = cache.NewScopedKeyer(loader.Keyer, cfg.Cache.Prefix)
	}

	runner := pipeline.NewRunner(loader, store, c.Logger)
	runner.Tolerance = cfg.Tolerance
	if flags.tolerance > 0 {
		runner.Tolerance = flags.tolerance
	}
	runner.Highway = cfg.Highway

	closeFn := func() {
		if store != nil {
			store.Close()
		}
		fetchCache.Close()
	}
	return runner, closeFn, nil
}

// newCache selects the fetch cache: none, Redis or files.
func newCache(ctx context.Context, cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Disabled {
		return cache.NewNullCache(), nil
	}
	if cfg.RedisAddr != "" {
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr})
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newOverrideStore opens the configured override backend. It returns nil
// for the "none" backend.
func newOverrideStore(ctx context.Context, cfg config.OverridesConfig) (overrides.Store, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendRedis:
		return overrides.NewRedisStore(ctx, overrides.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case config.BackendMongo:
		return overrides.NewMongoStore(ctx, overrides.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	case config.BackendHTTP:
		return overrides.NewHTTPStore(cfg.URL)
	default:
		return overrides.NewFileStore(cfg.Dir)
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, falling back to the XDG
// location (~/.cache/graphpatch/).
func cacheDir(cfg config.CacheConfig) (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}
	return cache.DefaultDir()
}
