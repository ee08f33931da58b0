// Package config loads graphpatch settings from a TOML file.
//
// A missing file is not an error: [Load] returns [Default] in that case, and
// any keys present in the file override the defaults field by field.
//
//	tolerance_meters = 5.0
//	highway = "footway"
//
//	[[base.sources]]
//	nodes = "https://tiles.example.com/nodes.geojson"
//	edges = "https://tiles.example.com/edges.geojson"
//
//	[[base.sources]]
//	nodes = "data/nodes.geojson"
//	edges = "data/edges.geojson"
//
//	[overrides]
//	backend = "file"
//	dir = "data"
//
//	[cache]
//	ttl = "24h"
//	redis_addr = "localhost:6379"
//	prefix = "munich:"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/overrides"
	"github.com/matzehuels/graphpatch/pkg/patch"
	"github.com/matzehuels/graphpatch/pkg/session"
	"github.com/matzehuels/graphpatch/pkg/source"
)

const appName = "graphpatch"

// Override backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendHTTP  = "http"
	BackendNone  = "none"
)

// Config holds graphpatch configuration.
type Config struct {
	Tolerance float64         `toml:"tolerance_meters"`
	Highway   string          `toml:"highway"`
	Base      BaseConfig      `toml:"base"`
	Overrides OverridesConfig `toml:"overrides"`
	Cache     CacheConfig     `toml:"cache"`
	Server    ServerConfig    `toml:"server"`
}

// BaseConfig lists base graph sources in priority order.
type BaseConfig struct {
	Sources []source.Source `toml:"sources"`
}

// OverridesConfig selects and configures the override store.
type OverridesConfig struct {
	Backend string `toml:"backend"` // "file", "redis", "mongo", "http", "none"
	Dir     string `toml:"dir"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`

	URL string `toml:"url"`
}

// CacheConfig controls caching of fetched base graph bytes.
type CacheConfig struct {
	Dir       string   `toml:"dir"`
	TTL       Duration `toml:"ttl"`
	Disabled  bool     `toml:"disabled"`
	RedisAddr string   `toml:"redis_addr"` // non-empty selects Redis over the file cache
	Prefix    string   `toml:"prefix"`     // prepended to cache keys; lets deployments share one Redis
}

// ServerConfig configures "graphpatch serve".
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as a Go duration string ("24h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the default configuration: one local source pair in the
// working directory and file overrides next to it.
func Default() *Config {
	return &Config{
		Tolerance: session.DefaultTolerance,
		Highway:   patch.DefaultHighway,
		Base: BaseConfig{Sources: []source.Source{
			{Nodes: "nodes.geojson", Edges: "edges.geojson"},
		}},
		Overrides: OverridesConfig{
			Backend:         BackendFile,
			Dir:             ".",
			RedisAddr:       "localhost:6379",
			RedisPrefix:     overrides.DefaultRedisPrefix,
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   overrides.DefaultMongoDatabase,
			MongoCollection: overrides.DefaultMongoCollection,
		},
		Cache:  CacheConfig{TTL: Duration{24 * time.Hour}},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Dir returns the graphpatch config directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// DefaultPath is the config file used when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads path (or [DefaultPath] when empty) over the defaults.
// A missing file yields the defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// An explicit source list replaces the default one.
	cfg.Base.Sources = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if len(cfg.Base.Sources) == 0 {
		cfg.Base.Sources = Default().Base.Sources
	}
	return cfg, nil
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	if err := errors.ValidateTolerance(c.Tolerance); err != nil {
		return fmt.Errorf("tolerance_meters: %w", err)
	}
	if len(c.Base.Sources) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no base sources configured")
	}
	for i, s := range c.Base.Sources {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("base source %d: %w", i, err)
		}
	}
	switch c.Overrides.Backend {
	case BackendFile, BackendRedis, BackendMongo, BackendNone:
	case BackendHTTP:
		if err := errors.ValidateURL(c.Overrides.URL); err != nil {
			return fmt.Errorf("overrides url: %w", err)
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown overrides backend %q", c.Overrides.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache ttl must not be negative")
	}
	return nil
}

// Save writes the config to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
