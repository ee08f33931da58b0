package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/graphpatch/internal/config"
	"github.com/matzehuels/graphpatch/pkg/pipeline"
	"github.com/matzehuels/graphpatch/pkg/session"
)

// Two nodes about 74 m apart on one east-west street.
const (
	fixtureNodes = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.5750,48.1370]},"properties":{"osmid":1}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.5760,48.1370]},"properties":{"osmid":2}}]}`

	fixtureEdges = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[11.5750,48.1370],[11.5760,48.1370]]},"properties":{"u":1,"v":2,"key":0,"osmid":77}}]}`
)

// fixture is a config file with local sources and file overrides.
type fixture struct {
	dir       string
	config    string
	overrides string
}

func newFixture(t *testing.T, backend string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:       dir,
		config:    filepath.Join(dir, "config.toml"),
		overrides: filepath.Join(dir, "overrides"),
	}
	nodes := filepath.Join(dir, "nodes.geojson")
	edges := filepath.Join(dir, "edges.geojson")
	for path, body := range map[string]string{nodes: fixtureNodes, edges: fixtureEdges} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := fmt.Sprintf(`tolerance_meters = 5.0

[[base.sources]]
nodes = %q
edges = %q

[overrides]
backend = %q
dir = %q

[cache]
disabled = true
`, nodes, edges, backend, f.overrides)
	if err := os.WriteFile(f.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return f
}

// workspace opens the fixture's workspace the way commands do.
func (f fixture) workspace(t *testing.T) *pipeline.Workspace {
	t.Helper()
	return f.workspaceWith(t, nil)
}

func (f fixture) workspaceWith(t *testing.T, renderer session.Renderer) *pipeline.Workspace {
	t.Helper()
	c := New(io.Discard, LogInfo)
	c.ConfigPath = f.config
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	ws, closeFn, err := c.openWorkspace(context.Background(), cfg, workspaceFlags{}, renderer)
	if err != nil {
		t.Fatalf("openWorkspace: %v", err)
	}
	t.Cleanup(closeFn)
	return ws
}

// runCommand executes the root command with args and returns what it wrote
// to its output stream.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"snap", "edit", "serve", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag missing")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("tolerance_meters = -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(io.Discard, LogInfo)
	c.ConfigPath = path
	if _, err := c.loadConfig(); err == nil {
		t.Error("loadConfig() should reject a negative tolerance")
	}
}

func TestNewOverrideStore(t *testing.T) {
	ctx := context.Background()

	s, err := newOverrideStore(ctx, config.OverridesConfig{Backend: config.BackendNone})
	if err != nil || s != nil {
		t.Errorf("none backend = %v, %v; want nil, nil", s, err)
	}

	dir := filepath.Join(t.TempDir(), "ovr")
	s, err = newOverrideStore(ctx, config.OverridesConfig{Backend: config.BackendFile, Dir: dir})
	if err != nil || s == nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("file backend should create its directory: %v", err)
	}

	if _, err := newOverrideStore(ctx, config.OverridesConfig{Backend: config.BackendHTTP, URL: "ftp://nope"}); err == nil {
		t.Error("http backend should validate its URL")
	}
}

func TestNewCacheDisabled(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		cfg     config.CacheConfig
		noCache bool
	}{
		{"flag", config.CacheConfig{Dir: t.TempDir()}, true},
		{"config", config.CacheConfig{Dir: t.TempDir(), Disabled: true}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := newCache(ctx, tc.cfg, tc.noCache)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := c.(interface{ Dir() string }); ok {
				t.Errorf("got file cache, want null cache")
			}
		})
	}
}

func TestNewRunnerScopesCacheKeys(t *testing.T) {
	ctx := context.Background()
	c := New(io.Discard, LogInfo)
	cfg := config.Default()
	cfg.Cache.Disabled = true
	cfg.Overrides.Backend = config.BackendNone

	runner, closeFn, err := c.newRunner(ctx, cfg, workspaceFlags{})
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	plain := runner.Loader.Keyer.SourceKey("https://example.com/nodes.geojson")

	cfg.Cache.Prefix = "munich:"
	runner, closeFn, err = c.newRunner(ctx, cfg, workspaceFlags{})
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	if got := runner.Loader.Keyer.SourceKey("https://example.com/nodes.geojson"); got != "munich:"+plain {
		t.Errorf("SourceKey() = %q, want %q", got, "munich:"+plain)
	}
}

func TestOpenWorkspaceToleranceFlag(t *testing.T) {
	f := newFixture(t, config.BackendFile)
	c := New(io.Discard, LogInfo)
	c.ConfigPath = f.config
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	ws, closeFn, err := c.openWorkspace(context.Background(), cfg, workspaceFlags{tolerance: 12}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if got := ws.Session.Tolerance(); got != 12 {
		t.Errorf("Tolerance() = %g, want 12", got)
	}
}
