package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphpatch/pkg/cache"
	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/httputil"
)

const nodesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.5,48.1]},"properties":{"osmid":1}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.6,48.1]},"properties":{"osmid":2}}]}`

const edgesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[11.5,48.1],[11.6,48.1]]},"properties":{"u":1,"v":2,"key":0,"osmid":77}}]}`

func writeFiles(t *testing.T) Source {
	t.Helper()
	dir := t.TempDir()
	src := Source{Nodes: filepath.Join(dir, "nodes.geojson"), Edges: filepath.Join(dir, "edges.geojson")}
	if err := os.WriteFile(src.Nodes, []byte(nodesJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src.Edges, []byte(edgesJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return src
}

func quiet() *log.Logger { return log.New(io.Discard) }

func TestLoadFromFiles(t *testing.T) {
	src := writeFiles(t)
	res, err := NewLoader([]Source{src}, nil, quiet()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Nodes.Features) != 2 || len(res.Edges.Features) != 1 {
		t.Errorf("got %d nodes %d edges", len(res.Nodes.Features), len(res.Edges.Features))
	}
	if res.Source != src {
		t.Errorf("Source = %v, want %v", res.Source, src)
	}
}

func TestLoadFallsBackToNextSource(t *testing.T) {
	good := writeFiles(t)
	missing := Source{Nodes: filepath.Join(t.TempDir(), "nope.geojson"), Edges: good.Edges}

	res, err := NewLoader([]Source{missing, good}, nil, quiet()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Source != good {
		t.Errorf("Source = %v, want fallback %v", res.Source, good)
	}
}

type loadEvents struct {
	starts []string
	failed []string
}

func (e *loadEvents) OnLoadStart(_ context.Context, src string) { e.starts = append(e.starts, src) }

func (e *loadEvents) OnLoadComplete(_ context.Context, src string, _, _ int, _ time.Duration, err error) {
	if err != nil {
		e.failed = append(e.failed, src)
	}
}

func TestLoadReportsToLoaderHooks(t *testing.T) {
	good := writeFiles(t)
	missing := Source{Nodes: filepath.Join(t.TempDir(), "nope.geojson"), Edges: good.Edges}

	events := &loadEvents{}
	l := NewLoader([]Source{missing, good}, nil, quiet())
	l.Hooks = events
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events.starts) != 2 {
		t.Errorf("starts = %v, want both sources", events.starts)
	}
	if len(events.failed) != 1 || events.failed[0] != missing.String() {
		t.Errorf("failed = %v, want [%s]", events.failed, missing)
	}
}

func TestLoadAllSourcesFail(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.geojson")
	if err := os.WriteFile(bad, []byte("not geojson"), 0o644); err != nil {
		t.Fatal(err)
	}
	sources := []Source{
		{Nodes: filepath.Join(dir, "a.geojson"), Edges: filepath.Join(dir, "b.geojson")},
		{Nodes: bad, Edges: bad},
	}
	_, err := NewLoader(sources, nil, quiet()).Load(context.Background())
	if !errors.Is(err, errors.ErrCodeLoadFailure) {
		t.Fatalf("err = %v, want LOAD_FAILURE", err)
	}
}

func TestLoadNoSources(t *testing.T) {
	_, err := NewLoader(nil, nil, quiet()).Load(context.Background())
	if !errors.Is(err, errors.ErrCodeLoadFailure) {
		t.Fatalf("err = %v, want LOAD_FAILURE", err)
	}
}

func TestLoadOverHTTPWithCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/nodes.geojson":
			_, _ = w.Write([]byte(nodesJSON))
		case "/edges.geojson":
			_, _ = w.Write([]byte(edgesJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := httputil.NewClient(fc, time.Hour, nil).WithHTTPClient(srv.Client())
	src := Source{Nodes: srv.URL + "/nodes.geojson", Edges: srv.URL + "/edges.geojson"}
	l := NewLoader([]Source{src}, client, quiet())

	for i := 0; i < 2; i++ {
		res, err := l.Load(context.Background())
		if err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
		if len(res.Nodes.Features) != 2 {
			t.Errorf("nodes = %d", len(res.Nodes.Features))
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 (second load cached)", got)
	}

	l.Refresh = true
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 4 {
		t.Errorf("server hits after refresh = %d, want 4", got)
	}
}

func TestLoadHTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := httputil.NewClient(nil, 0, nil).WithHTTPClient(srv.Client())
	src := Source{Nodes: srv.URL + "/n", Edges: srv.URL + "/e"}
	_, err := NewLoader([]Source{src}, client, quiet()).Load(context.Background())
	if !errors.Is(err, errors.ErrCodeLoadFailure) {
		t.Fatalf("err = %v, want LOAD_FAILURE", err)
	}
}

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		wantErr bool
	}{
		{"files", Source{Nodes: "nodes.geojson", Edges: "edges.geojson"}, false},
		{"urls", Source{Nodes: "https://example.com/n.geojson", Edges: "http://example.com/e.geojson"}, false},
		{"missing edges", Source{Nodes: "nodes.geojson"}, true},
		{"control char", Source{Nodes: "nodes\x00.geojson", Edges: "e.geojson"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.src.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
