package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/overrides"
	"github.com/matzehuels/graphpatch/pkg/patch"
	"github.com/matzehuels/graphpatch/pkg/session"
	"github.com/matzehuels/graphpatch/pkg/source"
)

// Two nodes about 74 m apart on one east-west street.
const nodesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.5750,48.1370]},"properties":{"osmid":1}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.5760,48.1370]},"properties":{"osmid":2}}]}`

const edgesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[11.5750,48.1370],[11.5760,48.1370]]},"properties":{"u":1,"v":2,"key":0,"osmid":77}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[11.5750,48.1370]},"properties":{"u":1,"v":1,"key":0}}]}`

func testRunner(t *testing.T, ovr overrides.Store) *Runner {
	t.Helper()
	dir := t.TempDir()
	src := source.Source{Nodes: filepath.Join(dir, "nodes.geojson"), Edges: filepath.Join(dir, "edges.geojson")}
	if err := os.WriteFile(src.Nodes, []byte(nodesJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src.Edges, []byte(edgesJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	return NewRunner(source.NewLoader([]source.Source{src}, nil, logger), ovr, logger)
}

func TestOpen(t *testing.T) {
	ws, err := testRunner(t, nil).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ws.Stats.Nodes != 2 || ws.Stats.Segments != 1 || ws.Stats.Skipped != 1 {
		t.Errorf("Stats = %+v", ws.Stats)
	}
	if ws.Session.Mode() != session.ModeAddNode {
		t.Errorf("Mode = %s", ws.Session.Mode())
	}

	// Right on node 1.
	fb := ws.Session.Click(48.1370, 11.5750)
	if fb.Outcome != session.OutcomeNodeSnap {
		t.Fatalf("Outcome = %s (%s)", fb.Outcome, fb.Message)
	}
	// Midway along the street, just north of it.
	fb = ws.Session.Click(48.13701, 11.5755)
	if fb.Outcome != session.OutcomeEdgeSnap {
		t.Fatalf("Outcome = %s (%s)", fb.Outcome, fb.Message)
	}
	if ws.Store.NodeCount() != 2 {
		t.Errorf("NodeCount = %d", ws.Store.NodeCount())
	}
}

func TestOpenLoadFailure(t *testing.T) {
	logger := log.New(io.Discard)
	missing := source.Source{Nodes: filepath.Join(t.TempDir(), "n"), Edges: filepath.Join(t.TempDir(), "e")}
	r := NewRunner(source.NewLoader([]source.Source{missing}, nil, logger), nil, logger)

	if _, err := r.Open(context.Background()); !errors.Is(err, errors.ErrCodeLoadFailure) {
		t.Fatalf("err = %v, want LOAD_FAILURE", err)
	}
	if _, err := (&Runner{}).Open(context.Background()); !errors.Is(err, errors.ErrCodeLoadFailure) {
		t.Fatalf("nil loader err = %v, want LOAD_FAILURE", err)
	}
}

func TestSaveAndReopen(t *testing.T) {
	store, err := overrides.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	r := testRunner(t, store)
	ws, err := r.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ws.Session.Click(48.1370, 11.5750)
	ws.Session.Click(48.1370, 11.5760)
	_ = ws.Session.SetMode(session.ModeAddEdge)
	ws.Session.Click(48.1370, 11.5750)
	if fb := ws.Session.Click(48.1370, 11.5760); fb.Outcome != session.OutcomeEdgeCreated {
		t.Fatalf("Outcome = %s (%s)", fb.Outcome, fb.Message)
	}
	if err := ws.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var events []patch.Event
	r.Observers = []patch.Observer{func(ev patch.Event) { events = append(events, ev) }}
	ws2, err := r.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ws2.Stats.ImportedNodes != 2 || ws2.Stats.ImportedEdges != 1 {
		t.Errorf("imported %d/%d, want 2/1", ws2.Stats.ImportedNodes, ws2.Stats.ImportedEdges)
	}
	if len(events) != 1 || events[0].Op != patch.OpImport {
		t.Errorf("events = %+v, want one import", events)
	}
	if fb := ws2.Session.Click(48.1370, 11.5750); fb.Node == nil || fb.Node.ID != -3 {
		t.Errorf("next node = %+v, want id -3", fb.Node)
	}
}

func TestSaveWithoutOverrideStore(t *testing.T) {
	ws, err := testRunner(t, nil).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Save(context.Background()); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("err = %v, want UNSUPPORTED", err)
	}
}
