package patch

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

func populated(t *testing.T) *Store {
	t.Helper()
	s := New(WithTokenFunc(seqTokens()))
	a := s.AddNode(nodeSnap(48.1, 11.5, "42"))
	b := s.AddNode(edgeSnap(48.2, 11.6, 0.5))
	c := s.AddNode(nodeSnap(48.3, 11.7, "way-node"))
	if _, err := s.AddEdge(ref(a), ref(b), 12.5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddEdge(ref(b), ref(c), 7); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestExportShape(t *testing.T) {
	s := populated(t)
	nodes, edges := s.Export()

	if len(nodes.Features) != 3 || len(edges.Features) != 2 {
		t.Fatalf("exported %d nodes %d edges, want 3/2", len(nodes.Features), len(edges.Features))
	}

	n := nodes.Features[1]
	if _, ok := n.Geometry.(orb.Point); !ok {
		t.Errorf("node geometry = %T, want Point", n.Geometry)
	}
	for _, key := range []string{"id", "snap_type", "snap_distance", "u", "v", "key", "osmid", "featureIndex", "segmentIndex", "t"} {
		if _, ok := n.Properties[key]; !ok {
			t.Errorf("edge-snapped node missing property %q", key)
		}
	}
	if n.Properties["id"] != int64(-2) {
		t.Errorf("id = %v, want -2", n.Properties["id"])
	}
	if nodes.Features[0].Properties["snapped_to"] != int64(42) {
		t.Errorf("snapped_to = %v, want 42", nodes.Features[0].Properties["snapped_to"])
	}

	e := edges.Features[0]
	if _, ok := e.Geometry.(orb.LineString); !ok {
		t.Errorf("edge geometry = %T, want LineString", e.Geometry)
	}
	if e.Properties["u"] != int64(-1) || e.Properties["v"] != int64(-2) {
		t.Errorf("u,v = %v,%v", e.Properties["u"], e.Properties["v"])
	}
	if e.Properties["highway"] != DefaultHighway || e.Properties["oneway"] != false {
		t.Errorf("tags = %v", e.Properties)
	}
}

func assertEquivalent(t *testing.T, want, got *Store) {
	t.Helper()
	wn, gn := want.Nodes(), got.Nodes()
	if len(wn) != len(gn) {
		t.Fatalf("nodes = %d, want %d", len(gn), len(wn))
	}
	for i := range wn {
		w, g := wn[i], gn[i]
		if w.ID != g.ID || w.Lat != g.Lat || w.Lng != g.Lng {
			t.Errorf("node %d = %+v, want %+v", i, g, w)
		}
		wp, gp := w.Properties, g.Properties
		if wp.SnapType != gp.SnapType || wp.SnapDistance != gp.SnapDistance || wp.SnappedTo != gp.SnappedTo || wp.T != gp.T {
			t.Errorf("node %d properties = %+v, want %+v", i, gp, wp)
		}
		if (wp.Edge == nil) != (gp.Edge == nil) {
			t.Errorf("node %d edge ref presence differs", i)
		} else if wp.Edge != nil && wp.Edge.SegmentKey() != gp.Edge.SegmentKey() {
			t.Errorf("node %d edge ref = %+v, want %+v", i, gp.Edge, wp.Edge)
		}
	}

	we, ge := want.Edges(), got.Edges()
	if len(we) != len(ge) {
		t.Fatalf("edges = %d, want %d", len(ge), len(we))
	}
	for i := range we {
		w, g := we[i], ge[i]
		if w.U != g.U || w.V != g.V || w.Key != g.Key || w.OSMID != g.OSMID ||
			w.Highway != g.Highway || w.Oneway != g.Oneway || w.Length != g.Length {
			t.Errorf("edge %d = %+v, want %+v", i, g, w)
		}
		if len(w.Geometry) != len(g.Geometry) {
			t.Errorf("edge %d geometry = %v, want %v", i, g.Geometry, w.Geometry)
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := populated(t)
	nodes, edges := src.Export()

	dst := New()
	if err := dst.Import(nodes, edges); err != nil {
		t.Fatalf("Import: %v", err)
	}
	assertEquivalent(t, src, dst)

	if n := dst.AddNode(nodeSnap(0, 0, "1")); n.ID != -4 {
		t.Errorf("id after import = %d, want -4", n.ID)
	}
}

func TestExportImportThroughJSON(t *testing.T) {
	src := populated(t)

	data, err := json.Marshal(src.Payload())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw struct {
		Nodes json.RawMessage `json:"nodes"`
		Edges json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	nodes, err := geojson.UnmarshalFeatureCollection(raw.Nodes)
	if err != nil {
		t.Fatal(err)
	}
	edges, err := geojson.UnmarshalFeatureCollection(raw.Edges)
	if err != nil {
		t.Fatal(err)
	}

	dst := New()
	if err := dst.Import(nodes, edges); err != nil {
		t.Fatalf("Import: %v", err)
	}
	assertEquivalent(t, src, dst)

	// The string base id survives as a string, the numeric one as a number.
	if got := dst.Nodes()[2].Properties.SnappedTo; got != graph.StringID("way-node") {
		t.Errorf("SnappedTo = %v, want way-node", got)
	}
	if got := dst.Nodes()[1].Properties.Edge.U; got != graph.NumberID(100) {
		t.Errorf("Edge.U = %v, want 100", got)
	}
}

func TestImportIsAdditiveAndLowersWatermark(t *testing.T) {
	s := New()
	s.AddNode(nodeSnap(0, 0, "1")) // -1

	imported := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 1})
	f.Properties["id"] = float64(-10)
	f.Properties["snap_type"] = "node"
	f.Properties["snapped_to"] = float64(5)
	imported.Append(f)

	if err := s.Import(imported, nil); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if s.NodeCount() != 2 {
		t.Errorf("NodeCount = %d, want 2", s.NodeCount())
	}
	if n := s.AddNode(nodeSnap(0, 0, "1")); n.ID != -11 {
		t.Errorf("next id = %d, want -11", n.ID)
	}

	// Imported nodes are not undoable.
	s.Undo()
	s.Undo()
	if s.NodeCount() != 1 || s.Nodes()[0].ID != -10 {
		t.Errorf("after undo nodes = %+v, want only imported -10", s.Nodes())
	}
}

func TestImportHigherIDKeepsWatermark(t *testing.T) {
	s := New()
	s.AddNode(nodeSnap(0, 0, "1"))
	s.AddNode(nodeSnap(0, 0, "1")) // next is -3

	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 1})
	f.ID = float64(-1)
	fc.Append(f)

	if err := s.Import(fc, nil); err != nil {
		t.Fatal(err)
	}
	if s.NextID() != -3 {
		t.Errorf("NextID = %d, want -3", s.NextID())
	}
}

func TestImportCollectionsAreIndependent(t *testing.T) {
	badNodes := geojson.NewFeatureCollection()
	badNodes.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))

	goodEdges := geojson.NewFeatureCollection()
	e := geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}})
	e.Properties["u"], e.Properties["v"] = float64(-1), "abc"
	e.Properties["osmid"] = "tok"
	e.Properties["oneway"] = "yes"
	e.Properties["surface"] = "gravel"
	goodEdges.Append(e)

	s := New()
	err := s.Import(badNodes, goodEdges)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
	if s.NodeCount() != 0 {
		t.Errorf("NodeCount = %d, want 0", s.NodeCount())
	}
	if s.EdgeCount() != 1 {
		t.Fatalf("EdgeCount = %d, want 1", s.EdgeCount())
	}
	got := s.Edges()[0]
	if !got.Oneway || got.V != graph.StringID("abc") || got.Extra["surface"] != "gravel" {
		t.Errorf("edge = %+v", got)
	}
}

func TestImportRejectsWholeCollection(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	good := geojson.NewFeature(orb.Point{0, 0})
	good.Properties["id"] = float64(-1)
	fc.Append(good)
	bad := geojson.NewFeature(orb.Point{0, 0})
	bad.Properties["id"] = "not-a-number"
	fc.Append(bad)

	s := New()
	if err := s.Import(fc, nil); err == nil {
		t.Fatal("expected error")
	}
	if s.NodeCount() != 0 {
		t.Errorf("NodeCount = %d, want 0 (collection is atomic)", s.NodeCount())
	}
	if s.NextID() != -1 {
		t.Errorf("NextID = %d, want -1", s.NextID())
	}
}

func TestImportNilCollections(t *testing.T) {
	s := New()
	if err := s.Import(nil, nil); err != nil {
		t.Errorf("Import(nil, nil) = %v", err)
	}
}

func TestExportPreservesExtraProperties(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{3, 4})
	f.Properties["id"] = float64(-7)
	f.Properties["snap_type"] = string(snap.KindNode)
	f.Properties["note"] = "bench"
	fc.Append(f)

	s := New()
	if err := s.Import(fc, nil); err != nil {
		t.Fatal(err)
	}
	nodes, _ := s.Export()
	if nodes.Features[0].Properties["note"] != "bench" {
		t.Errorf("extra property lost: %v", nodes.Features[0].Properties)
	}
}

func TestImportKeepsEdgeNamesOnNonEdgeNodes(t *testing.T) {
	edgeNames := map[string]any{
		"u": float64(10), "v": float64(11), "key": float64(0), "osmid": "way/5",
		"featureIndex": float64(2), "segmentIndex": float64(1), "t": 0.25,
	}
	tests := []struct {
		name     string
		snapType string
	}{
		{"node", string(snap.KindNode)},
		{"unknown", "manual"},
		{"missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := geojson.NewFeatureCollection()
			f := geojson.NewFeature(orb.Point{3, 4})
			f.Properties["id"] = float64(-3)
			if tt.snapType != "" {
				f.Properties["snap_type"] = tt.snapType
			}
			for k, v := range edgeNames {
				f.Properties[k] = v
			}
			fc.Append(f)

			s := New()
			if err := s.Import(fc, nil); err != nil {
				t.Fatal(err)
			}
			extra := s.Nodes()[0].Properties.Extra
			nodes, _ := s.Export()
			props := nodes.Features[0].Properties
			for k, want := range edgeNames {
				if extra[k] != want {
					t.Errorf("Extra[%q] = %v, want %v", k, extra[k], want)
				}
				if props[k] != want {
					t.Errorf("exported %q = %v, want %v", k, props[k], want)
				}
			}
		})
	}
}

func TestImportEdgeNodeConsumesEdgeNames(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{3, 4})
	f.Properties["id"] = float64(-3)
	f.Properties["snap_type"] = string(snap.KindEdge)
	f.Properties["u"] = float64(10)
	f.Properties["v"] = float64(11)
	f.Properties["t"] = 0.25
	f.Properties["snapped_to"] = float64(99)
	fc.Append(f)

	s := New()
	if err := s.Import(fc, nil); err != nil {
		t.Fatal(err)
	}
	n := s.Nodes()[0]
	if n.Properties.Edge == nil || n.Properties.T != 0.25 {
		t.Fatalf("edge reference not decoded: %+v", n.Properties)
	}
	if _, ok := n.Properties.Extra["u"]; ok {
		t.Error("u should be decoded, not kept in Extra")
	}
	if n.Properties.Extra["snapped_to"] != float64(99) {
		t.Errorf("snapped_to on an edge node should stay in Extra: %v", n.Properties.Extra)
	}
}
