package snap

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/geo"
	"github.com/matzehuels/graphpatch/pkg/graph"
)

// buildIndex builds a pre-projected index: node A=(0,0), B=(10,0), C=(10,20)
// and edges A-B, B-C (the latter with a bend at (10,10)).
func buildIndex(t *testing.T) *graph.Index {
	t.Helper()
	nodes := geojson.NewFeatureCollection()
	for _, n := range []struct {
		id any
		p  orb.Point
	}{
		{"A", orb.Point{0, 0}},
		{"B", orb.Point{10, 0}},
		{"C", orb.Point{10, 20}},
	} {
		f := geojson.NewFeature(n.p)
		f.Properties["osmid"] = n.id
		nodes.Append(f)
	}

	edges := geojson.NewFeatureCollection()
	ab := geojson.NewFeature(orb.LineString{{0, 0}, {10, 0}})
	ab.Properties["u"], ab.Properties["v"], ab.Properties["key"] = "A", "B", float64(0)
	edges.Append(ab)
	bc := geojson.NewFeature(orb.LineString{{10, 0}, {10, 10}, {10, 20}})
	bc.Properties["u"], bc.Properties["v"], bc.Properties["key"] = "B", "C", float64(0)
	edges.Append(bc)

	idx, err := graph.Build(nodes, edges, geo.Identity{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

type staticCandidates []Candidate

func (s staticCandidates) SnapCandidates() []Candidate { return s }

func TestResolveForNewNodeSnapsToNode(t *testing.T) {
	r := NewResolver(buildIndex(t), nil)

	res, ok := r.ResolveForNewNode(orb.Point{1, 0}, 5)
	if !ok {
		t.Fatal("expected a result")
	}
	if res.Kind != KindNode {
		t.Fatalf("Kind = %s, want node", res.Kind)
	}
	if res.NodeID != graph.StringID("A") {
		t.Errorf("NodeID = %v, want A", res.NodeID)
	}
	if math.Abs(res.Distance-1) > 1e-12 {
		t.Errorf("Distance = %v, want 1", res.Distance)
	}
	// Snapped location is the node, not the click.
	if res.Location != (orb.Point{0, 0}) {
		t.Errorf("Location = %v, want node position", res.Location)
	}
	if res.Edge != nil {
		t.Error("node result should carry no edge reference")
	}
}

func TestResolveForNewNodeSnapsToEdge(t *testing.T) {
	r := NewResolver(buildIndex(t), nil)

	res, ok := r.ResolveForNewNode(orb.Point{5, 0}, 4)
	if !ok {
		t.Fatal("expected a result")
	}
	if res.Kind != KindEdge {
		t.Fatalf("Kind = %s, want edge", res.Kind)
	}
	if res.T != 0.5 {
		t.Errorf("T = %v, want 0.5", res.T)
	}
	if res.Distance != 0 {
		t.Errorf("Distance = %v, want 0", res.Distance)
	}
	if res.Edge.U != graph.StringID("A") || res.Edge.V != graph.StringID("B") || res.Edge.SegmentIndex != 0 {
		t.Errorf("Edge = %+v", res.Edge)
	}
	if res.Location != (orb.Point{5, 0}) {
		t.Errorf("Location = %v, want (5,0)", res.Location)
	}
}

func TestResolveForNewNodeProjectsOntoSegment(t *testing.T) {
	r := NewResolver(buildIndex(t), nil)

	res, ok := r.ResolveForNewNode(orb.Point{12, 15}, 3)
	if !ok || res.Kind != KindEdge {
		t.Fatalf("got %+v, %v; want edge result", res, ok)
	}
	if res.Edge.SegmentIndex != 1 || res.Edge.FeatureIndex != 1 {
		t.Errorf("matched segment %d of feature %d, want 1 of 1", res.Edge.SegmentIndex, res.Edge.FeatureIndex)
	}
	if res.Location != (orb.Point{10, 15}) {
		t.Errorf("Location = %v, want (10,15)", res.Location)
	}
	if math.Abs(res.T-0.5) > 1e-12 || math.Abs(res.Distance-2) > 1e-12 {
		t.Errorf("T = %v, Distance = %v", res.T, res.Distance)
	}
}

func TestResolveForNewNodeNodeBeatsCloserEdge(t *testing.T) {
	r := NewResolver(buildIndex(t), nil)

	// The edge A-B is 0.5 away, node A is ~2.06 away: nodes take priority.
	res, ok := r.ResolveForNewNode(orb.Point{2, 0.5}, 5)
	if !ok || res.Kind != KindNode || res.NodeID != graph.StringID("A") {
		t.Errorf("got %+v, want node A", res)
	}
}

func TestResolveForNewNodeNothingInRange(t *testing.T) {
	r := NewResolver(buildIndex(t), nil)

	if res, ok := r.ResolveForNewNode(orb.Point{50, 50}, 5); ok {
		t.Errorf("expected no result, got %+v", res)
	}
}

func TestResolveForNewNodeToleranceIsInclusive(t *testing.T) {
	r := NewResolver(buildIndex(t), nil)

	res, ok := r.ResolveForNewNode(orb.Point{-3, -4}, 5)
	if !ok || res.Kind != KindNode || res.Distance != 5 {
		t.Errorf("got %+v, %v; want node at distance exactly 5", res, ok)
	}
}

func TestResolveForNewNodeEmptyIndex(t *testing.T) {
	idx, err := graph.Build(geojson.NewFeatureCollection(), geojson.NewFeatureCollection(), geo.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := NewResolver(idx, nil).ResolveForNewNode(orb.Point{0, 0}, 100); ok {
		t.Error("empty index should resolve nothing")
	}
}

func TestResolveForNewNodeTieFirstWins(t *testing.T) {
	nodes := geojson.NewFeatureCollection()
	for _, id := range []string{"first", "second"} {
		p := orb.Point{-1, 0}
		if id == "second" {
			p = orb.Point{1, 0}
		}
		f := geojson.NewFeature(p)
		f.Properties["osmid"] = id
		nodes.Append(f)
	}
	idx, err := graph.Build(nodes, geojson.NewFeatureCollection(), geo.Identity{})
	if err != nil {
		t.Fatal(err)
	}

	res, ok := NewResolver(idx, nil).ResolveForNewNode(orb.Point{0, 0}, 5)
	if !ok || res.NodeID != graph.StringID("first") {
		t.Errorf("got %v, want first-loaded node on exact tie", res.NodeID)
	}
}

func TestResolveNearestExistingNode(t *testing.T) {
	patches := staticCandidates{
		{ID: graph.NumberID(-1), Location: orb.Point{5, 1}},
	}
	r := NewResolver(buildIndex(t), patches)

	tests := []struct {
		name       string
		q          orb.Point
		tol        float64
		wantOK     bool
		wantID     graph.NodeID
		wantOrigin Origin
	}{
		{"base node", orb.Point{9, 1}, 3, true, graph.StringID("B"), OriginBase},
		{"patch node", orb.Point{5, 2}, 3, true, graph.NumberID(-1), OriginPatch},
		{"edges ignored", orb.Point{10, 7}, 2, false, graph.NodeID{}, ""},
		{"out of range", orb.Point{40, 40}, 3, false, graph.NodeID{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := r.ResolveNearestExistingNode(tt.q, tt.tol)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if ref.ID != tt.wantID || ref.Origin != tt.wantOrigin {
				t.Errorf("got %v (%s), want %v (%s)", ref.ID, ref.Origin, tt.wantID, tt.wantOrigin)
			}
		})
	}
}

func TestResolveNearestExistingNodeBaseWinsTie(t *testing.T) {
	patches := staticCandidates{{ID: graph.NumberID(-1), Location: orb.Point{2, 0}}}
	r := NewResolver(buildIndex(t), patches)

	ref, ok := r.ResolveNearestExistingNode(orb.Point{1, 0}, 5)
	if !ok || ref.Origin != OriginBase || ref.ID != graph.StringID("A") {
		t.Errorf("got %+v, want base node A", ref)
	}
}

func TestClosestPointOnSegment(t *testing.T) {
	tests := []struct {
		name  string
		q     orb.Point
		a, b  orb.Point
		wantP orb.Point
		wantT float64
		want2 float64
	}{
		{"middle", orb.Point{5, 3}, orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{5, 0}, 0.5, 9},
		{"clamped start", orb.Point{-4, 3}, orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{0, 0}, 0, 25},
		{"clamped end", orb.Point{13, 4}, orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{10, 0}, 1, 25},
		{"zero length", orb.Point{3, 4}, orb.Point{0, 0}, orb.Point{0, 0}, orb.Point{0, 0}, 0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, tp, d2 := ClosestPointOnSegment(tt.q, tt.a, tt.b)
			if p != tt.wantP || tp != tt.wantT || d2 != tt.want2 {
				t.Errorf("got (%v, %v, %v), want (%v, %v, %v)", p, tp, d2, tt.wantP, tt.wantT, tt.want2)
			}
		})
	}
}

func TestEdgeRefSegmentKeyLocatesSegment(t *testing.T) {
	idx := buildIndex(t)
	r := NewResolver(idx, nil)

	res, ok := r.ResolveForNewNode(orb.Point{11, 5}, 2)
	if !ok || res.Kind != KindEdge {
		t.Fatalf("expected edge result, got %+v", res)
	}
	seg, ok := idx.FindSegment(res.Edge.SegmentKey())
	if !ok {
		t.Fatal("segment not re-located")
	}
	if seg.A != (orb.Point{10, 0}) || seg.B != (orb.Point{10, 10}) {
		t.Errorf("segment = %v -> %v", seg.A, seg.B)
	}
}
