package graph

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/geo"
)

// Property names read from base network features.
const (
	PropOSMID = "osmid"
	PropU     = "u"
	PropV     = "v"
	PropKey   = "key"
)

// BaseNode is a node of the base network with its projected position cached.
type BaseNode struct {
	ID  NodeID
	Lat float64
	Lng float64
	X   float64
	Y   float64
}

// Location returns the node's geographic position as [lng, lat].
func (n BaseNode) Location() orb.Point { return orb.Point{n.Lng, n.Lat} }

// Planar returns the node's projected position.
func (n BaseNode) Planar() orb.Point { return orb.Point{n.X, n.Y} }

// EdgeSegment is one straight piece of a base edge in planar coordinates.
type EdgeSegment struct {
	A, B         orb.Point
	U, V         NodeID
	Key          int
	OSMID        any
	FeatureIndex int
	SegmentIndex int
}

// SegmentKey re-identifies a segment inside the base network.
type SegmentKey struct {
	U, V         NodeID
	Key          int
	FeatureIndex int
	SegmentIndex int
}

// SegmentKey returns the segment's identifying key.
func (s EdgeSegment) SegmentKey() SegmentKey {
	return SegmentKey{U: s.U, V: s.V, Key: s.Key, FeatureIndex: s.FeatureIndex, SegmentIndex: s.SegmentIndex}
}

// Index is an immutable snapshot of the base network's nodes and edge
// segments in planar coordinates. Queries are answered by linear scan.
//
// The zero value is not usable - use [Build].
type Index struct {
	nodes    []BaseNode
	segments []EdgeSegment
	byID     map[NodeID]int
	bySeg    map[SegmentKey]int
	proj     geo.Projector
	skipped  int
}

// Build projects every node and every consecutive coordinate pair of every
// edge. Edges without a LineString geometry of at least two coordinates are
// skipped and counted. A node without a Point geometry makes the node
// collection malformed and fails the build with ErrCodeInvalidInput.
func Build(nodes, edges *geojson.FeatureCollection, proj geo.Projector) (*Index, error) {
	if nodes == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "node collection is missing")
	}
	if edges == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "edge collection is missing")
	}
	if proj == nil {
		proj = geo.WebMercator{}
	}

	idx := &Index{
		nodes: make([]BaseNode, 0, len(nodes.Features)),
		byID:  make(map[NodeID]int, len(nodes.Features)),
		bySeg: make(map[SegmentKey]int),
		proj:  proj,
	}

	for i, f := range nodes.Features {
		if f == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "node feature %d is null", i)
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "node feature %d: geometry must be a Point", i)
		}
		if !finite(pt) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "node feature %d: coordinates must be finite", i)
		}
		raw, ok := f.Properties[PropOSMID]
		if !ok {
			raw = f.ID
		}
		p := proj.Project(pt)
		n := BaseNode{ID: ParseNodeID(raw), Lat: pt.Lat(), Lng: pt.Lon(), X: p.X(), Y: p.Y()}
		if _, dup := idx.byID[n.ID]; !dup && !n.ID.IsNull() {
			idx.byID[n.ID] = len(idx.nodes)
		}
		idx.nodes = append(idx.nodes, n)
	}

	for fi, f := range edges.Features {
		if f == nil {
			idx.skipped++
			continue
		}
		ls, ok := f.Geometry.(orb.LineString)
		if !ok || len(ls) < 2 {
			idx.skipped++
			continue
		}
		u := ParseNodeID(f.Properties[PropU])
		v := ParseNodeID(f.Properties[PropV])
		key := intProp(f.Properties, PropKey)
		osmid := f.Properties[PropOSMID]

		prev := proj.Project(ls[0])
		for si := 1; si < len(ls); si++ {
			next := proj.Project(ls[si])
			seg := EdgeSegment{
				A: prev, B: next,
				U: u, V: v, Key: key, OSMID: osmid,
				FeatureIndex: fi, SegmentIndex: si - 1,
			}
			idx.bySeg[seg.SegmentKey()] = len(idx.segments)
			idx.segments = append(idx.segments, seg)
			prev = next
		}
	}

	return idx, nil
}

// Nodes returns the base nodes in load order. The slice must not be modified.
func (x *Index) Nodes() []BaseNode { return x.nodes }

// Segments returns the edge segments in load order. The slice must not be
// modified.
func (x *Index) Segments() []EdgeSegment { return x.segments }

// NodeCount returns the number of base nodes.
func (x *Index) NodeCount() int { return len(x.nodes) }

// SegmentCount returns the number of edge segments.
func (x *Index) SegmentCount() int { return len(x.segments) }

// Skipped returns the number of edge features that produced no segment.
func (x *Index) Skipped() int { return x.skipped }

// Projector returns the projection the index was built with.
func (x *Index) Projector() geo.Projector { return x.proj }

// Node looks up a base node by id. With duplicate ids the first loaded node
// wins.
func (x *Index) Node(id NodeID) (BaseNode, bool) {
	i, ok := x.byID[id]
	if !ok {
		return BaseNode{}, false
	}
	return x.nodes[i], true
}

// FindSegment re-locates a segment by its parent edge and position.
func (x *Index) FindSegment(k SegmentKey) (EdgeSegment, bool) {
	i, ok := x.bySeg[k]
	if !ok {
		return EdgeSegment{}, false
	}
	return x.segments[i], true
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func intProp(props geojson.Properties, key string) int {
	switch v := props[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if id := ParseNodeID(v); id.IsNumber() {
			n, _ := id.Int64()
			return int(n)
		}
	}
	return 0
}
