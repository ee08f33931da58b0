package patch

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

// Interchange property names.
const (
	propID           = "id"
	propSnapType     = "snap_type"
	propSnapDistance = "snap_distance"
	propSnappedTo    = "snapped_to"
	propFeatureIndex = "featureIndex"
	propSegmentIndex = "segmentIndex"
	propT            = "t"
	propHighway      = "highway"
	propOneway       = "oneway"
	propLength       = "length"
)

// Node properties decoded into typed fields, by snap type. Anything else,
// including edge-reference names on a node that did not snap to an edge, is
// kept in Extra.
var (
	nodeKeys     = map[string]bool{propID: true, propSnapType: true, propSnapDistance: true}
	nodeKeysNode = withKeys(nodeKeys, propSnappedTo)
	nodeKeysEdge = withKeys(nodeKeys,
		graph.PropU, graph.PropV, graph.PropKey, graph.PropOSMID,
		propFeatureIndex, propSegmentIndex, propT)
)

var edgeKeys = map[string]bool{
	graph.PropU: true, graph.PropV: true, graph.PropKey: true, graph.PropOSMID: true,
	propHighway: true, propOneway: true, propLength: true,
}

// Export serializes the patch nodes and edges into feature collections.
// Nodes become Point features and edges LineString features.
func (s *Store) Export() (nodes, edges *geojson.FeatureCollection) {
	nodes = geojson.NewFeatureCollection()
	for _, n := range s.nodes {
		nodes.Append(nodeFeature(n))
	}
	edges = geojson.NewFeatureCollection()
	for _, e := range s.edges {
		edges.Append(edgeFeature(e))
	}
	return nodes, edges
}

// Payload returns the combined save payload.
func (s *Store) Payload() Payload {
	n, e := s.Export()
	return Payload{Nodes: n, Edges: e}
}

func nodeFeature(n Node) *geojson.Feature {
	f := geojson.NewFeature(n.Location())
	f.ID = n.ID
	for k, v := range n.Properties.Extra {
		f.Properties[k] = v
	}
	p := n.Properties
	f.Properties[propID] = n.ID
	f.Properties[propSnapType] = string(p.SnapType)
	f.Properties[propSnapDistance] = p.SnapDistance
	switch {
	case p.SnapType == snap.KindNode:
		f.Properties[propSnappedTo] = p.SnappedTo.Value()
	case p.SnapType == snap.KindEdge && p.Edge != nil:
		f.Properties[graph.PropU] = p.Edge.U.Value()
		f.Properties[graph.PropV] = p.Edge.V.Value()
		f.Properties[graph.PropKey] = p.Edge.Key
		f.Properties[graph.PropOSMID] = p.Edge.OSMID
		f.Properties[propFeatureIndex] = p.Edge.FeatureIndex
		f.Properties[propSegmentIndex] = p.Edge.SegmentIndex
		f.Properties[propT] = p.T
	}
	return f
}

func edgeFeature(e Edge) *geojson.Feature {
	geom := make(orb.LineString, len(e.Geometry))
	copy(geom, e.Geometry)
	f := geojson.NewFeature(geom)
	for k, v := range e.Extra {
		f.Properties[k] = v
	}
	f.Properties[graph.PropU] = e.U.Value()
	f.Properties[graph.PropV] = e.V.Value()
	f.Properties[graph.PropKey] = e.Key
	f.Properties[graph.PropOSMID] = e.OSMID
	f.Properties[propHighway] = e.Highway
	f.Properties[propOneway] = e.Oneway
	f.Properties[propLength] = e.Length
	return f
}

// Import merges previously exported collections into the store without
// clearing it. Either collection may be nil. Each collection is applied
// atomically: a malformed feature rejects its whole collection but leaves the
// other one unaffected. Imported entities are not part of the undo history.
//
// Every imported node id at or below the allocator watermark lowers the
// watermark to id-1, so later allocations never collide.
func (s *Store) Import(nodes, edges *geojson.FeatureCollection) error {
	var errs []error

	if nodes != nil {
		ns, err := decodeNodes(nodes)
		if err != nil {
			errs = append(errs, err)
		} else {
			for _, n := range ns {
				if n.ID <= s.nextID {
					s.nextID = n.ID - 1
				}
			}
			s.nodes = append(s.nodes, ns...)
		}
	}

	if edges != nil {
		es, err := decodeEdges(edges)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.edges = append(s.edges, es...)
		}
	}

	s.emit(Event{Op: OpImport})
	return stderrors.Join(errs...)
}

func decodeNodes(fc *geojson.FeatureCollection) ([]Node, error) {
	out := make([]Node, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override node %d: nil feature", i)
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override node %d: geometry is not a Point", i)
		}
		raw := f.Properties[propID]
		if raw == nil {
			raw = f.ID
		}
		id, ok := graph.ParseNodeID(raw).Int64()
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override node %d: id %v is not numeric", i, raw)
		}

		n := Node{ID: id, Lat: pt.Lat(), Lng: pt.Lon()}
		props := f.Properties
		n.Properties.SnapType = snap.Kind(stringProp(props, propSnapType))
		n.Properties.SnapDistance = toFloat(props[propSnapDistance])
		switch n.Properties.SnapType {
		case snap.KindNode:
			n.Properties.SnappedTo = graph.ParseNodeID(props[propSnappedTo])
		case snap.KindEdge:
			n.Properties.Edge = &snap.EdgeRef{
				U:            graph.ParseNodeID(props[graph.PropU]),
				V:            graph.ParseNodeID(props[graph.PropV]),
				Key:          toInt(props[graph.PropKey]),
				OSMID:        props[graph.PropOSMID],
				FeatureIndex: toInt(props[propFeatureIndex]),
				SegmentIndex: toInt(props[propSegmentIndex]),
			}
			n.Properties.T = toFloat(props[propT])
		}
		known := nodeKeys
		switch n.Properties.SnapType {
		case snap.KindNode:
			known = nodeKeysNode
		case snap.KindEdge:
			known = nodeKeysEdge
		}
		n.Properties.Extra = extra(props, known)
		out = append(out, n)
	}
	return out, nil
}

func decodeEdges(fc *geojson.FeatureCollection) ([]Edge, error) {
	out := make([]Edge, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override edge %d: nil feature", i)
		}
		ls, ok := f.Geometry.(orb.LineString)
		if !ok || len(ls) < 2 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override edge %d: geometry is not a LineString", i)
		}
		props := f.Properties
		e := Edge{
			U:        graph.ParseNodeID(props[graph.PropU]),
			V:        graph.ParseNodeID(props[graph.PropV]),
			Key:      toInt(props[graph.PropKey]),
			OSMID:    stringProp(props, graph.PropOSMID),
			Highway:  stringProp(props, propHighway),
			Oneway:   toBool(props[propOneway]),
			Length:   toFloat(props[propLength]),
			Geometry: append(orb.LineString(nil), ls...),
			Extra:    extra(props, edgeKeys),
		}
		if e.U.IsNull() || e.V.IsNull() {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override edge %d: missing endpoint", i)
		}
		out = append(out, e)
	}
	return out, nil
}

func withKeys(base map[string]bool, keys ...string) map[string]bool {
	out := make(map[string]bool, len(base)+len(keys))
	for k := range base {
		out[k] = true
	}
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func extra(props geojson.Properties, known map[string]bool) map[string]any {
	var out map[string]any
	for k, v := range props {
		if known[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}

func stringProp(props geojson.Properties, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return graph.ParseNodeID(v).String()
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func toInt(v any) int {
	f := toFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "yes" || x == "true"
	}
	return false
}
