// Package snap resolves arbitrary query points to elements of the base
// network and of the patch layer.
//
// # Resolution Order
//
// [Resolver.ResolveForNewNode] never mixes element kinds:
//
//  1. the nearest base node, if within tolerance
//  2. otherwise the nearest point on any edge segment, if within tolerance
//  3. otherwise nothing
//
// [Resolver.ResolveNearestExistingNode] scans base and patch nodes together
// and ignores edges.
//
// # Numerics
//
// Query points and tolerances are planar (meters in the index projection).
// Scans compare squared distances; a single square root is taken on the
// winner. Comparisons are strict, so among exactly equidistant candidates
// the first one scanned wins: base nodes in load order, then patch nodes in
// creation order, and segments in load order.
package snap

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/observability"
)

// Kind says which type of element a snap landed on.
type Kind string

const (
	KindNode Kind = "node"
	KindEdge Kind = "edge"
)

// Origin distinguishes base nodes from patch nodes in [NodeRef].
type Origin string

const (
	OriginBase  Origin = "base"
	OriginPatch Origin = "patch"
)

// EdgeRef identifies the parent edge and exact segment of an edge snap.
type EdgeRef struct {
	U            graph.NodeID
	V            graph.NodeID
	Key          int
	OSMID        any
	FeatureIndex int
	SegmentIndex int
}

// SegmentKey returns the key used to re-locate the segment in the index.
func (r EdgeRef) SegmentKey() graph.SegmentKey {
	return graph.SegmentKey{U: r.U, V: r.V, Key: r.Key, FeatureIndex: r.FeatureIndex, SegmentIndex: r.SegmentIndex}
}

// Result is the outcome of [Resolver.ResolveForNewNode].
//
// For KindNode, NodeID is the matched base node and Location is that node's
// own position. For KindEdge, Edge and T describe the matched segment and
// Location is the projected point on it. Results hold copies only; they
// never reference index or store internals.
type Result struct {
	Kind     Kind
	NodeID   graph.NodeID
	Edge     *EdgeRef
	T        float64
	Location orb.Point // geographic [lng, lat]
	Planar   orb.Point
	Distance float64 // meters in the planar projection
}

// NodeRef is the outcome of [Resolver.ResolveNearestExistingNode].
type NodeRef struct {
	ID       graph.NodeID
	Origin   Origin
	Location orb.Point // geographic [lng, lat]
	Distance float64
}

// Candidate is a node that is not part of the base index but may be
// selected as an edge endpoint.
type Candidate struct {
	ID       graph.NodeID
	Location orb.Point // geographic [lng, lat]
}

// CandidateSource supplies extra endpoint candidates, typically the patch
// store's nodes.
type CandidateSource interface {
	SnapCandidates() []Candidate
}

// Resolver answers nearest-element queries against an index and an
// optional candidate source.
type Resolver struct {
	idx     *graph.Index
	patches CandidateSource
}

// NewResolver creates a resolver. patches may be nil.
func NewResolver(idx *graph.Index, patches CandidateSource) *Resolver {
	return &Resolver{idx: idx, patches: patches}
}

// Index returns the base index the resolver queries.
func (r *Resolver) Index() *graph.Index { return r.idx }

// ResolveForNewNode finds where a new patch node placed at q should go.
// It returns false when neither a node nor a segment lies within tol.
func (r *Resolver) ResolveForNewNode(q orb.Point, tol float64) (Result, bool) {
	start := time.Now()
	res, ok := r.resolveForNewNode(q, tol)
	kind := ""
	if ok {
		kind = string(res.Kind)
	}
	observability.Edit().OnSnap("new_node", kind, res.Distance, time.Since(start))
	return res, ok
}

func (r *Resolver) resolveForNewNode(q orb.Point, tol float64) (Result, bool) {
	tol2 := tol * tol

	best, bestD2 := -1, math.Inf(1)
	for i, n := range r.idx.Nodes() {
		if d2 := dist2(q, n.Planar()); d2 < bestD2 {
			best, bestD2 = i, d2
		}
	}
	if best >= 0 && bestD2 <= tol2 {
		n := r.idx.Nodes()[best]
		return Result{
			Kind:     KindNode,
			NodeID:   n.ID,
			Location: n.Location(),
			Planar:   n.Planar(),
			Distance: math.Sqrt(bestD2),
		}, true
	}

	best, bestD2 = -1, math.Inf(1)
	var bestP orb.Point
	var bestT float64
	for i, s := range r.idx.Segments() {
		p, t, d2 := ClosestPointOnSegment(q, s.A, s.B)
		if d2 < bestD2 {
			best, bestD2, bestP, bestT = i, d2, p, t
		}
	}
	if best >= 0 && bestD2 <= tol2 {
		s := r.idx.Segments()[best]
		return Result{
			Kind: KindEdge,
			Edge: &EdgeRef{
				U: s.U, V: s.V, Key: s.Key, OSMID: s.OSMID,
				FeatureIndex: s.FeatureIndex, SegmentIndex: s.SegmentIndex,
			},
			T:        bestT,
			Location: r.idx.Projector().Unproject(bestP),
			Planar:   bestP,
			Distance: math.Sqrt(bestD2),
		}, true
	}

	return Result{}, false
}

// ResolveNearestExistingNode finds the base or patch node nearest to q
// within tol. Base nodes are scanned before patch nodes.
func (r *Resolver) ResolveNearestExistingNode(q orb.Point, tol float64) (NodeRef, bool) {
	start := time.Now()
	ref, ok := r.resolveNearestExistingNode(q, tol)
	kind := ""
	if ok {
		kind = string(KindNode)
	}
	observability.Edit().OnSnap("existing_node", kind, ref.Distance, time.Since(start))
	return ref, ok
}

func (r *Resolver) resolveNearestExistingNode(q orb.Point, tol float64) (NodeRef, bool) {
	var best NodeRef
	found := false
	bestD2 := math.Inf(1)

	for _, n := range r.idx.Nodes() {
		if d2 := dist2(q, n.Planar()); d2 < bestD2 {
			bestD2 = d2
			best = NodeRef{ID: n.ID, Origin: OriginBase, Location: n.Location()}
			found = true
		}
	}
	if r.patches != nil {
		proj := r.idx.Projector()
		for _, c := range r.patches.SnapCandidates() {
			if d2 := dist2(q, proj.Project(c.Location)); d2 < bestD2 {
				bestD2 = d2
				best = NodeRef{ID: c.ID, Origin: OriginPatch, Location: c.Location}
				found = true
			}
		}
	}

	if !found || bestD2 > tol*tol {
		return NodeRef{}, false
	}
	best.Distance = math.Sqrt(bestD2)
	return best, true
}

// ClosestPointOnSegment projects q onto segment ab. It returns the closest
// point, its parameter t in [0, 1] and the squared distance from q. A
// zero-length segment yields t = 0 and point a.
func ClosestPointOnSegment(q, a, b orb.Point) (orb.Point, float64, float64) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	len2 := dx*dx + dy*dy

	var t float64
	if len2 > 0 {
		t = ((q[0]-a[0])*dx + (q[1]-a[1])*dy) / len2
		t = math.Max(0, math.Min(1, t))
	}
	p := orb.Point{a[0] + t*dx, a[1] + t*dy}
	return p, t, dist2(q, p)
}

func dist2(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}
