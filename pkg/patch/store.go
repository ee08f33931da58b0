package patch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/observability"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

type opKind uint8

const (
	opNode opKind = iota + 1
	opEdge
)

type op struct {
	kind   opKind
	nodeID int64
	token  string
}

// Store owns the patch nodes, patch edges and their undo history.
//
// The zero value is not usable - use [New].
type Store struct {
	nodes     []Node
	edges     []Edge
	history   []op
	nextID    int64
	highway   string
	token     func() string
	observers []Observer
}

// Option configures a [Store].
type Option func(*Store)

// WithHighway sets the highway tag for new edges.
func WithHighway(h string) Option {
	return func(s *Store) {
		if h != "" {
			s.highway = h
		}
	}
}

// WithTokenFunc replaces the edge token generator.
func WithTokenFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.token = fn
		}
	}
}

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.Subscribe(o) }
}

// New creates an empty store whose first node id is -1.
func New(opts ...Option) *Store {
	s := &Store{
		nextID:  -1,
		highway: DefaultHighway,
		token:   newToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newToken returns a random UUID, falling back to a time-based token when
// the random source fails. Uniqueness is best-effort.
func newToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fmt.Sprintf("manual-%d", time.Now().UnixNano())
}

// Subscribe registers an observer. Nil observers are ignored.
func (s *Store) Subscribe(o Observer) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// AddNode allocates the next id and records a node at the snapped location.
func (s *Store) AddNode(r snap.Result) Node {
	n := Node{
		ID:  s.nextID,
		Lat: r.Location.Lat(),
		Lng: r.Location.Lon(),
		Properties: NodeProperties{
			SnapType:     r.Kind,
			SnapDistance: r.Distance,
		},
	}
	s.nextID--

	switch r.Kind {
	case snap.KindNode:
		n.Properties.SnappedTo = r.NodeID
	case snap.KindEdge:
		if r.Edge != nil {
			ref := *r.Edge
			n.Properties.Edge = &ref
		}
		n.Properties.T = r.T
	}

	s.nodes = append(s.nodes, n)
	s.history = append(s.history, op{kind: opNode, nodeID: n.ID})
	s.emit(Event{Op: OpAddNode, Node: copyNode(n)})
	return n
}

// AddEdge records a manual edge between two resolved nodes. It fails with
// ErrCodeInvalidEdge, without mutating anything, when both ends are the
// same node.
func (s *Store) AddEdge(u, v snap.NodeRef, length float64) (Edge, error) {
	if u.ID == v.ID {
		return Edge{}, errors.New(errors.ErrCodeInvalidEdge, "end node same as start (%s)", u.ID)
	}
	e := Edge{
		U:        u.ID,
		V:        v.ID,
		Key:      0,
		OSMID:    s.token(),
		Highway:  s.highway,
		Oneway:   false,
		Length:   length,
		Geometry: orb.LineString{u.Location, v.Location},
	}
	s.edges = append(s.edges, e)
	s.history = append(s.history, op{kind: opEdge, token: e.OSMID})
	s.emit(Event{Op: OpAddEdge, Edge: copyEdge(e)})
	return e, nil
}

// Undo removes the most recently added node or edge.
func (s *Store) Undo() UndoResult {
	if len(s.history) == 0 {
		return UndoResult{Kind: UndoNothing}
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]

	var res UndoResult
	switch last.kind {
	case opNode:
		res.Kind = UndoNode
		for i := len(s.nodes) - 1; i >= 0; i-- {
			if s.nodes[i].ID == last.nodeID {
				res.Node = copyNode(s.nodes[i])
				s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
				break
			}
		}
	case opEdge:
		res.Kind = UndoEdge
		for i := len(s.edges) - 1; i >= 0; i-- {
			if s.edges[i].OSMID == last.token {
				res.Edge = copyEdge(s.edges[i])
				s.edges = append(s.edges[:i], s.edges[i+1:]...)
				break
			}
		}
	}

	s.emit(Event{Op: OpUndo, Node: res.Node, Edge: res.Edge})
	return res
}

// Clear removes every node, edge and history entry and rewinds the id
// allocator to -1.
func (s *Store) Clear() {
	s.nodes = nil
	s.edges = nil
	s.history = nil
	s.nextID = -1
	s.emit(Event{Op: OpClear})
}

// Nodes returns a copy of the patch nodes in insertion order.
func (s *Store) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Edges returns a copy of the patch edges in insertion order.
func (s *Store) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// NodeCount returns the number of patch nodes.
func (s *Store) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of patch edges.
func (s *Store) EdgeCount() int { return len(s.edges) }

// HistoryLen returns the number of undoable operations.
func (s *Store) HistoryLen() int { return len(s.history) }

// NextID returns the id the next [Store.AddNode] will allocate.
func (s *Store) NextID() int64 { return s.nextID }

// SnapCandidates exposes patch nodes as edge endpoint candidates.
func (s *Store) SnapCandidates() []snap.Candidate {
	out := make([]snap.Candidate, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = snap.Candidate{ID: n.NodeID(), Location: n.Location()}
	}
	return out
}

func (s *Store) emit(ev Event) {
	ev.Nodes, ev.Edges = len(s.nodes), len(s.edges)
	observability.Edit().OnMutation(string(ev.Op), ev.Nodes, ev.Edges)
	for _, o := range s.observers {
		o(ev)
	}
}

func copyNode(n Node) *Node { return &n }
func copyEdge(e Edge) *Edge { return &e }

var _ snap.CandidateSource = (*Store)(nil)
