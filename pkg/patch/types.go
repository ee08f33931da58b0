package patch

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

// DefaultHighway is the highway tag given to manually drawn edges.
const DefaultHighway = "footway"

// Node is a user-placed node.
type Node struct {
	ID         int64
	Lat        float64
	Lng        float64
	Properties NodeProperties
}

// Location returns the node position as [lng, lat].
func (n Node) Location() orb.Point { return orb.Point{n.Lng, n.Lat} }

// NodeID returns the node's id in the shared id space.
func (n Node) NodeID() graph.NodeID { return graph.NumberID(n.ID) }

// NodeProperties records how a node was placed.
type NodeProperties struct {
	SnapType     snap.Kind
	SnapDistance float64
	SnappedTo    graph.NodeID  // set for node snaps
	Edge         *snap.EdgeRef // set for edge snaps
	T            float64       // position along Edge's segment
	Extra        map[string]any
}

// Edge is a manually drawn edge between two resolved nodes.
type Edge struct {
	U        graph.NodeID
	V        graph.NodeID
	Key      int
	OSMID    string
	Highway  string
	Oneway   bool
	Length   float64
	Geometry orb.LineString
	Extra    map[string]any
}

// Payload is the combined save format handed to persistence backends.
type Payload struct {
	Nodes *geojson.FeatureCollection `json:"nodes"`
	Edges *geojson.FeatureCollection `json:"edges"`
}

// Op names a store mutation.
type Op string

const (
	OpAddNode Op = "add_node"
	OpAddEdge Op = "add_edge"
	OpUndo    Op = "undo"
	OpClear   Op = "clear"
	OpImport  Op = "import"
)

// Event describes a completed mutation. Node and Edge point to copies of the
// affected entity where one exists. Nodes and Edges are the store sizes after
// the mutation.
type Event struct {
	Op    Op
	Node  *Node
	Edge  *Edge
	Nodes int
	Edges int
}

// Observer is invoked after every mutation.
type Observer func(Event)

// UndoKind says what an undo removed.
type UndoKind string

const (
	UndoNothing UndoKind = "nothing"
	UndoNode    UndoKind = "node"
	UndoEdge    UndoKind = "edge"
)

// UndoResult reports the outcome of [Store.Undo].
type UndoResult struct {
	Kind UndoKind
	Node *Node
	Edge *Edge
}
