package session

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/geo"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/patch"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

// DefaultTolerance is the snap radius in meters.
const DefaultTolerance = 5.0

// Mode is the controller's editing mode.
type Mode string

const (
	ModeAddNode Mode = "add_node"
	ModeAddEdge Mode = "add_edge"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAddNode, ModeAddEdge:
		return m, nil
	}
	return "", errors.New(errors.ErrCodeInvalidMode, "unknown mode %q (use %s or %s)", s, ModeAddNode, ModeAddEdge)
}

// Pending is the first endpoint of an edge being drawn.
type Pending struct {
	ID       graph.NodeID
	Location orb.Point // geographic [lng, lat]
}

// Outcome classifies a [Feedback].
type Outcome string

const (
	OutcomeNoTarget    Outcome = "no_target"
	OutcomeNodeSnap    Outcome = "node_snap"
	OutcomeEdgeSnap    Outcome = "edge_snap"
	OutcomeEdgeStart   Outcome = "edge_start"
	OutcomeEdgeCreated Outcome = "edge_created"
	OutcomeSameNode    Outcome = "same_node"
	OutcomeInvalidEdge Outcome = "invalid_edge"
	OutcomeUndoPending Outcome = "undo_pending"
	OutcomeUndoNode    Outcome = "undo_node"
	OutcomeUndoEdge    Outcome = "undo_edge"
	OutcomeUndoNothing Outcome = "undo_nothing"
	OutcomeCleared     Outcome = "cleared"
)

// Feedback reports the result of one controller operation.
type Feedback struct {
	Outcome Outcome
	Message string
	Node    *patch.Node
	Edge    *patch.Edge
}

// OK reports whether the operation changed editing state.
func (f Feedback) OK() bool {
	switch f.Outcome {
	case OutcomeNoTarget, OutcomeSameNode, OutcomeInvalidEdge, OutcomeUndoNothing:
		return false
	}
	return true
}

// Controller drives a resolver and a patch store from click events.
type Controller struct {
	idx      *graph.Index
	resolver *snap.Resolver
	store    *patch.Store
	renderer Renderer
	logger   *log.Logger
	tol      float64

	mode    Mode
	pending *Pending
}

// Option configures a [Controller].
type Option func(*Controller)

// WithTolerance sets the snap radius in meters. Non-positive values are
// ignored.
func WithTolerance(meters float64) Option {
	return func(c *Controller) {
		if meters > 0 {
			c.tol = meters
		}
	}
}

// WithRenderer sets the preview renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Controller) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a controller in [ModeAddNode].
func New(idx *graph.Index, resolver *snap.Resolver, store *patch.Store, opts ...Option) *Controller {
	c := &Controller{
		idx:      idx,
		resolver: resolver,
		store:    store,
		renderer: NopRenderer{},
		logger:   log.Default(),
		tol:      DefaultTolerance,
		mode:     ModeAddNode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Tolerance returns the snap radius in meters.
func (c *Controller) Tolerance() float64 { return c.tol }

// Pending returns the pending edge start, if any.
func (c *Controller) Pending() (Pending, bool) {
	if c.pending == nil {
		return Pending{}, false
	}
	return *c.pending, true
}

// Store returns the patch store the controller mutates.
func (c *Controller) Store() *patch.Store { return c.store }

// SetMode switches mode. It always clears the pending start and previews,
// including when m equals the current mode.
func (c *Controller) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	c.pending = nil
	c.renderer.ClearPreview()
	c.mode = m
	c.logger.Debug("mode changed", "mode", m)
	return nil
}

// Click handles a click at a geographic position.
func (c *Controller) Click(lat, lng float64) Feedback {
	q := c.idx.Projector().Project(geo.Point(lat, lng))
	if c.mode == ModeAddEdge {
		return c.clickEdge(q)
	}
	return c.clickNode(q)
}

func (c *Controller) clickNode(q orb.Point) Feedback {
	res, ok := c.resolver.ResolveForNewNode(q, c.tol)
	if !ok {
		return c.feedback(Feedback{
			Outcome: OutcomeNoTarget,
			Message: fmt.Sprintf("No node or edge within %gm", c.tol),
		})
	}

	n := c.store.AddNode(res)
	c.renderer.ClearPreview()
	c.renderer.ShowMarker(res.Location)

	if res.Kind == snap.KindNode {
		return c.feedback(Feedback{
			Outcome: OutcomeNodeSnap,
			Message: fmt.Sprintf("Node %d snapped to node %s (%.1fm)", n.ID, res.NodeID, res.Distance),
			Node:    &n,
		})
	}

	msg := fmt.Sprintf("Node %d snapped to edge (%.1fm)", n.ID, res.Distance)
	if res.Edge != nil {
		msg = fmt.Sprintf("Node %d snapped to edge %s-%s (%.1fm)", n.ID, res.Edge.U, res.Edge.V, res.Distance)
		if seg, ok := c.idx.FindSegment(res.Edge.SegmentKey()); ok {
			c.renderer.HighlightSegment(seg.A, seg.B)
		}
	}
	return c.feedback(Feedback{Outcome: OutcomeEdgeSnap, Message: msg, Node: &n})
}

func (c *Controller) clickEdge(q orb.Point) Feedback {
	ref, ok := c.resolver.ResolveNearestExistingNode(q, c.tol)
	if !ok {
		return c.feedback(Feedback{
			Outcome: OutcomeNoTarget,
			Message: "Click closer to a node",
		})
	}

	if c.pending == nil {
		c.pending = &Pending{ID: ref.ID, Location: ref.Location}
		c.renderer.ShowPendingStart(ref.Location)
		return c.feedback(Feedback{
			Outcome: OutcomeEdgeStart,
			Message: fmt.Sprintf("Edge start: %s node %s", ref.Origin, ref.ID),
		})
	}

	if ref.ID == c.pending.ID {
		return c.feedback(Feedback{
			Outcome: OutcomeSameNode,
			Message: "End node same as start",
		})
	}

	start := snap.NodeRef{ID: c.pending.ID, Location: c.pending.Location}
	e, err := c.store.AddEdge(start, ref, geo.Length(start.Location, ref.Location))
	if err != nil {
		// Unreachable with the id check above; report without touching state.
		return c.feedback(Feedback{
			Outcome: OutcomeInvalidEdge,
			Message: errors.UserMessage(err),
		})
	}
	c.pending = nil
	c.renderer.ClearPreview()
	return c.feedback(Feedback{
		Outcome: OutcomeEdgeCreated,
		Message: fmt.Sprintf("Edge %s-%s created (%.1fm)", e.U, e.V, e.Length),
		Edge:    &e,
	})
}

// Undo cancels the pending edge start if there is one, otherwise removes the
// most recent patch entity.
func (c *Controller) Undo() Feedback {
	if c.pending != nil {
		c.pending = nil
		c.renderer.ClearPreview()
		return c.feedback(Feedback{Outcome: OutcomeUndoPending, Message: "Edge start cancelled"})
	}

	res := c.store.Undo()
	c.renderer.ClearPreview()
	switch res.Kind {
	case patch.UndoNode:
		return c.feedback(Feedback{
			Outcome: OutcomeUndoNode,
			Message: fmt.Sprintf("Removed node %d", res.Node.ID),
			Node:    res.Node,
		})
	case patch.UndoEdge:
		return c.feedback(Feedback{
			Outcome: OutcomeUndoEdge,
			Message: fmt.Sprintf("Removed edge %s-%s", res.Edge.U, res.Edge.V),
			Edge:    res.Edge,
		})
	}
	return c.feedback(Feedback{Outcome: OutcomeUndoNothing, Message: "Nothing to undo"})
}

// Clear discards all patch entities and the pending start. Confirmation is
// the caller's job.
func (c *Controller) Clear() Feedback {
	c.pending = nil
	c.store.Clear()
	c.renderer.ClearPreview()
	return c.feedback(Feedback{Outcome: OutcomeCleared, Message: "All manual nodes and edges cleared"})
}

func (c *Controller) feedback(f Feedback) Feedback {
	if f.OK() {
		c.logger.Debug(f.Message, "outcome", f.Outcome, "mode", c.mode)
	} else {
		c.logger.Info(f.Message, "outcome", f.Outcome, "mode", c.mode)
	}
	return f
}
