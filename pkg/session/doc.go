// Package session implements the edit session controller: a two-mode state
// machine that turns click events into snap queries and patch mutations.
//
// # Modes
//
// In [ModeAddNode] every click is resolved with
// [snap.Resolver.ResolveForNewNode] and, when a target lies within the
// tolerance, committed to the patch store as a new node.
//
// In [ModeAddEdge] clicks select existing nodes (base or patch). The first
// click records a pending start, the second commits an edge between the two
// nodes with its geodesic length. Clicking the start node again is rejected
// and the pending start is kept.
//
// # Feedback
//
// Every operation returns a [Feedback] value with a machine-readable
// [Outcome] and a human-readable message. Expected failures (nothing in
// range, self-loops) are outcomes, never errors.
//
// Transient visuals (snap markers, segment highlights, the pending start) go
// through a [Renderer]. Persistent visuals should subscribe to the patch
// store instead.
//
// A Controller is not safe for concurrent use. Callers that serve several
// goroutines must serialize access.
package session
