// Package patch maintains the editable layer of user-added nodes and edges
// that is later merged onto the base network.
//
// # Identifiers
//
// Patch nodes receive strictly decreasing negative ids starting at -1, so
// they never collide with the non-negative ids of the base network. An id is
// never handed out twice during the lifetime of a [Store], even after
// [Store.Undo]. [Store.Clear] rewinds the allocator to -1, and
// [Store.Import] lowers it below the smallest imported id.
//
// # History
//
// Every [Store.AddNode] and [Store.AddEdge] is appended to one chronological
// history. [Store.Undo] removes the most recent entry regardless of its
// kind. Imported overrides are not part of the history and cannot be undone.
//
// # Interchange Format
//
// [Store.Export] produces two GeoJSON feature collections: one Point feature
// per node and one LineString feature per edge. Node properties:
//
//	id            patch id (also the feature id)
//	snap_type     "node" or "edge"
//	snap_distance distance from the click to the snapped location (meters)
//	snapped_to    base node id (node snaps)
//	u, v, key     parent edge (edge snaps)
//	osmid         parent edge osmid (edge snaps)
//	featureIndex  parent feature position in the base edge collection
//	segmentIndex  segment position inside the parent geometry
//	t             fractional position along the segment, in [0, 1]
//
// Edge properties are u, v, key (always 0), osmid (a unique token), highway,
// oneway and length (meters). [Store.Import] reads the same shape back.
//
// # Observers
//
// Observers registered with [Store.Subscribe] run after every mutation.
// They are the only channel through which a visual layer learns about store
// changes, so the store stays the single source of truth.
//
// # Concurrency
//
// A Store is not safe for concurrent use. It is meant to be driven from a
// single event loop.
package patch
