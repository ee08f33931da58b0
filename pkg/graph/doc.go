// Package graph holds the immutable in-memory model of the base network.
//
// # Architecture
//
// The package sits between the interchange format and the snapping engine:
//
//   - GeoJSON feature collections (nodes as Points, edges as LineStrings)
//   - [Index]: projected nodes and straight edge segments (this package)
//   - pkg/snap: nearest-element queries over an [Index]
//
// Use [Build] once per load. The returned [Index] is read-only and safe for
// concurrent readers.
//
// # Node Identifiers
//
// Source networks carry node ids as numbers or strings. [ParseNodeID]
// normalizes them once at load time into the [NodeID] sum type:
//
//	graph.ParseNodeID(float64(42))  // number 42
//	graph.ParseNodeID("42")         // number 42
//	graph.ParseNodeID("a-7")        // string "a-7"
//	graph.ParseNodeID("")           // null
//
// Downstream code compares NodeIDs with == and never re-parses them.
//
// # Edge Segments
//
// Every base edge with N vertices yields N-1 [EdgeSegment] values. The
// parent edge is identified by (u, v, key) since multiple edges may join the
// same node pair; FeatureIndex and SegmentIndex locate the piece inside the
// original geometry so it can be re-identified with [Index.FindSegment].
// Zero-length segments are kept.
//
// # Feature Properties
//
// Nodes read their id from the "osmid" property, falling back to the feature
// id. Edges read "u", "v", "key" and "osmid". Coordinates are [lng, lat].
package graph
