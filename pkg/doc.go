// Package pkg provides the core libraries for graphpatch, a snapping and
// patch-editing engine for street network graphs.
//
// # Overview
//
// A base graph (GeoJSON nodes and edges, as exported by OSMnx-style tools) is
// loaded read-only. Users click geographic positions; each click is snapped to
// the nearest base or manual node, or to the nearest point on an edge, and
// recorded in an override layer of manual nodes and edges. The override layer
// is persisted separately and re-imported on the next session.
//
// The typical data flow:
//
//	GeoJSON sources (file or URL)
//	         ↓
//	    [source] package (load with fallback, cached fetches)
//	         ↓
//	    [graph] package (planar node and segment index)
//	         ↓
//	    [snap] package (nearest node / nearest segment point)
//	         ↓
//	    [session] package (click handling, modes, undo)
//	         ↓
//	    [patch] package (manual nodes and edges, GeoJSON payload)
//	         ↓
//	    [overrides] package (file, Redis, MongoDB or HTTP persistence)
//
// # Quick Start
//
//	loader := source.NewLoader([]source.Source{{Nodes: "nodes.geojson", Edges: "edges.geojson"}}, nil, logger)
//	store, _ := overrides.NewFileStore(".")
//
//	ws, err := pipeline.NewRunner(loader, store, logger).Open(ctx)
//	if err != nil {
//	    return err
//	}
//
//	fb := ws.Session.Click(48.1372, 11.5756)
//	fmt.Println(fb.Message)
//
//	_ = ws.Save(ctx)
//
// # Main Packages
//
// [geo] - Coordinate projection into a local planar frame and geodesic lengths.
//
// [graph] - Node ids that may be numbers or strings, and the immutable index
// of base nodes and edge segments built from GeoJSON.
//
// [snap] - Resolution of a query point against the index and manual nodes.
//
// [patch] - The mutable override layer with negative ids and an undo history.
//
// [session] - The editing controller: add-node and add-edge modes, pending
// edge starts, feedback for every click.
//
// [overrides] - Persistence of the override layer, plus an HTTP handler that
// serves it.
//
// [render] - DOT and SVG diagrams of the override layer, for debugging.
//
// [pipeline] - Wires loading, indexing, import of saved overrides and the
// session into a [pipeline.Workspace].
//
// ## Infrastructure
//
// [cache] - File, Redis and no-op caches for remote GeoJSON fetches.
//
// [httputil] - Cached HTTP client with retries.
//
// [errors] - Coded errors and input validation.
//
// [observability] - Hooks for load, snap and edit events.
//
// [geo]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/geo
// [graph]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/graph
// [snap]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/snap
// [patch]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/patch
// [session]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/session
// [overrides]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/overrides
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/pipeline
// [render]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/render
// [source]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/source
// [cache]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/httputil
// [errors]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/graphpatch/pkg/observability
package pkg
