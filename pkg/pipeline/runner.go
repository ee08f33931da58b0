// Package pipeline wires loading, indexing and editing into a ready-to-use
// [Workspace].
//
// Opening a workspace runs two independent fetches concurrently: the base
// graph (fatal on failure) and the override layers (never fatal). It then
// builds the base index, imports the overrides into a fresh patch store and
// creates the resolver and edit session on top.
//
//	runner := pipeline.NewRunner(loader, overrideStore, logger)
//	ws, err := runner.Open(ctx)
//	if err != nil {
//	    return err // LOAD_FAILURE or INVALID_INPUT
//	}
//	fb := ws.Session.Click(48.137, 11.575)
//	err = ws.Save(ctx)
//
// Both the CLI and the HTTP server use this package so that startup behaves
// the same everywhere.
package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/geo"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/overrides"
	"github.com/matzehuels/graphpatch/pkg/patch"
	"github.com/matzehuels/graphpatch/pkg/session"
	"github.com/matzehuels/graphpatch/pkg/snap"
	"github.com/matzehuels/graphpatch/pkg/source"
)

// Runner opens workspaces. Fields left zero get defaults in [NewRunner].
type Runner struct {
	Loader    *source.Loader
	Overrides overrides.Store // nil disables overrides
	Projector geo.Projector
	Tolerance float64
	Highway   string
	Renderer  session.Renderer
	Observers []patch.Observer
	Logger    *log.Logger
}

// NewRunner creates a runner with the default projection, tolerance and
// highway tag.
func NewRunner(loader *source.Loader, ovr overrides.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Loader:    loader,
		Overrides: ovr,
		Projector: geo.WebMercator{},
		Tolerance: session.DefaultTolerance,
		Highway:   patch.DefaultHighway,
		Logger:    logger,
	}
}

// Stats summarizes an opened workspace.
type Stats struct {
	Nodes         int
	Segments      int
	Skipped       int
	ImportedNodes int
	ImportedEdges int
	LoadTime      time.Duration
	BuildTime     time.Duration
}

// Workspace is a ready editing session over one base graph.
type Workspace struct {
	Source    source.Source
	Index     *graph.Index
	Resolver  *snap.Resolver
	Store     *patch.Store
	Session   *session.Controller
	Overrides overrides.Store
	Stats     Stats
}

// Open loads, builds and wires a workspace.
func (r *Runner) Open(ctx context.Context) (*Workspace, error) {
	if r.Loader == nil {
		return nil, errors.New(errors.ErrCodeLoadFailure, "no base graph loader configured")
	}

	var (
		base      *source.Result
		ovrNodes  *geojson.FeatureCollection
		ovrEdges  *geojson.FeatureCollection
		loadStart = time.Now()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		base, err = r.Loader.Load(gctx)
		return err
	})
	g.Go(func() error {
		ovrNodes, ovrEdges = overrides.Load(gctx, r.Overrides, r.Logger)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	loadTime := time.Since(loadStart)

	buildStart := time.Now()
	idx, err := graph.Build(base.Nodes, base.Edges, r.Projector)
	if err != nil {
		return nil, err
	}
	buildTime := time.Since(buildStart)
	r.Logger.Info("loaded base graph",
		"source", base.Source,
		"nodes", idx.NodeCount(),
		"segments", idx.SegmentCount(),
		"duration", loadTime+buildTime)
	if idx.Skipped() > 0 {
		r.Logger.Warn("skipped edges without usable geometry", "count", idx.Skipped())
	}

	opts := []patch.Option{patch.WithHighway(r.Highway)}
	for _, o := range r.Observers {
		opts = append(opts, patch.WithObserver(o))
	}
	store := patch.New(opts...)
	if err := store.Import(ovrNodes, ovrEdges); err != nil {
		r.Logger.Warn("override import incomplete", "error", err)
	}
	if store.NodeCount() > 0 || store.EdgeCount() > 0 {
		r.Logger.Info("imported overrides", "nodes", store.NodeCount(), "edges", store.EdgeCount(), "next_id", store.NextID())
	}

	resolver := snap.NewResolver(idx, store)
	ctrl := session.New(idx, resolver, store,
		session.WithTolerance(r.Tolerance),
		session.WithRenderer(r.Renderer),
		session.WithLogger(r.Logger),
	)

	return &Workspace{
		Source:    base.Source,
		Index:     idx,
		Resolver:  resolver,
		Store:     store,
		Session:   ctrl,
		Overrides: r.Overrides,
		Stats: Stats{
			Nodes:         idx.NodeCount(),
			Segments:      idx.SegmentCount(),
			Skipped:       idx.Skipped(),
			ImportedNodes: store.NodeCount(),
			ImportedEdges: store.EdgeCount(),
			LoadTime:      loadTime,
			BuildTime:     buildTime,
		},
	}, nil
}

// Save hands the current patch payload to the override store.
func (w *Workspace) Save(ctx context.Context) error {
	if w.Overrides == nil {
		return errors.New(errors.ErrCodeUnsupported, "no override store configured")
	}
	return w.Overrides.Save(ctx, w.Store.Payload())
}
