// Package source fetches the base network's node and edge collections.
//
// A [Loader] tries an ordered list of [Source] locations. Each location is a
// file path or an http(s) URL. The first source whose node and edge
// collections both fetch and decode wins; when every source fails, Load
// returns a LOAD_FAILURE error wrapping the last cause.
//
// HTTP fetches go through [httputil.Client], so transient failures are
// retried and bodies are cached under [cache.Keyer] keys.
package source

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/graphpatch/pkg/cache"
	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/httputil"
	"github.com/matzehuels/graphpatch/pkg/observability"
)

// Source names one node collection and one edge collection.
type Source struct {
	Nodes string `toml:"nodes" json:"nodes"`
	Edges string `toml:"edges" json:"edges"`
}

// String returns a short label for logs.
func (s Source) String() string {
	return s.Nodes + " + " + s.Edges
}

// Validate checks that both locations are present and well-formed.
func (s Source) Validate() error {
	for _, loc := range []string{s.Nodes, s.Edges} {
		if strings.TrimSpace(loc) == "" {
			return errors.New(errors.ErrCodeInvalidInput, "source needs both nodes and edges locations")
		}
		if errors.IsURL(loc) {
			if err := errors.ValidateURL(loc); err != nil {
				return err
			}
			continue
		}
		if err := errors.ValidatePath(loc); err != nil {
			return err
		}
	}
	return nil
}

// Result is a successfully fetched pair of collections.
type Result struct {
	Source   Source
	Nodes    *geojson.FeatureCollection
	Edges    *geojson.FeatureCollection
	Duration time.Duration
}

// Loader fetches the base collections.
type Loader struct {
	Sources []Source
	Client  *httputil.Client
	Keyer   cache.Keyer
	Refresh bool
	Logger  *log.Logger

	// Hooks receives load events; nil means the registered global hooks.
	Hooks observability.LoadHooks
}

// NewLoader creates a loader. A nil client means uncached HTTP access.
func NewLoader(sources []Source, client *httputil.Client, logger *log.Logger) *Loader {
	if client == nil {
		client = httputil.NewClient(nil, 0, nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		Sources: sources,
		Client:  client,
		Keyer:   cache.NewDefaultKeyer(),
		Logger:  logger,
	}
}

// Load tries each source in order.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	if len(l.Sources) == 0 {
		return nil, errors.New(errors.ErrCodeLoadFailure, "no base graph sources configured")
	}

	hooks := l.Hooks
	if hooks == nil {
		hooks = observability.Load()
	}

	var lastErr error
	for i, src := range l.Sources {
		start := time.Now()
		hooks.OnLoadStart(ctx, src.String())

		nodes, edges, err := l.fetchPair(ctx, src)
		dur := time.Since(start)
		if err == nil {
			hooks.OnLoadComplete(ctx, src.String(), len(nodes.Features), len(edges.Features), dur, nil)
			l.Logger.Debug("fetched base graph", "source", src, "nodes", len(nodes.Features), "edges", len(edges.Features), "duration", dur)
			return &Result{Source: src, Nodes: nodes, Edges: edges, Duration: dur}, nil
		}

		hooks.OnLoadComplete(ctx, src.String(), 0, 0, dur, err)
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeLoadFailure, ctx.Err(), "base graph load cancelled")
		}
		l.Logger.Warn("base graph source failed", "source", src, "attempt", i+1, "error", err)
		lastErr = err
	}
	return nil, errors.Wrap(errors.ErrCodeLoadFailure, lastErr, "all %d base graph sources failed", len(l.Sources))
}

// fetchPair fetches both collections concurrently.
func (l *Loader) fetchPair(ctx context.Context, src Source) (nodes, edges *geojson.FeatureCollection, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = l.fetch(gctx, src.Nodes)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = l.fetch(gctx, src.Edges)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func (l *Loader) fetch(ctx context.Context, location string) (*geojson.FeatureCollection, error) {
	var data []byte
	var err error
	if errors.IsURL(location) {
		data, err = l.Client.Cached(ctx, l.Keyer.SourceKey(location), l.Refresh, func() ([]byte, error) {
			return l.Client.Get(ctx, location)
		})
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	fc, err := graph.UnmarshalCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	return fc, nil
}
