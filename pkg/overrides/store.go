// Package overrides persists patch stores as override layers.
//
// An override set is two GeoJSON feature collections, the node layer and the
// edge layer, in the interchange shape produced by [patch.Store.Export].
// Backends:
//   - [FileStore]: override_nodes.geojson and override_edges.geojson in a directory
//   - [RedisStore]: two keys under a prefix
//   - [MongoStore]: one document per layer
//   - [HTTPStore]: a remote [NewHandler] endpoint
//
// Missing layers are the expected common case and are reported as
// NOT_FOUND. Save failures carry PERSISTENCE_NETWORK when the backend could
// not be reached and PERSISTENCE_SERVER when it rejected the write.
package overrides

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/patch"
)

// Layer names one of the two override collections.
type Layer string

const (
	LayerNodes Layer = "nodes"
	LayerEdges Layer = "edges"
)

// Store loads and saves override layers.
type Store interface {
	// LoadNodes returns the node layer or a NOT_FOUND error when absent.
	LoadNodes(ctx context.Context) (*geojson.FeatureCollection, error)

	// LoadEdges returns the edge layer or a NOT_FOUND error when absent.
	LoadEdges(ctx context.Context) (*geojson.FeatureCollection, error)

	// Save replaces both layers.
	Save(ctx context.Context, p patch.Payload) error

	// Close releases backend resources.
	Close() error
}

// Load fetches both layers independently. A missing or unreadable layer is
// logged and returned as nil; Load never fails.
func Load(ctx context.Context, s Store, logger *log.Logger) (nodes, edges *geojson.FeatureCollection) {
	if logger == nil {
		logger = log.Default()
	}
	if s == nil {
		return nil, nil
	}
	nodes = loadLayer(ctx, LayerNodes, s.LoadNodes, logger)
	edges = loadLayer(ctx, LayerEdges, s.LoadEdges, logger)
	return nodes, edges
}

func loadLayer(ctx context.Context, layer Layer, fn func(context.Context) (*geojson.FeatureCollection, error), logger *log.Logger) *geojson.FeatureCollection {
	fc, err := fn(ctx)
	switch {
	case err == nil:
		logger.Debug("loaded override layer", "layer", layer, "features", len(fc.Features))
		return fc
	case errors.Is(err, errors.ErrCodeNotFound):
		logger.Debug("no override layer", "layer", layer)
	default:
		logger.Warn("override layer unavailable", "layer", layer, "error",
			errors.Wrap(errors.ErrCodeOverrideLoadFailure, err, "load %s", layer))
	}
	return nil
}

func notFound(layer Layer) error {
	return errors.New(errors.ErrCodeNotFound, "no override %s layer", layer)
}

func validatePayload(p patch.Payload) error {
	if p.Nodes == nil || p.Edges == nil {
		return errors.New(errors.ErrCodeInvalidInput, "payload needs both nodes and edges collections")
	}
	return nil
}

// persistenceError classifies a backend error by whether the backend was
// reachable at all.
func persistenceError(err error, format string, args ...any) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodePersistenceNetwork, err, format, args...)
	}
	return errors.Wrap(errors.ErrCodePersistenceServer, err, format, args...)
}
