package overrides

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/patch"
)

// File names used by [FileStore].
const (
	NodesFile = "override_nodes.geojson"
	EdgesFile = "override_edges.geojson"
)

// FileStore keeps override layers as GeoJSON files in a directory.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a file store. If dir is empty it defaults to the
// working directory. The directory is created if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create override dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the path of a layer file.
func (s *FileStore) Path(layer Layer) string {
	if layer == LayerEdges {
		return filepath.Join(s.dir, EdgesFile)
	}
	return filepath.Join(s.dir, NodesFile)
}

func (s *FileStore) LoadNodes(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(LayerNodes)
}

func (s *FileStore) LoadEdges(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(LayerEdges)
}

func (s *FileStore) load(layer Layer) (*geojson.FeatureCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc, err := graph.ReadCollectionFile(s.Path(layer))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, notFound(layer)
	}
	if err != nil {
		return nil, fmt.Errorf("read override %s: %w", layer, err)
	}
	return fc, nil
}

// Save writes both layers. Each file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, p patch.Payload) error {
	if err := validatePayload(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range []struct {
		layer Layer
		fc    *geojson.FeatureCollection
	}{{LayerNodes, p.Nodes}, {LayerEdges, p.Edges}} {
		if err := writeAtomic(s.Path(l.layer), l.fc); err != nil {
			return errors.Wrap(errors.ErrCodePersistenceServer, err, "write override %s", l.layer)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func writeAtomic(path string, fc *geojson.FeatureCollection) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".override-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := graph.WriteCollection(tmp, fc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ Store = (*FileStore)(nil)
