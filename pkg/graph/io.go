package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb/geojson"
)

// =============================================================================
// Feature Collection I/O
// =============================================================================

// ReadCollection decodes a GeoJSON feature collection from r.
func ReadCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return UnmarshalCollection(data)
}

// UnmarshalCollection decodes a GeoJSON feature collection from bytes.
func UnmarshalCollection(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return fc, nil
}

// ReadCollectionFile reads a GeoJSON feature collection from path.
func ReadCollectionFile(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCollection(f)
}

// WriteCollection writes fc as indented GeoJSON to w.
func WriteCollection(w io.Writer, fc *geojson.FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteCollectionFile writes fc to a GeoJSON file at path.
// The file is created with 0644 permissions.
func WriteCollectionFile(path string, fc *geojson.FeatureCollection) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteCollection(f, fc)
}
