package overrides

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/patch"
)

// Mongo defaults.
const (
	DefaultMongoDatabase   = "graphpatch"
	DefaultMongoCollection = "overrides"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// layerDoc is one override layer. GeoJSON is kept as a string so feature
// properties round-trip without BSON type coercion.
type layerDoc struct {
	Layer     string    `bson:"_id"`
	GeoJSON   string    `bson:"geojson"`
	Features  int       `bson:"features"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per layer.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db, coll := cfg.Database, cfg.Collection
	if db == "" {
		db = DefaultMongoDatabase
	}
	if coll == "" {
		coll = DefaultMongoCollection
	}
	return &MongoStore{client: client, coll: client.Database(db).Collection(coll)}, nil
}

func (s *MongoStore) LoadNodes(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(ctx, LayerNodes)
}

func (s *MongoStore) LoadEdges(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(ctx, LayerEdges)
}

func (s *MongoStore) load(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error) {
	var doc layerDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": string(layer)}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(layer)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", layer, err)
	}
	return graph.UnmarshalCollection([]byte(doc.GeoJSON))
}

// Save upserts both layer documents.
func (s *MongoStore) Save(ctx context.Context, p patch.Payload) error {
	if err := validatePayload(p); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, l := range []struct {
		layer Layer
		fc    *geojson.FeatureCollection
	}{{LayerNodes, p.Nodes}, {LayerEdges, p.Edges}} {
		data, err := json.Marshal(l.fc)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "encode %s", l.layer)
		}
		doc := layerDoc{Layer: string(l.layer), GeoJSON: string(data), Features: len(l.fc.Features), UpdatedAt: now}
		_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Layer}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
				return errors.Wrap(errors.ErrCodePersistenceNetwork, err, "mongo save %s", l.layer)
			}
			return persistenceError(err, "mongo save %s", l.layer)
		}
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
