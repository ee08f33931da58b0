package overrides

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/patch"
)

// DefaultRedisPrefix prefixes override keys when none is configured.
const DefaultRedisPrefix = "graphpatch:overrides:"

// RedisConfig configures a [RedisStore].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each layer as raw GeoJSON under prefix+layer.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(layer Layer) string { return s.prefix + string(layer) }

func (s *RedisStore) LoadNodes(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(ctx, LayerNodes)
}

func (s *RedisStore) LoadEdges(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(ctx, LayerEdges)
}

func (s *RedisStore) load(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error) {
	data, err := s.client.Get(ctx, s.key(layer)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, notFound(layer)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", layer, err)
	}
	return graph.UnmarshalCollection(data)
}

// Save writes both layers in one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, p patch.Payload) error {
	if err := validatePayload(p); err != nil {
		return err
	}
	nodes, err := json.Marshal(p.Nodes)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "encode nodes")
	}
	edges, err := json.Marshal(p.Edges)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "encode edges")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(LayerNodes), nodes, 0)
		pipe.Set(ctx, s.key(LayerEdges), edges, 0)
		return nil
	})
	if err != nil {
		return persistenceError(err, "redis save")
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
