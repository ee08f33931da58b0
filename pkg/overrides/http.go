package overrides

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/httputil"
	"github.com/matzehuels/graphpatch/pkg/patch"
)

// HTTPStore talks to a remote override endpoint served by [NewHandler].
type HTTPStore struct {
	base   string
	client *httputil.Client
	policy httputil.Policy
}

// HTTPOption configures an [HTTPStore].
type HTTPOption func(*HTTPStore)

// WithClient sets the HTTP client.
func WithClient(c *httputil.Client) HTTPOption {
	return func(s *HTTPStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(attempts int, delay time.Duration) HTTPOption {
	return func(s *HTTPStore) {
		s.policy = httputil.Policy{Attempts: attempts, Delay: delay}
	}
}

// NewHTTPStore creates a store against baseURL, e.g. "https://host/api".
func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	if err := errors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	s := &HTTPStore{
		base:   strings.TrimSuffix(baseURL, "/"),
		client: httputil.NewClient(nil, 0, nil),
		policy: httputil.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPStore) LoadNodes(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(ctx, LayerNodes)
}

func (s *HTTPStore) LoadEdges(ctx context.Context) (*geojson.FeatureCollection, error) {
	return s.load(ctx, LayerEdges)
}

func (s *HTTPStore) load(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error) {
	var data []byte
	err := s.policy.Do(ctx, func() error {
		var err error
		data, err = s.client.Get(ctx, s.base+"/overrides/"+string(layer))
		return err
	})
	if stderrors.Is(err, httputil.ErrNotFound) {
		return nil, notFound(layer)
	}
	if err != nil {
		return nil, err
	}
	return graph.UnmarshalCollection(data)
}

// Save posts the payload. Unreachable endpoints yield PERSISTENCE_NETWORK;
// non-2xx answers yield PERSISTENCE_SERVER wrapping an [errors.ServerError]
// with the server's message.
func (s *HTTPStore) Save(ctx context.Context, p patch.Payload) error {
	if err := validatePayload(p); err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "encode payload")
	}

	err = s.policy.Do(ctx, func() error {
		_, err := s.client.PostJSON(ctx, s.base+"/overrides", body)
		return err
	})
	return httputil.PersistenceError(err, "save overrides")
}

func (s *HTTPStore) Close() error { return nil }

var _ Store = (*HTTPStore)(nil)
