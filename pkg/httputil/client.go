package httputil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/graphpatch/pkg/cache"
	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/observability"
)

const httpTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response is kept as its message.
const maxErrorBody = 512

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = stderrors.New("resource not found")

	// ErrNetwork is returned for transport failures (timeouts, refused connections).
	ErrNetwork = stderrors.New("network error")
)

// NewHTTPClient creates an HTTP client with the standard request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// Client provides cached, retried HTTP access.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	headers map[string]string
	policy  Policy
}

// NewClient creates a Client. A nil cache disables caching. Headers are
// applied to every request.
func NewClient(c cache.Cache, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		ttl:     ttl,
		headers: headers,
		policy:  DefaultPolicy,
	}
}

// WithPolicy replaces the retry policy used by [Client.Cached].
func (c *Client) WithPolicy(p Policy) *Client {
	c.policy = p
	return c
}

// WithHTTPClient replaces the underlying transport client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

// Cached returns the cached bytes for key or calls fetch under the client's
// retry policy and stores its result. If refresh is true the cache is
// bypassed for reading.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, fetch func() ([]byte, error)) ([]byte, error) {
	if !refresh {
		data, hit, err := c.cache.Get(ctx, key)
		if err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "source")
			return data, nil
		}
		observability.Cache().OnCacheMiss(ctx, "source")
	}

	var data []byte
	err := c.policy.Do(ctx, func() error {
		var ferr error
		data, ferr = fetch()
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, "source", len(data))
	}
	return data, nil
}

// Get performs one GET and returns the body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// PostJSON performs one POST of a JSON body and returns the response body.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, body, "application/json")
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if err := checkStatus(resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

func checkStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	default:
		return &errors.ServerError{StatusCode: code, Message: errorMessage(body)}
	}
}

func errorMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
