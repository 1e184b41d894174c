// Package fetch retrieves bundle payloads and their detached digests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/location"
	"github.com/wippyai/wasm-distributed/store"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
	DefaultMaxSize             = 64 << 20

	// error bodies are kept as detail up to this size
	maxErrorBody = 4 << 10
)

// Cache stores verified payloads keyed by their SRI digest.
// *store.Store implements it.
type Cache interface {
	Get(ctx context.Context, sri string) (store.Entry, bool, error)
	Put(ctx context.Context, e store.Entry) error
	Delete(ctx context.Context, sri string) error
}

// Client fetches payloads over HTTP(S) or from the local filesystem.
type Client struct {
	client  *http.Client
	cache   Cache
	logger  *zap.Logger
	maxSize int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithCache consults cache before the network and stores verified payloads.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxSize bounds the size of a fetched payload.
func WithMaxSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// NewClient creates a fetch client.
func NewClient(opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c := &Client{
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		logger:  zap.NewNop(),
		maxSize: DefaultMaxSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch returns the raw content at loc.
func (c *Client) Fetch(ctx context.Context, loc string) ([]byte, error) {
	loc = location.Clean(loc)
	u, err := url.Parse(loc)
	if err != nil {
		return nil, errors.FetchFailure(loc, err)
	}

	switch u.Scheme {
	case "http", "https":
		return c.fetchHTTP(ctx, loc)
	case "file":
		return c.readFile(ctx, loc, u.Path)
	case "":
		return c.readFile(ctx, loc, loc)
	default:
		return nil, errors.FetchFailure(loc, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}

// Sidecar fetches and validates the detached digest of loc.
func (c *Client) Sidecar(ctx context.Context, loc string) (string, error) {
	sidecar := location.Sidecar(loc)
	data, err := c.Fetch(ctx, sidecar)
	if err != nil {
		return "", err
	}
	sri, ok := integrity.Parse(string(data))
	if !ok {
		return "", errors.InvalidDigest(sidecar, strings.TrimSpace(string(data)))
	}
	return sri.String(), nil
}

// FetchVerified returns the content at loc after checking it against sri.
// A cached payload is verified again before it is returned.
func (c *Client) FetchVerified(ctx context.Context, loc, sri string) ([]byte, error) {
	loc = location.Clean(loc)

	if c.cache != nil {
		if content, ok := c.fromCache(ctx, loc, sri); ok {
			return content, nil
		}
	}

	content, err := c.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	if !integrity.Verify(content, sri) {
		return nil, errors.IntegrityMismatch(loc, strings.TrimSpace(sri), integrity.Digest(content))
	}

	if c.cache != nil {
		err := c.cache.Put(ctx, store.Entry{SRI: sri, Location: loc, Content: content})
		if err != nil {
			c.logger.Warn("failed to cache bundle", zap.String("location", loc), zap.Error(err))
		}
	}
	return content, nil
}

func (c *Client) fromCache(ctx context.Context, loc, sri string) ([]byte, bool) {
	entry, ok, err := c.cache.Get(ctx, sri)
	if err != nil {
		c.logger.Warn("bundle cache lookup failed", zap.String("location", loc), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !integrity.Verify(entry.Content, sri) {
		c.logger.Warn("cached bundle failed verification, refetching",
			zap.String("location", loc),
			zap.String("sri", sri))
		_ = c.cache.Delete(ctx, sri)
		return nil, false
	}
	c.logger.Debug("bundle served from cache",
		zap.String("location", loc),
		zap.String("cached_from", entry.Location))
	return entry.Content, true
}

func (c *Client) fetchHTTP(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, http.NoBody)
	if err != nil {
		return nil, errors.FetchFailure(loc, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.FetchFailure(loc, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.FetchStatus(loc, resp.StatusCode, string(body))
	}

	return c.readAll(loc, resp.Body)
}

func (c *Client) readFile(ctx context.Context, loc, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FetchFailure(loc, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FetchFailure(loc, err)
	}
	defer f.Close()
	return c.readAll(loc, f)
}

func (c *Client) readAll(loc string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxSize+1))
	if err != nil {
		return nil, errors.FetchFailure(loc, err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, errors.FetchFailure(loc, fmt.Errorf("payload exceeds %d bytes", c.maxSize))
	}
	return data, nil
}
