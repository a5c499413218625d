// Package httpclient provides the HTTP client used to talk to hosting provider
// APIs and to download repository side artifacts.
package httpclient

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
	// MaxResponseSize is the maximum allowed size of a buffered response (100MB)
	MaxResponseSize = 100 * 1024 * 1024
	// UserAgent is the user agent string for HTTP requests
	UserAgent = "repomirror/1.0"
	// DefaultAccept is the Accept header sent when none is configured
	DefaultAccept = "application/json"
)

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the buffered response
	Get(ctx context.Context, url string) (*Response, error)

	// Open performs an HTTP GET request and returns the decoded body stream.
	// Streams are not subject to MaxResponseSize. The caller closes it.
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client *http.Client
	accept string
}

type clientConfig struct {
	timeout   time.Duration
	accept    string
	token     string
	username  string
	password  string
	transport http.RoundTripper
}

// Option configures a DefaultClient
type Option func(*clientConfig)

// WithTimeout sets the request timeout. Zero means DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithAccept overrides the Accept header
func WithAccept(accept string) Option {
	return func(c *clientConfig) {
		c.accept = accept
	}
}

// WithToken authenticates every request with a bearer token
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithBasicAuth authenticates every request with HTTP basic credentials.
// A token set with WithToken takes precedence.
func WithBasicAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.username = username
		c.password = password
	}
}

// WithTransport replaces the base round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.transport = rt
	}
}

// NewDefaultClient creates a new HTTP client
func NewDefaultClient(opts ...Option) *DefaultClient {
	cfg := &clientConfig{
		timeout: DefaultTimeout,
		accept:  DefaultAccept,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.timeout == 0 {
		cfg.timeout = DefaultTimeout
	}

	transport := cfg.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	switch {
	case cfg.token != "":
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.token}),
			Base:   transport,
		}
	case cfg.username != "":
		transport = &basicAuthTransport{
			username: cfg.username,
			password: cfg.password,
			base:     transport,
		}
	}

	return &DefaultClient{
		client: &http.Client{
			Timeout:   cfg.timeout,
			Transport: transport,
		},
		accept: cfg.accept,
	}
}

// Get performs an HTTP GET request
func (c *DefaultClient) Get(ctx context.Context, url string) (*Response, error) {
	resp, body, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	// Check Content-Length header if available
	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes (%.2f MB)",
			resp.ContentLength, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	// +1 to detect if limit exceeded
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes (%.2f MB)",
			MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Open performs an HTTP GET request and returns the body stream
func (c *DefaultClient) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	_, body, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do executes the request and returns the response with a body that has the
// transport encoding removed
func (c *DefaultClient) do(ctx context.Context, url string) (*http.Response, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", c.accept)
	// Set explicitly, so the transport leaves decoding to us
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, resp.Body, nil
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("failed to decode gzip response: %w", err)
	}
	// The decoded length is unknown
	resp.ContentLength = -1
	return resp, &gzipBody{Reader: gz, raw: resp.Body}, nil
}

// gzipBody closes both the gzip reader and the underlying response body
type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (b *gzipBody) Close() error {
	gzErr := b.Reader.Close()
	if err := b.raw.Close(); err != nil {
		return err
	}
	return gzErr
}

// basicAuthTransport adds HTTP basic credentials to each request
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(clone)
}
