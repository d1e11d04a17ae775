// Package httpclient issues requests against the Money Guard backend and
// normalizes every failure into *apierr.Error.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"moneyguard/internal/apierr"
	"moneyguard/internal/log"
	"moneyguard/internal/metrics"
)

const (
	HeaderRequestID = "X-Request-ID"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
)

// TokenSource supplies the bearer token. *session.State implements it.
type TokenSource interface {
	Token() string
}

// Request describes one call. Path is relative to the base URL unless it is
// an absolute URL. Auth attaches the bearer token when one is available.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Auth   bool
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *log.Logger
	slog    *log.StructuredLogger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewHTTPClient returns a plain client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(defaultTimeout)
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentHTTP)
	c.slog = log.NewStructuredLogger(c.logger)
	return c, nil
}

// Do executes req and returns the raw response body of a 2xx response.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, apierr.Network(err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apierr.Network(fmt.Errorf("encode request body: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, apierr.Network(err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Auth && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	metrics.RequestDurationSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "0").Inc()
		c.slog.LogRequest(ctx, requestID, method, target.Path, 0, elapsed, err)
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.RequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierr.FromResponse(resp.StatusCode, raw)
		c.slog.LogRequest(ctx, requestID, method, target.Path, resp.StatusCode, elapsed, apiErr)
		return nil, apiErr
	}
	if readErr != nil {
		c.slog.LogRequest(ctx, requestID, method, target.Path, resp.StatusCode, elapsed, readErr)
		return nil, apierr.Network(fmt.Errorf("read response body: %w", readErr))
	}

	c.slog.LogRequest(ctx, requestID, method, target.Path, resp.StatusCode, elapsed, nil)
	return raw, nil
}

// DoJSON executes req and decodes the response into out. An empty body leaves
// out untouched.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Network(fmt.Errorf("decode %s response: %w", req.Path, err))
	}
	return nil
}

func (c *Client) resolve(req Request) (*url.URL, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", req.Path, err)
	}

	var target *url.URL
	if ref.IsAbs() {
		target = ref
	} else {
		target = c.baseURL.ResolveReference(&url.URL{
			Path:     strings.TrimLeft(ref.Path, "/"),
			RawQuery: ref.RawQuery,
		})
	}

	if len(req.Query) > 0 {
		q := target.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target, nil
}
