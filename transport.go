package spinneret

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Well-known Meta keys the engine and bundled middlewares agree on.
const (
	// MetaParentURL is set by the engine on every request discovered by
	// parse output; the referer middleware copies it into the header.
	MetaParentURL = "parent_url"

	// MetaProxyURL selects the proxy for this request. The proxy middleware
	// sets it; HTTPTransport honors it.
	MetaProxyURL = "proxy_url"
)

// Transport performs the actual fetch. Implementations must be safe to call
// concurrently from every fetch worker. A nil error with a non-2xx status
// is a valid outcome; errors are reserved for network/protocol failures.
type Transport interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransportConfig controls the default HTTP transport.
type HTTPTransportConfig struct {
	Timeout time.Duration
	// MaxBodyBytes truncates response bodies; zero means 10 MiB.
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 10 << 20

// HTTPTransport is the default Transport built on net/http. It follows
// redirects, honors per-request proxies via MetaProxyURL, and bounds the
// body size it will buffer.
type HTTPTransport struct {
	client       *http.Client
	maxBodyBytes int64
}

// NewHTTPTransport builds the default transport.
func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	inner := http.DefaultTransport.(*http.Transport).Clone()
	inner.Proxy = proxyFromRequest
	return &HTTPTransport{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: inner,
		},
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

type proxyCtxKey struct{}

func proxyFromRequest(r *http.Request) (*url.URL, error) {
	raw, ok := r.Context().Value(proxyCtxKey{}).(string)
	if !ok || raw == "" {
		return http.ProxyFromEnvironment(r)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	return u, nil
}

// Fetch executes the request and buffers the response body.
func (t *HTTPTransport) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if proxy, ok := req.Meta[MetaProxyURL].(string); ok && proxy != "" {
		ctx = context.WithValue(ctx, proxyCtxKey{}, proxy)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{URL: req.URL, Err: err}
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	httpRes, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{URL: req.URL, Err: err}
	}
	defer func() { _ = httpRes.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpRes.Body, t.maxBodyBytes))
	if err != nil {
		return nil, &TransportError{URL: req.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: httpRes.StatusCode,
		Header:     httpRes.Header,
		Body:       data,
		URL:        httpRes.Request.URL.String(),
		Request:    req,
		FetchedAt:  start,
		Duration:   time.Since(start),
	}, nil
}
