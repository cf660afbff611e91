package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/spinneret"
)

// CacheStore is the content-addressed KV the cache middleware persists
// responses in. storage.BadgerStore satisfies it.
type CacheStore interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
}

// Cache short-circuits repeated GET fetches with a stored response, keyed
// by the request fingerprint. On a miss the eventual response is stored on
// the way back out. The cache fails open: a broken store degrades to live
// fetches instead of aborting requests.
type Cache struct {
	spinneret.BaseMiddleware

	store  CacheStore
	logger *zap.Logger
}

// NewCache builds the HTTP cache middleware over the given store.
func NewCache(store CacheStore, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}
}

// Name implements spinneret.Middleware.
func (*Cache) Name() string { return "cache" }

const cacheKeyPrefix = "cache:"

// cachedResponse is the serialized form of a stored fetch result.
type cachedResponse struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	URL        string      `json:"url"`
	FetchedAt  time.Time   `json:"fetched_at"`
}

// BeforeRequest serves cacheable requests from the store.
func (m *Cache) BeforeRequest(_ context.Context, req *spinneret.Request) (spinneret.Action, error) {
	if req.Method != http.MethodGet {
		return spinneret.Continue(), nil
	}
	raw, ok, err := m.store.Get(cacheKeyPrefix + req.Fingerprint())
	if err != nil {
		m.logger.Warn("cache lookup failed", zap.String("url", req.URL), zap.Error(err))
		return spinneret.Continue(), nil
	}
	if !ok {
		return spinneret.Continue(), nil
	}
	var entry cachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		// corrupt entry: fall through to a live fetch that will rewrite it
		return spinneret.Continue(), nil
	}
	return spinneret.ShortCircuit(&spinneret.Response{
		StatusCode: entry.StatusCode,
		Header:     entry.Header,
		Body:       entry.Body,
		URL:        entry.URL,
		Request:    req,
		FetchedAt:  entry.FetchedAt,
	}), nil
}

// AfterResponse stores successful GET responses.
func (m *Cache) AfterResponse(_ context.Context, res *spinneret.Response) (spinneret.Action, error) {
	if res.Request == nil || res.Request.Method != http.MethodGet || !res.OK() {
		return spinneret.Continue(), nil
	}
	raw, err := json.Marshal(cachedResponse{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
		URL:        res.URL,
		FetchedAt:  res.FetchedAt,
	})
	if err != nil {
		return spinneret.Continue(), nil
	}
	if err := m.store.Set(cacheKeyPrefix+res.Request.Fingerprint(), raw); err != nil {
		m.logger.Warn("cache store failed", zap.String("url", res.URL), zap.Error(err))
	}
	return spinneret.Continue(), nil
}
