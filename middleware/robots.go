package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/spinneret"
)

// Robots rejects requests disallowed by the target site's robots.txt.
// Policies are fetched once per host and cached for the crawl's lifetime.
// A robots.txt that cannot be fetched allows access, so an unreachable
// policy file never stalls a crawl.
type Robots struct {
	spinneret.BaseMiddleware

	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

// NewRobots builds the robots exclusion middleware.
func NewRobots(userAgent string, logger *zap.Logger) *Robots {
	if userAgent == "" {
		userAgent = spinneret.DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Robots{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Name implements spinneret.Middleware.
func (*Robots) Name() string { return "robots" }

// BeforeRequest drops requests whose target path is disallowed for the
// crawler's user agent.
func (m *Robots) BeforeRequest(ctx context.Context, req *spinneret.Request) (spinneret.Action, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return spinneret.Drop(), nil
	}
	data, err := m.load(ctx, parsed)
	if err != nil {
		m.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return spinneret.Continue(), nil
	}
	group := data.FindGroup(m.userAgent)
	if group == nil || group.Test(parsed.Path) {
		return spinneret.Continue(), nil
	}
	return spinneret.Drop(), nil
}

func (m *Robots) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if data, ok := m.cache.Load(hostKey); ok {
		cached, assertOK := data.(*robotstxt.RobotsData)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", data)
		}
		return cached, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			m.logger.Debug("close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	m.cache.Store(hostKey, data)
	return data, nil
}
