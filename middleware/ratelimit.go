// Package middleware bundles the interceptors invoked around every fetch:
// rate limiting, retry, robots exclusion, HTTP caching, and the
// header-management set (user-agent, referer, cookies, proxy).
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/spinneret"
	"github.com/JakeFAU/spinneret/metrics"
)

// RateLimitConfig holds per-key throughput targets.
type RateLimitConfig struct {
	// RPS is the sustained request rate per politeness key; <= 0 means
	// unlimited.
	RPS float64
	// Burst is the token bucket size; <= 0 means 1.
	Burst int
}

// RateLimit delays requests with a token bucket per politeness key. The
// wait is cooperative: it is bounded by the request context, so a stuck
// limiter can never hold a fetch worker past cancellation.
type RateLimit struct {
	spinneret.BaseMiddleware

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimit builds the rate limiting middleware.
func NewRateLimit(cfg RateLimitConfig) *RateLimit {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimit{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    burst,
	}
}

// Name implements spinneret.Middleware.
func (*RateLimit) Name() string { return "ratelimit" }

// BeforeRequest blocks until a token is available for the request's
// politeness key, respecting the context.
func (m *RateLimit) BeforeRequest(ctx context.Context, req *spinneret.Request) (spinneret.Action, error) {
	key := req.PolitenessKey()

	m.mu.Lock()
	limiter, ok := m.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(m.rps, m.burst)
		m.limiters[key] = limiter
	}
	m.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return spinneret.Drop(), fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(key, waited)
	}
	return spinneret.Continue(), nil
}
