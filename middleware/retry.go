package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/JakeFAU/spinneret"
)

// RetryConfig controls the retry middleware.
type RetryConfig struct {
	// MaxRetries is the number of re-attempts after the initial fetch;
	// a limit of 2 yields at most 3 attempts total.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Statuses lists HTTP status codes treated as transient. Defaults to
	// 429 and the 5xx gateway family.
	Statuses []int
}

// Retry re-enqueues requests that hit a transient failure, with jittered
// exponential backoff, up to MaxRetries. Exhausted requests pass through
// unchanged so the engine can surface the terminal failure to stats.
type Retry struct {
	spinneret.BaseMiddleware

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	statuses   map[int]struct{}
}

// NewRetry builds the retry middleware with sane defaults.
func NewRetry(cfg RetryConfig) *Retry {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	statuses := make(map[int]struct{}, len(cfg.Statuses))
	for _, s := range cfg.Statuses {
		statuses[s] = struct{}{}
	}
	return &Retry{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		statuses:   statuses,
	}
}

// Name implements spinneret.Middleware.
func (*Retry) Name() string { return "retry" }

// AfterResponse inspects the transport outcome and asks the engine to
// re-enqueue transient failures.
func (m *Retry) AfterResponse(_ context.Context, res *spinneret.Response) (spinneret.Action, error) {
	if !m.transient(res) {
		return spinneret.Continue(), nil
	}
	if res.Request.Retries >= m.maxRetries {
		// exhausted; let the terminal failure surface downstream
		return spinneret.Continue(), nil
	}
	return spinneret.Retry(m.backoff(res.Request.Retries)), nil
}

func (m *Retry) transient(res *spinneret.Response) bool {
	if res.Err != nil {
		return retryableError(res.Err)
	}
	_, ok := m.statuses[res.StatusCode]
	return ok
}

// retryableError decides whether a transport error is worth another
// attempt. Context cancellation never is.
func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// backoff returns a jittered exponential delay for the next attempt.
func (m *Retry) backoff(attempt int) time.Duration {
	delay := float64(m.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(m.maxDelay) {
		delay = float64(m.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
