package spinneret

import (
	"fmt"
	"time"
)

// Config holds the engine's runtime knobs. It is a plain struct decoupled
// from any configuration library; the config package builds one from Viper.
type Config struct {
	// FetchWorkers is the fetch pool size (N).
	FetchWorkers int
	// ParseWorkers is the parse pool size (M), independent from N.
	ParseWorkers int
	// HandoffCapacity bounds the channel between the fetch and parse pools.
	// This bound is the crawl's primary backpressure mechanism.
	HandoffCapacity int

	// PolitenessDelay is the minimum spacing between dispatches to the same
	// politeness key.
	PolitenessDelay time.Duration
	// PerKeyConcurrency caps in-flight requests per politeness key.
	PerKeyConcurrency int

	// UserAgent identifies the crawler to remote sites.
	UserAgent string
	// RequestTimeout bounds a single transport fetch.
	RequestTimeout time.Duration

	// CheckpointInterval triggers time-based snapshots; zero disables them.
	CheckpointInterval time.Duration
	// CheckpointEvery triggers a snapshot after that many completed
	// requests; zero disables count-based snapshots.
	CheckpointEvery int
}

// Defaults used when a Config field is left zero.
const (
	DefaultFetchWorkers      = 8
	DefaultParseWorkers      = 4
	DefaultHandoffCapacity   = 64
	DefaultPerKeyConcurrency = 4
	DefaultUserAgent         = "spinneret/1.0 (+https://github.com/JakeFAU/spinneret)"
	DefaultRequestTimeout    = 15 * time.Second
)

// withDefaults fills unset fields and validates the rest. Invalid pool
// sizes are the only fatal configuration errors; they surface from Build.
func (c Config) withDefaults() (Config, error) {
	if c.FetchWorkers == 0 {
		c.FetchWorkers = DefaultFetchWorkers
	}
	if c.ParseWorkers == 0 {
		c.ParseWorkers = DefaultParseWorkers
	}
	if c.HandoffCapacity == 0 {
		c.HandoffCapacity = DefaultHandoffCapacity
	}
	if c.PerKeyConcurrency == 0 {
		c.PerKeyConcurrency = DefaultPerKeyConcurrency
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.FetchWorkers < 1 {
		return c, fmt.Errorf("fetch workers must be >= 1, got %d", c.FetchWorkers)
	}
	if c.ParseWorkers < 1 {
		return c, fmt.Errorf("parse workers must be >= 1, got %d", c.ParseWorkers)
	}
	if c.HandoffCapacity < 1 {
		return c, fmt.Errorf("handoff capacity must be >= 1, got %d", c.HandoffCapacity)
	}
	if c.PerKeyConcurrency < 1 {
		return c, fmt.Errorf("per-key concurrency must be >= 1, got %d", c.PerKeyConcurrency)
	}
	if c.PolitenessDelay < 0 {
		return c, fmt.Errorf("politeness delay must be >= 0, got %v", c.PolitenessDelay)
	}
	return c, nil
}
