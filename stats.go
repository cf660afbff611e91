package spinneret

import "sync/atomic"

// Stats tracks crawl-wide counters. One instance is constructed per crawl
// and passed explicitly to every component that updates it; counters may be
// read at any time without blocking writers.
type Stats struct {
	RequestsScheduled atomic.Int64
	RequestsSucceeded atomic.Int64
	RequestsFailed    atomic.Int64
	RequestsRetried   atomic.Int64
	RequestsDropped   atomic.Int64

	ItemsScraped      atomic.Int64
	ItemsDeduplicated atomic.Int64

	ParseErrors  atomic.Int64
	ExportErrors atomic.Int64
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

// StatsSnapshot is a point-in-time copy of the counters, used by checkpoints
// and the monitor endpoint.
type StatsSnapshot struct {
	RequestsScheduled int64 `json:"requests_scheduled"`
	RequestsSucceeded int64 `json:"requests_succeeded"`
	RequestsFailed    int64 `json:"requests_failed"`
	RequestsRetried   int64 `json:"requests_retried"`
	RequestsDropped   int64 `json:"requests_dropped"`
	ItemsScraped      int64 `json:"items_scraped"`
	ItemsDeduplicated int64 `json:"items_deduplicated"`
	ParseErrors       int64 `json:"parse_errors"`
	ExportErrors      int64 `json:"export_errors"`
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		RequestsScheduled: s.RequestsScheduled.Load(),
		RequestsSucceeded: s.RequestsSucceeded.Load(),
		RequestsFailed:    s.RequestsFailed.Load(),
		RequestsRetried:   s.RequestsRetried.Load(),
		RequestsDropped:   s.RequestsDropped.Load(),
		ItemsScraped:      s.ItemsScraped.Load(),
		ItemsDeduplicated: s.ItemsDeduplicated.Load(),
		ParseErrors:       s.ParseErrors.Load(),
		ExportErrors:      s.ExportErrors.Load(),
	}
}

// Restore overwrites the counters from a snapshot. Used when resuming a
// crawl from a checkpoint before the worker pools start.
func (s *Stats) Restore(snap StatsSnapshot) {
	s.RequestsScheduled.Store(snap.RequestsScheduled)
	s.RequestsSucceeded.Store(snap.RequestsSucceeded)
	s.RequestsFailed.Store(snap.RequestsFailed)
	s.RequestsRetried.Store(snap.RequestsRetried)
	s.RequestsDropped.Store(snap.RequestsDropped)
	s.ItemsScraped.Store(snap.ItemsScraped)
	s.ItemsDeduplicated.Store(snap.ItemsDeduplicated)
	s.ParseErrors.Store(snap.ParseErrors)
	s.ExportErrors.Store(snap.ExportErrors)
}
