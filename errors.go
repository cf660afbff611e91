package spinneret

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine. Per-item failures are recorded in
// Stats and never abort the crawl; only construction errors returned by
// Build are fatal.
var (
	// ErrFrontierClosed is returned by Frontier.Enqueue after Close and by
	// Dequeue once the frontier has drained. Enqueueing after close is a
	// caller bug and is reported immediately.
	ErrFrontierClosed = errors.New("spinneret: frontier closed")

	// ErrDuplicateRequest is returned by Frontier.Enqueue when the request
	// fingerprint was already seen.
	ErrDuplicateRequest = errors.New("spinneret: duplicate request")

	// ErrDropItem signals from a Pipeline stage that the record should be
	// silently discarded. It is not counted as a failure.
	ErrDropItem = errors.New("spinneret: drop item")
)

// TransportError wraps a network or protocol level failure. Transport
// failures are retryable by the retry middleware.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InterceptorError wraps an unrecoverable failure raised by a middleware.
// It aborts the single request it occurred on, never the crawl.
type InterceptorError struct {
	Middleware string
	Err        error
}

func (e *InterceptorError) Error() string {
	return fmt.Sprintf("middleware %s: %v", e.Middleware, e.Err)
}

func (e *InterceptorError) Unwrap() error { return e.Err }

// ParseError wraps a failure (or panic) raised by user parse logic for a
// single fetched page.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExportError wraps a failure writing a single record to an exporter.
type ExportError struct {
	Exporter string
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export via %s: %v", e.Exporter, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// CheckpointError wraps a snapshot or restore failure. Snapshot failures are
// logged and skipped; only a restore failure at startup is fatal.
type CheckpointError struct {
	Op  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
