package spinneret

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/JakeFAU/spinneret/internal/urlutil"
)

// Request captures everything needed to fetch a resource. Requests are
// created by Spider.StartRequests or by parse output and are treated as
// immutable once enqueued, except for the retry counter.
type Request struct {
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	Priority int         `json:"priority"`
	Retries  int         `json:"retries"`

	// Meta is an opaque bag carried from the parent page into user parse
	// logic. Values must be JSON-marshalable if checkpointing is enabled.
	Meta map[string]any `json:"meta,omitempty"`

	// SkipDedup bypasses the duplicate filter at enqueue time. The engine
	// sets it on retries and on requests restored from a checkpoint.
	SkipDedup bool `json:"skip_dedup,omitempty"`

	// cached derivations, computed on first use
	fingerprint string
	politeKey   string

	// enqueue bookkeeping owned by the frontier
	seq uint64

	// notBefore delays admission, used for retry backoff. Not persisted:
	// restored requests are admissible immediately.
	notBefore time.Time
}

// NewRequest builds a GET request for the given URL with default priority.
func NewRequest(rawURL string) *Request {
	return &Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Header: make(http.Header),
	}
}

// WithPriority sets the scheduling priority (higher is dequeued first) and
// returns the request for chaining.
func (r *Request) WithPriority(p int) *Request {
	r.Priority = p
	return r
}

// WithMeta attaches a metadata key/value pair and returns the request.
func (r *Request) WithMeta(key string, value any) *Request {
	if r.Meta == nil {
		r.Meta = make(map[string]any)
	}
	r.Meta[key] = value
	return r
}

// PolitenessKey groups requests for per-origin rate limiting and concurrency
// caps. It is the lowercase hostname of the target URL.
func (r *Request) PolitenessKey() string {
	if r.politeKey == "" {
		r.politeKey = urlutil.Host(r.URL)
	}
	return r.politeKey
}

// Fingerprint returns the canonical dedup key for the request: a SHA-256
// digest over the method, the normalized URL, and the body hash. Two
// requests that differ only in header order, URL fragment, or query
// parameter order share a fingerprint.
func (r *Request) Fingerprint() string {
	if r.fingerprint != "" {
		return r.fingerprint
	}
	normalized, err := urlutil.Normalize(r.URL)
	if err != nil {
		normalized = r.URL
	}
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{'\n'})
	h.Write([]byte(normalized))
	h.Write([]byte{'\n'})
	if len(r.Body) > 0 {
		bodySum := sha256.Sum256(r.Body)
		h.Write(bodySum[:])
	}
	r.fingerprint = hex.EncodeToString(h.Sum(nil))
	return r.fingerprint
}

// snapshotClone returns a detached copy that stays safe to read and
// serialize while the fetch worker owning the original mutates it. Header,
// Body, and Meta are copied so the clone shares no mutable state.
func (r *Request) snapshotClone() Request {
	clone := *r
	clone.Header = r.Header.Clone()
	if len(r.Body) > 0 {
		clone.Body = append([]byte(nil), r.Body...)
	}
	if r.Meta != nil {
		meta := make(map[string]any, len(r.Meta))
		for k, v := range r.Meta {
			meta[k] = v
		}
		clone.Meta = meta
	}
	return clone
}

// retryClone returns a copy of the request with the retry counter bumped and
// admission held back for the backoff delay. The clone bypasses the
// duplicate filter since the original fingerprint is already recorded.
func (r *Request) retryClone(backoff time.Duration) *Request {
	clone := r.snapshotClone()
	clone.Retries++
	clone.SkipDedup = true
	clone.seq = 0
	if backoff > 0 {
		clone.notBefore = time.Now().Add(backoff)
	}
	return &clone
}
