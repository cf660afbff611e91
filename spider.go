package spinneret

import "context"

// Spider supplies the crawl seeds and the site-specific extraction logic.
// T is the record type produced by Parse; S is the user-defined crawl state.
//
// Parse invocations run concurrently across the parse worker pool and all
// receive the same *S. Mutation of the state must therefore go through
// atomic or internally-synchronized operations; the engine passes it by
// shared reference and makes no attempt to serialize access.
type Spider[T, S any] interface {
	// StartRequests enumerates the seed requests for the crawl.
	StartRequests() []*Request

	// Parse extracts records and follow-up requests from a fetched page.
	// A returned error (or a panic, which the engine recovers) fails only
	// this item: it is counted in Stats and the crawl continues.
	Parse(ctx context.Context, res *Response, state *S) (*ParseOutput[T], error)
}

// ParseOutput is what a single parse invocation yields: extracted records
// and newly discovered requests, both in emission order. It is immutable
// once returned.
type ParseOutput[T any] struct {
	Items    []T
	Requests []*Request
}

// NewParseOutput returns an empty output ready for AddItem/AddRequest.
func NewParseOutput[T any]() *ParseOutput[T] {
	return &ParseOutput[T]{}
}

// AddItem appends an extracted record.
func (o *ParseOutput[T]) AddItem(item T) {
	o.Items = append(o.Items, item)
}

// AddRequest appends a follow-up request.
func (o *ParseOutput[T]) AddRequest(req *Request) {
	if req != nil {
		o.Requests = append(o.Requests, req)
	}
}
