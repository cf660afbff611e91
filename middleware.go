package spinneret

import (
	"context"
	"time"
)

// ActionKind is the verdict a middleware hands back to the fetch worker.
type ActionKind uint8

const (
	// ActionContinue passes the (possibly modified) value to the next layer.
	ActionContinue ActionKind = iota
	// ActionShortCircuit substitutes a response and skips the remaining
	// request layers; the response still unwinds through the layers already
	// entered.
	ActionShortCircuit
	// ActionDrop rejects the request or response outright.
	ActionDrop
	// ActionRetry asks the engine to re-enqueue the originating request
	// with an incremented retry count after Delay.
	ActionRetry
)

// Action is returned from every middleware hook.
type Action struct {
	Kind     ActionKind
	Response *Response
	Delay    time.Duration
}

// Continue passes control to the next middleware in the chain.
func Continue() Action { return Action{Kind: ActionContinue} }

// ShortCircuit substitutes res for the transport result.
func ShortCircuit(res *Response) Action {
	return Action{Kind: ActionShortCircuit, Response: res}
}

// Drop rejects the current request or response.
func Drop() Action { return Action{Kind: ActionDrop} }

// Retry asks the engine to re-enqueue the request after delay.
func Retry(delay time.Duration) Action {
	return Action{Kind: ActionRetry, Delay: delay}
}

// Middleware transforms or vetoes requests and responses around every fetch.
// The chain is a fixed ordered sequence configured once at crawl start:
// BeforeRequest runs in order, AfterResponse in reverse order (onion model).
// A returned error aborts only the current request; it is wrapped in an
// InterceptorError, counted, and the crawl continues.
type Middleware interface {
	Name() string
	BeforeRequest(ctx context.Context, req *Request) (Action, error)
	AfterResponse(ctx context.Context, res *Response) (Action, error)
}

// BaseMiddleware is a no-op Middleware intended for embedding, so concrete
// middlewares only implement the hooks they care about.
type BaseMiddleware struct{}

// BeforeRequest passes every request through unchanged.
func (BaseMiddleware) BeforeRequest(context.Context, *Request) (Action, error) {
	return Continue(), nil
}

// AfterResponse passes every response through unchanged.
func (BaseMiddleware) AfterResponse(context.Context, *Response) (Action, error) {
	return Continue(), nil
}
