package middleware

import (
	"context"
	"sync/atomic"

	"github.com/JakeFAU/spinneret"
)

// Proxy rotates outgoing requests across a fixed proxy list, round robin.
// It records its pick in the request metadata; the HTTP transport reads it
// from there when dialing.
type Proxy struct {
	spinneret.BaseMiddleware

	proxies []string
	next    atomic.Uint64
}

// NewProxy builds the middleware. An empty list makes it a no-op.
func NewProxy(proxies []string) *Proxy {
	return &Proxy{proxies: proxies}
}

// Name implements spinneret.Middleware.
func (*Proxy) Name() string { return "proxy" }

// BeforeRequest assigns the next proxy unless one was pinned already.
func (m *Proxy) BeforeRequest(_ context.Context, req *spinneret.Request) (spinneret.Action, error) {
	if len(m.proxies) == 0 {
		return spinneret.Continue(), nil
	}
	if _, ok := req.Meta[spinneret.MetaProxyURL]; ok {
		return spinneret.Continue(), nil
	}
	n := m.next.Add(1) - 1
	if req.Meta == nil {
		req.Meta = make(map[string]any)
	}
	req.Meta[spinneret.MetaProxyURL] = m.proxies[n%uint64(len(m.proxies))]
	return spinneret.Continue(), nil
}
