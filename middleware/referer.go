package middleware

import (
	"context"

	"github.com/JakeFAU/spinneret"
)

// Referer fills the Referer header from the URL of the page the request was
// discovered on. Requests enqueued by Parse carry that URL in their metadata.
type Referer struct {
	spinneret.BaseMiddleware
}

// NewReferer builds the middleware.
func NewReferer() *Referer { return &Referer{} }

// Name implements spinneret.Middleware.
func (*Referer) Name() string { return "referer" }

// BeforeRequest sets the header when a parent URL is known and the request
// has not set its own.
func (m *Referer) BeforeRequest(_ context.Context, req *spinneret.Request) (spinneret.Action, error) {
	if req.Header.Get("Referer") != "" {
		return spinneret.Continue(), nil
	}
	if parent, ok := req.Meta[spinneret.MetaParentURL].(string); ok && parent != "" {
		req.Header.Set("Referer", parent)
	}
	return spinneret.Continue(), nil
}
