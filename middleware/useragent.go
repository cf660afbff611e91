package middleware

import (
	"context"

	"github.com/JakeFAU/spinneret"
)

// UserAgent stamps a User-Agent header on requests that do not carry one.
type UserAgent struct {
	spinneret.BaseMiddleware

	agent string
}

// NewUserAgent builds the middleware. An empty agent falls back to the
// engine default.
func NewUserAgent(agent string) *UserAgent {
	if agent == "" {
		agent = spinneret.DefaultUserAgent
	}
	return &UserAgent{agent: agent}
}

// Name implements spinneret.Middleware.
func (*UserAgent) Name() string { return "useragent" }

// BeforeRequest sets the header if the request has not set its own.
func (m *UserAgent) BeforeRequest(_ context.Context, req *spinneret.Request) (spinneret.Action, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", m.agent)
	}
	return spinneret.Continue(), nil
}
