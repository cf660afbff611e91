package middleware

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/JakeFAU/spinneret"
)

// Cookies keeps a shared cookie jar across the crawl. Outgoing requests get
// the jar's cookies for their URL, and Set-Cookie headers on responses are
// folded back in, so login sessions survive across pages.
type Cookies struct {
	spinneret.BaseMiddleware

	jar http.CookieJar
}

// NewCookies builds the middleware with a fresh in-memory jar.
func NewCookies() (*Cookies, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Cookies{jar: jar}, nil
}

// Name implements spinneret.Middleware.
func (*Cookies) Name() string { return "cookies" }

// BeforeRequest attaches the jar's cookies for the request URL. The header
// is rewritten rather than appended to, so a retried request does not
// accumulate a Cookie line per attempt.
func (m *Cookies) BeforeRequest(_ context.Context, req *spinneret.Request) (spinneret.Action, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return spinneret.Continue(), nil
	}
	cookies := m.jar.Cookies(u)
	if len(cookies) == 0 {
		return spinneret.Continue(), nil
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.String())
	}
	req.Header.Set("Cookie", strings.Join(parts, "; "))
	return spinneret.Continue(), nil
}

// AfterResponse stores any Set-Cookie headers in the jar.
func (m *Cookies) AfterResponse(_ context.Context, res *spinneret.Response) (spinneret.Action, error) {
	u, err := url.Parse(res.URL)
	if err != nil {
		return spinneret.Continue(), nil
	}
	cookies := (&http.Response{Header: res.Header}).Cookies()
	if len(cookies) > 0 {
		m.jar.SetCookies(u, cookies)
	}
	return spinneret.Continue(), nil
}
