package spinneret

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is the result of fetching a Request. It is produced by a fetch
// worker (or short-circuited by a middleware such as the HTTP cache) and
// consumed exactly once by a parse worker.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the final resolved location after redirects.
	URL string

	// Request is the originating request.
	Request *Request

	// Err carries a transport failure. When set, the other fields may be
	// zero; the retry middleware inspects it before the response reaches
	// parse workers.
	Err error

	FetchedAt time.Time
	Duration  time.Duration
}

// OK reports whether the response carries a usable 2xx body.
func (r *Response) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Document parses the body as HTML and returns a goquery document for
// selector-based extraction in user parse logic.
func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// JoinURL resolves a possibly relative href against the response URL.
func (r *Response) JoinURL(href string) (string, error) {
	base, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
