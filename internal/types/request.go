package types

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is a single exchange with the site, built by the session.
type Request struct {
	// URL is the absolute target URL.
	URL *url.URL

	// Method is GET or POST. Defaults to GET.
	Method string

	// Headers are extra HTTP headers to send with the request.
	Headers http.Header

	// Form holds POST form values. For GET they are already folded into URL.
	Form url.Values

	// Timeout overrides the fetcher's request timeout.
	Timeout time.Duration

	// MaxBodySize overrides the fetcher's body cap. Zero keeps the
	// fetcher's cap; a negative value lifts it.
	MaxBodySize int64

	// Tag categorizes the request ("login", "listing", "detail", "resolve").
	Tag string

	// CreatedAt is when this request was built.
	CreatedAt time.Time
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// EncodedBody returns the form-encoded POST body, or nil for GET.
func (r *Request) EncodedBody() []byte {
	if r.Method != http.MethodPost || len(r.Form) == 0 {
		return nil
	}
	return []byte(r.Form.Encode())
}

// Idempotent reports whether replaying the request is harmless.
func (r *Request) Idempotent() bool {
	switch r.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// WithQuery returns rawPath with form appended as a query string,
// joining with "&" when rawPath already carries one.
func WithQuery(rawPath string, form url.Values) string {
	if len(form) == 0 {
		return rawPath
	}
	sep := "?"
	if strings.Contains(rawPath, "?") {
		sep = "&"
	}
	return rawPath + sep + form.Encode()
}

