package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes a single HTTP call made by the executor.
type Request struct {
	// Name groups requests in the per-request latency breakdown
	Name string

	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	// Timeout overrides the executor default when > 0
	Timeout time.Duration
}

// NewRequest creates a request for the given method and URL.
func NewRequest(method, rawURL string) *Request {
	return &Request{
		Method:  method,
		URL:     rawURL,
		Headers: make(map[string]string),
	}
}

// WithName sets the request name.
func (r *Request) WithName(name string) *Request {
	r.Name = name
	return r
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// WithBearerToken sets the Authorization header.
func (r *Request) WithBearerToken(token string) *Request {
	return r.WithHeader("Authorization", "Bearer "+token)
}

// WithForm sets a form-encoded body.
func (r *Request) WithForm(values url.Values) *Request {
	r.Body = []byte(values.Encode())
	return r.WithHeader("Content-Type", "application/x-www-form-urlencoded")
}

// WithTimeout sets a per-request timeout.
func (r *Request) WithTimeout(timeout time.Duration) *Request {
	r.Timeout = timeout
	return r
}

// Build constructs an http.Request bound to ctx.
func (r *Request) Build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(r.Method), r.URL, body)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// JoinURL joins a base URL and a path with exactly one slash between them.
func JoinURL(baseURL, path string) string {
	if path == "" {
		return baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
