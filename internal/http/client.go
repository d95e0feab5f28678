// Package http executes the HTTP requests issued by scenarios.
//
// The executor enforces a timeout on every request, reads the whole body,
// records phase timing and classifies transport failures. It never retries:
// any retry is a scenario-level decision.
package http

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"
)

// ClientConfig contains transport settings shared by all VUs.
type ClientConfig struct {
	// Timeout is the default per-request timeout
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// DisableCompression disables automatic decompression
	DisableCompression bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultClientConfig returns sensible defaults for load testing.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0, // Unlimited
		IdleConnTimeout:     90 * time.Second,
	}
}

// Executor performs HTTP requests with timing and error classification.
// It is safe for concurrent use by all VUs.
type Executor struct {
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
}

// Option configures an Executor
type Option func(*Executor)

// WithHeader adds a header sent with every request
func WithHeader(key, value string) Option {
	return func(e *Executor) {
		e.headers[key] = value
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(userAgent string) Option {
	return WithHeader("User-Agent", userAgent)
}

// WithHTTPClient replaces the underlying client. Its Timeout field is
// ignored; timeouts are enforced per request.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = client
	}
}

// NewExecutor creates an executor with a pooled transport.
func NewExecutor(config ClientConfig, options ...Option) *Executor {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableKeepAlives:   config.DisableKeepAlives,
		DisableCompression:  config.DisableCompression,
	}
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test targets
	}

	e := &Executor{
		httpClient: &http.Client{Transport: transport},
		headers:    make(map[string]string),
		timeout:    config.Timeout,
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Execute performs the request and reads the full response body.
//
// A non-2xx status is returned as a normal response. Failures are returned as
// *TimeoutError when the timeout expires and *ConnectionError otherwise. The
// call never blocks past the timeout.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	timing := TimingInfo{StartTime: time.Now()}
	reqCtx = httptrace.WithClientTrace(reqCtx, newClientTrace(&timing))

	httpReq, err := req.Build(reqCtx)
	if err != nil {
		return nil, &ConnectionError{URL: req.URL, Err: err}
	}
	for key, value := range e.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(req.URL, timeout, time.Since(timing.StartTime), err)
	}
	defer httpResp.Body.Close()

	transferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classify(req.URL, timeout, time.Since(timing.StartTime), err)
	}
	timing.ContentTransferTime = time.Since(transferStart)
	timing.TotalTime = time.Since(timing.StartTime)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
		Elapsed:    timing.TotalTime,
		Timing:     timing,
	}, nil
}

// Close releases idle connections.
func (e *Executor) Close() {
	e.httpClient.CloseIdleConnections()
}

func classify(url string, timeout, elapsed time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: url, Timeout: timeout, Elapsed: elapsed}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{URL: url, Timeout: timeout, Elapsed: elapsed}
	}
	return &ConnectionError{URL: url, Elapsed: elapsed, Err: err}
}

// newClientTrace fills in the connection phases of timing.
func newClientTrace(timing *TimingInfo) *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsStart time.Time
	lastPhaseEnd := timing.StartTime

	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			lastPhaseEnd = time.Now()
			timing.DNSLookupTime = lastPhaseEnd.Sub(dnsStart)
		},
		ConnectStart: func(string, string) {
			connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil && !connectStart.IsZero() {
				lastPhaseEnd = time.Now()
				timing.TCPConnectTime = lastPhaseEnd.Sub(connectStart)
			}
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err == nil && !tlsStart.IsZero() {
				lastPhaseEnd = time.Now()
				timing.TLSHandshakeTime = lastPhaseEnd.Sub(tlsStart)
			}
		},
		GotFirstResponseByte: func() {
			timing.TimeToFirstByte = time.Since(lastPhaseEnd)
		},
	}
}
