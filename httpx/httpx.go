package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/byte4ever/laminar"
)

// ErrorClass tells the resilience layer how to treat an HTTP
// status code.
type ErrorClass int

const (
	// Success means the request succeeded (e.g. 2xx).
	Success ErrorClass = iota
	// Transient means the error is retriable (e.g. 429, 503).
	Transient
	// Permanent means the error is non-retriable (e.g. 400).
	Permanent
)

// Classifier maps an HTTP status code to an ErrorClass.
//
// Pattern: Strategy — caller injects classification logic
// without modifying the adapter.
type Classifier func(statusCode int) ErrorClass

// DefaultClassifier treats 2xx as success, 408, 429, and 5xx
// as transient, and every other status as permanent.
func DefaultClassifier(statusCode int) ErrorClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Success
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		return Transient
	default:
		return Permanent
	}
}

// StatusError is returned when the Classifier marks a status
// code as Transient or Permanent. The original response
// remains accessible for header/body inspection.
type StatusError struct {
	// Response is the original HTTP response that triggered
	// the error, kept for header inspection. Its body has
	// been closed so retried attempts do not leak
	// connections.
	Response   *http.Response
	StatusCode int
}

// Error returns a human-readable description of the status
// error.
func (e *StatusError) Error() string {
	return "http status " + strconv.Itoa(e.StatusCode)
}

// Request adapts an *http.Request to the laminar.Request
// interface: the cache key is method plus URL, the target is
// the host, so breaker and limiter state is shared per
// backend rather than per path.
type Request struct {
	inner *http.Request
}

// NewRequest wraps req for execution through a stack.
func NewRequest(req *http.Request) Request {
	return Request{inner: req}
}

// CacheKey returns the request's method and full URL.
func (r Request) CacheKey() string {
	return r.inner.Method + " " + r.inner.URL.String()
}

// Target returns the request's host.
func (r Request) Target() string {
	return r.inner.URL.Host
}

// Inner returns the wrapped *http.Request.
func (r Request) Inner() *http.Request {
	return r.inner
}

// Client wraps an http.Client with a laminar stack and HTTP
// status code classification.
//
// Response caching is not enabled by default: a cached
// *http.Response shares its body reader across callers, so
// enable laminar.WithCache only behind a transport that
// buffers bodies, and only for idempotent requests.
//
// Pattern: Adapter — bridges net/http and laminar by
// translating HTTP status codes into error classification.
type Client struct {
	hc    *http.Client
	stack *laminar.Stack[Request, *http.Response]
	cl    Classifier
}

// NewClient creates a Client that executes HTTP requests
// through a stack built from the given options. The
// classifier determines how HTTP status codes map to
// transient or permanent errors for retry and breaker
// decisions; nil means [DefaultClassifier]. A nil hc means
// http.DefaultClient.
func NewClient(
	name string,
	hc *http.Client,
	cl Classifier,
	opts ...any,
) (*Client, error) {
	if hc == nil {
		hc = http.DefaultClient
	}

	if cl == nil {
		cl = DefaultClassifier
	}

	c := &Client{hc: hc, cl: cl}

	stack, err := laminar.New(name, c.invoke, opts...)
	if err != nil {
		return nil, err
	}

	c.stack = stack

	return c, nil
}

// Do executes req through the client's stack. Admission
// rejections and classified failures surface as laminar
// error kinds; on success the caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.stack.Do(req.Context(), NewRequest(req))
}

// invoke performs one attempt: run the request on the
// underlying http.Client and classify the outcome.
func (c *Client) invoke(
	ctx context.Context,
	req Request,
) (*http.Response, error) {
	resp, err := c.hc.Do(req.Inner().WithContext(ctx))
	if err != nil {
		// Transport-level failures (dial, timeout, reset) are worth
		// retrying.
		return nil, laminar.Transient(err)
	}

	class := c.cl(resp.StatusCode)
	if class == Success {
		return resp, nil
	}

	resp.Body.Close()

	statusErr := &StatusError{Response: resp, StatusCode: resp.StatusCode}
	if class == Transient {
		return nil, laminar.Transient(statusErr)
	}

	return nil, laminar.Permanent(statusErr)
}
