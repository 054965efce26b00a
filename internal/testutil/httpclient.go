package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

// HTTPClient drives an in-process handler (usually an *echo.Echo) through
// httptest, so handler tests exercise routing, auth and error mapping.
type HTTPClient struct {
	handler http.Handler
}

// HTTPResponse is a recorded response.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func NewHTTPClient(handler http.Handler) *HTTPClient {
	return &HTTPClient{handler: handler}
}

// Request serves one request and records the result.
func (c *HTTPClient) Request(method, path string, opts ...RequestOption) *HTTPResponse {
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return &HTTPResponse{StatusCode: rec.Code, Body: rec.Body.Bytes(), Headers: rec.Header()}
}

func (c *HTTPClient) GET(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodGet, path, opts...)
}

func (c *HTTPClient) POST(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodPost, path, opts...)
}

func (c *HTTPClient) PUT(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodPut, path, opts...)
}

func (c *HTTPClient) DELETE(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodDelete, path, opts...)
}

// JSON decodes the body into v.
func (r *HTTPResponse) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the body, which makes it a handy assertion message.
func (r *HTTPResponse) String() string {
	return string(r.Body)
}

// RequestOption mutates an outgoing request.
type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithBody sends body as a JSON document.
func WithBody(body string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
		r.Body = io.NopCloser(strings.NewReader(body))
		r.ContentLength = int64(len(body))
	}
}
