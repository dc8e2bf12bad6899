package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datngoHD/white-label-app/internal/logging"
)

// DefaultTimeout is the hard per-request timeout applied when a request does
// not carry its own.
const DefaultTimeout = 30 * time.Second

// slowRequestThreshold triggers a warning log for unusually slow responses.
const slowRequestThreshold = 3 * time.Second

// ErrRequestNotSent marks failures where the request could never be
// dispatched (as opposed to sent-but-no-response). The classifier maps it to
// UNKNOWN_ERROR.
var ErrRequestNotSent = errors.New("request could not be sent")

// Request is an outbound request descriptor. Decoration returns a copy; the
// original is never mutated.
type Request struct {
	Method  string
	Path    string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Clone returns a deep copy of the request with an independent header map.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Header = make(http.Header, len(r.Header))
	for k, vs := range r.Header {
		cp.Header[k] = append([]string(nil), vs...)
	}
	return &cp
}

// Response is the transport-level response descriptor.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport sends a fully decorated request. Implementations must return
// a wrapped ErrRequestNotSent when the request could not even be dispatched,
// and any other error when it was sent but no response arrived.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http-backed Transport.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	log     logging.Logger
}

// NewHTTPTransport builds a transport rooted at baseURL. A zero timeout
// falls back to DefaultTimeout.
func NewHTTPTransport(baseURL string, timeout time.Duration, log logging.Logger) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Default()
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		log:     log,
	}
}

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestNotSent, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 && req.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	t.log.Debug(ctx, "api response",
		"method", req.Method, "url", req.Path,
		"status", httpResp.StatusCode, "duration", duration)
	if duration > slowRequestThreshold {
		t.log.Warn(ctx, "slow api request", "url", req.Path, "duration", duration)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}
