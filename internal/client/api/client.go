package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/logging"
)

// Client is the authenticated request pipeline: decorate, send, and on a 401
// consult the refresh coordinator and replay the request once with the new
// token. A 401 from the refresh endpoint itself is never intercepted, so a
// failing refresh can not trigger another refresh.
type Client struct {
	transport   Transport
	decorator   *Decorator
	coordinator *Coordinator
	refreshPath string
	log         logging.Logger
}

func NewClient(transport Transport, decorator *Decorator, coordinator *Coordinator, refreshPath string, log logging.Logger) *Client {
	if log == nil {
		log = logging.Default()
	}
	return &Client{
		transport:   transport,
		decorator:   decorator,
		coordinator: coordinator,
		refreshPath: refreshPath,
		log:         log,
	}
}

// Do sends req through the pipeline and returns the classified outcome.
// A 401 that is resolved by a successful refresh never surfaces: the request
// is transparently replayed with the new token.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	decorated := c.decorator.Decorate(ctx, req)
	resp, err := c.transport.Do(ctx, decorated)

	if err == nil && resp.Status == http.StatusUnauthorized && req.Path != c.refreshPath {
		token, refreshErr := c.coordinator.AwaitToken(ctx)
		if refreshErr != nil {
			return nil, refreshErr
		}

		replay := decorated.Clone()
		replay.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		resp, err = c.transport.Do(ctx, replay)
	}

	return Classify(ctx, c.log, req, resp, err)
}

// GetJSON issues a GET and unmarshals the response body into out (skipped
// when out is nil).
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body (nil in sends no body).
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// PatchJSON issues a PATCH with a JSON body.
func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, in, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req := &Request{Method: method, Path: path, Header: http.Header{}}

	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// PostMultipart uploads a single named file part, for binary payloads such
// as avatars.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}

	req := &Request{Method: http.MethodPost, Path: path, Header: http.Header{}, Body: buf.Bytes()}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
