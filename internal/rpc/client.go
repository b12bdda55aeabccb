// Package rpc is a minimal Ethereum JSON-RPC 2.0 client over HTTP. It performs
// exactly one POST per call and never retries; failures are classified into
// NetworkError, ProtocolError and RemoteError.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Observer is notified after every call. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveCall(method string, latency time.Duration, err error)
}

type Client struct {
	name       string
	url        string
	httpClient *http.Client
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithObserver attaches an Observer to the client.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(name, url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) URL() string { return c.url }

// Call executes one JSON-RPC request and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: encode request: %w", method, err)
	}

	start := time.Now()
	result, err := c.doRequest(ctx, method, body)
	if c.observer != nil {
		c.observer.ObserveCall(method, time.Since(start), err)
	}
	return result, err
}

func (c *Client) doRequest(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Method: method, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: method, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &NetworkError{Method: method, StatusCode: httpResp.StatusCode}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, Err: err}
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, &ProtocolError{Method: method, Reason: "unexpected batch response"}
	}

	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, &ProtocolError{Method: method, Reason: "invalid JSON response", Err: err}
	}

	if resp.Error != nil {
		return nil, &RemoteError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	if len(resp.Result) == 0 {
		return nil, &ProtocolError{Method: method, Reason: "response has neither result nor error"}
	}

	return resp.Result, nil
}
