// Package client is the HTTP/WebSocket client for the chainpad daemon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"chainpad/internal/constants"
	"chainpad/internal/errors"
)

// Client talks to a running chainpad daemon
type Client struct {
	baseURL    string
	httpClient *http.Client

	// lifecycleClient carries network start/stop/restart calls. Those can
	// legitimately run for minutes (ready timeout, per-service stop grace),
	// so it has no flat timeout; callLifecycle bounds each request through
	// its context instead.
	lifecycleClient *http.Client
}

// New creates a new client instance
func New(serverURL string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	return &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPClientTimeout,
		},
		lifecycleClient: &http.Client{},
	}, nil
}

// doRequest performs an HTTP request against the daemon
func (c *Client) doRequest(ctx context.Context, httpClient *http.Client, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// call performs a request and decodes the JSON response into out. Non-2xx
// responses are turned back into structured errors so CLI output keeps the
// daemon's error codes.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	return c.callWith(ctx, c.httpClient, method, path, body, out)
}

// callLifecycle is call with a deadline sized to network lifecycle
// operations rather than the flat request timeout.
func (c *Client) callLifecycle(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultLifecycleRequestTimeout)
	defer cancel()
	return c.callWith(ctx, c.lifecycleClient, method, path, body, out)
}

func (c *Client) callWith(ctx context.Context, httpClient *http.Client, method, path string, body, out interface{}) error {
	resp, err := c.doRequest(ctx, httpClient, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds a ChainpadError from the daemon's error payload
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var payload errors.HTTPErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Code != "" {
		return errors.NewWithDetails(payload.Error.Code, payload.Error.Message, payload.Error.Details)
	}

	return errors.NewWithDetails(errors.ErrInternal,
		fmt.Sprintf("daemon returned HTTP %d", resp.StatusCode),
		strings.TrimSpace(string(data)))
}

// dialWebSocket opens a WebSocket connection to a daemon path
func (c *Client) dialWebSocket(ctx context.Context, path string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + path
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}
