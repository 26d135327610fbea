package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"chainpad/internal/db"
	"chainpad/internal/network"
	"chainpad/internal/orchestrator"
)

// logsResponse mirrors the daemon's service log payload
type logsResponse struct {
	Service string   `json:"service"`
	Lines   []string `json:"lines"`
	Total   int      `json:"total"`
}

// sessionsResponse mirrors the daemon's session list payload
type sessionsResponse struct {
	Sessions []*db.Session `json:"sessions"`
	Total    int           `json:"total"`
}

// Health checks whether the daemon is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// NetworkStatus returns the state of the current network session
func (c *Client) NetworkStatus(ctx context.Context) (*network.Status, error) {
	var status network.Status
	if err := c.call(ctx, http.MethodGet, "/api/network", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartNetwork starts the named profile, or the daemon's default when empty
func (c *Client) StartNetwork(ctx context.Context, profile string) (*network.Status, error) {
	body := map[string]string{}
	if profile != "" {
		body["profile"] = profile
	}

	var status network.Status
	if err := c.callLifecycle(ctx, http.MethodPost, "/api/network/start", body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StopNetwork stops the current network session
func (c *Client) StopNetwork(ctx context.Context) error {
	return c.callLifecycle(ctx, http.MethodPost, "/api/network/stop", nil, nil)
}

// RestartNetwork restarts the current session with the same profile
func (c *Client) RestartNetwork(ctx context.Context) (*network.Status, error) {
	var status network.Status
	if err := c.callLifecycle(ctx, http.MethodPost, "/api/network/restart", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Services lists the services of the current session
func (c *Client) Services(ctx context.Context) ([]orchestrator.ServiceInfo, error) {
	var services []orchestrator.ServiceInfo
	if err := c.call(ctx, http.MethodGet, "/api/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// ServiceLogs returns the captured output of one service
func (c *Client) ServiceLogs(ctx context.Context, service string, lines int) ([]string, error) {
	path := fmt.Sprintf("/api/services/%s/logs", url.PathEscape(service))
	if lines > 0 {
		path += fmt.Sprintf("?lines=%d", lines)
	}

	var resp logsResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// PushTransaction records confirmation demand for a chain
func (c *Client) PushTransaction(ctx context.Context, chainID uint32, confirmations int) error {
	body := map[string]interface{}{
		"chain_id":      chainID,
		"confirmations": confirmations,
	}
	return c.call(ctx, http.MethodPost, "/api/transactions", body, nil)
}

// Sessions lists recorded network sessions, newest first
func (c *Client) Sessions(ctx context.Context) ([]*db.Session, error) {
	var resp sessionsResponse
	if err := c.call(ctx, http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// StreamLogs follows live log lines from the daemon until ctx is cancelled.
// An empty services list follows everything.
func (c *Client) StreamLogs(ctx context.Context, services []string, fn func(orchestrator.LogEntry)) error {
	path := "/api/logs/stream"
	if len(services) > 0 {
		path += "?services=" + url.QueryEscape(strings.Join(services, ","))
	}

	conn, err := c.dialWebSocket(ctx, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var entry orchestrator.LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return nil
		}
		fn(entry)
	}
}

// StreamEvents follows orchestrator lifecycle events until ctx is cancelled
func (c *Client) StreamEvents(ctx context.Context, fn func(orchestrator.Event)) error {
	conn, err := c.dialWebSocket(ctx, "/api/events")
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var event orchestrator.Event
		if err := conn.ReadJSON(&event); err != nil {
			return nil
		}
		fn(event)
	}
}
