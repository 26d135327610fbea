package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Probe performs a single readiness check against a service
type Probe interface {
	// Check returns nil if the service answered, an error otherwise
	Check(ctx context.Context) error

	// Describe returns a short human-readable description of the probe
	Describe() string
}

// HTTPProbe checks that an HTTP endpoint answers with a 2xx or 3xx status
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func (p *HTTPProbe) Check(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid probe URL: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, p.URL)
	}
	return nil
}

func (p *HTTPProbe) Describe() string {
	return fmt.Sprintf("http %s", p.URL)
}

// TCPProbe checks that a TCP connection can be established
type TCPProbe struct {
	Address string
}

func (p *TCPProbe) Check(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (p *TCPProbe) Describe() string {
	return fmt.Sprintf("tcp %s", p.Address)
}

// ExecFunc runs a command inside a service instance
type ExecFunc func(ctx context.Context, command []string) ([]byte, error)

// CommandProbe checks by running a command inside the instance; a non-zero
// exit reports unhealthy.
type CommandProbe struct {
	Command []string
	Exec    ExecFunc
}

func (p *CommandProbe) Check(ctx context.Context) error {
	if p.Exec == nil {
		return fmt.Errorf("command probe has no exec target")
	}
	_, err := p.Exec(ctx, p.Command)
	return err
}

func (p *CommandProbe) Describe() string {
	return fmt.Sprintf("exec %s", strings.Join(p.Command, " "))
}

// defaultHTTPClient avoids sharing the process-wide default transport's
// connection pool with application traffic.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
