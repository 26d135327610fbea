package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProbe fails until the remaining counter hits zero
type flakyProbe struct {
	mu        sync.Mutex
	failures  int
	thenFail  bool // after succeeding once, start failing again
	succeeded bool
}

func (p *flakyProbe) Check(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.succeeded && p.thenFail {
		return fmt.Errorf("probe regressed")
	}
	if p.failures > 0 {
		p.failures--
		return fmt.Errorf("probe not ready")
	}
	p.succeeded = true
	return nil
}

func (p *flakyProbe) Describe() string { return "flaky" }

func collectTransitions(t *testing.T, spec Spec, run time.Duration) []Transition {
	t.Helper()

	var mu sync.Mutex
	var got []Transition
	checker := NewChecker(spec, func(tr Transition) {
		mu.Lock()
		got = append(got, tr)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), run)
	defer cancel()
	checker.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	return got
}

func TestCheckerEmitsHealthyOnce(t *testing.T) {
	spec := Spec{
		Service:  "node",
		Probe:    &flakyProbe{},
		Interval: 10 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
		Retries:  3,
	}

	got := collectTransitions(t, spec, 200*time.Millisecond)

	// Many passing probes, exactly one transition
	require.Len(t, got, 1)
	assert.Equal(t, "node", got[0].Service)
	assert.Equal(t, StateHealthy, got[0].State)
	assert.NoError(t, got[0].Err)
}

func TestCheckerUnhealthyAfterRetries(t *testing.T) {
	spec := Spec{
		Service:  "node",
		Probe:    &flakyProbe{failures: 1000},
		Interval: 10 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
		Retries:  3,
	}

	got := collectTransitions(t, spec, 200*time.Millisecond)

	// Threshold crossed once, no repeat emissions while still failing
	require.Len(t, got, 1)
	assert.Equal(t, StateUnhealthy, got[0].State)
	assert.Error(t, got[0].Err)
}

func TestCheckerRecovers(t *testing.T) {
	spec := Spec{
		Service:  "node",
		Probe:    &flakyProbe{failures: 4},
		Interval: 10 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
		Retries:  3,
	}

	got := collectTransitions(t, spec, 300*time.Millisecond)

	require.Len(t, got, 2)
	assert.Equal(t, StateUnhealthy, got[0].State)
	assert.Equal(t, StateHealthy, got[1].State)
}

func TestCheckerStartPeriodSuppressesFailures(t *testing.T) {
	spec := Spec{
		Service:     "node",
		Probe:       &flakyProbe{failures: 1000},
		Interval:    10 * time.Millisecond,
		Timeout:     50 * time.Millisecond,
		Retries:     2,
		StartPeriod: time.Hour,
	}

	got := collectTransitions(t, spec, 150*time.Millisecond)
	assert.Empty(t, got, "failures during the start period must not trip the threshold")
}

func TestCheckerSuccessResetsFailureCount(t *testing.T) {
	// Two failures, a success, then permanent failure: the counter must
	// restart from zero after the success.
	probe := &flakyProbe{failures: 2, thenFail: true}
	spec := Spec{
		Service:  "node",
		Probe:    probe,
		Interval: 10 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
		Retries:  3,
	}

	got := collectTransitions(t, spec, 300*time.Millisecond)

	require.NotEmpty(t, got)
	assert.Equal(t, StateHealthy, got[0].State)
	require.Len(t, got, 2)
	assert.Equal(t, StateUnhealthy, got[1].State)
}

func TestHTTPProbe(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	probe := &HTTPProbe{URL: srv.URL + "/health"}

	status = http.StatusOK
	assert.NoError(t, probe.Check(context.Background()))

	status = http.StatusServiceUnavailable
	assert.Error(t, probe.Check(context.Background()))
}

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	probe := &TCPProbe{Address: ln.Addr().String()}
	assert.NoError(t, probe.Check(context.Background()))

	ln.Close()
	assert.Error(t, probe.Check(context.Background()))
}

func TestCommandProbe(t *testing.T) {
	probe := &CommandProbe{
		Command: []string{"pact", "--version"},
		Exec: func(ctx context.Context, command []string) ([]byte, error) {
			assert.Equal(t, []string{"pact", "--version"}, command)
			return []byte("pact 4.11"), nil
		},
	}
	assert.NoError(t, probe.Check(context.Background()))

	probe.Exec = func(ctx context.Context, command []string) ([]byte, error) {
		return nil, fmt.Errorf("exit status 1")
	}
	assert.Error(t, probe.Check(context.Background()))
}
