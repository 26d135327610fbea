package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/config"
	"chainpad/internal/errors"
	"chainpad/internal/testutil"
)

func newOrchestrator(t *testing.T, runtime *testutil.MockRuntime, services ...config.TopologyService) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Network:         "testnet",
		Services:        services,
		Runtime:         runtime,
		StopGracePeriod: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func TestStartServicesRespectsDependencyOrder(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime,
		svc("api", "node"),
		svc("node", "db"),
		svc("db"),
	)

	require.NoError(t, o.StartServices(context.Background()))

	starts := runtime.CallsFor("start")
	require.Equal(t, []string{"db", "node", "api"}, starts)

	for _, info := range o.Status() {
		assert.Equal(t, StatusHealthy, info.Status, info.Name)
	}
}

func TestStartServicesParallelBranches(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime,
		svc("left"),
		svc("right"),
		svc("top", "left", "right"),
	)

	require.NoError(t, o.StartServices(context.Background()))

	starts := runtime.CallsFor("start")
	require.Len(t, starts, 3)
	assert.Equal(t, "top", starts[2], "dependent must start last")
	assert.ElementsMatch(t, []string{"left", "right"}, starts[:2])
}

func TestStartServicesRollsBackOnFailure(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	runtime.FailCreate("node", fmt.Errorf("image missing"))

	o := newOrchestrator(t, runtime,
		svc("db"),
		svc("node", "db"),
	)

	err := o.StartServices(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrServiceStartFailed))

	// The db service that did start was swept up by the rollback
	assert.Contains(t, runtime.CallsFor("stop"), "db")
}

func TestStartServicesOptionalFailureDoesNotAbort(t *testing.T) {
	runtime := testutil.NewMockRuntime()

	optional := svc("explorer")
	optional.Optional = true

	o := newOrchestrator(t, runtime,
		svc("db"),
		optional,
	)
	runtime.FailCreate("explorer", fmt.Errorf("image missing"))

	require.NoError(t, o.StartServices(context.Background()))

	statuses := map[string]ServiceStatus{}
	for _, info := range o.Status() {
		statuses[info.Name] = info.Status
	}
	assert.Equal(t, StatusHealthy, statuses["db"])
	assert.Equal(t, StatusFailed, statuses["explorer"])
}

func TestStopAllReverseOrderAndIdempotent(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime,
		svc("db"),
		svc("node", "db"),
		svc("api", "node"),
	)

	require.NoError(t, o.StartServices(context.Background()))
	require.NoError(t, o.StopAll(context.Background(), false))

	assert.Equal(t, []string{"api", "node", "db"}, runtime.CallsFor("stop"))

	// Second stop is a no-op
	require.NoError(t, o.StopAll(context.Background(), false))
	assert.Len(t, runtime.CallsFor("stop"), 3)
}

func TestUnhealthyServiceWithoutRestartFailsDependents(t *testing.T) {
	runtime := testutil.NewMockRuntime()

	node := svc("node")
	node.HealthCheck = &config.HealthCheck{
		// Nothing listens on this port
		TCP:         "127.0.0.1:1",
		Interval:    config.Duration(10 * time.Millisecond),
		Timeout:     config.Duration(50 * time.Millisecond),
		Retries:     1,
		StartPeriod: config.Duration(time.Millisecond),
	}

	o := newOrchestrator(t, runtime, node, svc("api", "node"))

	// A service with no restart policy that turns unhealthy is terminal:
	// its dependents must fail promptly instead of waiting forever.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.StartServices(ctx)
	require.Error(t, err)
	assert.NoError(t, ctx.Err(), "startup should fail on its own, not by timeout")
	assert.True(t, errors.HasCode(err, errors.ErrServiceStartFailed))

	assert.NotContains(t, runtime.CallsFor("start"), "api")
}

func TestStopAllForceEscalatesToKill(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	runtime.SetError("stop", fmt.Errorf("still running"))

	o := newOrchestrator(t, runtime, svc("db"))

	require.NoError(t, o.StartServices(context.Background()))
	require.NoError(t, o.StopAll(context.Background(), true))

	assert.Equal(t, []string{"db"}, runtime.CallsFor("kill"))
}

func TestStopAllWithoutForceSurfacesGracefulTimeout(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	runtime.SetError("stop", fmt.Errorf("still running"))

	o := newOrchestrator(t, runtime, svc("db"), svc("node", "db"))

	require.NoError(t, o.StartServices(context.Background()))

	err := o.StopAll(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGracefulStopTimeout))

	// Non-force never kills, and failures do not abort the sweep
	assert.Empty(t, runtime.CallsFor("kill"))
	assert.Equal(t, []string{"node", "db"}, runtime.CallsFor("stop"))
}

func TestStopAllStuckServiceDoesNotBlockOthers(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime,
		svc("db"),
		svc("node", "db"),
		svc("api", "node"),
	)

	require.NoError(t, o.StartServices(context.Background()))

	var stuckID string
	for _, info := range o.Status() {
		if info.Name == "node" {
			stuckID = info.InstanceID
		}
	}
	require.NotEmpty(t, stuckID)

	runtime.StopFn = func(ctx context.Context, id string, grace time.Duration) error {
		if id == stuckID {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := o.StopAll(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGracefulStopTimeout))

	statuses := map[string]ServiceStatus{}
	for _, info := range o.Status() {
		statuses[info.Name] = info.Status
	}
	assert.Equal(t, StatusStopped, statuses["api"])
	assert.Equal(t, StatusStopped, statuses["db"])
	assert.Equal(t, StatusFailed, statuses["node"])
}

func TestStopAllForceKillsStuckServiceAfterBudget(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime,
		svc("db"),
		svc("node", "db"),
	)

	require.NoError(t, o.StartServices(context.Background()))

	var stuckID string
	for _, info := range o.Status() {
		if info.Name == "node" {
			stuckID = info.InstanceID
		}
	}
	require.NotEmpty(t, stuckID)

	runtime.StopFn = func(ctx context.Context, id string, grace time.Duration) error {
		if id == stuckID {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	// The caller's context dies while node's stop is hanging; the kill must
	// still go through on its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, o.StopAll(ctx, true))

	assert.Contains(t, runtime.CallsFor("kill"), "node")
	for _, info := range o.Status() {
		assert.Equal(t, StatusStopped, info.Status, info.Name)
	}
}

func TestWaitForHealthyImmediate(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime, svc("db"))

	require.NoError(t, o.StartServices(context.Background()))

	// Readiness achieved before the call must still count
	require.NoError(t, o.WaitForHealthy(context.Background(), time.Second))
}

func TestWaitForHealthyTimeout(t *testing.T) {
	runtime := testutil.NewMockRuntime()

	node := svc("node")
	node.HealthCheck = &config.HealthCheck{
		// Nothing listens on this port
		TCP:      "127.0.0.1:1",
		Interval: config.Duration(10 * time.Millisecond),
		Timeout:  config.Duration(50 * time.Millisecond),
		Retries:  2,
	}

	o := newOrchestrator(t, runtime, node)

	require.NoError(t, o.StartServices(context.Background()))

	err := o.WaitForHealthy(context.Background(), 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrHealthCheckTimeout))
}

func TestHealthProbeGatesReadiness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runtime := testutil.NewMockRuntime()

	node := svc("node")
	node.HealthCheck = &config.HealthCheck{
		HTTP:     srv.URL + "/health",
		Interval: config.Duration(10 * time.Millisecond),
		Timeout:  config.Duration(100 * time.Millisecond),
		Retries:  2,
	}

	o := newOrchestrator(t, runtime, node, svc("api", "node"))

	events := o.Events()
	require.NoError(t, o.StartServices(context.Background()))
	require.NoError(t, o.WaitForHealthy(context.Background(), 2*time.Second))

	// api only starts after node turned healthy
	var sawNodeHealthy bool
	for {
		var done bool
		select {
		case ev := <-events:
			if ev.Type == EventServiceHealthy && ev.Service == "node" {
				sawNodeHealthy = true
			}
			if ev.Type == EventServiceStarted && ev.Service == "api" {
				assert.True(t, sawNodeHealthy, "api started before node was healthy")
				done = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
		if done {
			break
		}
	}

	for _, info := range o.Status() {
		if info.Name == "node" {
			assert.False(t, info.LastHealthCheckAt.IsZero())
		}
	}
}

func TestRestartOnFailureGivesUpAtCap(t *testing.T) {
	runtime := testutil.NewMockRuntime()

	node := svc("node")
	node.Restart = config.RestartOnFailure
	node.HealthCheck = &config.HealthCheck{
		TCP:         "127.0.0.1:1",
		Interval:    config.Duration(10 * time.Millisecond),
		Timeout:     config.Duration(50 * time.Millisecond),
		Retries:     1,
		StartPeriod: config.Duration(time.Millisecond),
	}

	o, err := New(Config{
		Network:         "testnet",
		Services:        []config.TopologyService{node},
		Runtime:         runtime,
		StopGracePeriod: 50 * time.Millisecond,
		MaxRestarts:     1,
	})
	require.NoError(t, err)
	t.Cleanup(o.Close)

	events := o.Events()
	require.NoError(t, o.StartServices(context.Background()))

	var sawRestart, sawFailed bool
	deadline := time.After(5 * time.Second)
	for !sawFailed {
		select {
		case ev := <-events:
			switch ev.Type {
			case EventServiceRestarting:
				sawRestart = true
			case EventServiceFailed:
				sawFailed = true
			}
		case <-deadline:
			t.Fatal("service never gave up restarting")
		}
	}
	assert.True(t, sawRestart)

	// One original create plus one restart
	assert.GreaterOrEqual(t, len(runtime.CallsFor("create")), 2)
}

func TestConcurrentWaiters(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime, svc("db"), svc("node", "db"))

	require.NoError(t, o.StartServices(context.Background()))

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			errs <- o.WaitForHealthy(context.Background(), time.Second)
		}()
	}
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestStreamLogs(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime, svc("db"))

	require.NoError(t, o.StartServices(context.Background()))

	info := o.Status()[0]
	runtime.WriteLogs(info.InstanceID, "line one\nline two\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	entries, err := o.StreamLogs(ctx, "db")
	require.NoError(t, err)

	var lines []string
	for entry := range entries {
		assert.Equal(t, "db", entry.Service)
		lines = append(lines, entry.Line)
	}
	assert.Equal(t, []string{"line one", "line two"}, lines)
}

func TestStreamLogsUnknownService(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime, svc("db"))

	_, err := o.StreamLogs(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrServiceNotFound))
}

func TestEventBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe()
	for i := 0; i < eventBufferSize+50; i++ {
		bus.Publish(Event{Type: EventServiceStarted, Message: fmt.Sprintf("%d", i)})
	}

	// Publisher never blocked; subscriber sees at most the buffer size
	count := 0
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, eventBufferSize, count)
}

func TestBusUnsubscribeCloses(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestStatusSnapshot(t *testing.T) {
	runtime := testutil.NewMockRuntime()
	o := newOrchestrator(t, runtime, svc("db"), svc("node", "db"))

	infos := o.Status()
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.Equal(t, StatusPending, info.Status)
		assert.True(t, info.StartedAt.IsZero())
	}

	require.NoError(t, o.StartServices(context.Background()))
	for _, info := range o.Status() {
		assert.Equal(t, StatusHealthy, info.Status)
		assert.True(t, strings.HasPrefix(info.InstanceID, "mock-"))
		assert.False(t, info.StartedAt.IsZero())
	}
}
