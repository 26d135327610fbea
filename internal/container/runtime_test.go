package container

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCommandExecutor records invocations and replays canned output
type MockCommandExecutor struct {
	commands []MockCommand
	index    int
	calls    [][]string
}

type MockCommand struct {
	output string
	err    error
}

func (m *MockCommandExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	m.calls = append(m.calls, append([]string{name}, args...))

	if m.index >= len(m.commands) {
		panic(fmt.Sprintf("unexpected command: %s %v", name, args))
	}
	expected := m.commands[m.index]
	m.index++

	// Replay the canned output through a real process
	cmd := exec.Command("echo", "-n", expected.output)
	if expected.err != nil {
		cmd = exec.Command("sh", "-c", fmt.Sprintf("echo -n %q >&2; exit 1", expected.output))
	}
	return cmd
}

func (m *MockCommandExecutor) lastCall() []string {
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func TestDockerRuntime_Create(t *testing.T) {
	mockExecutor := &MockCommandExecutor{
		commands: []MockCommand{
			{output: "container-123"},
		},
	}

	runtime := NewDockerRuntime(mockExecutor)
	inst, err := runtime.Create(context.Background(), &CreateSpec{
		Name:    "devnet-node",
		Service: "node",
		Network: "devnet",
		Image:   "kadena/devnet:latest",
		EnvVars: []string{"CHAINWEB_PORT=1848"},
		Ports:   []string{"8082:1848"},
		Volumes: []string{"/tmp/data:/data"},
	})

	require.NoError(t, err)
	assert.Equal(t, "container-123", inst.ID)
	assert.Equal(t, "devnet-node", inst.Name)
	assert.Equal(t, "node", inst.Service)

	call := strings.Join(mockExecutor.lastCall(), " ")
	assert.Contains(t, call, "docker create")
	assert.Contains(t, call, "--name devnet-node")
	assert.Contains(t, call, "--label chainpad.managed=true")
	assert.Contains(t, call, "--label chainpad.service=node")
	assert.Contains(t, call, "--network devnet")
	assert.Contains(t, call, "-e CHAINWEB_PORT=1848")
	assert.Contains(t, call, "-p 8082:1848")
	assert.Contains(t, call, "-v /tmp/data:/data")
}

func TestDockerRuntime_CreateValidation(t *testing.T) {
	runtime := NewDockerRuntime(&MockCommandExecutor{})

	_, err := runtime.Create(context.Background(), &CreateSpec{Image: "alpine"})
	var runtimeErr *RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, ErrorTypeConfigError, runtimeErr.Type)

	_, err = runtime.Create(context.Background(), &CreateSpec{Name: "node"})
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, ErrorTypeConfigError, runtimeErr.Type)
}

func TestDockerRuntime_CreateImageNotFound(t *testing.T) {
	mockExecutor := &MockCommandExecutor{
		commands: []MockCommand{
			{output: "Unable to find image: repository does not exist", err: fmt.Errorf("exit status 125")},
		},
	}

	runtime := NewDockerRuntime(mockExecutor)
	_, err := runtime.Create(context.Background(), &CreateSpec{
		Name:  "devnet-node",
		Image: "kadena/nope:latest",
	})

	var runtimeErr *RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, ErrorTypeImageNotFound, runtimeErr.Type)
}

func TestDockerRuntime_StopUsesGracePeriod(t *testing.T) {
	mockExecutor := &MockCommandExecutor{
		commands: []MockCommand{
			{output: "container-123"},
		},
	}

	runtime := NewDockerRuntime(mockExecutor)
	err := runtime.Stop(context.Background(), "container-123", 15*time.Second)
	require.NoError(t, err)

	assert.Equal(t, []string{"docker", "stop", "-t", "15", "container-123"}, mockExecutor.lastCall())
}

func TestDockerRuntime_Running(t *testing.T) {
	mockExecutor := &MockCommandExecutor{
		commands: []MockCommand{
			{output: "true"},
			{output: "Error: No such object: gone", err: fmt.Errorf("exit status 1")},
		},
	}

	runtime := NewDockerRuntime(mockExecutor)

	running, err := runtime.Running(context.Background(), "container-123")
	require.NoError(t, err)
	assert.True(t, running)

	// A missing container is simply not running
	running, err = runtime.Running(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestDockerRuntime_KillNotRunningIsNoop(t *testing.T) {
	mockExecutor := &MockCommandExecutor{
		commands: []MockCommand{
			{output: "Error: container abc is not running", err: fmt.Errorf("exit status 1")},
		},
	}

	runtime := NewDockerRuntime(mockExecutor)
	assert.NoError(t, runtime.Kill(context.Background(), "abc"))
}

func TestProcessRuntime_Lifecycle(t *testing.T) {
	runtime := NewProcessRuntime(nil)
	logPath := filepath.Join(t.TempDir(), "node.log")

	inst, err := runtime.Create(context.Background(), &CreateSpec{
		Name:    "pact-main",
		Service: "pact",
		Command: []string{"sh", "-c", "echo booted"},
		LogPath: logPath,
	})
	require.NoError(t, err)
	require.NotEmpty(t, inst.ID)

	require.NoError(t, runtime.Start(context.Background(), inst.ID))

	// Wait for the short-lived process to exit
	require.Eventually(t, func() bool {
		running, err := runtime.Running(context.Background(), inst.ID)
		return err == nil && !running
	}, 2*time.Second, 10*time.Millisecond)

	logs, err := runtime.Logs(context.Background(), inst.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "booted")

	require.NoError(t, runtime.Remove(context.Background(), inst.ID))
	_, err = runtime.Logs(context.Background(), inst.ID, 0)
	var runtimeErr *RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, ErrorTypeContainerNotFound, runtimeErr.Type)
}

func TestProcessRuntime_StopTerminates(t *testing.T) {
	runtime := NewProcessRuntime(nil)

	inst, err := runtime.Create(context.Background(), &CreateSpec{
		Name:    "pact-main",
		Service: "pact",
		Command: []string{"sleep", "30"},
		LogPath: filepath.Join(t.TempDir(), "node.log"),
	})
	require.NoError(t, err)
	require.NoError(t, runtime.Start(context.Background(), inst.ID))

	start := time.Now()
	require.NoError(t, runtime.Stop(context.Background(), inst.ID, 5*time.Second))
	assert.Less(t, time.Since(start), 3*time.Second, "SIGTERM should end sleep well before the grace deadline")

	running, err := runtime.Running(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestProcessRuntime_CreateMissingBinary(t *testing.T) {
	runtime := NewProcessRuntime(nil)

	_, err := runtime.Create(context.Background(), &CreateSpec{
		Name:    "pact-main",
		Command: []string{"definitely-not-a-binary-xyz"},
	})

	var runtimeErr *RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, ErrorTypeBinaryNotFound, runtimeErr.Type)
}

func TestHandleDelegates(t *testing.T) {
	mockExecutor := &MockCommandExecutor{
		commands: []MockCommand{
			{output: "container-123"},
			{output: "container-123"},
			{output: "container-123"},
		},
	}

	runtime := NewDockerRuntime(mockExecutor)
	inst, err := runtime.Create(context.Background(), &CreateSpec{
		Name:    "devnet-node",
		Service: "node",
		Image:   "kadena/devnet:latest",
	})
	require.NoError(t, err)

	handle := NewHandle(runtime, inst)
	assert.Equal(t, "container-123", handle.ID())
	assert.Equal(t, "node", handle.Service())
	assert.Equal(t, RuntimeTypeDocker, handle.RuntimeType())

	require.NoError(t, handle.Start(context.Background()))
	assert.Equal(t, []string{"docker", "start", "container-123"}, mockExecutor.lastCall())

	require.NoError(t, handle.Stop(context.Background(), 10*time.Second))
	assert.Equal(t, []string{"docker", "stop", "-t", "10", "container-123"}, mockExecutor.lastCall())
}

func TestTailLines(t *testing.T) {
	data := []byte("one\ntwo\nthree\nfour\n")

	assert.Equal(t, "three\nfour\n", string(tailLines(data, 2)))
	assert.Equal(t, string(data), string(tailLines(data, 10)))
	assert.Empty(t, tailLines(nil, 3))
}
