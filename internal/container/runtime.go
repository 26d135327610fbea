package container

import (
	"context"
	"fmt"
	"io"
	"time"
)

// RuntimeType represents the type of service runtime
type RuntimeType string

const (
	// RuntimeTypeDocker runs services as Docker containers
	RuntimeTypeDocker RuntimeType = "docker"
	// RuntimeTypeProcess runs services as local OS processes
	RuntimeTypeProcess RuntimeType = "process"
)

// Runtime defines the interface for service instance operations.
// It abstracts whether a service runs as a container or a local process.
type Runtime interface {
	// Create creates a new instance with the specified configuration.
	// The instance is not started.
	Create(ctx context.Context, spec *CreateSpec) (*Instance, error)

	// Start starts an instance by ID
	Start(ctx context.Context, id string) error

	// Stop stops an instance gracefully, waiting up to grace before giving up
	Stop(ctx context.Context, id string, grace time.Duration) error

	// Kill forcibly terminates an instance
	Kill(ctx context.Context, id string) error

	// Remove removes a stopped instance and its runtime state
	Remove(ctx context.Context, id string) error

	// Running reports whether the instance is currently running
	Running(ctx context.Context, id string) (bool, error)

	// Exec executes a command inside a running instance
	Exec(ctx context.Context, id string, command []string) ([]byte, error)

	// Logs returns up to tail lines of collected output (tail <= 0 means all)
	Logs(ctx context.Context, id string, tail int) ([]byte, error)

	// StreamLogs returns a reader that follows the instance's output.
	// Closing the reader stops the stream.
	StreamLogs(ctx context.Context, id string) (io.ReadCloser, error)

	// IsAvailable checks if the runtime is usable on this system
	IsAvailable(ctx context.Context) bool

	// Type returns the runtime type
	Type() RuntimeType
}

// CreateSpec holds configuration for creating a service instance
type CreateSpec struct {
	Name    string   // Instance name, unique within the runtime
	Service string   // Logical service name from the topology
	Network string   // Network the instance belongs to
	Image   string   // Container image (docker runtime only)
	Command []string // Command and arguments; overrides the image default
	EnvVars []string // Environment variables in KEY=VALUE format
	Volumes []string // Volume mounts in HOST:CONTAINER format
	Ports   []string // Port mappings in HOST:CONTAINER format
	WorkDir string   // Working directory for the command
	LogPath string   // Output capture file (process runtime only)
}

// Instance describes a created service instance
type Instance struct {
	ID        string
	Name      string
	Service   string
	Network   string
	Image     string
	Status    string
	Command   string
	Ports     map[string]string
	EnvVars   map[string]string
	CreatedAt string
}

// NewRuntime creates a runtime of the given type.
func NewRuntime(runtimeType RuntimeType, executor CommandExecutor) (Runtime, error) {
	if executor == nil {
		executor = &DefaultCommandExecutor{}
	}
	switch runtimeType {
	case RuntimeTypeDocker:
		return NewDockerRuntime(executor), nil
	case RuntimeTypeProcess:
		return NewProcessRuntime(executor), nil
	default:
		return nil, fmt.Errorf("unsupported runtime type: %s", runtimeType)
	}
}
