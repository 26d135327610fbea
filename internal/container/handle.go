package container

import (
	"context"
	"io"
	"time"
)

// Handle binds a created instance to the runtime that owns it, giving the
// orchestration layer a single object to drive a service's lifecycle with.
// A handle must only be used by its creating orchestrator.
type Handle struct {
	runtime Runtime
	inst    *Instance
}

// NewHandle creates a handle for an instance owned by runtime
func NewHandle(runtime Runtime, inst *Instance) *Handle {
	return &Handle{runtime: runtime, inst: inst}
}

// ID returns the runtime-assigned instance ID
func (h *Handle) ID() string {
	return h.inst.ID
}

// Service returns the logical service name
func (h *Handle) Service() string {
	return h.inst.Service
}

// RuntimeType returns the type of the owning runtime
func (h *Handle) RuntimeType() RuntimeType {
	return h.runtime.Type()
}

// Start starts the instance
func (h *Handle) Start(ctx context.Context) error {
	return h.runtime.Start(ctx, h.inst.ID)
}

// Stop stops the instance gracefully
func (h *Handle) Stop(ctx context.Context, grace time.Duration) error {
	return h.runtime.Stop(ctx, h.inst.ID, grace)
}

// Kill forcibly terminates the instance
func (h *Handle) Kill(ctx context.Context) error {
	return h.runtime.Kill(ctx, h.inst.ID)
}

// Remove removes the instance
func (h *Handle) Remove(ctx context.Context) error {
	return h.runtime.Remove(ctx, h.inst.ID)
}

// Running reports whether the instance is running
func (h *Handle) Running(ctx context.Context) (bool, error) {
	return h.runtime.Running(ctx, h.inst.ID)
}

// Exec executes a command inside the instance
func (h *Handle) Exec(ctx context.Context, command []string) ([]byte, error) {
	return h.runtime.Exec(ctx, h.inst.ID, command)
}

// Logs returns up to tail lines of collected output
func (h *Handle) Logs(ctx context.Context, tail int) ([]byte, error) {
	return h.runtime.Logs(ctx, h.inst.ID, tail)
}

// StreamLogs follows the instance's output
func (h *Handle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return h.runtime.StreamLogs(ctx, h.inst.ID)
}
