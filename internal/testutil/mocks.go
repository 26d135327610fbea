package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"chainpad/internal/container"
)

// MockRuntime is an in-memory implementation of container.Runtime for
// testing orchestration logic without docker or real processes.
type MockRuntime struct {
	mu        sync.RWMutex
	instances map[string]*mockInstance
	calls     []string
	errors    map[string]error
	nextID    int

	// StopFn overrides Stop when set, e.g. to simulate a stuck stop
	StopFn func(ctx context.Context, id string, grace time.Duration) error

	failCreate map[string]error
}

type mockInstance struct {
	inst    *container.Instance
	running bool
	logs    bytes.Buffer
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		instances: make(map[string]*mockInstance),
		errors:    make(map[string]error),
		nextID:    1,
	}
}

// SetError sets an error to be returned for a specific method
func (m *MockRuntime) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// FailCreate makes Create fail for one service only
func (m *MockRuntime) FailCreate(service string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate == nil {
		m.failCreate = make(map[string]error)
	}
	m.failCreate[service] = err
}

// Calls returns the recorded call log as "method service" strings
func (m *MockRuntime) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}

// CallsFor returns the recorded service names for one method
func (m *MockRuntime) CallsFor(method string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	prefix := method + " "
	for _, c := range m.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}

// WriteLogs appends data to an instance's log buffer
func (m *MockRuntime) WriteLogs(id string, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mi, ok := m.instances[id]; ok {
		mi.logs.WriteString(data)
	}
}

func (m *MockRuntime) record(method, id string) {
	m.calls = append(m.calls, fmt.Sprintf("%s %s", method, id))
}

func (m *MockRuntime) Type() container.RuntimeType {
	return container.RuntimeType("mock")
}

func (m *MockRuntime) IsAvailable(ctx context.Context) bool {
	return true
}

func (m *MockRuntime) Create(ctx context.Context, spec *container.CreateSpec) (*container.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create", spec.Service)
	if err := m.errors["create"]; err != nil {
		return nil, err
	}
	if err := m.failCreate[spec.Service]; err != nil {
		return nil, err
	}

	id := fmt.Sprintf("mock-%d", m.nextID)
	m.nextID++
	inst := &container.Instance{
		ID:      id,
		Name:    spec.Name,
		Service: spec.Service,
		Network: spec.Network,
		Image:   spec.Image,
		Status:  "created",
	}
	m.instances[id] = &mockInstance{inst: inst}
	return inst, nil
}

func (m *MockRuntime) Start(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start", m.serviceLocked(id))
	if err := m.errors["start"]; err != nil {
		return err
	}
	mi, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("instance not found: %s", id)
	}
	mi.running = true
	return nil
}

func (m *MockRuntime) Stop(ctx context.Context, id string, grace time.Duration) error {
	if m.StopFn != nil {
		return m.StopFn(ctx, id, grace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("stop", m.serviceLocked(id))
	if err := m.errors["stop"]; err != nil {
		return err
	}
	if mi, ok := m.instances[id]; ok {
		mi.running = false
	}
	return nil
}

func (m *MockRuntime) Kill(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("kill", m.serviceLocked(id))
	if err := m.errors["kill"]; err != nil {
		return err
	}
	if mi, ok := m.instances[id]; ok {
		mi.running = false
	}
	return nil
}

func (m *MockRuntime) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("remove", m.serviceLocked(id))
	if err := m.errors["remove"]; err != nil {
		return err
	}
	delete(m.instances, id)
	return nil
}

func (m *MockRuntime) Running(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mi, ok := m.instances[id]
	return ok && mi.running, nil
}

func (m *MockRuntime) Exec(ctx context.Context, id string, command []string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("exec", m.serviceLocked(id))
	if err := m.errors["exec"]; err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *MockRuntime) Logs(ctx context.Context, id string, tail int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errors["logs"]; err != nil {
		return nil, err
	}
	mi, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	return mi.logs.Bytes(), nil
}

func (m *MockRuntime) StreamLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errors["stream_logs"]; err != nil {
		return nil, err
	}
	mi, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	return io.NopCloser(bytes.NewReader(mi.logs.Bytes())), nil
}

func (m *MockRuntime) serviceLocked(id string) string {
	if mi, ok := m.instances[id]; ok {
		return mi.inst.Service
	}
	return id
}
