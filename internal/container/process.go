package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/xid"
)

// ProcessRuntime implements Runtime for local OS processes. It is used for
// services that ship as plain binaries rather than container images, such
// as a locally installed Pact server.
type ProcessRuntime struct {
	executor CommandExecutor

	mu        sync.Mutex
	processes map[string]*process
}

type process struct {
	spec    *CreateSpec
	cmd     *exec.Cmd
	logFile *os.File

	mu     sync.Mutex
	exited bool
	err    error
	done   chan struct{}
}

// NewProcessRuntime creates a new process runtime
func NewProcessRuntime(executor CommandExecutor) *ProcessRuntime {
	if executor == nil {
		executor = &DefaultCommandExecutor{}
	}
	return &ProcessRuntime{
		executor:  executor,
		processes: make(map[string]*process),
	}
}

// Type returns the runtime type
func (r *ProcessRuntime) Type() RuntimeType {
	return RuntimeTypeProcess
}

// IsAvailable always reports true; missing binaries surface at Create
func (r *ProcessRuntime) IsAvailable(ctx context.Context) bool {
	return true
}

// Create registers a process instance without starting it
func (r *ProcessRuntime) Create(ctx context.Context, spec *CreateSpec) (*Instance, error) {
	if len(spec.Command) == 0 {
		return nil, &RuntimeError{
			Type:      ErrorTypeConfigError,
			Operation: "create",
			Message:   "process command is required",
		}
	}
	if _, err := exec.LookPath(spec.Command[0]); err != nil {
		return nil, &RuntimeError{
			Type:       ErrorTypeBinaryNotFound,
			Operation:  "create",
			Message:    fmt.Sprintf("binary not found: %s", spec.Command[0]),
			Underlying: err,
		}
	}

	id := xid.New().String()

	r.mu.Lock()
	r.processes[id] = &process{spec: spec}
	r.mu.Unlock()

	return &Instance{
		ID:        id,
		Name:      spec.Name,
		Service:   spec.Service,
		Network:   spec.Network,
		Status:    "created",
		Command:   spec.Command[0],
		CreatedAt: time.Now().Format(time.RFC3339),
	}, nil
}

// Start spawns the registered process. Stdout and stderr are captured to
// the spec's log file.
func (r *ProcessRuntime) Start(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.processes[id]
	r.mu.Unlock()
	if !ok {
		return r.notFound("start", id)
	}

	spec := p.spec

	logPath := spec.LogPath
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), fmt.Sprintf("chainpad-%s.log", id))
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	// Background context: the process must outlive the start call
	cmd := r.executor.CommandContext(context.Background(), spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if len(spec.EnvVars) > 0 {
		cmd.Env = append(os.Environ(), spec.EnvVars...)
	}
	// Own process group so a stop sweeps children too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return &RuntimeError{
			Type:       ErrorTypeSpawnFailed,
			Operation:  "start",
			Message:    fmt.Sprintf("failed to spawn %s", spec.Command[0]),
			Underlying: err,
		}
	}

	p.mu.Lock()
	p.cmd = cmd
	p.logFile = logFile
	p.exited = false
	p.err = nil
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exited = true
		p.err = err
		p.mu.Unlock()
		logFile.Close()
		close(done)
	}()

	return nil
}

// Stop sends SIGTERM to the process group and waits up to grace for exit,
// escalating to SIGKILL if the deadline passes.
func (r *ProcessRuntime) Stop(ctx context.Context, id string, grace time.Duration) error {
	p, err := r.get("stop", id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	cmd, done, exited := p.cmd, p.done, p.exited
	p.mu.Unlock()
	if cmd == nil || exited {
		return nil
	}

	p.signal(syscall.SIGTERM)

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		p.signal(syscall.SIGKILL)
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill sends SIGKILL to the process group
func (r *ProcessRuntime) Kill(ctx context.Context, id string) error {
	p, err := r.get("kill", id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	cmd, done, exited := p.cmd, p.done, p.exited
	p.mu.Unlock()
	if cmd == nil || exited {
		return nil
	}

	p.signal(syscall.SIGKILL)
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Remove forgets a stopped process. The log file is kept for inspection.
func (r *ProcessRuntime) Remove(ctx context.Context, id string) error {
	p, err := r.get("remove", id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	exited := p.cmd == nil || p.exited
	p.mu.Unlock()
	if !exited {
		return &RuntimeError{
			Type:      ErrorTypeConfigError,
			Operation: "remove",
			Message:   "process is still running",
		}
	}

	r.mu.Lock()
	delete(r.processes, id)
	r.mu.Unlock()
	return nil
}

// Running reports whether the process is alive
func (r *ProcessRuntime) Running(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	p, ok := r.processes[id]
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && !p.exited, nil
}

// Exec is not supported for local processes
func (r *ProcessRuntime) Exec(ctx context.Context, id string, command []string) ([]byte, error) {
	return nil, &RuntimeError{
		Type:      ErrorTypeExecError,
		Operation: "exec",
		Message:   "exec is not supported for process instances",
	}
}

// Logs returns up to tail lines from the process log file
func (r *ProcessRuntime) Logs(ctx context.Context, id string, tail int) ([]byte, error) {
	p, err := r.get("logs", id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read process logs: %w", err)
	}
	if tail <= 0 {
		return data, nil
	}
	return tailLines(data, tail), nil
}

// StreamLogs follows the process log file until the reader is closed or
// the process exits and the file is drained.
func (r *ProcessRuntime) StreamLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	p, err := r.get("logs", id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p.logPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open process logs: %w", err)
	}

	return &fileFollower{file: f, proc: p, closed: make(chan struct{})}, nil
}

func (r *ProcessRuntime) get(op, id string) (*process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.processes[id]
	if !ok {
		return nil, r.notFound(op, id)
	}
	return p, nil
}

func (r *ProcessRuntime) notFound(op, id string) error {
	return &RuntimeError{
		Type:        ErrorTypeContainerNotFound,
		Operation:   op,
		ContainerID: id,
		Message:     fmt.Sprintf("process not found: %s", id),
	}
}

func (p *process) logPath() string {
	if p.spec.LogPath != "" {
		return p.spec.LogPath
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logFile != nil {
		return p.logFile.Name()
	}
	return ""
}

// signal delivers sig to the whole process group, falling back to the
// process itself when the group is gone.
func (p *process) signal(sig syscall.Signal) {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		cmd.Process.Signal(sig)
	}
}

// fileFollower reads a log file to EOF, then polls for appended data while
// the process is alive.
type fileFollower struct {
	file   *os.File
	proc   *process
	closed chan struct{}

	closeOnce sync.Once
}

func (f *fileFollower) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 || err != io.EOF {
			return n, err
		}

		f.proc.mu.Lock()
		exited := f.proc.exited
		f.proc.mu.Unlock()
		if exited {
			return 0, io.EOF
		}

		select {
		case <-f.closed:
			return 0, io.EOF
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (f *fileFollower) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return f.file.Close()
}

// tailLines returns the last n lines of data
func tailLines(data []byte, n int) []byte {
	if len(data) == 0 {
		return data
	}
	trimmed := bytes.TrimRight(data, "\n")
	idx := len(trimmed)
	for i := 0; i < n; i++ {
		next := bytes.LastIndexByte(trimmed[:idx], '\n')
		if next < 0 {
			return data[:]
		}
		idx = next
	}
	return data[idx+1:]
}
