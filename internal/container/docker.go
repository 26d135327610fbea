package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"chainpad/internal/validation"
)

// DockerRuntime implements Runtime on top of the docker CLI
type DockerRuntime struct {
	executor CommandExecutor
}

// NewDockerRuntime creates a new Docker runtime
func NewDockerRuntime(executor CommandExecutor) *DockerRuntime {
	if executor == nil {
		executor = &DefaultCommandExecutor{}
	}
	return &DockerRuntime{executor: executor}
}

// Type returns the runtime type
func (r *DockerRuntime) Type() RuntimeType {
	return RuntimeTypeDocker
}

// IsAvailable checks if Docker is available on the system
func (r *DockerRuntime) IsAvailable(ctx context.Context) bool {
	cmd := r.executor.CommandContext(ctx, "docker", "--version")
	return cmd.Run() == nil
}

// List returns all managed instances
func (r *DockerRuntime) List(ctx context.Context) ([]*Instance, error) {
	cmd := r.executor.CommandContext(ctx, "docker", "ps", "-a",
		"--filter", "label=chainpad.managed=true", "--format", "json")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	instances := []*Instance{}
	if len(output) == 0 {
		return instances, nil
	}

	// Docker returns newline-separated JSON objects, not a JSON array
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}

		var dockerContainer map[string]interface{}
		if err := json.Unmarshal([]byte(line), &dockerContainer); err != nil {
			// Skip malformed JSON lines
			continue
		}

		inst := &Instance{
			ID:      getStringField(dockerContainer, "ID"),
			Name:    strings.TrimPrefix(getStringField(dockerContainer, "Names"), "/"),
			Image:   getStringField(dockerContainer, "Image"),
			Status:  getStringField(dockerContainer, "Status"),
			Command: getStringField(dockerContainer, "Command"),
		}

		if createdAt := getStringField(dockerContainer, "CreatedAt"); createdAt != "" {
			inst.CreatedAt = createdAt
		}

		if ports := getStringField(dockerContainer, "Ports"); ports != "" {
			inst.Ports = parseDockerPorts(ports)
		}

		if labels, err := r.getContainerLabels(ctx, inst.ID); err == nil {
			inst.Service = labels["chainpad.service"]
			inst.Network = labels["chainpad.network"]
		}

		instances = append(instances, inst)
	}

	return instances, nil
}

// Create creates a new container without starting it
func (r *DockerRuntime) Create(ctx context.Context, spec *CreateSpec) (*Instance, error) {
	if spec.Name == "" {
		return nil, &RuntimeError{
			Type:      ErrorTypeConfigError,
			Operation: "create",
			Message:   "instance name is required",
		}
	}
	if err := validation.ContainerID(spec.Name); err != nil {
		return nil, &RuntimeError{
			Type:      ErrorTypeConfigError,
			Operation: "create",
			Message:   fmt.Sprintf("invalid instance name: %v", err),
		}
	}
	if spec.Image == "" {
		return nil, &RuntimeError{
			Type:      ErrorTypeConfigError,
			Operation: "create",
			Message:   "container image is required",
		}
	}
	for _, env := range spec.EnvVars {
		if err := validation.EnvironmentVariable(env); err != nil {
			return nil, &RuntimeError{
				Type:      ErrorTypeConfigError,
				Operation: "create",
				Message:   fmt.Sprintf("invalid environment variable: %v", err),
			}
		}
	}

	args := []string{
		"create",
		"--name", spec.Name,
		"--label", "chainpad.managed=true",
		"--label", fmt.Sprintf("chainpad.network=%s", spec.Network),
		"--label", fmt.Sprintf("chainpad.service=%s", spec.Service),
	}

	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}

	if spec.WorkDir != "" {
		args = append(args, "-w", spec.WorkDir)
	}

	for _, env := range spec.EnvVars {
		args = append(args, "-e", env)
	}

	for _, volume := range spec.Volumes {
		args = append(args, "-v", volume)
	}

	for _, port := range spec.Ports {
		args = append(args, "-p", port)
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	cmd := r.executor.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "repository does not exist") || strings.Contains(outputStr, "pull access denied") {
			return nil, &RuntimeError{
				Type:       ErrorTypeImageNotFound,
				Operation:  "create",
				Message:    fmt.Sprintf("image not found: %s", spec.Image),
				Underlying: err,
				Output:     outputStr,
			}
		}
		if strings.Contains(outputStr, "is already in use") {
			return nil, &RuntimeError{
				Type:       ErrorTypeConfigError,
				Operation:  "create",
				Message:    fmt.Sprintf("container name %s already in use", spec.Name),
				Underlying: err,
				Output:     outputStr,
			}
		}
		return nil, &RuntimeError{
			Type:       parseDockerError(outputStr, err),
			Operation:  "create",
			Message:    "failed to create container",
			Underlying: err,
			Output:     outputStr,
		}
	}

	return &Instance{
		ID:        strings.TrimSpace(string(output)),
		Name:      spec.Name,
		Service:   spec.Service,
		Network:   spec.Network,
		Image:     spec.Image,
		Status:    "created",
		CreatedAt: time.Now().Format(time.RFC3339),
	}, nil
}

// Start starts a container
func (r *DockerRuntime) Start(ctx context.Context, id string) error {
	cmd := r.executor.CommandContext(ctx, "docker", "start", id)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &RuntimeError{
			Type:        parseDockerError(string(output), err),
			Operation:   "start",
			ContainerID: id,
			Message:     "failed to start container",
			Underlying:  err,
			Output:      string(output),
		}
	}
	return nil
}

// Stop stops a container, giving it up to grace to exit cleanly
func (r *DockerRuntime) Stop(ctx context.Context, id string, grace time.Duration) error {
	seconds := int(grace / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	cmd := r.executor.CommandContext(ctx, "docker", "stop", "-t", strconv.Itoa(seconds), id)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &RuntimeError{
			Type:        parseDockerError(string(output), err),
			Operation:   "stop",
			ContainerID: id,
			Message:     "failed to stop container",
			Underlying:  err,
			Output:      string(output),
		}
	}
	return nil
}

// Kill forcibly terminates a container
func (r *DockerRuntime) Kill(ctx context.Context, id string) error {
	cmd := r.executor.CommandContext(ctx, "docker", "kill", id)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Killing an already-exited container is not an error for callers
		if strings.Contains(string(output), "is not running") {
			return nil
		}
		return &RuntimeError{
			Type:        parseDockerError(string(output), err),
			Operation:   "kill",
			ContainerID: id,
			Message:     "failed to kill container",
			Underlying:  err,
			Output:      string(output),
		}
	}
	return nil
}

// Remove removes a container
func (r *DockerRuntime) Remove(ctx context.Context, id string) error {
	cmd := r.executor.CommandContext(ctx, "docker", "rm", "-f", id)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &RuntimeError{
			Type:        parseDockerError(string(output), err),
			Operation:   "remove",
			ContainerID: id,
			Message:     "failed to remove container",
			Underlying:  err,
			Output:      string(output),
		}
	}
	return nil
}

// Running reports whether a container is running
func (r *DockerRuntime) Running(ctx context.Context, id string) (bool, error) {
	cmd := r.executor.CommandContext(ctx, "docker", "inspect", "--format", "{{.State.Running}}", id)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such") {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}
	return strings.TrimSpace(string(output)) == "true", nil
}

// Exec executes a command in a container
func (r *DockerRuntime) Exec(ctx context.Context, id string, command []string) ([]byte, error) {
	args := append([]string{"exec", id}, command...)
	cmd := r.executor.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &RuntimeError{
			Type:        parseDockerError(string(output), err),
			Operation:   "exec",
			ContainerID: id,
			Message:     "failed to exec in container",
			Underlying:  err,
			Output:      string(output),
		}
	}
	return output, nil
}

// Logs returns collected output from a container
func (r *DockerRuntime) Logs(ctx context.Context, id string, tail int) ([]byte, error) {
	args := []string{"logs"}
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	args = append(args, id)

	cmd := r.executor.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to get container logs: %w, output: %s", err, string(output))
	}
	return output, nil
}

// StreamLogs follows a container's output. Closing the returned reader
// terminates the underlying docker logs process.
func (r *DockerRuntime) StreamLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create log pipe: %w", err)
	}

	cmd := r.executor.CommandContext(ctx, "docker", "logs", "-f", "--tail", "100", id)
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &RuntimeError{
			Type:        ErrorTypeRuntimeNotFound,
			Operation:   "logs",
			ContainerID: id,
			Message:     "failed to start log stream",
			Underlying:  err,
		}
	}

	// The child holds its own copy of the write end; close ours so the
	// reader sees EOF when the child exits.
	pw.Close()

	go func() {
		cmd.Wait()
	}()

	return &logStream{reader: pr, stop: func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}}, nil
}

// GetInfo returns detailed information about a container
func (r *DockerRuntime) GetInfo(ctx context.Context, id string) (*Instance, error) {
	cmd := r.executor.CommandContext(ctx, "docker", "inspect", id)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	// Docker inspect returns an array of container objects
	var dockerContainers []map[string]interface{}
	if err := json.Unmarshal(output, &dockerContainers); err != nil {
		return nil, fmt.Errorf("failed to parse container info: %w", err)
	}

	if len(dockerContainers) == 0 {
		return nil, &RuntimeError{
			Type:        ErrorTypeContainerNotFound,
			Operation:   "inspect",
			ContainerID: id,
			Message:     "container not found",
		}
	}

	dockerContainer := dockerContainers[0]

	inst := &Instance{
		ID:     getStringField(dockerContainer, "Id"),
		Name:   strings.TrimPrefix(getStringField(dockerContainer, "Name"), "/"),
		Status: getDockerStatus(dockerContainer),
	}

	if config, ok := dockerContainer["Config"].(map[string]interface{}); ok {
		inst.Image = getStringField(config, "Image")
		if cmd, ok := config["Cmd"].([]interface{}); ok && len(cmd) > 0 {
			cmdParts := make([]string, len(cmd))
			for i, part := range cmd {
				if str, ok := part.(string); ok {
					cmdParts[i] = str
				}
			}
			inst.Command = strings.Join(cmdParts, " ")
		}

		if envVars, ok := config["Env"].([]interface{}); ok {
			inst.EnvVars = parseDockerEnvVars(envVars)
		}

		if labels, ok := config["Labels"].(map[string]interface{}); ok {
			inst.Service = getStringField(labels, "chainpad.service")
			inst.Network = getStringField(labels, "chainpad.network")
		}
	}

	if created := getStringField(dockerContainer, "Created"); created != "" {
		inst.CreatedAt = created
	}

	if networkSettings, ok := dockerContainer["NetworkSettings"].(map[string]interface{}); ok {
		if ports, ok := networkSettings["Ports"].(map[string]interface{}); ok {
			inst.Ports = parseDockerInspectPorts(ports)
		}
	}

	return inst, nil
}

// EnsureNetwork creates a docker network if it does not already exist
func (r *DockerRuntime) EnsureNetwork(ctx context.Context, name string) error {
	cmd := r.executor.CommandContext(ctx, "docker", "network", "inspect", name)
	if cmd.Run() == nil {
		return nil
	}

	cmd = r.executor.CommandContext(ctx, "docker", "network", "create",
		"--label", "chainpad.managed=true", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w, output: %s", name, err, string(output))
	}
	return nil
}

// RemoveNetwork removes a docker network, ignoring a missing one
func (r *DockerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	cmd := r.executor.CommandContext(ctx, "docker", "network", "rm", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "not found") {
			return nil
		}
		return fmt.Errorf("failed to remove network %s: %w, output: %s", name, err, string(output))
	}
	return nil
}

// logStream wraps a pipe reader so that Close also terminates the
// process feeding the pipe.
type logStream struct {
	reader io.ReadCloser
	stop   func()
}

func (s *logStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *logStream) Close() error {
	s.stop()
	return s.reader.Close()
}

// Helper functions

// getDockerStatus extracts status from Docker container state
func getDockerStatus(dockerContainer map[string]interface{}) string {
	if state, ok := dockerContainer["State"].(map[string]interface{}); ok {
		if status := getStringField(state, "Status"); status != "" {
			return status
		}
	}
	return "unknown"
}

// parseDockerPorts parses Docker port string format (e.g., "0.0.0.0:8080->80/tcp")
func parseDockerPorts(portsStr string) map[string]string {
	portMap := make(map[string]string)

	if portsStr == "" {
		return portMap
	}

	mappings := strings.Split(portsStr, ", ")
	for _, mapping := range mappings {
		if strings.Contains(mapping, "->") {
			parts := strings.Split(mapping, "->")
			if len(parts) == 2 {
				hostPart := parts[0]
				containerPart := strings.Split(parts[1], "/")[0]

				if strings.Contains(hostPart, ":") {
					hostPortParts := strings.Split(hostPart, ":")
					if len(hostPortParts) > 0 {
						hostPort := hostPortParts[len(hostPortParts)-1]
						portMap[containerPart] = hostPort
					}
				}
			}
		}
	}

	return portMap
}

// getContainerLabels gets labels from a container using docker inspect
func (r *DockerRuntime) getContainerLabels(ctx context.Context, id string) (map[string]string, error) {
	cmd := r.executor.CommandContext(ctx, "docker", "inspect", id, "--format", "{{json .Config.Labels}}")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get container labels: %w", err)
	}

	var labels map[string]string
	if err := json.Unmarshal(output, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse container labels: %w", err)
	}

	return labels, nil
}

// parseDockerEnvVars parses environment variables from docker inspect Config.Env
func parseDockerEnvVars(envVars []interface{}) map[string]string {
	envArray := make([]string, 0, len(envVars))
	for _, env := range envVars {
		if envStr, ok := env.(string); ok {
			envArray = append(envArray, envStr)
		}
	}
	return parseEnvArray(envArray)
}

// parseEnvArray parses an array of KEY=VALUE strings into a map
func parseEnvArray(envArray []string) map[string]string {
	envMap := make(map[string]string)
	for _, env := range envArray {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}
	return envMap
}

// parseDockerInspectPorts parses port mappings from docker inspect output
func parseDockerInspectPorts(ports map[string]interface{}) map[string]string {
	portMap := make(map[string]string)

	for containerPort, hostBindings := range ports {
		cleanContainerPort := strings.Split(containerPort, "/")[0]

		if bindings, ok := hostBindings.([]interface{}); ok && len(bindings) > 0 {
			if binding, ok := bindings[0].(map[string]interface{}); ok {
				if hostPort := getStringField(binding, "HostPort"); hostPort != "" {
					portMap[cleanContainerPort] = hostPort
				}
			}
		}
	}

	return portMap
}

// getStringField safely extracts a string field from a map
func getStringField(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
