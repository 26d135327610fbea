package errors

import "fmt"

// Configuration Errors
func ConfigNotFound(path string) *ChainpadError {
	return NewWithDetails(ErrConfigNotFound, "Configuration file not found", fmt.Sprintf("Path: %s", path))
}

func ConfigInvalid(reason string) *ChainpadError {
	return NewWithDetails(ErrConfigInvalid, "Invalid configuration", reason)
}

func ConfigParseError(cause error) *ChainpadError {
	return Wrap(ErrConfigParse, "Failed to parse configuration", cause)
}

func ProfileUnknown(name string) *ChainpadError {
	return NewWithDetails(ErrProfileUnknown, "Unknown network profile", fmt.Sprintf("Profile: %s", name))
}

func TopologyInvalid(reason string) *ChainpadError {
	return NewWithDetails(ErrTopologyInvalid, "Invalid network topology", reason)
}

// Orchestration Errors
func CycleDetected(ids []string) *ChainpadError {
	return NewWithDetails(ErrCycleDetected, "Dependency cycle detected",
		fmt.Sprintf("Services: %v", ids))
}

func ServiceNotFound(id string) *ChainpadError {
	return NewWithDetails(ErrServiceNotFound, "Service not found", fmt.Sprintf("Service: %s", id))
}

func ServiceStartFailed(id string, cause error) *ChainpadError {
	return WrapWithDetails(ErrServiceStartFailed, "Failed to start service",
		fmt.Sprintf("Service: %s", id), cause)
}

func ServiceStopFailed(id string, cause error) *ChainpadError {
	return WrapWithDetails(ErrServiceStopFailed, "Failed to stop service",
		fmt.Sprintf("Service: %s", id), cause)
}

func GracefulStopTimeout(id string) *ChainpadError {
	return NewWithDetails(ErrGracefulStopTimeout, "Service did not stop within its grace period",
		fmt.Sprintf("Service: %s", id))
}

func HealthCheckTimeout(id string) *ChainpadError {
	return NewWithDetails(ErrHealthCheckTimeout, "Timed out waiting for service to become healthy",
		fmt.Sprintf("Service: %s", id))
}

// Port Allocation Errors
func PortUnavailable(port int) *ChainpadError {
	return NewWithDetails(ErrPortUnavailable, "Port is already in use",
		fmt.Sprintf("Port: %d", port))
}

func PortExhausted(base, limit int) *ChainpadError {
	return NewWithDetails(ErrPortExhausted, "No free port found",
		fmt.Sprintf("Scanned: %d-%d", base, base+limit))
}

// Runtime Errors
func RuntimeUnavailable(runtime string) *ChainpadError {
	return NewWithDetails(ErrRuntimeUnavailable, "Runtime is not available on this system",
		fmt.Sprintf("Runtime: %s", runtime))
}

func ContainerNotFound(id string) *ChainpadError {
	return NewWithDetails(ErrContainerNotFound, "Container not found", fmt.Sprintf("ID: %s", id))
}

func ContainerCreateFailed(cause error) *ChainpadError {
	return Wrap(ErrContainerCreateFailed, "Failed to create container", cause)
}

func ContainerStartFailed(id string, cause error) *ChainpadError {
	return WrapWithDetails(ErrContainerStartFailed, "Failed to start container",
		fmt.Sprintf("Container ID: %s", id), cause)
}

func ContainerStopFailed(id string, cause error) *ChainpadError {
	return WrapWithDetails(ErrContainerStopFailed, "Failed to stop container",
		fmt.Sprintf("Container ID: %s", id), cause)
}

func ProcessSpawnFailed(command string, cause error) *ChainpadError {
	return WrapWithDetails(ErrProcessSpawnFailed, "Failed to spawn process",
		fmt.Sprintf("Command: %s", command), cause)
}

// Mining Errors
func MiningFailed(chains []uint32, cause error) *ChainpadError {
	return WrapWithDetails(ErrMiningFailed, "Failed to trigger block production",
		fmt.Sprintf("Chains: %v", chains), cause)
}

// Database Errors
func DatabaseConnectionError(cause error) *ChainpadError {
	return Wrap(ErrDatabaseConnection, "Database connection failed", cause)
}

func DatabaseQueryError(query string, cause error) *ChainpadError {
	return WrapWithDetails(ErrDatabaseQuery, "Database query failed",
		fmt.Sprintf("Query: %s", query), cause)
}

func DatabaseMigrationError(cause error) *ChainpadError {
	return Wrap(ErrDatabaseMigration, "Database migration failed", cause)
}

func SessionNotFound(id string) *ChainpadError {
	return NewWithDetails(ErrSessionNotFound, "Network session not found", fmt.Sprintf("Session: %s", id))
}

// Validation Errors
func ValidationFailed(field, reason string) *ChainpadError {
	return NewWithDetails(ErrValidationFailed, "Validation failed",
		fmt.Sprintf("Field: %s, Reason: %s", field, reason))
}

func InvalidInput(field string) *ChainpadError {
	return NewWithDetails(ErrInvalidInput, "Invalid input", fmt.Sprintf("Field: %s", field))
}

// Internal Errors
func Internal(message string, cause error) *ChainpadError {
	return Wrap(ErrInternal, message, cause)
}

func Timeout(operation string) *ChainpadError {
	return NewWithDetails(ErrTimeout, "Operation timed out", fmt.Sprintf("Operation: %s", operation))
}
