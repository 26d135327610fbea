// Package errors provides typed error definitions for chainpad.
// This package consolidates error handling and provides structured error types
// that can be used for better error classification and handling.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique identifier for different error types
type ErrorCode string

const (
	// Configuration errors
	ErrConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrConfigParse      ErrorCode = "CONFIG_PARSE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrProfileUnknown   ErrorCode = "PROFILE_UNKNOWN"
	ErrTopologyInvalid  ErrorCode = "TOPOLOGY_INVALID"

	// Orchestration errors
	ErrCycleDetected       ErrorCode = "CYCLE_DETECTED"
	ErrServiceNotFound     ErrorCode = "SERVICE_NOT_FOUND"
	ErrServiceStartFailed  ErrorCode = "SERVICE_START_FAILED"
	ErrServiceStopFailed   ErrorCode = "SERVICE_STOP_FAILED"
	ErrGracefulStopTimeout ErrorCode = "GRACEFUL_STOP_TIMEOUT"
	ErrHealthCheckTimeout  ErrorCode = "HEALTH_CHECK_TIMEOUT"
	ErrOrchestratorStopped ErrorCode = "ORCHESTRATOR_STOPPED"

	// Network facade errors
	ErrNetworkAlreadyRunning ErrorCode = "NETWORK_ALREADY_RUNNING"
	ErrNetworkNotRunning     ErrorCode = "NETWORK_NOT_RUNNING"
	ErrNetworkStartFailed    ErrorCode = "NETWORK_START_FAILED"

	// Port allocation errors
	ErrPortUnavailable ErrorCode = "PORT_UNAVAILABLE"
	ErrPortExhausted   ErrorCode = "PORT_EXHAUSTED"
	ErrInvalidPort     ErrorCode = "INVALID_PORT"

	// Runtime (container/process) errors
	ErrRuntimeUnavailable    ErrorCode = "RUNTIME_UNAVAILABLE"
	ErrContainerNotFound     ErrorCode = "CONTAINER_NOT_FOUND"
	ErrContainerCreateFailed ErrorCode = "CONTAINER_CREATE_FAILED"
	ErrContainerStartFailed  ErrorCode = "CONTAINER_START_FAILED"
	ErrContainerStopFailed   ErrorCode = "CONTAINER_STOP_FAILED"
	ErrContainerNotRunning   ErrorCode = "CONTAINER_NOT_RUNNING"
	ErrProcessSpawnFailed    ErrorCode = "PROCESS_SPAWN_FAILED"

	// Mining scheduler errors
	ErrSchedulerClosed ErrorCode = "SCHEDULER_CLOSED"
	ErrMiningFailed    ErrorCode = "MINING_FAILED"

	// Database errors
	ErrDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	ErrDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	ErrDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	ErrSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"

	// Validation errors
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidState     ErrorCode = "INVALID_STATE"

	// Internal errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrTimeout      ErrorCode = "TIMEOUT"
	ErrCancelled    ErrorCode = "CANCELLED"
	ErrShuttingDown ErrorCode = "SHUTTING_DOWN"
	ErrNotFound     ErrorCode = "NOT_FOUND"
)

// ChainpadError represents a structured error with additional context
type ChainpadError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *ChainpadError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *ChainpadError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *ChainpadError) WithContext(key string, value interface{}) *ChainpadError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause error
func (e *ChainpadError) WithCause(cause error) *ChainpadError {
	e.Cause = cause
	return e
}

// GetHTTPStatus returns the appropriate HTTP status code for this error
func (e *ChainpadError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}

	// Default status codes based on error type
	switch e.Code {
	case ErrConfigNotFound, ErrServiceNotFound, ErrContainerNotFound, ErrSessionNotFound, ErrNotFound, ErrProfileUnknown:
		return http.StatusNotFound
	case ErrValidationFailed, ErrInvalidInput, ErrInvalidPort, ErrConfigInvalid, ErrTopologyInvalid, ErrCycleDetected:
		return http.StatusBadRequest
	case ErrNetworkAlreadyRunning, ErrNetworkNotRunning:
		return http.StatusConflict
	case ErrTimeout, ErrHealthCheckTimeout, ErrGracefulStopTimeout:
		return http.StatusRequestTimeout
	case ErrShuttingDown, ErrSchedulerClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new ChainpadError
func New(code ErrorCode, message string) *ChainpadError {
	return &ChainpadError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails creates a new ChainpadError with details
func NewWithDetails(code ErrorCode, message, details string) *ChainpadError {
	return &ChainpadError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap creates a new ChainpadError that wraps an existing error
func Wrap(code ErrorCode, message string, cause error) *ChainpadError {
	return &ChainpadError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetails creates a new ChainpadError with details that wraps an existing error
func WrapWithDetails(code ErrorCode, message, details string, cause error) *ChainpadError {
	return &ChainpadError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsChainpadError checks if an error is a ChainpadError
func IsChainpadError(err error) bool {
	_, ok := err.(*ChainpadError)
	return ok
}

// GetCode extracts the error code from an error, if it's a ChainpadError
func GetCode(err error) ErrorCode {
	var ce *ChainpadError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// HasCode checks if an error has a specific error code
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// Common pre-defined errors for consistency
var (
	// Network facade errors
	ErrNetworkAlreadyRunningError = New(ErrNetworkAlreadyRunning, "network is already running")
	ErrNetworkNotRunningError     = New(ErrNetworkNotRunning, "network is not running")

	// Scheduler errors
	ErrSchedulerClosedError = New(ErrSchedulerClosed, "demand scheduler is closed")

	// Runtime errors
	ErrContainerNotRunningError = New(ErrContainerNotRunning, "container is not running")

	// Validation errors
	ErrEmptyInput       = New(ErrInvalidInput, "input cannot be empty")
	ErrInvalidPortError = New(ErrInvalidPort, "port number is invalid")
)
