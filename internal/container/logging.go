package container

import (
	"chainpad/internal/logger"
)

// LogRuntimeError logs a runtime error with structured fields
func LogRuntimeError(err error, operation string) {
	if err == nil {
		return
	}

	fields := logger.Fields{
		"operation": operation,
	}

	if runtimeErr, ok := err.(*RuntimeError); ok {
		fields["error_type"] = string(runtimeErr.Type)
		if runtimeErr.ContainerID != "" {
			fields["instance_id"] = runtimeErr.ContainerID
		}
		if runtimeErr.Output != "" && len(runtimeErr.Output) < 1000 {
			fields["runtime_output"] = runtimeErr.Output
		}
		if runtimeErr.IsRetryable() {
			fields["retryable"] = true
		}
	}

	logger.WithFields(fields).WithError(err).Error("Runtime operation failed")
}

// LogRuntimeWarning logs a runtime warning with structured fields
func LogRuntimeWarning(err error, operation string) {
	if err == nil {
		return
	}

	fields := logger.Fields{
		"operation": operation,
	}

	if runtimeErr, ok := err.(*RuntimeError); ok {
		fields["error_type"] = string(runtimeErr.Type)
		if runtimeErr.ContainerID != "" {
			fields["instance_id"] = runtimeErr.ContainerID
		}
	}

	logger.WithFields(fields).WithError(err).Warn("Runtime operation warning")
}
