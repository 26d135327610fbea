// Package validation guards the identifiers chainpad hands to the container
// runtime against injection.
package validation

import (
	"regexp"
	"strings"

	"chainpad/internal/errors"
)

var (
	// serviceNameRegex matches names usable as docker container names and
	// DNS labels inside a docker network
	serviceNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

	// containerIDRegex validates container IDs and names
	containerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

	// envVarKeyRegex validates environment variable keys
	envVarKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ServiceName validates a topology service name. Names become container
// names and in-network hostnames, so they are restricted to lowercase
// DNS-safe characters.
func ServiceName(name string) error {
	if name == "" {
		return errors.ValidationFailed("service_name", "cannot be empty")
	}
	if len(name) > 63 {
		return errors.ValidationFailed("service_name", "too long (max 63 characters)")
	}
	if !serviceNameRegex.MatchString(name) {
		return errors.ValidationFailed("service_name",
			"must start with a letter or digit and contain only lowercase letters, digits, '_', '.' and '-'")
	}
	return nil
}

// ContainerID validates a container ID or name before it is passed to the
// runtime CLI.
func ContainerID(id string) error {
	if id == "" {
		return errors.ValidationFailed("container_id", "cannot be empty")
	}
	if len(id) > 255 {
		return errors.ValidationFailed("container_id", "too long (max 255 characters)")
	}
	if !containerIDRegex.MatchString(id) {
		return errors.ValidationFailed("container_id", "contains invalid characters")
	}
	return nil
}

// EnvironmentVariable validates environment variable format (KEY=VALUE)
func EnvironmentVariable(envVar string) error {
	parts := strings.SplitN(envVar, "=", 2)
	if len(parts) != 2 {
		return errors.ValidationFailed("environment_variable", "must be in KEY=VALUE format")
	}
	if parts[0] == "" {
		return errors.ValidationFailed("environment_variable", "key cannot be empty")
	}
	if !envVarKeyRegex.MatchString(parts[0]) {
		return errors.ValidationFailed("environment_variable",
			"key must contain only letters, numbers, and underscores")
	}
	return nil
}

// PortNumber validates a single port number
func PortNumber(port int) error {
	if port <= 0 || port > 65535 {
		return errors.ValidationFailed("port", "must be between 1 and 65535")
	}
	return nil
}
