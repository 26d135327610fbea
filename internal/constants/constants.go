// Package constants defines application-wide constants to avoid magic numbers
package constants

import "time"

// Network and Port Constants
const (
	// DefaultServerPort is the default port for the chainpad daemon API
	DefaultServerPort = 8080

	// DefaultPactServerPort is the default port for a local Pact execution server
	DefaultPactServerPort = 8081

	// DefaultDevnetAPIPort is the default host port for the devnet API entry service
	DefaultDevnetAPIPort = 8082

	// DefaultMiningTriggerPort is the default port for the on-demand mining endpoint
	DefaultMiningTriggerPort = 9999

	// PortScanBase is the first port tried when allocating a dynamic port
	PortScanBase = 20000

	// PortScanLimit is the number of ports scanned before allocation gives up
	PortScanLimit = 1000
)

// File System Permissions
const (
	// DirPermissions is the standard directory permissions for chainpad directories
	DirPermissions = 0755

	// FilePermissions is the standard file permissions for chainpad config files
	FilePermissions = 0644
)

// Database Configuration
const (
	// DefaultMaxOpenConnections is the default maximum number of database connections
	DefaultMaxOpenConnections = 25

	// DefaultMaxIdleConnections is the default maximum number of idle database connections
	DefaultMaxIdleConnections = 5

	// DefaultConnectionTimeout is the default database connection timeout
	DefaultConnectionTimeout = 5 * time.Minute

	// DefaultIdleTimeout is the default database idle connection timeout
	DefaultIdleTimeout = 1 * time.Minute
)

// HTTP Configuration
const (
	// DefaultHTTPClientTimeout is the default timeout for HTTP client requests
	DefaultHTTPClientTimeout = 30 * time.Second

	// DefaultLifecycleRequestTimeout bounds client calls that start, stop or
	// restart a network. It must comfortably exceed DefaultReadyTimeout plus
	// the per-service stop budget, or the client gives up on operations the
	// daemon goes on to complete
	DefaultLifecycleRequestTimeout = 5 * time.Minute

	// DefaultServerReadTimeout is the default server read timeout
	DefaultServerReadTimeout = 10 * time.Second

	// DefaultServerWriteTimeout is the default server write timeout
	DefaultServerWriteTimeout = 10 * time.Second

	// DefaultServerShutdownTimeout is the default server graceful shutdown timeout
	DefaultServerShutdownTimeout = 30 * time.Second

	// DaemonStopTimeout is how long `daemon stop` waits for a graceful exit
	// before killing the process
	DaemonStopTimeout = 10 * time.Second
)

// Orchestration Timeouts
const (
	// DefaultHealthCheckInterval is the default probe interval for service health checks
	DefaultHealthCheckInterval = 2 * time.Second

	// DefaultHealthCheckTimeout is the default timeout for a single health probe
	DefaultHealthCheckTimeout = 5 * time.Second

	// DefaultHealthCheckRetries is the default number of consecutive probe
	// failures before a service is considered unhealthy
	DefaultHealthCheckRetries = 3

	// DefaultHealthStartPeriod is the default grace period during which probe
	// failures do not count against the retry budget
	DefaultHealthStartPeriod = 10 * time.Second

	// DefaultReadyTimeout is how long the network facade waits for the primary
	// service to become healthy before reporting a startup failure
	DefaultReadyTimeout = 2 * time.Minute

	// DefaultStopGracePeriod is how long a graceful service stop may take
	// before it is escalated or reported as stuck
	DefaultStopGracePeriod = 15 * time.Second

	// DefaultKillTimeout bounds a forced kill or remove. It deliberately
	// never derives from the caller's context: escalation happens exactly
	// when the graceful budget is already spent
	DefaultKillTimeout = 10 * time.Second

	// DefaultMaxRestarts caps automatic restarts of a failed service
	DefaultMaxRestarts = 3
)

// Mining Scheduler Defaults
const (
	// DefaultBatchPeriod is the window within which confirmation requests from
	// concurrent transaction submissions are merged into one demand event
	DefaultBatchPeriod = 200 * time.Millisecond

	// DefaultTriggerPeriod is the idle re-trigger period for the demand
	// scheduler while outstanding confirmations remain
	DefaultTriggerPeriod = 1 * time.Second
)

// Logging and Output Limits
const (
	// DefaultLogTailLines is the default number of log lines to display
	DefaultLogTailLines = 100

	// MaxErrorMessageLength is the maximum length for error messages before truncation
	MaxErrorMessageLength = 500
)

// Network Port Validation
const (
	// MinPortNumber is the minimum valid TCP port number
	MinPortNumber = 1

	// MaxPortNumber is the maximum valid TCP port number
	MaxPortNumber = 65535
)
