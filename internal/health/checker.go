package health

import (
	"context"
	"time"

	"chainpad/internal/config"
	"chainpad/internal/constants"
	"chainpad/internal/logger"
)

// State represents the health state of a service
type State string

const (
	// StateUnknown means no transition has been observed yet
	StateUnknown State = "unknown"
	// StateHealthy means the probe is passing
	StateHealthy State = "healthy"
	// StateUnhealthy means the probe failed retries consecutive times
	StateUnhealthy State = "unhealthy"
)

// Transition is an edge-triggered health state change
type Transition struct {
	Service string
	State   State
	Err     error // last probe error for unhealthy transitions
	At      time.Time
}

// Spec configures a checker. Zero fields take package defaults.
type Spec struct {
	Service     string
	Probe       Probe
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// NewSpec builds a Spec from a topology healthcheck declaration
func NewSpec(service string, hc *config.HealthCheck, probe Probe) Spec {
	s := Spec{Service: service, Probe: probe}
	if hc != nil {
		s.Interval = time.Duration(hc.Interval)
		s.Timeout = time.Duration(hc.Timeout)
		s.Retries = hc.Retries
		if hc.StartPeriod > 0 {
			s.StartPeriod = time.Duration(hc.StartPeriod)
		} else {
			s.StartPeriod = constants.DefaultHealthStartPeriod
		}
	}
	return s
}

func (s *Spec) applyDefaults() {
	if s.Interval <= 0 {
		s.Interval = constants.DefaultHealthCheckInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = constants.DefaultHealthCheckTimeout
	}
	if s.StartPeriod < 0 {
		s.StartPeriod = constants.DefaultHealthStartPeriod
	}
	if s.Retries <= 0 {
		s.Retries = constants.DefaultHealthCheckRetries
	}
}

// Checker repeatedly probes one service and reports edge-triggered
// transitions. Consecutive probe failures within the start period are
// treated as the service still booting and do not count against the
// failure threshold.
type Checker struct {
	spec   Spec
	notify func(Transition)

	state    State
	failures int
}

// NewChecker creates a checker that calls notify on every state transition.
// notify runs on the checker's goroutine and must not block.
func NewChecker(spec Spec, notify func(Transition)) *Checker {
	spec.applyDefaults()
	return &Checker{
		spec:   spec,
		notify: notify,
		state:  StateUnknown,
	}
}

// State returns the last observed state
func (c *Checker) State() State {
	return c.state
}

// Run probes until ctx is cancelled. The first probe fires after one
// interval, transitions are delivered through notify. Run does not return
// an error: a cancelled context is the only way out.
func (c *Checker) Run(ctx context.Context) {
	started := time.Now()
	ticker := time.NewTicker(c.spec.Interval)
	defer ticker.Stop()

	log := logger.WithFields(logger.Fields{
		"service": c.spec.Service,
		"probe":   c.spec.Probe.Describe(),
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		probeCtx, cancel := context.WithTimeout(ctx, c.spec.Timeout)
		err := c.spec.Probe.Check(probeCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}

		if err == nil {
			c.failures = 0
			if c.state != StateHealthy {
				c.state = StateHealthy
				c.emit(StateHealthy, nil)
			}
			continue
		}

		// Boot grace: failures before the start period elapses don't count
		if time.Since(started) < c.spec.StartPeriod {
			log.WithError(err).Debug("Probe failed within start period")
			continue
		}

		if c.state == StateUnhealthy {
			continue
		}

		c.failures++
		log.WithError(err).WithFields(logger.Fields{
			"failures": c.failures,
			"retries":  c.spec.Retries,
		}).Debug("Probe failed")

		if c.failures >= c.spec.Retries {
			c.state = StateUnhealthy
			c.emit(StateUnhealthy, err)
		}
	}
}

func (c *Checker) emit(state State, err error) {
	if c.notify == nil {
		return
	}
	c.notify(Transition{
		Service: c.spec.Service,
		State:   state,
		Err:     err,
		At:      time.Now(),
	})
}

// NewProbe builds a probe from a topology healthcheck declaration.
// exec is only consulted for command probes.
func NewProbe(hc *config.HealthCheck, exec ExecFunc) Probe {
	if hc == nil {
		return nil
	}
	timeout := time.Duration(hc.Timeout)
	if timeout <= 0 {
		timeout = constants.DefaultHealthCheckTimeout
	}
	switch {
	case hc.HTTP != "":
		return &HTTPProbe{URL: hc.HTTP, Client: defaultHTTPClient(timeout)}
	case hc.TCP != "":
		return &TCPProbe{Address: hc.TCP}
	case len(hc.Test) > 0:
		return &CommandProbe{Command: hc.Test, Exec: exec}
	default:
		return nil
	}
}
