package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"chainpad/internal/config"
	"chainpad/internal/constants"
	"chainpad/internal/container"
	"chainpad/internal/errors"
	"chainpad/internal/health"
	"chainpad/internal/logger"
)

// ServiceStatus is the lifecycle state of a managed service
type ServiceStatus string

const (
	StatusPending   ServiceStatus = "pending"
	StatusStarting  ServiceStatus = "starting"
	StatusRunning   ServiceStatus = "running"
	StatusHealthy   ServiceStatus = "healthy"
	StatusUnhealthy ServiceStatus = "unhealthy"
	StatusStopping  ServiceStatus = "stopping"
	StatusStopped   ServiceStatus = "stopped"
	StatusFailed    ServiceStatus = "failed"
)

// ServiceInfo is a point-in-time snapshot of one service
type ServiceInfo struct {
	Name              string        `json:"name"`
	Status            ServiceStatus `json:"status"`
	InstanceID        string        `json:"instance_id,omitempty"`
	Image             string        `json:"image,omitempty"`
	Restarts          int           `json:"restarts"`
	Optional          bool          `json:"optional,omitempty"`
	Error             string        `json:"error,omitempty"`
	StartedAt         time.Time     `json:"started_at,omitzero"`
	LastHealthCheckAt time.Time     `json:"last_health_check_at,omitzero"`
}

// Config configures an orchestrator for one network session
type Config struct {
	Network         string
	Services        []config.TopologyService
	Runtime         container.Runtime
	LogDir          string        // output capture directory for process services
	StopGracePeriod time.Duration // per-service graceful stop budget
	MaxRestarts     int           // restart cap for on-failure services
}

type serviceState struct {
	cfg        config.TopologyService
	status     ServiceStatus
	handle     *container.Handle
	restarts   int
	lastErr    error
	startedAt  time.Time
	lastHealth time.Time

	ready     chan struct{} // closed once the service is ready to gate on
	failed    chan struct{} // closed on terminal failure
	readyOnce sync.Once
	failOnce  sync.Once

	checkerCancel context.CancelFunc
}

func (s *serviceState) markReady()  { s.readyOnce.Do(func() { close(s.ready) }) }
func (s *serviceState) markFailed() { s.failOnce.Do(func() { close(s.failed) }) }

// Orchestrator drives the lifecycle of one network's services: ordered
// startup, health supervision, restart policy and ordered shutdown.
type Orchestrator struct {
	network   string
	runtime   container.Runtime
	graph     *Graph
	bus       *Bus
	logDir    string
	stopGrace time.Duration
	maxRetry  int

	mu       sync.Mutex
	services map[string]*serviceState
	started  bool
	stopped  bool

	runCtx    context.Context
	runCancel context.CancelFunc
	checkerWG sync.WaitGroup
}

// New validates the topology's dependency graph and prepares an
// orchestrator. Nothing is spawned until StartServices.
func New(cfg Config) (*Orchestrator, error) {
	graph, err := NewGraph(cfg.Services)
	if err != nil {
		return nil, err
	}

	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = constants.DefaultStopGracePeriod
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = constants.DefaultMaxRestarts
	}

	services := make(map[string]*serviceState, len(cfg.Services))
	for _, svc := range cfg.Services {
		services[svc.Name] = &serviceState{
			cfg:    svc,
			status: StatusPending,
			ready:  make(chan struct{}),
			failed: make(chan struct{}),
		}
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		network:   cfg.Network,
		runtime:   cfg.Runtime,
		graph:     graph,
		bus:       NewBus(),
		logDir:    cfg.LogDir,
		stopGrace: cfg.StopGracePeriod,
		maxRetry:  cfg.MaxRestarts,
		services:  services,
		runCtx:    runCtx,
		runCancel: runCancel,
	}, nil
}

// Runtime returns the container runtime the orchestrator spawns services on
func (o *Orchestrator) Runtime() container.Runtime {
	return o.runtime
}

// Events subscribes to lifecycle events
func (o *Orchestrator) Events() <-chan Event {
	return o.bus.Subscribe()
}

// Unsubscribe releases an event subscription
func (o *Orchestrator) Unsubscribe(ch <-chan Event) {
	o.bus.Unsubscribe(ch)
}

// StartServices starts every service in dependency order. Independent
// branches start in parallel; a service is only spawned once all of its
// dependencies are ready. A non-optional failure rolls back everything
// already started.
func (o *Orchestrator) StartServices(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return errors.New(errors.ErrInternal, "orchestrator already started")
	}
	o.started = true
	o.mu.Unlock()

	log := logger.WithFields(logger.Fields{"network": o.network})
	log.WithFields(logger.Fields{"order": o.graph.Order()}).Info("Starting services")

	group, gctx := errgroup.WithContext(ctx)
	for _, name := range o.graph.Order() {
		name := name
		group.Go(func() error {
			return o.startService(gctx, name)
		})
	}

	if err := group.Wait(); err != nil {
		log.WithError(err).Error("Service startup failed, rolling back")
		stopCtx, cancel := context.WithTimeout(context.Background(), o.stopGrace+30*time.Second)
		defer cancel()
		if stopErr := o.StopAll(stopCtx, true); stopErr != nil {
			log.WithError(stopErr).Warn("Rollback incomplete")
		}
		return err
	}

	return nil
}

func (o *Orchestrator) startService(ctx context.Context, name string) error {
	st := o.state(name)

	// Gate on dependencies
	for _, dep := range o.graph.Dependencies(name) {
		depSt := o.state(dep)
		select {
		case <-depSt.ready:
		case <-depSt.failed:
			if depSt.cfg.Optional {
				logger.WithFields(logger.Fields{
					"service":    name,
					"dependency": dep,
				}).Warn("Optional dependency unavailable, starting anyway")
				continue
			}
			return errors.ServiceStartFailed(name, fmt.Errorf("dependency %s failed", dep))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.setStatus(st, StatusStarting, nil)
	o.bus.Publish(Event{Type: EventServiceStarting, Service: name})

	if err := o.spawn(ctx, st); err != nil {
		return o.failService(st, err)
	}

	o.setStatus(st, StatusRunning, nil)
	o.bus.Publish(Event{Type: EventServiceStarted, Service: name})

	if st.cfg.HealthCheck == nil {
		// No probe declared: running is as ready as it gets
		o.setStatus(st, StatusHealthy, nil)
		o.bus.Publish(Event{Type: EventServiceHealthy, Service: name})
		st.markReady()
		return nil
	}

	o.superviseHealth(st)
	return nil
}

// spawn creates and starts an instance for the service
func (o *Orchestrator) spawn(ctx context.Context, st *serviceState) error {
	spec := o.createSpec(st.cfg)

	inst, err := o.runtime.Create(ctx, spec)
	if err != nil {
		return err
	}

	handle := container.NewHandle(o.runtime, inst)
	if err := handle.Start(ctx); err != nil {
		// Leave no half-created instance behind
		handle.Remove(context.Background())
		return err
	}

	o.mu.Lock()
	st.handle = handle
	st.startedAt = time.Now()
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) createSpec(svc config.TopologyService) *container.CreateSpec {
	envVars := make([]string, 0, len(svc.Environment))
	for k, v := range svc.Environment {
		envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
	}

	spec := &container.CreateSpec{
		Name:    fmt.Sprintf("%s-%s", o.network, svc.Name),
		Service: svc.Name,
		Network: o.network,
		Image:   svc.Image,
		Command: svc.Command,
		EnvVars: envVars,
		Volumes: svc.Volumes,
		Ports:   svc.Ports,
	}
	if o.logDir != "" {
		spec.LogPath = fmt.Sprintf("%s/%s.log", o.logDir, svc.Name)
	}
	return spec
}

// superviseHealth runs a health checker for the service until shutdown
func (o *Orchestrator) superviseHealth(st *serviceState) {
	probe := health.NewProbe(st.cfg.HealthCheck, o.execFunc(st.cfg.Name))
	if probe == nil {
		st.markReady()
		return
	}

	checkCtx, cancel := context.WithCancel(o.runCtx)
	o.mu.Lock()
	st.checkerCancel = cancel
	o.mu.Unlock()

	checker := health.NewChecker(
		health.NewSpec(st.cfg.Name, st.cfg.HealthCheck, probe),
		o.onTransition(st),
	)

	o.checkerWG.Add(1)
	go func() {
		defer o.checkerWG.Done()
		checker.Run(checkCtx)
	}()
}

// execFunc resolves the service's current handle at probe time so that
// command probes survive restarts.
func (o *Orchestrator) execFunc(name string) health.ExecFunc {
	return func(ctx context.Context, command []string) ([]byte, error) {
		o.mu.Lock()
		st := o.services[name]
		handle := st.handle
		o.mu.Unlock()
		if handle == nil {
			return nil, errors.ServiceNotFound(name)
		}
		return handle.Exec(ctx, command)
	}
}

func (o *Orchestrator) onTransition(st *serviceState) func(health.Transition) {
	return func(tr health.Transition) {
		o.mu.Lock()
		st.lastHealth = tr.At
		o.mu.Unlock()

		switch tr.State {
		case health.StateHealthy:
			o.setStatus(st, StatusHealthy, nil)
			o.bus.Publish(Event{Type: EventServiceHealthy, Service: tr.Service})
			st.markReady()
		case health.StateUnhealthy:
			o.setStatus(st, StatusUnhealthy, tr.Err)
			o.bus.Publish(Event{
				Type:    EventServiceUnhealthy,
				Service: tr.Service,
				Error:   tr.Err.Error(),
			})
			if st.cfg.Restart == config.RestartOnFailure {
				go o.restart(st)
				return
			}

			// No restart policy can recover the service: dependents and
			// waiters must see a terminal failure, not block forever.
			o.mu.Lock()
			cancel := st.checkerCancel
			o.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			o.setStatus(st, StatusFailed, tr.Err)
			o.bus.Publish(Event{
				Type:    EventServiceFailed,
				Service: tr.Service,
				Error:   tr.Err.Error(),
			})
			st.markFailed()
		}
	}
}

// restart tears the instance down and spawns a fresh one, up to the
// restart cap.
func (o *Orchestrator) restart(st *serviceState) {
	name := st.cfg.Name

	o.mu.Lock()
	if o.stopped || st.status == StatusStopping || st.status == StatusStopped {
		o.mu.Unlock()
		return
	}
	if st.restarts >= o.maxRetry {
		cancel := st.checkerCancel
		o.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		o.setStatus(st, StatusFailed, fmt.Errorf("restart limit reached"))
		o.bus.Publish(Event{
			Type:    EventServiceFailed,
			Service: name,
			Message: fmt.Sprintf("gave up after %d restarts", st.restarts),
		})
		st.markFailed()
		return
	}
	st.restarts++
	restarts := st.restarts
	cancel := st.checkerCancel
	handle := st.handle
	o.mu.Unlock()

	logger.WithFields(logger.Fields{
		"network": o.network,
		"service": name,
		"attempt": restarts,
	}).Info("Restarting unhealthy service")
	o.bus.Publish(Event{
		Type:    EventServiceRestarting,
		Service: name,
		Message: fmt.Sprintf("attempt %d of %d", restarts, o.maxRetry),
	})

	if cancel != nil {
		cancel()
	}

	ctx, cancelStop := context.WithTimeout(o.runCtx, o.stopGrace+30*time.Second)
	defer cancelStop()

	if handle != nil {
		if err := handle.Stop(ctx, o.stopGrace); err != nil {
			container.LogRuntimeWarning(err, "restart-stop")
			// ctx may already be spent on the failed stop
			killCtx, killCancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultKillTimeout)
			handle.Kill(killCtx)
			killCancel()
		}
		handle.Remove(ctx)
	}

	o.setStatus(st, StatusStarting, nil)
	if err := o.spawn(ctx, st); err != nil {
		o.setStatus(st, StatusFailed, err)
		o.bus.Publish(Event{Type: EventServiceFailed, Service: name, Error: err.Error()})
		st.markFailed()
		return
	}

	o.setStatus(st, StatusRunning, nil)
	o.bus.Publish(Event{Type: EventServiceStarted, Service: name})
	o.superviseHealth(st)
}

// failService records a start failure. Optional services degrade to a
// warning instead of aborting the startup.
func (o *Orchestrator) failService(st *serviceState, err error) error {
	name := st.cfg.Name
	o.setStatus(st, StatusFailed, err)
	st.markFailed()
	o.bus.Publish(Event{Type: EventServiceFailed, Service: name, Error: err.Error()})

	if st.cfg.Optional {
		logger.WithFields(logger.Fields{
			"network": o.network,
			"service": name,
		}).WithError(err).Warn("Optional service failed to start")
		return nil
	}
	return errors.ServiceStartFailed(name, err)
}

// WaitForHealthy blocks until every named service (all services when none
// are named) is ready, or the timeout elapses. Readiness achieved before
// the call counts: no transition can be missed.
func (o *Orchestrator) WaitForHealthy(ctx context.Context, timeout time.Duration, services ...string) error {
	if timeout <= 0 {
		timeout = constants.DefaultReadyTimeout
	}
	if len(services) == 0 {
		services = o.graph.Order()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, name := range services {
		st := o.state(name)
		if st == nil {
			return errors.ServiceNotFound(name)
		}
		select {
		case <-st.ready:
		case <-st.failed:
			if st.cfg.Optional {
				continue
			}
			o.mu.Lock()
			err := st.lastErr
			o.mu.Unlock()
			return errors.ServiceStartFailed(name, err)
		case <-deadline.C:
			return errors.HealthCheckTimeout(name)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// StopAll stops every service in reverse dependency order. A service that
// refuses to stop within the grace period is killed when force is set;
// otherwise the failure surfaces as a GracefulStopTimeout and the sweep
// continues. One stuck service never blocks the rest. All failures are
// aggregated.
func (o *Orchestrator) StopAll(ctx context.Context, force bool) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	o.mu.Unlock()

	// Stop health supervision before tearing instances down
	o.runCancel()
	o.checkerWG.Wait()

	log := logger.WithFields(logger.Fields{"network": o.network})
	log.Info("Stopping services")

	var result *multierror.Error
	for _, name := range o.graph.ReverseOrder() {
		st := o.state(name)

		o.mu.Lock()
		handle := st.handle
		o.mu.Unlock()
		if handle == nil {
			o.setStatus(st, StatusStopped, nil)
			continue
		}

		o.setStatus(st, StatusStopping, nil)
		o.bus.Publish(Event{Type: EventServiceStopping, Service: name})

		stopCtx, cancel := context.WithTimeout(ctx, o.stopGrace+30*time.Second)
		err := handle.Stop(stopCtx, o.stopGrace)
		cancel()
		if err != nil {
			container.LogRuntimeWarning(err, "stop")
			if !force {
				// Leave the instance in place and surface the failure
				gerr := errors.GracefulStopTimeout(name)
				o.setStatus(st, StatusFailed, gerr)
				o.bus.Publish(Event{Type: EventServiceFailed, Service: name, Error: gerr.Error()})
				result = multierror.Append(result, gerr)
				continue
			}
			// The graceful budget may already be spent, the kill gets its
			// own deadline.
			killCtx, killCancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultKillTimeout)
			killErr := handle.Kill(killCtx)
			killCancel()
			if killErr != nil {
				o.setStatus(st, StatusFailed, killErr)
				result = multierror.Append(result,
					fmt.Errorf("service %s would not stop: %w", name, killErr))
				continue
			}
		}

		removeCtx, removeCancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultKillTimeout)
		if err := handle.Remove(removeCtx); err != nil {
			container.LogRuntimeWarning(err, "remove")
		}
		removeCancel()

		o.setStatus(st, StatusStopped, nil)
		o.bus.Publish(Event{Type: EventServiceStopped, Service: name})
	}

	o.bus.Publish(Event{Type: EventNetworkStopped})
	return result.ErrorOrNil()
}

// Close releases the event bus. Call after StopAll.
func (o *Orchestrator) Close() {
	o.runCancel()
	o.bus.Close()
}

// Status returns a snapshot of every service
func (o *Orchestrator) Status() []ServiceInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	infos := make([]ServiceInfo, 0, len(o.services))
	for _, name := range o.graph.Order() {
		st := o.services[name]
		info := ServiceInfo{
			Name:              name,
			Status:            st.status,
			Image:             st.cfg.Image,
			Restarts:          st.restarts,
			Optional:          st.cfg.Optional,
			StartedAt:         st.startedAt,
			LastHealthCheckAt: st.lastHealth,
		}
		if st.handle != nil {
			info.InstanceID = st.handle.ID()
		}
		if st.lastErr != nil {
			info.Error = st.lastErr.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

// Logs returns up to tail lines of one service's collected output
func (o *Orchestrator) Logs(ctx context.Context, service string, tail int) ([]byte, error) {
	o.mu.Lock()
	st, ok := o.services[service]
	var handle *container.Handle
	if ok {
		handle = st.handle
	}
	o.mu.Unlock()

	if !ok {
		return nil, errors.ServiceNotFound(service)
	}
	if handle == nil {
		return nil, nil
	}
	return handle.Logs(ctx, tail)
}

func (o *Orchestrator) state(name string) *serviceState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.services[name]
}

func (o *Orchestrator) setStatus(st *serviceState, status ServiceStatus, err error) {
	o.mu.Lock()
	st.status = status
	if err != nil {
		st.lastErr = err
	}
	o.mu.Unlock()
}
