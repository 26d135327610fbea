// Package network wraps the orchestrator, port allocation and the
// confirmation scheduler behind the start/stop/restart lifecycle of one
// logical local network.
package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"

	"chainpad/internal/config"
	"chainpad/internal/constants"
	"chainpad/internal/container"
	"chainpad/internal/db"
	"chainpad/internal/errors"
	"chainpad/internal/logger"
	"chainpad/internal/orchestrator"
	"chainpad/internal/ports"
	"chainpad/internal/scheduler"
	"chainpad/internal/xdg"
)

// Manager drives one network session at a time. Start is rejected while a
// session is running; Restart is Stop followed by Start with the same profile
// (ports may move).
type Manager struct {
	config   *config.Manager
	sessions db.SessionManager // nil disables persistence

	// runtime overrides the profile-selected container runtime, for tests
	runtime container.Runtime

	mu          sync.Mutex
	running     bool
	profileName string
	forceStop   bool
	topo        *Topology
	allocator   *ports.Allocator
	orch        *orchestrator.Orchestrator
	sched       *scheduler.Scheduler
	minerCancel context.CancelFunc
	minerDone   chan struct{}
	session     *db.Session
}

// New creates a network manager. sessions may be nil when running without a
// database, e.g. in a test harness.
func New(cfg *config.Manager, sessions db.SessionManager) *Manager {
	return &Manager{
		config:   cfg,
		sessions: sessions,
	}
}

// SetRuntime overrides the container runtime used for every profile.
func (m *Manager) SetRuntime(rt container.Runtime) {
	m.runtime = rt
}

// Status describes the current session.
type Status struct {
	Running  bool                       `json:"running"`
	Profile  string                     `json:"profile,omitempty"`
	Primary  string                     `json:"primary,omitempty"`
	Ports    map[string]int             `json:"ports,omitempty"`
	Services []orchestrator.ServiceInfo `json:"services,omitempty"`
}

// Start resolves the named profile (or the configured default), starts every
// service in dependency order and blocks until the primary service is healthy
// or the profile's ready timeout expires. A second Start while running is
// rejected with NETWORK_ALREADY_RUNNING. On failure everything already
// started is rolled back.
func (m *Manager) Start(ctx context.Context, profileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.ErrNetworkAlreadyRunningError
	}

	name, profile, err := m.config.ResolveProfile(profileName)
	if err != nil {
		return err
	}

	if m.sessions != nil {
		active, err := m.sessions.GetActive(ctx, name)
		if err != nil {
			return err
		}
		if active != nil {
			return errors.NewWithDetails(errors.ErrNetworkAlreadyRunning,
				"network is already running", fmt.Sprintf("Session: %s", active.ID))
		}
	}

	allocator := ports.NewAllocator()
	topo, err := resolveTopology(name, profile, allocator)
	if err != nil {
		return err
	}

	rt := m.runtime
	if rt == nil {
		rt, err = container.NewRuntime(topo.Runtime, nil)
		if err != nil {
			allocator.ReleaseAll()
			return err
		}
	}
	if !rt.IsAvailable(ctx) {
		allocator.ReleaseAll()
		return errors.New(errors.ErrRuntimeUnavailable,
			fmt.Sprintf("%s runtime is not available", rt.Type()))
	}

	if docker, ok := rt.(*container.DockerRuntime); ok {
		if err := docker.EnsureNetwork(ctx, topo.Name); err != nil {
			allocator.ReleaseAll()
			return errors.Wrap(errors.ErrNetworkStartFailed, "creating docker network", err)
		}
	}

	logDir, err := ensureLogDir(name)
	if err != nil {
		allocator.ReleaseAll()
		return err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Network:         topo.Name,
		Services:        topo.Services,
		Runtime:         rt,
		LogDir:          logDir,
		StopGracePeriod: profile.StopGracePeriod,
		MaxRestarts:     constants.DefaultMaxRestarts,
	})
	if err != nil {
		allocator.ReleaseAll()
		return err
	}

	session := m.recordSessionStart(ctx, name, profile, topo)

	logger.WithFields(logger.Fields{
		"profile":  name,
		"type":     profile.Type,
		"services": len(topo.Services),
	}).Info("Starting network")

	fail := func(cause error) error {
		stopCtx := context.WithoutCancel(ctx)
		if err := orch.StopAll(stopCtx, true); err != nil {
			logger.WithError(err).Warn("Rollback stop reported errors")
		}
		orch.Close()
		allocator.ReleaseAll()
		m.recordSessionStatus(stopCtx, session, db.SessionFailed)
		return cause
	}

	// The whole startup, dependency gating included, shares the profile's
	// ready budget. Without this a dependency that never turns healthy
	// would block StartServices forever.
	startCtx, cancelStart := context.WithTimeout(ctx, profile.ReadyTimeout)
	defer cancelStart()

	if err := orch.StartServices(startCtx); err != nil {
		if startCtx.Err() != nil && ctx.Err() == nil {
			err = errors.Wrap(errors.ErrNetworkStartFailed,
				"network did not become ready within the ready timeout", err)
		}
		return fail(err)
	}
	if err := orch.WaitForHealthy(startCtx, profile.ReadyTimeout, topo.Primary); err != nil {
		return fail(err)
	}

	m.recordServices(ctx, session, orch)

	if profile.OnDemandMining {
		m.startMining(profile)
	}

	m.recordSessionStatus(ctx, session, db.SessionRunning)

	m.running = true
	m.profileName = name
	m.forceStop = profile.ForceStop
	m.topo = topo
	m.allocator = allocator
	m.orch = orch
	m.session = session

	logger.WithFields(logger.Fields{
		"profile": name,
		"primary": topo.Primary,
		"port":    topo.PrimaryPort(),
	}).Info("Network ready")

	return nil
}

// Stop tears the session down: mining loop first, then services in reverse
// dependency order, then the docker network and the port reservations.
// The profile's force_stop setting decides whether a service that outlives
// its grace period is killed or reported. Stop without a running session
// returns NETWORK_NOT_RUNNING.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	if !m.running {
		return errors.ErrNetworkNotRunningError
	}

	logger.WithFields(logger.Fields{"profile": m.profileName}).Info("Stopping network")

	m.recordSessionStatus(ctx, m.session, db.SessionStopping)

	var result *multierror.Error

	if m.minerCancel != nil {
		m.minerCancel()
		m.sched.Close()
		<-m.minerDone
		m.minerCancel = nil
		m.minerDone = nil
		m.sched = nil
	}

	if err := m.orch.StopAll(ctx, m.forceStop); err != nil {
		result = multierror.Append(result, err)
	}

	if docker, ok := m.orch.Runtime().(*container.DockerRuntime); ok {
		if err := docker.RemoveNetwork(ctx, m.topo.Name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	m.orch.Close()

	m.allocator.ReleaseAll()

	status := db.SessionStopped
	if result.ErrorOrNil() != nil {
		status = db.SessionFailed
	}
	m.recordSessionStatus(ctx, m.session, status)

	m.running = false
	m.forceStop = false
	m.orch = nil
	m.topo = nil
	m.allocator = nil
	m.session = nil

	return result.ErrorOrNil()
}

// Restart is Stop followed by Start with the same profile. Dynamic ports may
// land elsewhere after a restart.
func (m *Manager) Restart(ctx context.Context) error {
	m.mu.Lock()
	profileName := m.profileName
	err := m.stopLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Start(ctx, profileName)
}

// Status reports the current session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return Status{Running: false}
	}
	return Status{
		Running:  true,
		Profile:  m.profileName,
		Primary:  m.topo.Primary,
		Ports:    m.topo.Ports,
		Services: m.orch.Status(),
	}
}

// PushTransaction records confirmation demand for a chain, to be batched and
// drained by the mining loop. A no-op unless on-demand mining is active.
func (m *Manager) PushTransaction(chainID uint32, confirmations int) error {
	m.mu.Lock()
	sched := m.sched
	batch := m.config.Scheduler.BatchPeriod
	m.mu.Unlock()

	if sched == nil {
		return errors.New(errors.ErrSchedulerClosed, "on-demand mining is not active")
	}
	sched.PushTransaction(batch, chainID, confirmations)
	return nil
}

// Scheduler exposes the active confirmation scheduler, nil when mining is off.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched
}

// Events subscribes to the orchestrator's event stream.
func (m *Manager) Events() (<-chan orchestrator.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, errors.ErrNetworkNotRunningError
	}
	return m.orch.Events(), nil
}

// Unsubscribe releases an event subscription.
func (m *Manager) Unsubscribe(ch <-chan orchestrator.Event) {
	m.mu.Lock()
	orch := m.orch
	m.mu.Unlock()
	if orch != nil {
		orch.Unsubscribe(ch)
	}
}

// StreamLogs multiplexes live log lines from the named services, or all of
// them when none are given.
func (m *Manager) StreamLogs(ctx context.Context, services ...string) (<-chan orchestrator.LogEntry, error) {
	m.mu.Lock()
	orch := m.orch
	m.mu.Unlock()
	if orch == nil {
		return nil, errors.ErrNetworkNotRunningError
	}
	return orch.StreamLogs(ctx, services...)
}

// Logs returns the tail of one service's captured output.
func (m *Manager) Logs(ctx context.Context, service string, tail int) ([]byte, error) {
	m.mu.Lock()
	orch := m.orch
	m.mu.Unlock()
	if orch == nil {
		return nil, errors.ErrNetworkNotRunningError
	}
	return orch.Logs(ctx, service, tail)
}

// startMining wires a fresh scheduler to a miner loop hitting the profile's
// on-demand mining endpoint.
func (m *Manager) startMining(profile *config.Profile) {
	m.sched = scheduler.New()
	miner := scheduler.NewMiner(m.sched, scheduler.MinerConfig{
		Endpoint:      fmt.Sprintf("http://127.0.0.1:%d/make-blocks", profile.MiningTriggerPort),
		TriggerPeriod: m.config.Scheduler.TriggerPeriod,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.minerCancel = cancel
	m.minerDone = done

	go func() {
		defer close(done)
		if err := miner.Run(ctx); err != nil {
			logger.WithError(err).Error("Mining loop exited")
		}
	}()
}

// recordSessionStart persists a new session row; persistence failures are
// logged, never fatal.
func (m *Manager) recordSessionStart(ctx context.Context, name string, profile *config.Profile, topo *Topology) *db.Session {
	if m.sessions == nil {
		return nil
	}

	portsByKey := make(db.JSONB, len(topo.Ports))
	for key, p := range topo.Ports {
		portsByKey[key] = p
	}
	session := &db.Session{
		Network: name,
		Profile: string(profile.Type),
		Ports:   portsByKey,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		logger.WithError(err).Warn("Failed to record session")
		return nil
	}
	return session
}

func (m *Manager) recordSessionStatus(ctx context.Context, session *db.Session, status db.SessionStatus) {
	if m.sessions == nil || session == nil {
		return
	}
	if err := m.sessions.UpdateStatus(ctx, session.ID, status); err != nil {
		logger.WithError(err).Warn("Failed to update session status")
	}
}

func (m *Manager) recordServices(ctx context.Context, session *db.Session, orch *orchestrator.Orchestrator) {
	if m.sessions == nil || session == nil {
		return
	}
	for _, info := range orch.Status() {
		err := m.sessions.AddService(ctx, &db.SessionService{
			SessionID:  session.ID,
			Name:       info.Name,
			InstanceID: info.InstanceID,
			Runtime:    string(orch.Runtime().Type()),
			Image:      info.Image,
			Status:     string(info.Status),
		})
		if err != nil {
			logger.WithError(err).WithFields(logger.Fields{"service": info.Name}).
				Warn("Failed to record session service")
		}
	}
}

func ensureLogDir(network string) (string, error) {
	dir := filepath.Join(xdg.LogsDir(), network)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", errors.Wrap(errors.ErrInternal, "creating log directory", err)
	}
	return dir, nil
}
