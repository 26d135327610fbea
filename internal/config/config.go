// Package config handles loading and validation of the chainpad
// configuration file and network topology declarations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"chainpad/internal/constants"
	"chainpad/internal/errors"
	"chainpad/internal/xdg"
)

// ProfileType discriminates the supported network profile kinds.
// Validation happens at config-resolution time, never at orchestrator runtime.
type ProfileType string

const (
	// ProfileTypePactServer runs a single locally spawned Pact execution server.
	ProfileTypePactServer ProfileType = "pact-server"
	// ProfileTypeDevnet runs the multi-container development network.
	ProfileTypeDevnet ProfileType = "devnet"
	// ProfileTypeChainwebLocal runs a local chainweb node topology with
	// per-chain on-demand mining.
	ProfileTypeChainwebLocal ProfileType = "chainweb-local"
)

// Profile describes one network profile. The Type field selects which of the
// remaining fields are meaningful; Validate enforces that.
type Profile struct {
	Type ProfileType `toml:"type"`

	// pact-server profile
	Command    string   `toml:"command"`     // pact server binary, e.g. "pact"
	Args       []string `toml:"args"`        // extra args passed to the binary
	Port       int      `toml:"port"`        // 0 = allocate dynamically
	PersistDir string   `toml:"persist_dir"` // pact database directory, "" = in-memory

	// container topology profiles (devnet, chainweb-local)
	TopologyFile   string `toml:"topology_file"`   // yaml service map
	PrimaryService string `toml:"primary_service"` // readiness gate
	NetworkName    string `toml:"network_name"`    // docker network, defaults to profile name

	// on-demand mining
	OnDemandMining    bool `toml:"on_demand_mining"`
	MiningTriggerPort int  `toml:"mining_trigger_port"`

	// lifecycle tuning
	ReadyTimeout    time.Duration `toml:"ready_timeout"`
	StopGracePeriod time.Duration `toml:"stop_grace_period"`
	ForceStop       bool          `toml:"force_stop"`
}

// Validate checks the profile for the given name against its declared type.
func (p *Profile) Validate(name string) error {
	switch p.Type {
	case ProfileTypePactServer:
		if p.Command == "" {
			return errors.ValidationFailed(fmt.Sprintf("profiles.%s.command", name), "pact-server profile requires a command")
		}
		if p.TopologyFile != "" {
			return errors.ValidationFailed(fmt.Sprintf("profiles.%s.topology_file", name), "not valid for pact-server profiles")
		}
	case ProfileTypeDevnet, ProfileTypeChainwebLocal:
		if p.TopologyFile == "" {
			return errors.ValidationFailed(fmt.Sprintf("profiles.%s.topology_file", name), "container profiles require a topology file")
		}
		if p.PrimaryService == "" {
			return errors.ValidationFailed(fmt.Sprintf("profiles.%s.primary_service", name), "container profiles require a primary service")
		}
	case "":
		return errors.ValidationFailed(fmt.Sprintf("profiles.%s.type", name), "profile type is required")
	default:
		return errors.ValidationFailed(fmt.Sprintf("profiles.%s.type", name),
			fmt.Sprintf("unsupported profile type %q", p.Type))
	}
	if p.Port < 0 || p.Port > constants.MaxPortNumber {
		return errors.ValidationFailed(fmt.Sprintf("profiles.%s.port", name), "port out of range")
	}
	return nil
}

// SchedulerConfig tunes the confirmation demand scheduler.
type SchedulerConfig struct {
	BatchPeriod   time.Duration `toml:"batch_period"`
	TriggerPeriod time.Duration `toml:"trigger_period"`
}

// NetworkConfig selects the active profile.
type NetworkConfig struct {
	Profile string `toml:"profile"`
}

// File is the on-disk shape of chainpad.toml.
type File struct {
	Network   NetworkConfig      `toml:"network"`
	Scheduler SchedulerConfig    `toml:"scheduler"`
	Profiles  map[string]Profile `toml:"profiles"`
}

// Manager handles configuration loading and validation
type Manager struct {
	Path      string
	Network   NetworkConfig
	Scheduler SchedulerConfig
	Profiles  map[string]Profile
}

// New creates a new configuration manager with defaults applied.
func New() *Manager {
	return &Manager{
		Scheduler: SchedulerConfig{
			BatchPeriod:   constants.DefaultBatchPeriod,
			TriggerPeriod: constants.DefaultTriggerPeriod,
		},
		Profiles: DefaultProfiles(),
	}
}

// DefaultProfiles returns the built-in profiles used when no config file
// declares its own. The pact profile works out of the box if a pact binary is
// on PATH; the devnet profile expects a topology file next to the config.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"pact": {
			Type:    ProfileTypePactServer,
			Command: "pact",
			Port:    constants.DefaultPactServerPort,
		},
		"devnet": {
			Type:              ProfileTypeDevnet,
			TopologyFile:      "devnet.yaml",
			PrimaryService:    "api-proxy",
			OnDemandMining:    true,
			MiningTriggerPort: constants.DefaultMiningTriggerPort,
		},
	}
}

// DefaultPath returns the XDG-compliant config file path.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chainpad.toml"), nil
}

// Load reads the config file at path. A missing file is not an error; the
// defaults remain in effect. An unreadable or invalid file is.
func (m *Manager) Load(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return errors.ConfigParseError(err)
		}
	}
	m.Path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.ConfigParseError(err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return errors.ConfigParseError(err)
	}

	if f.Network.Profile != "" {
		m.Network = f.Network
	}
	if f.Scheduler.BatchPeriod > 0 {
		m.Scheduler.BatchPeriod = f.Scheduler.BatchPeriod
	}
	if f.Scheduler.TriggerPeriod > 0 {
		m.Scheduler.TriggerPeriod = f.Scheduler.TriggerPeriod
	}
	for name, p := range f.Profiles {
		m.Profiles[name] = p
	}

	return m.Validate()
}

// Validate checks every declared profile and the active profile selection.
func (m *Manager) Validate() error {
	for name, p := range m.Profiles {
		if err := p.Validate(name); err != nil {
			return err
		}
	}
	if m.Network.Profile != "" {
		if _, ok := m.Profiles[m.Network.Profile]; !ok {
			return errors.ProfileUnknown(m.Network.Profile)
		}
	}
	return nil
}

// ResolveProfile returns the named profile, or the configured default when
// name is empty. Defaults for timeouts are filled in here so downstream code
// never sees zero values.
func (m *Manager) ResolveProfile(name string) (string, *Profile, error) {
	if name == "" {
		name = m.Network.Profile
	}
	if name == "" {
		name = "devnet"
	}
	p, ok := m.Profiles[name]
	if !ok {
		return "", nil, errors.ProfileUnknown(name)
	}

	if p.ReadyTimeout <= 0 {
		p.ReadyTimeout = constants.DefaultReadyTimeout
	}
	if p.StopGracePeriod <= 0 {
		p.StopGracePeriod = constants.DefaultStopGracePeriod
	}
	if p.NetworkName == "" {
		p.NetworkName = name
	}
	if p.OnDemandMining && p.MiningTriggerPort == 0 {
		p.MiningTriggerPort = constants.DefaultMiningTriggerPort
	}

	// Topology paths are relative to the config file.
	if p.TopologyFile != "" && !filepath.IsAbs(p.TopologyFile) && m.Path != "" {
		p.TopologyFile = filepath.Join(filepath.Dir(m.Path), p.TopologyFile)
	}

	return name, &p, nil
}
