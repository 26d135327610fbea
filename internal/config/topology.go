package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chainpad/internal/errors"
	"chainpad/internal/validation"
)

// TopologyFile represents a declarative network topology, a compose-style
// service map describing the containers of a devnet.
type TopologyFile struct {
	Services map[string]*TopologyService `yaml:"services"`
	Volumes  map[string]*TopologyVolume  `yaml:"volumes"`
}

// TopologyService represents one declared service in a topology file.
type TopologyService struct {
	Name        string        // service name from the map key
	Image       string        `yaml:"image"`
	Command     StringOrSlice `yaml:"command"`
	Environment Environment   `yaml:"environment"`
	Volumes     []string      `yaml:"volumes"`
	Ports       []string      `yaml:"ports"`
	DependsOn   StringOrSlice `yaml:"depends_on"`
	HealthCheck *HealthCheck  `yaml:"healthcheck"`
	Restart     string        `yaml:"restart"`  // "" | "never" | "on-failure"
	Optional    bool          `yaml:"optional"` // start failure does not abort the topology
}

// Restart policies. The empty string is equivalent to RestartNever.
const (
	RestartNever     = "never"
	RestartOnFailure = "on-failure"
)

// HealthCheck declares the probe used to gate service readiness.
// Exactly one of HTTP, TCP or Test should be set.
type HealthCheck struct {
	HTTP        string        `yaml:"http"` // URL, host port placeholders resolved by the facade
	TCP         string        `yaml:"tcp"`  // host:port address
	Test        StringOrSlice `yaml:"test"` // command probe
	Interval    Duration      `yaml:"interval"`
	Timeout     Duration      `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	StartPeriod Duration      `yaml:"start_period"`
}

// Duration wraps time.Duration with yaml support for "10s"-style strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// TopologyVolume represents a named volume definition.
type TopologyVolume struct {
	Driver string `yaml:"driver"`
}

// VolumeMount represents a parsed volume mount
type VolumeMount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// PortMapping represents a parsed port mapping. HostPort 0 means the port
// allocator chooses one at startup.
type PortMapping struct {
	HostPort      int
	ContainerPort int
	Protocol      string // tcp/udp
}

// StringOrSlice can be either a string or a slice of strings
type StringOrSlice []string

func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	var multi []string
	err := value.Decode(&multi)
	if err != nil {
		var single string
		err := value.Decode(&single)
		if err != nil {
			return err
		}
		*s = []string{single}
	} else {
		*s = multi
	}
	return nil
}

// Environment can be either a map or a slice of KEY=VALUE strings
type Environment map[string]string

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	*e = make(map[string]string)

	// Try to decode as a map first
	var envMap map[string]string
	if err := value.Decode(&envMap); err == nil {
		for k, v := range envMap {
			(*e)[k] = v
		}
		return nil
	}

	// Try to decode as a slice
	var envSlice []string
	if err := value.Decode(&envSlice); err == nil {
		for _, env := range envSlice {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				(*e)[parts[0]] = parts[1]
			} else if len(parts) == 1 {
				(*e)[parts[0]] = ""
			}
		}
		return nil
	}

	return fmt.Errorf("environment must be a map or slice of strings")
}

// ParseTopologyFile reads and parses a topology yaml file.
func ParseTopologyFile(path string) (*TopologyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigNotFound, "reading topology file", err).
			WithContext("path", path)
	}
	return ParseTopology(data)
}

// ParseTopology parses topology yaml bytes.
func ParseTopology(data []byte) (*TopologyFile, error) {
	var topo TopologyFile
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, errors.Wrap(errors.ErrTopologyInvalid, "parsing topology file", err)
	}

	if len(topo.Services) == 0 {
		return nil, errors.TopologyInvalid("topology declares no services")
	}

	// Set service names and validate references
	for name, svc := range topo.Services {
		if err := validation.ServiceName(name); err != nil {
			return nil, errors.TopologyInvalid(fmt.Sprintf("service name %q: %v", name, err))
		}
		svc.Name = name
		if svc.Image == "" {
			return nil, errors.TopologyInvalid(fmt.Sprintf("service %s has no image", name))
		}
		for _, dep := range svc.DependsOn {
			if _, ok := topo.Services[dep]; !ok {
				return nil, errors.TopologyInvalid(
					fmt.Sprintf("service %s depends on undeclared service %s", name, dep))
			}
		}
		if hc := svc.HealthCheck; hc != nil {
			declared := 0
			if hc.HTTP != "" {
				declared++
			}
			if hc.TCP != "" {
				declared++
			}
			if len(hc.Test) > 0 {
				declared++
			}
			if declared != 1 {
				return nil, errors.TopologyInvalid(
					fmt.Sprintf("service %s healthcheck must declare exactly one of http, tcp or test", name))
			}
			if hc.Retries < 0 {
				return nil, errors.TopologyInvalid(
					fmt.Sprintf("service %s healthcheck retries must not be negative", name))
			}
		}
		switch svc.Restart {
		case "", RestartNever, RestartOnFailure:
		default:
			return nil, errors.TopologyInvalid(
				fmt.Sprintf("service %s has unsupported restart policy %q", name, svc.Restart))
		}
	}

	return &topo, nil
}

// ParsePorts parses the service's port strings into mappings.
func (s *TopologyService) ParsePorts() ([]PortMapping, error) {
	var mappings []PortMapping
	for _, port := range s.Ports {
		mapping, err := parsePortString(port)
		if err != nil {
			return nil, errors.TopologyInvalid(
				fmt.Sprintf("service %s port %q: %v", s.Name, port, err))
		}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

// ParseVolumes parses the service's volume strings, resolving relative host
// paths against baseDir.
func (s *TopologyService) ParseVolumes(baseDir string) ([]VolumeMount, error) {
	var mounts []VolumeMount
	for _, vol := range s.Volumes {
		mount, err := parseVolumeString(vol, baseDir)
		if err != nil {
			return nil, errors.TopologyInvalid(
				fmt.Sprintf("service %s volume %q: %v", s.Name, vol, err))
		}
		mounts = append(mounts, mount)
	}
	return mounts, nil
}

// parsePortString parses a port string like "8080:1848", "1848" or
// "0:1789/udp". A zero or omitted host port requests dynamic allocation.
func parsePortString(port string) (PortMapping, error) {
	mapping := PortMapping{Protocol: "tcp"}

	spec := port
	if idx := strings.LastIndex(spec, "/"); idx >= 0 {
		mapping.Protocol = spec[idx+1:]
		spec = spec[:idx]
		if mapping.Protocol != "tcp" && mapping.Protocol != "udp" {
			return PortMapping{}, fmt.Errorf("unsupported protocol %q", mapping.Protocol)
		}
	}

	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1:
		containerPort, err := strconv.Atoi(parts[0])
		if err != nil {
			return PortMapping{}, fmt.Errorf("invalid container port %q", parts[0])
		}
		mapping.ContainerPort = containerPort
	case 2:
		hostPort, err := strconv.Atoi(parts[0])
		if err != nil {
			return PortMapping{}, fmt.Errorf("invalid host port %q", parts[0])
		}
		containerPort, err := strconv.Atoi(parts[1])
		if err != nil {
			return PortMapping{}, fmt.Errorf("invalid container port %q", parts[1])
		}
		mapping.HostPort = hostPort
		mapping.ContainerPort = containerPort
	default:
		return PortMapping{}, fmt.Errorf("invalid port format")
	}

	if mapping.ContainerPort <= 0 || mapping.ContainerPort > 65535 {
		return PortMapping{}, fmt.Errorf("container port out of range")
	}
	if mapping.HostPort < 0 || mapping.HostPort > 65535 {
		return PortMapping{}, fmt.Errorf("host port out of range")
	}

	return mapping, nil
}

// parseVolumeString parses a volume string like "./data:/workspace:ro"
func parseVolumeString(vol string, baseDir string) (VolumeMount, error) {
	parts := strings.Split(vol, ":")
	if len(parts) < 2 {
		return VolumeMount{}, fmt.Errorf("invalid volume format")
	}

	mount := VolumeMount{
		HostPath:      parts[0],
		ContainerPath: parts[1],
	}

	if len(parts) > 2 && parts[2] == "ro" {
		mount.ReadOnly = true
	}

	// Resolve relative host paths against the topology file's directory
	if !filepath.IsAbs(mount.HostPath) && !strings.HasPrefix(mount.HostPath, "~") {
		mount.HostPath = filepath.Join(baseDir, mount.HostPath)
	}

	return mount, nil
}
