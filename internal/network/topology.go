package network

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"chainpad/internal/config"
	"chainpad/internal/container"
	"chainpad/internal/errors"
	"chainpad/internal/ports"
)

// Topology is a profile resolved into concrete services: every dynamic host
// port has been allocated and every port placeholder substituted. Built once
// per session, discarded on stop.
type Topology struct {
	Name     string // profile name, doubles as the network name
	Runtime  container.RuntimeType
	Services []config.TopologyService
	Primary  string // readiness gate service

	// Ports maps "service/containerPort" to the resolved host port.
	Ports map[string]int
}

// HostPort returns the host port resolved for a service's container port.
func (t *Topology) HostPort(service string, containerPort int) (int, bool) {
	p, ok := t.Ports[portKey(service, containerPort)]
	return p, ok
}

// PrimaryPort returns the first host port of the primary service, the address
// clients should talk to. Zero if the primary exposes no ports.
func (t *Topology) PrimaryPort() int {
	for key, p := range t.Ports {
		if strings.HasPrefix(key, t.Primary+"/") {
			return p
		}
	}
	return 0
}

func portKey(service string, containerPort int) string {
	return fmt.Sprintf("%s/%d", service, containerPort)
}

// resolveTopology turns a profile into a Topology, claiming every fixed host
// port and allocating the dynamic ones from the allocator. On error all ports
// claimed so far are released.
func resolveTopology(name string, profile *config.Profile, allocator *ports.Allocator) (*Topology, error) {
	var (
		topo *Topology
		err  error
	)
	switch profile.Type {
	case config.ProfileTypePactServer:
		topo, err = resolvePactServer(name, profile, allocator)
	case config.ProfileTypeDevnet, config.ProfileTypeChainwebLocal:
		topo, err = resolveContainerTopology(name, profile, allocator)
	default:
		err = errors.ProfileUnknown(string(profile.Type))
	}
	if err != nil {
		allocator.ReleaseAll()
		return nil, err
	}
	return topo, nil
}

// resolvePactServer synthesizes a single-service process topology around a
// locally spawned pact server binary.
func resolvePactServer(name string, profile *config.Profile, allocator *ports.Allocator) (*Topology, error) {
	port := profile.Port
	if port == 0 {
		var err error
		port, err = allocator.Allocate()
		if err != nil {
			return nil, err
		}
	} else if err := allocator.Claim(port); err != nil {
		return nil, err
	}

	command := []string{profile.Command, "--server", "--port", strconv.Itoa(port)}
	if profile.PersistDir != "" {
		command = append(command, "--persist-dir", profile.PersistDir)
	}
	command = append(command, profile.Args...)

	svc := config.TopologyService{
		Name:    "pact-server",
		Image:   profile.Command,
		Command: command,
		Ports:   []string{fmt.Sprintf("%d:%d", port, port)},
		HealthCheck: &config.HealthCheck{
			TCP: fmt.Sprintf("127.0.0.1:%d", port),
		},
	}

	return &Topology{
		Name:     name,
		Runtime:  container.RuntimeTypeProcess,
		Services: []config.TopologyService{svc},
		Primary:  svc.Name,
		Ports:    map[string]int{portKey(svc.Name, port): port},
	}, nil
}

// resolveContainerTopology parses the profile's topology file and resolves
// host ports for every service. Port placeholders of the form
// ${port:<containerPort>} in healthcheck addresses and environment values are
// replaced with the host port resolved for that service.
func resolveContainerTopology(name string, profile *config.Profile, allocator *ports.Allocator) (*Topology, error) {
	file, err := config.ParseTopologyFile(profile.TopologyFile)
	if err != nil {
		return nil, err
	}

	if _, ok := file.Services[profile.PrimaryService]; !ok {
		return nil, errors.TopologyInvalid(
			fmt.Sprintf("primary service %s is not declared in %s", profile.PrimaryService, profile.TopologyFile))
	}

	topo := &Topology{
		Name:    profile.NetworkName,
		Runtime: container.RuntimeTypeDocker,
		Primary: profile.PrimaryService,
		Ports:   make(map[string]int),
	}
	if topo.Name == "" {
		topo.Name = name
	}

	baseDir := filepath.Dir(profile.TopologyFile)

	for _, svc := range file.Services {
		resolved := *svc

		mappings, err := svc.ParsePorts()
		if err != nil {
			return nil, err
		}
		resolved.Ports = resolved.Ports[:0:0]
		for _, m := range mappings {
			hostPort := m.HostPort
			if hostPort == 0 {
				hostPort, err = allocator.Allocate()
				if err != nil {
					return nil, err
				}
			} else if err := allocator.Claim(hostPort); err != nil {
				return nil, err
			}
			topo.Ports[portKey(svc.Name, m.ContainerPort)] = hostPort

			spec := fmt.Sprintf("%d:%d", hostPort, m.ContainerPort)
			if m.Protocol != "tcp" {
				spec += "/" + m.Protocol
			}
			resolved.Ports = append(resolved.Ports, spec)
		}

		mounts, err := svc.ParseVolumes(baseDir)
		if err != nil {
			return nil, err
		}
		resolved.Volumes = resolved.Volumes[:0:0]
		for _, m := range mounts {
			spec := m.HostPath + ":" + m.ContainerPath
			if m.ReadOnly {
				spec += ":ro"
			}
			resolved.Volumes = append(resolved.Volumes, spec)
		}

		substitutePorts(&resolved, topo)
		topo.Services = append(topo.Services, resolved)
	}

	return topo, nil
}

// substitutePorts replaces ${port:<containerPort>} placeholders in the
// service's healthcheck and environment with the host ports resolved for that
// service.
func substitutePorts(svc *config.TopologyService, topo *Topology) {
	replace := func(s string) string {
		for {
			start := strings.Index(s, "${port:")
			if start < 0 {
				return s
			}
			end := strings.Index(s[start:], "}")
			if end < 0 {
				return s
			}
			end += start
			containerPort, err := strconv.Atoi(s[start+len("${port:") : end])
			if err != nil {
				return s
			}
			hostPort, ok := topo.HostPort(svc.Name, containerPort)
			if !ok {
				return s
			}
			s = s[:start] + strconv.Itoa(hostPort) + s[end+1:]
		}
	}

	if hc := svc.HealthCheck; hc != nil {
		cloned := *hc
		cloned.HTTP = replace(cloned.HTTP)
		cloned.TCP = replace(cloned.TCP)
		svc.HealthCheck = &cloned
	}
	if len(svc.Environment) > 0 {
		env := make(config.Environment, len(svc.Environment))
		for k, v := range svc.Environment {
			env[k] = replace(v)
		}
		svc.Environment = env
	}
}
