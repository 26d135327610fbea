package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/errors"
)

const devnetTopology = `
services:
  chainweb-node:
    image: kadena/chainweb-node:latest
    command: ["chainweb-node", "--config-file", "/config/node.yaml"]
    environment:
      DISABLE_POW_VALIDATION: "1"
    ports:
      - "0:1848"
      - "0:1789/udp"
    volumes:
      - ./config:/config:ro
    healthcheck:
      http: http://127.0.0.1:${port:1848}/health-check
      interval: 2s
      timeout: 5s
      retries: 10
  mining-client:
    image: kadena/chainweb-mining-client:latest
    depends_on: chainweb-node
    restart: on-failure
    environment:
      - NODE=chainweb-node:1848
  api-proxy:
    image: nginx:alpine
    depends_on:
      - chainweb-node
      - mining-client
    ports:
      - "8080:80"
    healthcheck:
      tcp: 127.0.0.1:${port:80}
volumes:
  chainweb-data:
    driver: local
`

func TestParseTopology(t *testing.T) {
	topo, err := ParseTopology([]byte(devnetTopology))
	require.NoError(t, err)
	require.Len(t, topo.Services, 3)

	node := topo.Services["chainweb-node"]
	require.NotNil(t, node)
	assert.Equal(t, "chainweb-node", node.Name)
	assert.Equal(t, "kadena/chainweb-node:latest", node.Image)
	assert.Equal(t, []string{"chainweb-node", "--config-file", "/config/node.yaml"}, []string(node.Command))
	assert.Equal(t, "1", node.Environment["DISABLE_POW_VALIDATION"])
	require.NotNil(t, node.HealthCheck)
	assert.Equal(t, "http://127.0.0.1:${port:1848}/health-check", node.HealthCheck.HTTP)
	assert.Equal(t, 2*time.Second, time.Duration(node.HealthCheck.Interval))
	assert.Equal(t, 10, node.HealthCheck.Retries)

	miner := topo.Services["mining-client"]
	require.NotNil(t, miner)
	// depends_on accepts a bare string as well as a list
	assert.Equal(t, []string{"chainweb-node"}, []string(miner.DependsOn))
	assert.Equal(t, RestartOnFailure, miner.Restart)
	// environment accepts KEY=VALUE slices as well as maps
	assert.Equal(t, "chainweb-node:1848", miner.Environment["NODE"])

	proxy := topo.Services["api-proxy"]
	require.NotNil(t, proxy)
	assert.Equal(t, []string{"chainweb-node", "mining-client"}, []string(proxy.DependsOn))

	require.Contains(t, topo.Volumes, "chainweb-data")
	assert.Equal(t, "local", topo.Volumes["chainweb-data"].Driver)
}

func TestParseTopologyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no services", "volumes: {}"},
		{"missing image", "services:\n  node: {}"},
		{
			"undeclared dependency",
			"services:\n  node:\n    image: img\n    depends_on: ghost",
		},
		{
			"invalid service name",
			"services:\n  Bad Name:\n    image: img",
		},
		{
			"healthcheck with no probe",
			"services:\n  node:\n    image: img\n    healthcheck:\n      retries: 3",
		},
		{
			"healthcheck with two probes",
			"services:\n  node:\n    image: img\n    healthcheck:\n      http: http://x\n      tcp: 127.0.0.1:80",
		},
		{
			"negative retries",
			"services:\n  node:\n    image: img\n    healthcheck:\n      tcp: 127.0.0.1:80\n      retries: -1",
		},
		{
			"unsupported restart policy",
			"services:\n  node:\n    image: img\n    restart: always",
		},
		{
			"bad duration",
			"services:\n  node:\n    image: img\n    healthcheck:\n      tcp: 127.0.0.1:80\n      interval: soon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTopology([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrTopologyInvalid))
		})
	}
}

func TestParsePorts(t *testing.T) {
	svc := &TopologyService{
		Name:  "node",
		Ports: []string{"8080:1848", "1789", "0:1789/udp"},
	}

	mappings, err := svc.ParsePorts()
	require.NoError(t, err)
	require.Len(t, mappings, 3)

	assert.Equal(t, PortMapping{HostPort: 8080, ContainerPort: 1848, Protocol: "tcp"}, mappings[0])
	assert.Equal(t, PortMapping{HostPort: 0, ContainerPort: 1789, Protocol: "tcp"}, mappings[1])
	assert.Equal(t, PortMapping{HostPort: 0, ContainerPort: 1789, Protocol: "udp"}, mappings[2])

	for _, bad := range []string{"abc", "8080:abc", "1:2:3", "0:70000", "1848/sctp"} {
		svc.Ports = []string{bad}
		_, err := svc.ParsePorts()
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestParseVolumes(t *testing.T) {
	svc := &TopologyService{
		Name:    "node",
		Volumes: []string{"./config:/config:ro", "/abs/data:/data", "named-vol:/var/lib"},
	}

	mounts, err := svc.ParseVolumes("/base")
	require.NoError(t, err)
	require.Len(t, mounts, 3)

	assert.Equal(t, filepath.Join("/base", "config"), mounts[0].HostPath)
	assert.Equal(t, "/config", mounts[0].ContainerPath)
	assert.True(t, mounts[0].ReadOnly)

	assert.Equal(t, "/abs/data", mounts[1].HostPath)
	assert.False(t, mounts[1].ReadOnly)

	// Named volumes are relative, so they also resolve against the base dir.
	assert.Equal(t, filepath.Join("/base", "named-vol"), mounts[2].HostPath)

	svc.Volumes = []string{"no-container-path"}
	_, err = svc.ParseVolumes("/base")
	assert.Error(t, err)
}
