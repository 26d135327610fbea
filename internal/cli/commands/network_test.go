package commands

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/client"
	"chainpad/internal/config"
	"chainpad/internal/errors"
	"chainpad/internal/network"
	"chainpad/internal/server"
	"chainpad/internal/testutil"
)

const testTopology = `
services:
  api-node:
    image: kadena/chainweb-node:latest
    ports:
      - "0:1848"
`

// newTestDaemon runs a real daemon handler over httptest and returns a
// client pointed at it.
func newTestDaemon(t *testing.T) (*client.Client, *network.Manager) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))

	topoPath := filepath.Join(dir, "devnet.yaml")
	require.NoError(t, os.WriteFile(topoPath, []byte(testTopology), 0644))

	cfg := config.New()
	cfg.Path = filepath.Join(dir, "chainpad.toml")
	cfg.Profiles = map[string]config.Profile{
		"devnet": {
			Type:           config.ProfileTypeDevnet,
			TopologyFile:   topoPath,
			PrimaryService: "api-node",
		},
	}
	cfg.Network.Profile = "devnet"

	netMgr := network.New(cfg, nil)
	netMgr.SetRuntime(testutil.NewMockRuntime())

	srv := server.New(server.DefaultConfig(), cfg, netMgr, nil)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		if netMgr.Status().Running {
			_ = netMgr.Stop(t.Context())
		}
		httpSrv.Close()
	})

	c, err := client.New(httpSrv.URL)
	require.NoError(t, err)
	return c, netMgr
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetContext(t.Context())
	return cmd.Execute()
}

func findCommand(t *testing.T, cmds []*cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range cmds {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

func TestNetworkStartStopCommands(t *testing.T) {
	c, netMgr := newTestDaemon(t)
	cmds := NetworkCommands(c)

	require.NoError(t, runCommand(t, findCommand(t, cmds, "start")))
	assert.True(t, netMgr.Status().Running)

	// Starting twice surfaces the daemon's conflict error
	err := runCommand(t, findCommand(t, cmds, "start"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNetworkAlreadyRunning))

	require.NoError(t, runCommand(t, findCommand(t, cmds, "status")))

	require.NoError(t, runCommand(t, findCommand(t, cmds, "stop")))
	assert.False(t, netMgr.Status().Running)

	err = runCommand(t, findCommand(t, cmds, "stop"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNetworkNotRunning))
}

func TestNetworkStartUnknownProfile(t *testing.T) {
	c, _ := newTestDaemon(t)
	cmds := NetworkCommands(c)

	err := runCommand(t, findCommand(t, cmds, "start"), "--profile", "mainnet")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrProfileUnknown))
}

func TestServicesCommand(t *testing.T) {
	c, _ := newTestDaemon(t)

	require.NoError(t, runCommand(t, findCommand(t, NetworkCommands(c), "start")))

	cmds := ServiceCommands(c)
	require.NoError(t, runCommand(t, findCommand(t, cmds, "services")))
	require.NoError(t, runCommand(t, findCommand(t, cmds, "logs"), "api-node"))

	err := runCommand(t, findCommand(t, ServiceCommands(c), "logs"), "ghost")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrServiceNotFound))
}

func TestSubmitCommandWithoutMining(t *testing.T) {
	c, _ := newTestDaemon(t)

	require.NoError(t, runCommand(t, findCommand(t, NetworkCommands(c), "start")))

	err := runCommand(t, SubmitCommand(c), "--chain", "0", "--confirmations", "2")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSchedulerClosed))
}
