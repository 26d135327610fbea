package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/constants"
)

func TestDaemonCommands(t *testing.T) {
	cmds := DaemonCommands()
	require.Len(t, cmds, 1)

	daemonCmd := cmds[0]
	assert.Equal(t, "daemon", daemonCmd.Use)

	byName := map[string]*cobra.Command{}
	for _, sub := range daemonCmd.Commands() {
		byName[sub.Name()] = sub
	}
	require.Contains(t, byName, "start")
	require.Contains(t, byName, "stop")
	require.Contains(t, byName, "status")

	startCmd := byName["start"]
	assert.NotNil(t, startCmd.Flags().Lookup("port"))
	assert.NotNil(t, startCmd.Flags().Lookup("config"))
	assert.NotNil(t, startCmd.Flags().Lookup("detach"))
}

func TestDaemonArgs(t *testing.T) {
	assert.Equal(t, []string{"daemon"}, daemonArgs(constants.DefaultServerPort, ""))
	assert.Equal(t,
		[]string{"daemon", "--port", "9000", "--config", "/etc/chainpad.toml"},
		daemonArgs(9000, "/etc/chainpad.toml"))
}

func TestDaemonStatusNoPidFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	// No PID file: reports not running without error
	require.NoError(t, daemonStatus())
}

func TestDaemonStatusDeadPid(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateDir)

	pidFile := pidFilePath()
	require.NoError(t, os.MkdirAll(filepath.Dir(pidFile), 0755))

	// Write a PID that cannot be alive; status should clean up the stale file.
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(1<<22-1)), 0644))
	require.NoError(t, daemonStatus())
	_, err := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))
}

func TestStopDaemonNoPidFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	require.NoError(t, stopDaemon())
}
