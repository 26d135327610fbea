package cli

import (
	"context"

	"github.com/spf13/cobra"

	"chainpad/internal/cli/commands"
	"chainpad/internal/client"
	"chainpad/internal/config"
)

// Manager handles CLI operations. Commands talk to a running daemon through
// the API client; only the daemon itself owns service processes.
type Manager struct {
	config  *config.Manager
	client  *client.Client
	rootCmd *cobra.Command
}

// New creates a new CLI manager
func New(cfg *config.Manager) *Manager {
	m := &Manager{
		config: cfg,
	}
	m.rootCmd = createRootCommand()
	return m
}

// SetClient wires the daemon API client and registers the commands
func (m *Manager) SetClient(c *client.Client) {
	m.client = c
	m.setupCommands()
}

// Execute executes the CLI with the given arguments
func (m *Manager) Execute(args []string) error {
	return m.ExecuteWithContext(context.Background(), args)
}

// ExecuteWithContext executes the CLI with the given arguments and context
func (m *Manager) ExecuteWithContext(ctx context.Context, args []string) error {
	m.rootCmd.SetArgs(args)
	return m.rootCmd.ExecuteContext(ctx)
}

// setupCommands sets up all CLI commands
func (m *Manager) setupCommands() {
	networkCmd := &cobra.Command{
		Use:     "network",
		Short:   "Network lifecycle commands",
		Aliases: []string{"net"},
	}
	for _, cmd := range commands.NetworkCommands(m.client) {
		networkCmd.AddCommand(cmd)
		// start/stop/status are common enough to live at the top level too
		switch cmd.Name() {
		case "start", "stop", "status":
			m.rootCmd.AddCommand(cmd)
		}
	}
	m.rootCmd.AddCommand(networkCmd)

	for _, cmd := range commands.ServiceCommands(m.client) {
		m.rootCmd.AddCommand(cmd)
	}

	m.rootCmd.AddCommand(commands.SubmitCommand(m.client))
	m.rootCmd.AddCommand(commands.SessionsCommand(m.client))

	for _, cmd := range commands.DaemonCommands() {
		m.rootCmd.AddCommand(cmd)
	}
}
