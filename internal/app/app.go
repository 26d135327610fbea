// Package app wires configuration, database, network manager, daemon server
// and CLI together.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"chainpad/internal/cli"
	"chainpad/internal/client"
	"chainpad/internal/config"
	"chainpad/internal/constants"
	"chainpad/internal/db"
	"chainpad/internal/logger"
	"chainpad/internal/network"
	"chainpad/internal/server"
)

// App represents the main application
type App struct {
	// Daemon components (daemon mode only)
	Config  *config.Manager
	Network *network.Manager
	Server  *server.Server
	DB      *db.DB

	// Client components (CLI mode)
	Client *client.Client
	CLI    *cli.Manager
}

// New creates a new application instance
func New() *App {
	return &App{}
}

// Run starts the application in the appropriate mode
func (a *App) Run(args []string) error {
	return a.RunWithContext(context.Background(), args)
}

// RunWithContext starts the application with a context for cancellation.
// "chainpad daemon" runs the API server that owns the network; everything
// else is a CLI command talking to it.
func (a *App) RunWithContext(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "daemon" {
		if len(args) > 1 && isDaemonSubcommand(args[1]) {
			// daemon start/stop/status are CLI commands
			return a.runCLI(ctx, args)
		}
		// bare "chainpad daemon" runs the server in the foreground
		return a.runDaemon(ctx, args[1:])
	}
	return a.runCLI(ctx, args)
}

// runDaemon runs the API server that owns the network session
func (a *App) runDaemon(ctx context.Context, args []string) error {
	cfg := config.New()
	if err := cfg.Load(configPathFromArgs(args)); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.Config = cfg

	database, err := db.New(db.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	a.DB = database
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.Network = network.New(cfg, db.NewSessionRepository(database))

	serverConfig := server.DefaultConfig()
	if port := portFromArgs(args); port != 0 {
		serverConfig.Port = port
	}

	a.Server = server.New(serverConfig, cfg, a.Network, database)

	logger.WithFields(logger.Fields{
		"port":      serverConfig.Port,
		"operation": "daemon_start",
	}).Info("Starting chainpad daemon")
	return a.Server.Start(ctx)
}

// runCLI runs a command against a daemon
func (a *App) runCLI(ctx context.Context, args []string) error {
	cfg := config.New()
	if err := cfg.Load(""); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.Config = cfg

	serverURL := os.Getenv("CHAINPAD_SERVER")
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://localhost:%d", constants.DefaultServerPort)
	}

	apiClient, err := client.New(serverURL)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	a.Client = apiClient

	a.CLI = cli.New(cfg)
	a.CLI.SetClient(apiClient)

	if len(args) == 0 {
		return a.CLI.ExecuteWithContext(ctx, []string{"--help"})
	}
	return a.CLI.ExecuteWithContext(ctx, args)
}

func isDaemonSubcommand(arg string) bool {
	switch arg {
	case "start", "stop", "status":
		return true
	}
	return false
}

func configPathFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		}
	}
	return ""
}

func portFromArgs(args []string) int {
	var port int
	for i, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--port="):
			fmt.Sscanf(arg, "--port=%d", &port)
		case arg == "--port" && i+1 < len(args):
			fmt.Sscanf(args[i+1], "%d", &port)
		}
	}
	return port
}
