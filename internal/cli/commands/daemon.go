package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chainpad/internal/constants"
	"chainpad/internal/xdg"
)

// DaemonCommands creates the daemon management commands. The daemon itself is
// this binary re-executed with the bare "daemon" argument; start/stop/status
// manage that process through a PID file.
func DaemonCommands() []*cobra.Command {
	var (
		port       int
		configPath string
		background bool
	)

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the chainpad daemon",
		Long: `Start the chainpad HTTP API daemon. The daemon owns the running network;
every other command talks to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startDaemon(cmd, port, configPath, background)
		},
	}
	startCmd.Flags().IntVarP(&port, "port", "p", constants.DefaultServerPort, "port to run the daemon on")
	startCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	startCmd.Flags().BoolVarP(&background, "detach", "d", false, "run the daemon in the background")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the chainpad daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon()
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemonStatus()
		},
	}

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon management commands",
	}
	daemonCmd.AddCommand(startCmd, stopCmd, statusCmd)

	return []*cobra.Command{daemonCmd}
}

func daemonArgs(port int, configPath string) []string {
	args := []string{"daemon"}
	if port != constants.DefaultServerPort {
		args = append(args, "--port", strconv.Itoa(port))
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}

func pidFilePath() string {
	return filepath.Join(xdg.LogsDir(), "daemon.pid")
}

func startDaemon(cmd *cobra.Command, port int, configPath string, background bool) error {
	if !background {
		// Foreground: re-execute with the bare daemon argument so the
		// process owns the terminal.
		child := exec.CommandContext(cmd.Context(), os.Args[0], daemonArgs(port, configPath)...)
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		child.Stdin = os.Stdin
		return child.Run()
	}

	logsDir := xdg.LogsDir()
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(logsDir, "daemon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(os.Args[0], daemonArgs(port, configPath)...)
	child.Stdout = logFile
	child.Stderr = logFile

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(child.Process.Pid)), 0644); err != nil {
		child.Process.Kill()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	fmt.Printf("Daemon started on port %d (PID: %d)\n", port, child.Process.Pid)
	fmt.Printf("Logs: %s\n", filepath.Join(logsDir, "daemon.log"))
	return nil
}

func stopDaemon() error {
	pidFile := pidFilePath()
	pidBytes, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No daemon PID file found; daemon may not be running")
			return nil
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	fmt.Printf("Sending shutdown signal to daemon (PID: %d)...\n", pid)
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send shutdown signal: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := process.Wait()
		done <- err
	}()

	select {
	case <-done:
		fmt.Println("Daemon stopped")
	case <-time.After(constants.DaemonStopTimeout):
		fmt.Println("Daemon did not stop gracefully, sending SIGKILL...")
		process.Kill()
	}

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: failed to remove PID file: %v\n", err)
	}
	return nil
}

func daemonStatus() error {
	pidFile := pidFilePath()
	pidBytes, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon: not running (no PID file)")
			return nil
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		fmt.Printf("Daemon: unknown (invalid PID file: %s)\n", strings.TrimSpace(string(pidBytes)))
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Printf("Daemon: not running (PID %d not found)\n", pid)
		return nil
	}

	// Signal 0 checks liveness without side effects
	if err := process.Signal(syscall.Signal(0)); err != nil {
		fmt.Printf("Daemon: not running (PID %d is dead)\n", pid)
		os.Remove(pidFile)
		return nil
	}

	fmt.Printf("Daemon: running (PID: %d)\n", pid)
	return nil
}
