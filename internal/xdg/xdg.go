// Package xdg provides XDG Base Directory Specification compliant paths
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the XDG config directory for chainpad
// Priority: XDG_CONFIG_HOME > ~/.config/chainpad
func ConfigDir() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "chainpad"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "chainpad"), nil
}

// DataDir returns the XDG data directory for chainpad
// Priority: XDG_DATA_HOME > ~/.local/share/chainpad
func DataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "chainpad"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", "chainpad"), nil
}

// StateDir returns the XDG state directory for chainpad
// Priority: XDG_STATE_HOME > ~/.local/state/chainpad
func StateDir() (string, error) {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "chainpad"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "state", "chainpad"), nil
}

// RuntimeDir returns the XDG runtime directory for chainpad
// Priority: XDG_RUNTIME_DIR > /tmp/chainpad-$UID
func RuntimeDir() (string, error) {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "chainpad"), nil
	}

	uid := os.Getuid()
	return filepath.Join("/tmp", fmt.Sprintf("chainpad-%d", uid)), nil
}

// LogsDir returns the directory for storing service log files
// Uses state directory as the base
func LogsDir() string {
	stateDir, err := StateDir()
	if err != nil {
		// Fallback to data directory
		dataDir, _ := DataDir()
		return filepath.Join(dataDir, "logs")
	}
	return filepath.Join(stateDir, "logs")
}
